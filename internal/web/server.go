package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/zombor/billed/internal/bill"
)

// Session is the session store the web pages read and log in to
type Session interface {
	bill.SessionStore
	SetUser(user bill.User) error
}

// Server renders the employee pages on top of the bill controllers
type Server struct {
	store   bill.RemoteStore
	session Session
	mux     *http.ServeMux

	mu     sync.Mutex
	srv    *http.Server
	closed bool
}

// NewServer creates a new Server with default mux
func NewServer(store bill.RemoteStore, session Session) *Server {
	return NewServerWithMux(store, session, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(store bill.RemoteStore, session Session, mux *http.ServeMux) *Server {
	s := &Server{
		store:   store,
		session: session,
		mux:     mux,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /{$}", s.handleLogin)
	s.mux.HandleFunc("POST /login", s.handleLoginSubmit)

	s.mux.HandleFunc("GET "+string(bill.RouteBills), s.handleBills)
	s.mux.HandleFunc("GET "+string(bill.RouteDashboard), s.handleBills)
	s.mux.HandleFunc("GET /employee/bills/receipt", s.handleReceipt)
	s.mux.HandleFunc("POST /employee/bills/new", s.handleClickNewBill)

	s.mux.HandleFunc("GET "+string(bill.RouteNewBill), s.handleNewBill)
	s.mux.HandleFunc("POST "+string(bill.RouteNewBill), s.handleNewBillSubmit)
}

// Handler returns the mux wrapped with tracing
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.mux, "billed-web")
}

// Start serves the pages on addr until Shutdown is called
func (s *Server) Start(addr string) error {
	slog.Info("Starting web server", "address", addr)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		slog.Info("Server already shut down, not starting", "address", addr)
		return nil
	}
	s.srv = srv
	s.mu.Unlock()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops a server started with Start. Once called, a later Start
// returns without serving.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
