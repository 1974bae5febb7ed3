package web

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/zombor/billed/internal/bill"
	"github.com/zombor/billed/internal/session"
)

// maxUploadSize bounds receipt uploads
const maxUploadSize = int64(20 << 20) // 20MB

// redirector is a bill.Navigator answering the current request with a redirect
type redirector struct {
	w http.ResponseWriter
	r *http.Request
}

func (n *redirector) Navigate(route bill.Route) {
	http.Redirect(n.w, n.r, string(route), http.StatusSeeOther)
}

// overlay is a bill.Presenter remembering the receipt to show
type overlay struct {
	fileURL string
}

func (o *overlay) ShowReceipt(fileURL string) {
	o.fileURL = fileURL
}

type loginPage struct {
	Title string
}

type billsPage struct {
	Title string
	Rows  []*bill.Row
	Error string
}

type receiptPage struct {
	Title   string
	FileURL string
}

type newBillPage struct {
	Title          string
	ExpenseTypes   []string
	Form           bill.Form
	ErrorVisible   bool
	ErrorMessage   string
	SubmitDisabled bool
	FormError      string
}

func newBillPageFor(nb *bill.NewBill, form bill.Form) newBillPage {
	return newBillPage{
		Title:          "Nouvelle note de frais",
		ExpenseTypes:   bill.ExpenseTypes,
		Form:           form,
		ErrorVisible:   nb.ErrorVisible(),
		ErrorMessage:   bill.InvalidFileMessage,
		SubmitDisabled: nb.State() == bill.StateFileRejected,
	}
}

// handleLogin renders the login form
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	render(w, http.StatusOK, "login.html", loginPage{Title: "Connexion"})
}

// handleLoginSubmit stores the user in the session and opens their landing page
func (s *Server) handleLoginSubmit(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.FormValue("email"))
	if email == "" {
		http.Error(w, "email is required", http.StatusBadRequest)
		return
	}
	userType := bill.UserEmployee
	if r.FormValue("type") == string(bill.UserAdmin) {
		userType = bill.UserAdmin
	}

	if err := s.session.SetUser(bill.User{Type: userType, Email: email}); err != nil {
		slog.Error("Error saving session user", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	route := bill.RouteBills
	if userType == bill.UserAdmin {
		route = bill.RouteDashboard
	}
	http.Redirect(w, r, string(route), http.StatusSeeOther)
}

// handleBills renders the bill list, or the store's error message
func (s *Server) handleBills(w http.ResponseWriter, r *http.Request) {
	list := bill.NewBillList(s.store, s.session, &redirector{w: w, r: r}, nil)

	rows, err := list.Load(r.Context())
	if err != nil {
		var netErr *bill.NetworkError
		switch {
		case errors.As(err, &netErr):
			render(w, http.StatusBadGateway, "bills.html", billsPage{Title: "Notes de frais", Error: netErr.Message})
		case errors.Is(err, session.ErrNoUser):
			http.Redirect(w, r, string(bill.RouteLogin), http.StatusSeeOther)
		default:
			slog.Error("Error loading bills", "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render(w, http.StatusOK, "bills.html", billsPage{Title: "Notes de frais", Rows: rows})
}

// handleReceipt shows the receipt at ?url= in an overlay. Nothing is fetched.
func (s *Server) handleReceipt(w http.ResponseWriter, r *http.Request) {
	fileURL := r.URL.Query().Get("url")
	if fileURL == "" {
		http.Error(w, "url is required", http.StatusBadRequest)
		return
	}

	shown := &overlay{}
	list := bill.NewBillList(s.store, s.session, &redirector{w: w, r: r}, shown)
	list.HandleViewReceipt(fileURL)

	render(w, http.StatusOK, "receipt.html", receiptPage{Title: "Justificatif", FileURL: shown.fileURL})
}

// handleClickNewBill sends the user to the new bill form
func (s *Server) handleClickNewBill(w http.ResponseWriter, r *http.Request) {
	list := bill.NewBillList(s.store, s.session, &redirector{w: w, r: r}, nil)
	list.HandleClickNewBill()
}

// handleNewBill renders an empty new bill form
func (s *Server) handleNewBill(w http.ResponseWriter, r *http.Request) {
	nb := bill.NewNewBill(s.store, s.session, &redirector{w: w, r: r})
	render(w, http.StatusOK, "new_bill.html", newBillPageFor(nb, bill.Form{}))
}

// handleNewBillSubmit checks the receipt, then uploads it and creates the bill
func (s *Server) handleNewBillSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	form := bill.Form{
		Type:       r.FormValue("expense-type"),
		Name:       r.FormValue("expense-name"),
		Date:       r.FormValue("datepicker"),
		Amount:     r.FormValue("amount"),
		VAT:        r.FormValue("vat"),
		Pct:        r.FormValue("pct"),
		Commentary: r.FormValue("commentary"),
	}

	nb := bill.NewNewBill(s.store, s.session, &redirector{w: w, r: r})

	f, header, err := r.FormFile("file")
	if err != nil {
		page := newBillPageFor(nb, form)
		page.FormError = "Aucun fichier sélectionné."
		render(w, http.StatusBadRequest, "new_bill.html", page)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		http.Error(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return
	}

	file := bill.File{Name: header.Filename, ContentType: header.Header.Get("Content-Type"), Data: data}
	if err := nb.HandleChangeFile(file); err != nil {
		render(w, http.StatusBadRequest, "new_bill.html", newBillPageFor(nb, form))
		return
	}

	if _, err := nb.HandleSubmit(r.Context(), form); err != nil {
		s.renderSubmitError(w, r, nb, form, err)
	}
}

// renderSubmitError redisplays the form with the failure message
func (s *Server) renderSubmitError(w http.ResponseWriter, r *http.Request, nb *bill.NewBill, form bill.Form, err error) {
	var (
		verr   *bill.ValidationError
		netErr *bill.NetworkError
	)
	page := newBillPageFor(nb, form)
	switch {
	case errors.As(err, &verr):
		page.FormError = verr.Error()
		render(w, http.StatusBadRequest, "new_bill.html", page)
	case errors.As(err, &netErr):
		page.FormError = netErr.Message
		render(w, http.StatusBadGateway, "new_bill.html", page)
	case errors.Is(err, session.ErrNoUser):
		http.Redirect(w, r, string(bill.RouteLogin), http.StatusSeeOther)
	default:
		slog.Error("Error submitting bill", "error", err)
		page.FormError = "Une erreur est survenue."
		render(w, http.StatusInternalServerError, "new_bill.html", page)
	}
}
