package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/billed/internal/billing"
	"github.com/zombor/billed/internal/remote"
	"github.com/zombor/billed/internal/scanning"
	"github.com/zombor/billed/internal/session"
	"github.com/zombor/billed/internal/web"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

// shutdownTimeout bounds graceful shutdown of either server
const shutdownTimeout = 10 * time.Second

// server is what runServer drives until the context ends
type server interface {
	Start(addr string) error
	Shutdown(ctx context.Context) error
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootFlags := ff.NewFlagSet("billed")
	root := &ff.Command{
		Name:      "billed",
		Usage:     "billed <SUBCOMMAND> [FLAGS]",
		ShortHelp: "expense reports for employees",
		Flags:     rootFlags,
	}

	apiFlags := ff.NewFlagSet("api").SetParent(rootFlags)
	apiCfg := apiConfig{
		port:        apiFlags.IntLong("port", 8081, "HTTP server port"),
		dbPath:      apiFlags.StringLong("db", "billed.db", "Database file path"),
		storagePath: apiFlags.StringLong("storage", "./receipts", "Receipt storage directory path"),
		publicURL:   apiFlags.StringLong("public-url", "http://localhost:8081", "Base URL used in receipt file links"),
		scannerType: apiFlags.StringLong("scanner", "none", "Receipt scanner: 'none', 'gemini' or 'ollama'"),
		geminiKey:   apiFlags.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)"),
		geminiModel: apiFlags.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name"),
		ollamaURL:   apiFlags.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL"),
		ollamaModel: apiFlags.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, bakllava, qwen2-vl)"),
		authUser:    apiFlags.StringLong("auth-user", "", "Basic auth username (optional)"),
		authPass:    apiFlags.StringLong("auth-pass", "", "Basic auth password (optional)"),
	}
	apiCmd := &ff.Command{
		Name:      "api",
		Usage:     "billed api [FLAGS]",
		ShortHelp: "serve the bill and receipt API",
		Flags:     apiFlags,
		Exec: func(ctx context.Context, args []string) error {
			return runAPI(ctx, apiCfg)
		},
	}

	webFlags := ff.NewFlagSet("web").SetParent(rootFlags)
	webCfg := webConfig{
		port:        webFlags.IntLong("port", 8080, "HTTP server port"),
		apiURL:      webFlags.StringLong("api-url", "http://localhost:8081", "Base URL of the billed API"),
		sessionPath: webFlags.StringLong("session", "billed-session.json", "Session file path, shared by every visitor of this process"),
		authUser:    webFlags.StringLong("auth-user", "", "Basic auth username for the API (optional)"),
		authPass:    webFlags.StringLong("auth-pass", "", "Basic auth password for the API (optional)"),
		timeout:     webFlags.DurationLong("timeout", 30*time.Second, "API request timeout"),
	}
	webCmd := &ff.Command{
		Name:      "web",
		Usage:     "billed web [FLAGS]",
		ShortHelp: "serve the employee pages",
		Flags:     webFlags,
		Exec: func(ctx context.Context, args []string) error {
			return runWeb(ctx, webCfg)
		},
	}

	root.Subcommands = []*ff.Command{apiCmd, webCmd}

	if err := root.Parse(os.Args[1:], ff.WithEnvVarPrefix("BILLED")); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Command(root.GetSelected()))
		if errors.Is(err, ff.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := root.Run(ctx); err != nil {
		if errors.Is(err, ff.ErrNoExec) {
			fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Command(root))
			os.Exit(1)
		}
		slog.Error("Exiting", "error", err)
		os.Exit(1)
	}
}

type apiConfig struct {
	port        *int
	dbPath      *string
	storagePath *string
	publicURL   *string
	scannerType *string
	geminiKey   *string
	geminiModel *string
	ollamaURL   *string
	ollamaModel *string
	authUser    *string
	authPass    *string
}

// runAPI serves the bill API until ctx is cancelled
func runAPI(ctx context.Context, cfg apiConfig) error {
	slog.Info("Initializing database...")
	db, err := billing.NewBoltDB(*cfg.dbPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()

	scanner, err := newScanner(ctx, cfg)
	if err != nil {
		return err
	}
	if scanner != nil {
		defer scanner.Close()
	}

	slog.Info("Initializing storage...")
	storage, err := billing.NewLocalStorage(*cfg.storagePath)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	service := billing.NewService(db, storage, scanner, *cfg.publicURL)
	basicAuth := billing.BasicAuth{
		Username: *cfg.authUser,
		Password: *cfg.authPass,
	}
	if basicAuth.Enabled() {
		slog.Info("Basic auth enabled", "user", *cfg.authUser)
	}

	return runServer(ctx, billing.NewServer(service, basicAuth), *cfg.port)
}

// newScanner builds the configured receipt scanner, or nil for "none"
func newScanner(ctx context.Context, cfg apiConfig) (scanning.Scanner, error) {
	switch *cfg.scannerType {
	case "none", "":
		slog.Info("Receipt scanning disabled")
		return nil, nil
	case "gemini":
		apiKey := *cfg.geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, errors.New("gemini API key is required: set --gemini-key or GEMINI_API_KEY")
		}
		slog.Info("Initializing Gemini scanner...", "model", *cfg.geminiModel)
		scanner, err := scanning.NewGemini(ctx, apiKey, *cfg.geminiModel)
		if err != nil {
			return nil, fmt.Errorf("initializing gemini: %w", err)
		}
		return scanner, nil
	case "ollama":
		slog.Info("Initializing Ollama scanner...", "url", *cfg.ollamaURL, "model", *cfg.ollamaModel)
		scanner, err := scanning.NewOllama(*cfg.ollamaURL, *cfg.ollamaModel)
		if err != nil {
			return nil, fmt.Errorf("initializing ollama: %w", err)
		}
		return scanner, nil
	default:
		return nil, fmt.Errorf("invalid scanner type %q: want none, gemini or ollama", *cfg.scannerType)
	}
}

type webConfig struct {
	port        *int
	apiURL      *string
	sessionPath *string
	authUser    *string
	authPass    *string
	timeout     *time.Duration
}

// runWeb serves the employee pages until ctx is cancelled
func runWeb(ctx context.Context, cfg webConfig) error {
	var opts []remote.Option
	if *cfg.authUser != "" || *cfg.authPass != "" {
		opts = append(opts, remote.WithBasicAuth(*cfg.authUser, *cfg.authPass))
	}
	store := remote.NewClient(*cfg.apiURL, *cfg.timeout, opts...)
	sess := session.NewFileStore(*cfg.sessionPath)

	slog.Info("Using bill API", "url", *cfg.apiURL, "session", *cfg.sessionPath)
	return runServer(ctx, web.NewServer(store, sess), *cfg.port)
}

// runServer starts srv and shuts it down once ctx is done
func runServer(ctx context.Context, srv server, port int) error {
	addr := fmt.Sprintf(":%d", port)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(addr)
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}
