// Command server runs the expense ledger web application.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"expense-ledger/internal/auth"
	"expense-ledger/internal/config"
	"expense-ledger/internal/handlers"
	"expense-ledger/internal/ledger"
	"expense-ledger/internal/storage"
	"expense-ledger/web"

	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout = 10 * time.Second
	sweepInterval   = 5 * time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := storage.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if n, err := db.CleanExpiredSessions(ctx); err != nil {
		logger.Warn("failed to clean expired sessions", "error", err)
	} else if n > 0 {
		logger.Info("cleaned expired sessions", "count", n)
	}

	creds, err := auth.NewCredentials(db)
	if err != nil {
		return err
	}
	if err := bootstrapAdmin(ctx, db, creds, cfg, logger); err != nil {
		return err
	}

	l := ledger.New(db, cfg.CacheTTL)
	l.Subscribe(func(c ledger.Change) {
		logger.Debug("ledger changed", "kind", c.Kind.String(), "user", c.UserID)
	})

	h, err := handlers.NewHandlers(db, l, creds, handlers.Options{
		Mode:            cfg.Mode,
		SingleUser:      cfg.SingleUser,
		SecureCookie:    cfg.SecureCookie,
		SessionDuration: cfg.SessionDuration,
		CurrencySymbol:  cfg.CurrencySymbol,
		Logger:          logger,
	})
	if err != nil {
		return err
	}

	static, err := staticFS(cfg.StaticDir)
	if err != nil {
		return err
	}
	limiter := handlers.NewLoginLimiter(cfg.LoginMaxAttempts, cfg.LoginWindow)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handlers.RequestLogger(logger)(setupRouter(h, static, limiter)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", "addr", srv.Addr, "mode", string(cfg.Mode), "db", cfg.DBPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return limiter.Run(ctx, sweepInterval)
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// bootstrapAdmin creates the configured account when the database has no
// users yet.
func bootstrapAdmin(ctx context.Context, db *storage.DB, creds *auth.Credentials, cfg *config.Config, logger *slog.Logger) error {
	if cfg.AdminUser == "" {
		return nil
	}
	n, err := db.UserCount(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if _, err := creds.Register(ctx, cfg.AdminUser, cfg.AdminPassword); err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}
	logger.Info("created admin user", "username", cfg.AdminUser)
	return nil
}

func staticFS(dir string) (fs.FS, error) {
	if dir != "" {
		return os.DirFS(dir), nil
	}
	return fs.Sub(web.StaticFS, "static")
}

func setupRouter(h *handlers.Handlers, static fs.FS, limiter *handlers.LoginLimiter) *http.ServeMux {
	mux := http.NewServeMux()
	protect := h.AuthMiddleware

	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/expenses", http.StatusFound)
	})

	if !h.Single() {
		mux.HandleFunc("GET /login", h.LoginForm)
		mux.Handle("POST /login", limiter.Middleware(http.HandlerFunc(h.Login)))
		mux.HandleFunc("GET /signup", h.SignupForm)
		mux.HandleFunc("POST /signup", h.Signup)
		mux.HandleFunc("POST /logout", h.Logout)
	}

	mux.Handle("GET /expenses", protect(http.HandlerFunc(h.ListExpenses)))
	mux.Handle("GET /stats", protect(http.HandlerFunc(h.Statistics)))
	mux.Handle("GET /export/csv", protect(http.HandlerFunc(h.ExportCSV)))
	mux.Handle("GET /export/xlsx", protect(http.HandlerFunc(h.ExportXLSX)))

	if !h.ReadOnly() {
		mux.Handle("GET /expenses/new", protect(http.HandlerFunc(h.CreateExpenseForm)))
		mux.Handle("POST /expenses", protect(http.HandlerFunc(h.CreateExpense)))
		mux.Handle("GET /expenses/{id}/edit", protect(http.HandlerFunc(h.EditExpenseForm)))
		mux.Handle("POST /expenses/{id}", protect(http.HandlerFunc(h.UpdateExpense)))
		mux.Handle("POST /expenses/{id}/delete", protect(http.HandlerFunc(h.DeleteExpense)))
		mux.Handle("POST /budget", protect(http.HandlerFunc(h.SetBudget)))
	}

	return mux
}
