package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"
	"time"

	"expense-ledger/internal/auth"
	"expense-ledger/internal/config"
	"expense-ledger/internal/handlers"
	"expense-ledger/internal/ledger"
	"expense-ledger/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T, mode config.Mode) *http.ServeMux {
	t.Helper()
	db, err := storage.NewDB(":memory:")
	require.NoError(t, err, "failed to create database")
	t.Cleanup(func() { db.Close() })

	creds, err := auth.NewCredentials(db)
	require.NoError(t, err)
	h, err := handlers.NewHandlers(db, ledger.New(db, time.Minute), creds, handlers.Options{
		Mode:       mode,
		SingleUser: "local",
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)

	static := fstest.MapFS{"style.css": {Data: []byte("body{}")}}
	return setupRouter(h, static, handlers.NewLoginLimiter(5, time.Minute))
}

type routeCase struct {
	name       string
	method     string
	path       string
	wantStatus int
}

func checkRoutes(t *testing.T, mux http.Handler, tests []routeCase) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, http.NoBody)
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code,
				"%s %s returned unexpected status", tt.method, tt.path)
		})
	}
}

func TestSetupRouterMulti(t *testing.T) {
	checkRoutes(t, newRouter(t, config.ModeMulti), []routeCase{
		{"Root redirects to /expenses", "GET", "/", http.StatusFound},
		{"Static file access", "GET", "/static/style.css", http.StatusOK},
		{"List Expenses requires auth", "GET", "/expenses", http.StatusFound},
		{"Statistics requires auth", "GET", "/stats", http.StatusFound},
		{"Export requires auth", "GET", "/export/csv", http.StatusFound},
		{"New form requires auth", "GET", "/expenses/new", http.StatusFound},
		{"Login page", "GET", "/login", http.StatusOK},
		{"Signup page", "GET", "/signup", http.StatusOK},
		{"Unknown path", "GET", "/nope", http.StatusNotFound},
	})
}

func TestSetupRouterReadOnly(t *testing.T) {
	checkRoutes(t, newRouter(t, config.ModeReadOnly), []routeCase{
		{"List Expenses requires auth", "GET", "/expenses", http.StatusFound},
		{"Signup stays open", "GET", "/signup", http.StatusOK},
		{"No create form", "GET", "/expenses/new", http.StatusNotFound},
		{"No create", "POST", "/expenses", http.StatusMethodNotAllowed},
		{"No delete", "POST", "/expenses/1/delete", http.StatusNotFound},
		{"No budget", "POST", "/budget", http.StatusNotFound},
	})
}

func TestSetupRouterSingle(t *testing.T) {
	checkRoutes(t, newRouter(t, config.ModeSingle), []routeCase{
		{"Dashboard without login", "GET", "/expenses", http.StatusOK},
		{"New form without login", "GET", "/expenses/new", http.StatusOK},
		{"Statistics without login", "GET", "/stats", http.StatusOK},
		{"No login page", "GET", "/login", http.StatusNotFound},
	})
}

func TestBootstrapAdmin(t *testing.T) {
	ctx := context.Background()
	db, err := storage.NewDB(":memory:")
	require.NoError(t, err)
	defer db.Close()
	creds, err := auth.NewCredentials(db)
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := &config.Config{}
	require.NoError(t, bootstrapAdmin(ctx, db, creds, cfg, logger))
	n, err := db.UserCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "no admin configured")

	cfg.AdminUser, cfg.AdminPassword = "admin", "changeme"
	require.NoError(t, bootstrapAdmin(ctx, db, creds, cfg, logger))
	ok, err := creds.Verify(ctx, "admin", "changeme")
	require.NoError(t, err)
	assert.True(t, ok)

	cfg.AdminUser = "second"
	require.NoError(t, bootstrapAdmin(ctx, db, creds, cfg, logger))
	n, err = db.UserCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "existing users skip the bootstrap")
}
