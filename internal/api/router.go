package api

import (
	"database/sql"
	"io"
	"log/slog"
	"net/http"

	"github.com/erazemk/posoja/internal/auth"
	"github.com/erazemk/posoja/internal/lending"
	"github.com/erazemk/posoja/internal/model"
)

// MediaOpener serves stored media back by name.
type MediaOpener interface {
	Open(name string) (io.ReadSeekCloser, string, error)
}

// Config wires the router to its dependencies.
type Config struct {
	Lending *lending.Service
	Issuer  *auth.Issuer
	DB      *sql.DB
	Media   MediaOpener
	Log     *slog.Logger
	// MaxUpload bounds multipart bodies. Zero means 32 MiB.
	MaxUpload int64
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(cfg Config) http.Handler {
	if cfg.MaxUpload <= 0 {
		cfg.MaxUpload = 32 << 20
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}

	mux := http.NewServeMux()

	authHandler := &AuthHandler{Lending: cfg.Lending, Issuer: cfg.Issuer, DB: cfg.DB}
	usersHandler := &UsersHandler{Lending: cfg.Lending}
	collectionsHandler := &CollectionsHandler{Lending: cfg.Lending}
	itemsHandler := &ItemsHandler{Lending: cfg.Lending, MaxUpload: cfg.MaxUpload}
	borrowsHandler := &BorrowsHandler{Lending: cfg.Lending, MaxUpload: cfg.MaxUpload}
	moderationHandler := &ModerationHandler{Lending: cfg.Lending}
	mediaHandler := &MediaHandler{Media: cfg.Media}

	authMW := AuthMiddleware(cfg.Issuer, cfg.DB)
	requireAdmin := RequireRole(model.RoleAdmin)
	authed := func(h http.HandlerFunc) http.Handler { return authMW(h) }

	// Public: login, response links and media.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("GET /api/respond/{token}", borrowsHandler.ViewByToken)
	mux.HandleFunc("POST /api/respond/{token}", borrowsHandler.RespondByToken)
	mux.HandleFunc("GET /api/media/{name}", mediaHandler.Get)

	// Session.
	mux.Handle("GET /api/auth/me", authed(authHandler.Me))
	mux.Handle("PUT /api/auth/password", authed(authHandler.ChangePassword))
	mux.Handle("POST /api/auth/logout", authed(authHandler.Logout))

	// Users: admin manages accounts, everyone manages their own contact.
	mux.Handle("GET /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("POST /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.Create))))
	mux.Handle("GET /api/users/{id}", authed(usersHandler.Get))
	mux.Handle("PUT /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Update))))
	mux.Handle("PUT /api/users/{id}/contact", authed(usersHandler.UpdateContact))
	mux.Handle("PUT /api/users/{id}/password", authMW(requireAdmin(http.HandlerFunc(usersHandler.ResetPassword))))
	mux.Handle("DELETE /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Delete))))

	// Moderation.
	mux.Handle("POST /api/users/{id}/actions", authMW(requireAdmin(http.HandlerFunc(moderationHandler.ApplyAction))))
	mux.Handle("GET /api/users/{id}/actions", authed(moderationHandler.ListActions))
	mux.Handle("GET /api/admin/actions", authMW(requireAdmin(http.HandlerFunc(moderationHandler.ListAllActions))))
	mux.Handle("GET /api/disputes", authMW(requireAdmin(http.HandlerFunc(moderationHandler.ListDisputes))))
	mux.Handle("GET /api/disputes/{id}", authed(moderationHandler.GetDispute))
	mux.Handle("POST /api/disputes/{id}/resolve", authMW(requireAdmin(http.HandlerFunc(moderationHandler.ResolveDispute))))

	// Collections.
	mux.Handle("GET /api/collections", authed(collectionsHandler.List))
	mux.Handle("POST /api/collections", authed(collectionsHandler.Create))
	mux.Handle("GET /api/collections/{id}", authed(collectionsHandler.Get))
	mux.Handle("DELETE /api/collections/{id}", authed(collectionsHandler.Delete))

	// Items.
	mux.Handle("GET /api/items", authed(itemsHandler.List))
	mux.Handle("POST /api/items", authed(itemsHandler.Create))
	mux.Handle("GET /api/items/{id}", authed(itemsHandler.Get))
	mux.Handle("PUT /api/items/{id}", authed(itemsHandler.Update))
	mux.Handle("POST /api/items/{id}/activate", authed(itemsHandler.Activate))
	mux.Handle("PUT /api/items/{id}/image", authed(itemsHandler.UploadImage))
	mux.Handle("GET /api/items/{id}/history", authed(itemsHandler.GetHistory))
	mux.Handle("POST /api/items/{id}/borrow", authed(borrowsHandler.Create))

	// Borrow requests.
	mux.Handle("GET /api/borrows", authed(borrowsHandler.List))
	mux.Handle("GET /api/borrows/{id}", authed(borrowsHandler.Get))
	mux.Handle("POST /api/borrows/{id}/respond", authed(borrowsHandler.Respond))
	mux.Handle("POST /api/borrows/{id}/activate", authed(borrowsHandler.Activate))
	mux.Handle("POST /api/borrows/{id}/return", authed(borrowsHandler.Return))
	mux.Handle("POST /api/borrows/{id}/cancel", authed(borrowsHandler.Cancel))
	mux.Handle("POST /api/borrows/{id}/disputes", authed(moderationHandler.OpenDispute))

	return LoggingMiddleware(cfg.Log)(mux)
}
