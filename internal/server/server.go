package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/jfelder/stockroom/internal/handler"
	"github.com/jfelder/stockroom/internal/middleware"
	"github.com/jfelder/stockroom/internal/storage"
	"github.com/jfelder/stockroom/internal/store"
)

type Server struct {
	db         *sql.DB
	authH      *handler.AuthHandler
	productH   *handler.ProductHandler
	tokenStore *store.TokenStore
	blobs      storage.BlobStore
	logger     *slog.Logger
}

func New(db *sql.DB, blobs storage.BlobStore, logger *slog.Logger) *Server {
	userStore := store.NewUserStore(db)
	tokenStore := store.NewTokenStore(db)
	productStore := store.NewProductStore(db)

	return &Server{
		db:         db,
		authH:      handler.NewAuthHandler(userStore, tokenStore, logger.With("component", "auth")),
		productH:   handler.NewProductHandler(productStore, blobs, logger.With("component", "product")),
		tokenStore: tokenStore,
		blobs:      blobs,
		logger:     logger,
	}
}

// TokenStore returns the token store for cleanup tasks.
func (s *Server) TokenStore() *store.TokenStore {
	return s.tokenStore
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /register", s.authH.Register)
	outerMux.HandleFunc("POST /login", s.authH.Login)
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Locally stored banner images are served straight from disk; the S3
	// backend hands out absolute URLs instead.
	if ls, ok := s.blobs.(*storage.LocalStore); ok {
		outerMux.Handle("GET /storage/", http.StripPrefix("/storage/", http.FileServer(http.Dir(ls.Root()))))
	}

	// Protected routes, wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.tokenStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	// Apply request logging middleware
	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /profile", s.authH.Profile)
	mux.HandleFunc("POST /logout", s.authH.Logout)

	mux.HandleFunc("GET /products", s.productH.List)
	mux.HandleFunc("POST /products", s.productH.Create)
	mux.HandleFunc("PUT /products/{id}", s.productH.Update)
	// Multipart forms cannot send PUT; accept the _method override.
	mux.HandleFunc("POST /products/{id}", s.productH.Update)
	mux.HandleFunc("DELETE /products/{id}", s.productH.Delete)
}
