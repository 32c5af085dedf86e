// Package httpapi exposes the daemon's HTTP surface: the provider
// webhook, verification, uploads, statuses, stickers, profiles, the
// WebSocket chat stream, and the served file tree.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"chatline/internal/blob"
	"chatline/internal/delivery"
	"chatline/internal/feed"
	"chatline/internal/gateway"
	"chatline/internal/identity"
	"chatline/internal/metrics"
	"chatline/internal/profile"
	"chatline/internal/status"
	"chatline/internal/sticker"
	"chatline/internal/store"
	"chatline/internal/verify"
)

// maxUploadBytes bounds multipart uploads.
const maxUploadBytes = 10 << 20

// Server bundles every handler dependency behind one chi router.
type Server struct {
	db         *store.DB
	feed       feed.Feed
	gateway    *gateway.Gateway
	machine    *delivery.Machine
	verify     *verify.Service
	statuses   *status.Aggregator
	stickers   *sticker.Service
	profiles   *profile.Resolver
	blobs      *blob.Store
	metrics    *metrics.Metrics
	identities identity.Saver
	logger     *zap.Logger

	// welcome is forwarded to every controller this server mounts.
	welcome string

	router chi.Router
}

// Config carries the server's dependencies.
type Config struct {
	DB         *store.DB
	Feed       feed.Feed
	Gateway    *gateway.Gateway
	Machine    *delivery.Machine
	Verify     *verify.Service
	Statuses   *status.Aggregator
	Stickers   *sticker.Service
	Profiles   *profile.Resolver
	Blobs      *blob.Store
	Metrics    *metrics.Metrics
	Identities identity.Saver
	Logger     *zap.Logger
	Welcome    string
}

// NewServer builds the router.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		db:         cfg.DB,
		feed:       cfg.Feed,
		gateway:    cfg.Gateway,
		machine:    cfg.Machine,
		verify:     cfg.Verify,
		statuses:   cfg.Statuses,
		stickers:   cfg.Stickers,
		profiles:   cfg.Profiles,
		blobs:      cfg.Blobs,
		metrics:    cfg.Metrics,
		identities: cfg.Identities,
		logger:     logger,
		welcome:    cfg.Welcome,
	}
	s.router = s.routes()
	return s
}

// Handler returns the assembled router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/message", s.handleWebhook)
		r.Post("/sendWhatsApp", s.handleSendCode)
		r.Post("/verifyCode", s.handleVerifyCode)
		r.Get("/identity", s.handleGetIdentity)

		r.Post("/uploads/avatar/{phoneKey}", s.handleAvatarUpload)
		r.Post("/uploads/status", s.handleStatusUpload)
		r.Post("/uploads/sticker/{packID}", s.handleStickerUpload)

		r.Get("/statuses", s.handleListStatuses)
		r.Post("/statuses", s.handleCreateStatus)
		r.Delete("/statuses/{id}", s.handleDeleteStatus)

		r.Get("/stickers", s.handleListStickers)

		r.Get("/threads", s.handleListThreads)
		r.Patch("/threads/{phoneKey}", s.handlePatchThread)
		r.Get("/profile/{phoneKey}", s.handleGetProfile)
		r.Patch("/profile/{phoneKey}", s.handlePatchProfile)
		r.Get("/adminProfile", s.handleAdminProfile)
	})

	r.Get("/ws/chat/{phoneKey}", s.handleChatSocket)

	if s.blobs != nil {
		fileServer := http.StripPrefix("/files/", http.FileServer(http.Dir(s.blobs.Root())))
		r.Handle("/files/*", fileServer)
	}
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}
