package daemon

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"chatline/internal/blob"
	"chatline/internal/config"
	"chatline/internal/delivery"
	"chatline/internal/feed"
	"chatline/internal/gateway"
	"chatline/internal/httpapi"
	"chatline/internal/identity"
	"chatline/internal/metrics"
	"chatline/internal/profile"
	"chatline/internal/status"
	"chatline/internal/sticker"
	"chatline/internal/store"
	"chatline/internal/verify"
)

// Server manages the HTTP server lifecycle.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

// NewServer builds the HTTP server over the API router.
func NewServer(
	cfg *config.Config,
	logger *zap.Logger,
	db *store.DB,
	liveFeed *feed.Live,
	gw *gateway.Gateway,
	machine *delivery.Machine,
	verifySvc *verify.Service,
	statuses *status.Aggregator,
	stickers *sticker.Service,
	profiles *profile.Resolver,
	blobs *blob.Store,
	m *metrics.Metrics,
	identities identity.Saver,
) *Server {
	api := httpapi.NewServer(httpapi.Config{
		DB:         db,
		Feed:       liveFeed,
		Gateway:    gw,
		Machine:    machine,
		Verify:     verifySvc,
		Statuses:   statuses,
		Stickers:   stickers,
		Profiles:   profiles,
		Blobs:      blobs,
		Metrics:    m,
		Identities: identities,
		Logger:     logger,
		Welcome:    cfg.WelcomeMessage,
	})
	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           api.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Start serves until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
