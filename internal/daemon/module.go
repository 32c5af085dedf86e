// Package daemon assembles the chatline process: store, bus, services,
// and the HTTP server, wired together with fx.
package daemon

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"chatline/internal/blob"
	"chatline/internal/bus"
	"chatline/internal/config"
	"chatline/internal/delivery"
	"chatline/internal/feed"
	"chatline/internal/gateway"
	"chatline/internal/identity"
	"chatline/internal/lock"
	"chatline/internal/logging"
	"chatline/internal/metrics"
	"chatline/internal/outbox"
	"chatline/internal/profile"
	"chatline/internal/provider"
	"chatline/internal/status"
	"chatline/internal/sticker"
	"chatline/internal/store"
	"chatline/internal/verify"
)

// Module composes all providers and lifecycle hooks for the daemon.
func Module(cfg *config.Config) fx.Option {
	return fx.Module("daemon",
		fx.Supply(cfg),
		fx.Provide(
			provideLogger,
			provideBus,
			provideLock,
			provideStore,
			provideBlobStore,
			provideMetrics,
			provideFeed,
			provideDeliveryMachine,
			provideGateway,
			provideDispatcher,
			provideVerifyStore,
			provideVerifyService,
			provideIdentitySaver,
			provideStatusAggregator,
			provideStickerService,
			provideProfileResolver,
			provideSender,
			NewServer,
		),
		fx.Invoke(seedAdminProfile),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.LogPath, "chatlined")
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(cfg *config.Config, logger *zap.Logger) (*lock.Lock, error) {
	logger.Info("acquiring data dir lock", zap.String("dir", cfg.DataDir))
	l, err := lock.Acquire(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	logger.Info("data dir lock acquired")
	return l, nil
}

func provideStore(cfg *config.Config, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := store.Path(cfg.DataDir)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideBlobStore(cfg *config.Config, logger *zap.Logger) (*blob.Store, error) {
	return blob.NewStore(cfg.UploadDir, logger)
}

func provideMetrics() *metrics.Metrics {
	return metrics.New()
}

func provideFeed(db *store.DB, b *bus.Bus, logger *zap.Logger) *feed.Live {
	return feed.NewLive(db, b, logger)
}

func provideDeliveryMachine(db *store.DB, b *bus.Bus, logger *zap.Logger) *delivery.Machine {
	return delivery.NewMachine(db, b, logger)
}

func provideGateway(db *store.DB, b *bus.Bus, logger *zap.Logger) *gateway.Gateway {
	return gateway.New(db, b, logger)
}

func provideDispatcher(cfg *config.Config, logger *zap.Logger) provider.Dispatcher {
	return provider.NewGateway(cfg.Provider.BaseURL, cfg.Provider.APIKey, logger)
}

// provideVerifyStore picks Redis when configured, the in-memory store
// otherwise.
func provideVerifyStore(cfg *config.Config, logger *zap.Logger) verify.Store {
	if cfg.Redis.Addr == "" {
		logger.Info("verification codes stored in memory")
		return verify.NewMemStore()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	logger.Info("verification codes stored in redis", zap.String("addr", cfg.Redis.Addr))
	return verify.NewRedisStore(client)
}

func provideVerifyService(vs verify.Store, d provider.Dispatcher, logger *zap.Logger) *verify.Service {
	return verify.NewService(vs, d, logger)
}

func provideIdentitySaver(cfg *config.Config) identity.Saver {
	return identity.NewFileSaver(cfg.DataDir)
}

func provideStatusAggregator(db *store.DB, b *bus.Bus, blobs *blob.Store, logger *zap.Logger) *status.Aggregator {
	return status.NewAggregator(db, b, blobs, logger)
}

func provideStickerService(db *store.DB, blobs *blob.Store, logger *zap.Logger) *sticker.Service {
	return sticker.NewService(db, blobs, logger)
}

func provideProfileResolver(db *store.DB, b *bus.Bus, blobs *blob.Store, logger *zap.Logger) *profile.Resolver {
	return profile.NewResolver(db, b, blobs, logger)
}

func provideSender(db *store.DB, d provider.Dispatcher, m *delivery.Machine, b *bus.Bus, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(db, d, m, b, logger)
}

// seedAdminProfile writes the configured admin profile on first boot
// only; later edits through the API win.
func seedAdminProfile(cfg *config.Config, db *store.DB, logger *zap.Logger) error {
	existing, err := db.GetAdminProfile()
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	logger.Info("seeding admin profile", zap.String("name", cfg.Admin.Name))
	return db.UpsertAdminProfile(&store.AdminProfile{
		Name:   cfg.Admin.Name,
		Avatar: cfg.Admin.Avatar,
		About:  cfg.Admin.About,
		Online: true,
	})
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, lk *lock.Lock, sender *outbox.Sender, db *store.DB, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("http server error", zap.Error(err))
				}
			}()
			sender.Start(context.Background())
			return nil
		},
		OnStop: func(ctx context.Context) error {
			sender.Stop()
			if err := srv.Shutdown(ctx); err != nil {
				logger.Error("http shutdown error", zap.Error(err))
			}
			if err := db.Close(); err != nil {
				logger.Error("store close error", zap.Error(err))
			}
			logger.Info("releasing data dir lock")
			return lk.Release()
		},
	})
}
