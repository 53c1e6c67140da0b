package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/joabeoliveira/ocupacao/internal/config"
	"github.com/joabeoliveira/ocupacao/internal/domain/ingest"
	"github.com/joabeoliveira/ocupacao/internal/domain/los"
	"github.com/joabeoliveira/ocupacao/internal/domain/occupancy"
	"github.com/joabeoliveira/ocupacao/internal/domain/snapshot"
	"github.com/joabeoliveira/ocupacao/internal/platform/auth"
	"github.com/joabeoliveira/ocupacao/internal/platform/blobstore"
	"github.com/joabeoliveira/ocupacao/internal/platform/db"
	"github.com/joabeoliveira/ocupacao/internal/platform/events"
	"github.com/joabeoliveira/ocupacao/internal/platform/middleware"
	"github.com/joabeoliveira/ocupacao/internal/platform/version"
)

// app holds the services shared by the HTTP server and the maintenance
// commands.
type app struct {
	cfg       *config.Config
	logger    zerolog.Logger
	pool      *pgxpool.Pool
	buildings snapshot.Buildings
	cache     *middleware.ResponseCache
	publisher events.Publisher
	blobs     blobstore.Store

	snapshots *snapshot.Service
	ingest    *ingest.Service
	occupancy *occupancy.Service
	los       *los.Service

	closers []func()
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return logger.Level(level)
}

// openApp loads configuration and connects every backing service.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := newLogger(cfg)
	for _, w := range cfg.Warnings() {
		logger.Warn().Msg(w)
	}

	buildings, err := snapshot.ParseBuildings(cfg.BuildingRanges)
	if err != nil {
		return nil, fmt.Errorf("BUILDING_RANGES: %w", err)
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	logger.Info().Msg("connected to database")

	a := &app{cfg: cfg, logger: logger, pool: pool, buildings: buildings}
	a.closers = append(a.closers, pool.Close)

	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.blobs = blobs
	a.cache = middleware.NewResponseCache(a.newCacheStore(ctx), cfg.CacheTTL, logger)
	a.publisher = a.newPublisher()

	a.wire()
	return a, nil
}

// wire builds the domain services on top of the connected backends.
func (a *app) wire() {
	notifier := snapshot.NewNotifier(a.publisher, a.cache, a.logger)
	snapRepo := snapshot.NewRepo(a.pool)

	a.snapshots = snapshot.NewService(snapRepo, a.blobs, notifier, a.logger)
	a.ingest = ingest.NewService(snapRepo, a.blobs, notifier, a.cfg.S3Prefix, a.logger)
	a.occupancy = occupancy.NewService(occupancy.NewRepo(a.pool), a.buildings, a.logger)
	a.los = los.NewService(los.NewRepo(a.pool), a.buildings, a.cfg.LOSFilterPresence, a.cfg.LOSPageSize, a.logger)
}

// newCacheStore connects to Redis when REDIS_URL is set. Without Redis, or
// when it is unreachable, responses are cached in process.
func (a *app) newCacheStore(ctx context.Context) middleware.CacheStore {
	if a.cfg.RedisURL != "" {
		client, err := middleware.NewRedisClient(ctx, a.cfg.RedisURL)
		if err == nil {
			a.logger.Info().Msg("response cache backed by redis")
			a.closers = append(a.closers, func() { _ = client.Close() })
			return middleware.NewRedisCacheStore(client)
		}
		a.logger.Warn().Err(err).Msg("redis unavailable, caching in memory")
	}
	store := middleware.NewInMemoryCacheStore()
	cleanupCtx, cancel := context.WithCancel(ctx)
	store.StartCleanup(cleanupCtx, time.Minute)
	a.closers = append(a.closers, cancel)
	return store
}

// newPublisher dials the AMQP broker when AMQP_URL is set. Snapshot events
// are advisory, so a broker outage only disables them.
func (a *app) newPublisher() events.Publisher {
	if a.cfg.AMQPURL == "" {
		return events.NopPublisher{}
	}
	pub, err := events.NewAMQPPublisher(a.cfg.AMQPURL, a.cfg.AMQPExchange, a.logger)
	if err != nil {
		a.logger.Warn().Err(err).Msg("amqp unavailable, snapshot events disabled")
		return events.NopPublisher{}
	}
	a.closers = append(a.closers, func() { _ = pub.Close() })
	return pub
}

func newBlobStore(ctx context.Context, cfg *config.Config) (blobstore.Store, error) {
	if cfg.BlobBackend == "s3" {
		s, err := blobstore.NewS3Store(ctx, cfg.S3Bucket, cfg.S3Endpoint)
		if err != nil {
			return nil, fmt.Errorf("s3 blob store: %w", err)
		}
		return s, nil
	}
	return blobstore.NewMemoryStore(), nil
}

// Close releases backends in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *app) authMiddleware() echo.MiddlewareFunc {
	jwtCfg := auth.JWTConfig{
		Secret:   []byte(a.cfg.AuthJWTSecret),
		Issuer:   a.cfg.AuthIssuer,
		Audience: a.cfg.AuthAudience,
	}
	if a.cfg.IsDev() {
		return auth.DevAuthMiddleware(jwtCfg)
	}
	return auth.JWTMiddleware(jwtCfg)
}

// newRouter assembles the HTTP surface.
func (a *app) newRouter() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(a.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.logger))
	e.Use(middleware.SecurityHeaders("/api/los", "/api/imports/"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  a.cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders:  []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Disposition", "X-Export-Rows"},
	}))
	e.Use(a.authMiddleware())
	e.Use(middleware.Audit(a.logger, middleware.DefaultAuditPrefixes))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version.Version,
		})
	})
	e.GET("/health/db", db.HealthHandler(a.pool, func() *db.PoolStats { return db.GetPoolStats(a.pool) }))

	api := e.Group("/api")
	api.GET("/version", version.Handler)

	cached := a.cache.Middleware()
	detail := a.cfg.ErrorDetail

	snapshot.NewHandler(a.snapshots, detail).RegisterRoutes(api, cached)
	ingest.NewHandler(a.ingest, detail).RegisterRoutes(api,
		middleware.BodyLimit(a.cfg.UploadMaxBytes),
		middleware.RateLimit(middleware.UploadRateLimitConfig()),
	)
	occupancy.NewHandler(a.occupancy, detail).RegisterRoutes(api, cached)
	los.NewHandler(a.los, detail).RegisterRoutes(api)

	return e
}

func runServer() error {
	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	e := a.newRouter()
	logger := a.logger

	go func() {
		addr := ":" + a.cfg.Port
		logger.Info().Str("addr", addr).Str("version", version.Current().String()).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
