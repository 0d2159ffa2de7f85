package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"appstore/docs"
	"appstore/internal/config"
	"appstore/internal/database"
	"appstore/internal/database/migration"
	handlers "appstore/internal/http/handler"
	"appstore/internal/http/middleware"
	"appstore/internal/logging"
	"appstore/internal/otel"
	"appstore/internal/repository/postgres"
	"appstore/internal/service"
	"appstore/internal/storage"
	"appstore/internal/token"
)

const shutdownTimeout = 10 * time.Second

// @title App Store API
// @version 1.0
// @description Publish, browse and download Android applications.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg := config.Load()
	log := logging.New(os.Stdout, cfg.LogLevel, cfg.Location())
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, otel.SettingsFromEnv(), log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize tracing")
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.WithError(err).Warn("tracer shutdown failed")
		}
	}()

	db, err := database.NewPostgres(ctx, cfg.Database, log)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := migration.EnsureMigrated(ctx, db, log, cfg.Database.Host); err != nil {
			log.WithError(err).Fatal("database migration failed")
		}
	}

	store, staticRoot, err := newStorage(cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize asset storage")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := database.RegisterStats(reg, db); err != nil {
		log.WithError(err).Fatal("failed to register database metrics")
	}
	metrics, err := service.NewMetrics(reg)
	if err != nil {
		log.WithError(err).Fatal("failed to register service metrics")
	}
	httpMetrics, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		log.WithError(err).Fatal("failed to register http metrics")
	}

	tokens, err := token.NewManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize token manager")
	}

	userRepo := postgres.NewUserPostgres(db)
	appRepo := postgres.NewApplicationPostgres(db)
	downloadRepo := postgres.NewDownloadPostgres(db)

	authSvc, err := service.NewAuthService(userRepo, tokens, cfg.Auth.BcryptCost, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize auth service")
	}
	appSvc := service.NewApplicationService(appRepo, downloadRepo, store, service.IntakeLimits{
		MaxPackageBytes: cfg.Storage.MaxPackageBytes,
		MaxImageBytes:   cfg.Storage.MaxImageBytes,
		MaxScreenshots:  cfg.Storage.MaxScreenshots,
	}, metrics, log)
	downloadSvc := service.NewDownloadService(store, appRepo, downloadRepo, metrics, log)

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
		BodyLimit:    int(cfg.Storage.MaxUploadBytes),
	})

	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.RequestID())
	app.Use(otelfiber.Middleware())
	app.Use(middleware.Logger(log))
	app.Use(httpMetrics.Handler())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, " + middleware.RequestIDHeader,
	}))

	handlers.RegisterRoutes(app, handlers.Deps{
		DB:          db,
		Auth:        authSvc,
		Apps:        appSvc,
		Downloads:   downloadSvc,
		Store:       store,
		StaticRoot:  staticRoot,
		AssetURLs:   handlers.AssetURLs{Base: cfg.PublicBaseURL},
		AuthLimiter: middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, log),
		Metrics:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	})

	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
		}
		docs.SwaggerInfo.Host = c.Get(fiber.HeaderHost)
		docs.SwaggerInfo.Schemes = []string{scheme}
		return swagger.HandlerDefault(c)
	})

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			log.WithError(err).Error("graceful shutdown failed")
		}
	}()

	addr := ":" + cfg.Port
	log.WithFields(logrus.Fields{"addr": addr, "storage_driver": cfg.Storage.Driver}).Info("server starting")
	if err := app.Listen(addr); err != nil {
		log.WithError(err).Fatal("failed to start server")
	}
}

// newStorage returns the configured backend and, for the local driver, the root served under /apps.
func newStorage(cfg *config.AppConfig) (storage.Storage, string, error) {
	if cfg.Storage.Driver == config.StorageDriverMinIO {
		store, err := storage.NewMinIO(cfg.MinIO)
		return store, "", err
	}
	store, err := storage.NewLocal(cfg.Storage.Root)
	return store, cfg.Storage.Root, err
}
