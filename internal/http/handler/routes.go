package handler

import (
	"database/sql"
	"net/http"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"appstore/internal/http/middleware"
	"appstore/internal/service"
	"appstore/internal/storage"
)

// Deps carries everything the routes need.
type Deps struct {
	DB        *sql.DB
	Auth      service.AuthService
	Apps      service.ApplicationService
	Downloads service.DownloadService
	Store     storage.Storage

	// StaticRoot is the local storage root; when empty, /apps is served from Store.
	StaticRoot string
	AssetURLs  AssetURLs

	// AuthLimiter throttles /auth/register and /auth/login. Nil disables it.
	AuthLimiter *middleware.RateLimiter
	Metrics     http.Handler
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
func RegisterRoutes(app *fiber.App, d Deps) {
	app.Get("/health", HealthCheck(d.DB))
	app.Get("/healthz", LivenessProbe())
	if d.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(d.Metrics))
	}

	requireAuth := middleware.Auth(d.Auth)

	auth := app.Group("/auth")
	if d.AuthLimiter != nil {
		auth.Post("/register", d.AuthLimiter.Handler(), Register(d.Auth))
		auth.Post("/login", d.AuthLimiter.Handler(), Login(d.Auth))
	} else {
		auth.Post("/register", Register(d.Auth))
		auth.Post("/login", Login(d.Auth))
	}
	auth.Get("/profile", requireAuth, Profile())

	apps := app.Group("/app")
	apps.Get("/", ListApps(d.Apps, d.AssetURLs))
	apps.Post("/upload", requireAuth, UploadApp(d.Apps, d.AssetURLs))
	apps.Get("/my-apps", requireAuth, MyApps(d.Apps, d.AssetURLs))
	apps.Get("/stats", requireAuth, DeveloperStats(d.Apps))
	apps.Get("/get/:id", GetApp(d.Apps, d.AssetURLs))
	apps.Delete("/delete/:id", requireAuth, DeleteApp(d.Apps))
	apps.Get("/download/*", middleware.OptionalAuth(d.Auth), DownloadAsset(d.Downloads))

	if d.StaticRoot != "" {
		app.Static(storage.PublicPrefix, filepath.Join(d.StaticRoot, storage.AppsDir))
	} else if d.Store != nil {
		app.Get(storage.PublicPrefix+"/*", ServeAssets(d.Store))
	}
}
