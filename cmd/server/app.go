package main

import (
	"net/http"

	"github.com/diewo77/devisflow/httpx"
	"github.com/diewo77/devisflow/internal/handlers"
	"github.com/diewo77/devisflow/internal/logger"
	"github.com/diewo77/devisflow/internal/middleware"
	"github.com/diewo77/devisflow/internal/services"
	"gorm.io/gorm"
)

// App is the main application handler that sets up all routes.
type App struct {
	mux      *http.ServeMux
	db       *gorm.DB
	session  *services.Session
	renderer handlers.Renderer
	log      *logger.Logger
	handler  http.Handler
}

// NewApp creates a new application with all routes configured.
func NewApp(db *gorm.DB, session *services.Session, renderer handlers.Renderer, log *logger.Logger) *App {
	app := &App{
		mux:      http.NewServeMux(),
		db:       db,
		session:  session,
		renderer: renderer,
		log:      log,
	}
	app.setupRoutes()
	app.handler = middleware.Recover(log)(middleware.Logging(log)(middleware.Prefs(app.mux)))
	return app
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

// setupRoutes configures all application routes.
func (a *App) setupRoutes() {
	a.mux.HandleFunc("GET /healthz", a.healthz)

	handlers.NewDocumentHandler(a.session).Register(a.mux)
	handlers.NewProfileHandler(a.session).Register(a.mux)
	handlers.NewTemplateHandler(a.session).Register(a.mux)
	handlers.NewCatalogHandler(a.session).Register(a.mux)
	handlers.NewPreferenceHandler(a.session).Register(a.mux)
	handlers.NewAssistantHandler(a.session, a.log).Register(a.mux)
	handlers.NewExportHandler(a.session, a.renderer, a.log).Register(a.mux)

	a.mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/preview", http.StatusFound)
	})
}

// healthz performs a lightweight DB check (SELECT 1).
func (a *App) healthz(w http.ResponseWriter, r *http.Request) {
	if err := a.db.WithContext(r.Context()).Exec("SELECT 1").Error; err != nil {
		a.log.Warnw("health check failed", "error", err)
		httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
