// Package api assembles the HTTP surface of the extractor.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"financial_extractor/pkg/api/assistant"
	apiconfig "financial_extractor/pkg/api/config"
	"financial_extractor/pkg/api/documents"
	"financial_extractor/pkg/api/respond"
	"financial_extractor/pkg/api/sources"
	"financial_extractor/pkg/core/agent"
	"financial_extractor/pkg/core/session"
)

// Deps are the services the routes are served from.
type Deps struct {
	Controller     *session.Controller
	AgentMgr       *agent.Manager
	MaxUploadBytes int64
	AllowedOrigins []string
}

// NewRouter builds the API router.
func NewRouter(d Deps) http.Handler {
	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	configHandler := apiconfig.NewHandler(d.AgentMgr, d.Controller.SnapshotsEnabled())
	documentsHandler := documents.NewHandler(d.Controller, d.MaxUploadBytes)
	sourcesHandler := sources.NewHandler(d.Controller, d.MaxUploadBytes)
	assistantHandler := assistant.NewHandler(d.Controller)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Get("/config", configHandler.HandleConfig)
		r.Post("/config/switch", configHandler.HandleSwitch)

		// model calls can take minutes on large documents
		r.With(middleware.Timeout(10*time.Minute)).Post("/documents/extract", documentsHandler.HandleExtract)

		r.Route("/sources", func(r chi.Router) {
			r.Get("/", sourcesHandler.HandleList)
			r.Post("/import", sourcesHandler.HandleImport)
			r.Get("/{id}", sourcesHandler.HandleGet)
			r.Post("/{id}/select", sourcesHandler.HandleSelect)
			r.Delete("/{id}", sourcesHandler.HandleDelete)
			r.Get("/{id}/export", sourcesHandler.HandleExport)
		})
		r.Get("/export/archive", sourcesHandler.HandleArchive)
		r.Get("/export/workbook", sourcesHandler.HandleWorkbook)

		r.Post("/session/save", sourcesHandler.HandleSave)
		r.Post("/session/load", sourcesHandler.HandleLoad)

		r.Post("/assistant/chat", assistantHandler.HandleChat)
		r.Get("/assistant/history", assistantHandler.HandleHistory)
		r.Delete("/assistant/history", assistantHandler.HandleClear)
	})

	return r
}
