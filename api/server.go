/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/managers/*       Manager management and personal rules
  /api/rules/*          Group rules
  /api/milestones/*     Milestone bonuses
  /api/fgs/*            FG listing and manual assignment
  /api/import/*         CSV/XLSX feed imports
  /api/distribution     Random source distribution
  /api/settings         Source weights, default commission
  /api/report           Commission report
  /api/scenarios/*      Demo scenarios
  /api/reset            Database reset (dev only)
  /*                    Static files (frontend)

STATIC FILE SERVING:
  Serves a built frontend from web/dist/ when present.
  Falls back to index.html for client-side routing.

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// DefaultCORSOrigins are allowed when no origins are configured.
var DefaultCORSOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, corsOrigins []string) *chi.Mux {
	if len(corsOrigins) == 0 {
		corsOrigins = DefaultCORSOrigins
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: !containsWildcard(corsOrigins),
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Manager routes
		r.Route("/managers", func(r chi.Router) {
			r.Get("/", h.ListManagers)
			r.Post("/", h.CreateManager)
			r.Get("/{id}", h.GetManager)
			r.Put("/{id}", h.UpdateManager)
			r.Delete("/{id}", h.DeleteManager)
			r.Post("/{id}/rules", h.AddPersonalRule)
			r.Delete("/{id}/rules/{ruleID}", h.RemovePersonalRule)
		})

		// Rule routes
		r.Route("/rules", func(r chi.Router) {
			r.Get("/", h.ListRules)
			r.Post("/", h.CreateRule)
			r.Delete("/{id}", h.DeleteRule)
		})

		// Milestone routes
		r.Route("/milestones", func(r chi.Router) {
			r.Get("/", h.ListMilestones)
			r.Post("/", h.CreateMilestone)
			r.Delete("/{id}", h.DeleteMilestone)
		})

		// FG routes
		r.Route("/fgs", func(r chi.Router) {
			r.Get("/", h.ListFGs)
			r.Put("/{number}/assignment", h.AssignFG)
		})

		// Import routes
		r.Route("/import", func(r chi.Router) {
			r.Post("/fgs", h.ImportFGs)
			r.Post("/prepayments", h.ImportPrepayments)
		})

		r.Post("/distribution", h.Distribute)

		r.Get("/settings", h.GetSettings)
		r.Put("/settings", h.UpdateSettings)

		r.Get("/report", h.GetReport)

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
		r.Post("/reset", h.ResetDatabase)
	})

	// Serve static files (frontend), first ./web/dist then next to the executable
	staticDir := "./web/dist"
	if _, err := os.Stat(staticDir); os.IsNotExist(err) {
		exe, _ := os.Executable()
		staticDir = filepath.Join(filepath.Dir(exe), "web", "dist")
	}

	if _, err := os.Stat(staticDir); err == nil {
		fileServer := http.FileServer(http.Dir(staticDir))
		r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
			fullPath := filepath.Join(staticDir, filepath.Clean("/"+r.URL.Path))
			if _, err := os.Stat(fullPath); os.IsNotExist(err) {
				// SPA routing: serve index.html
				http.ServeFile(w, r, filepath.Join(staticDir, "index.html"))
				return
			}
			fileServer.ServeHTTP(w, r)
		})
	} else {
		r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Commission Engine</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Commission Engine API</h1>
<p>No frontend build found under web/dist.</p>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/managers">/api/managers</a> - List managers</li>
<li><a href="/api/rules">/api/rules</a> - List rules</li>
<li><a href="/api/milestones">/api/milestones</a> - List milestones</li>
<li><a href="/api/fgs">/api/fgs</a> - List FGs</li>
<li><a href="/api/report">/api/report</a> - Commission report</li>
<li><a href="/api/scenarios">/api/scenarios</a> - List scenarios</li>
</ul>
</body>
</html>`))
		})
	}

	return r
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
