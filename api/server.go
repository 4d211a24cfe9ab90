/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the dashboard (Handler.AllowedOrigins)

ROUTE GROUPS:
  /api/allocations/*    Allocation sessions, finalize, live stream
  /api/reports/*        Archived bills and downloads
  /api/methods/*        Conversion method catalog
  /api/presets          Starting allocations
  /api/analyze, /api/predict, /api/upload, /api/chat, /api/ccts/*
                        Backend relays
  /*                    Static files (dashboard build)

STATIC FILE SERVING:
  Serves the built dashboard from web/dist/ when present.
  Falls back to index.html for client-side routing.

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/heatx/main.go: Server startup
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

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition", "Location"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Get("/presets", h.ListPresets)

		// Allocation sessions
		r.Route("/allocations", func(r chi.Router) {
			r.Post("/", h.CreateAllocation)
			r.Get("/{id}", h.GetAllocation)
			r.Delete("/{id}", h.DeleteAllocation)
			r.Put("/{id}/weights", h.SetWeights)
			r.Post("/{id}/reset", h.ResetAllocation)
			r.Post("/{id}/finalize", h.FinalizeAllocation)
			r.Get("/{id}/stream", h.StreamAllocation)
		})

		// Archived bills
		r.Route("/reports", func(r chi.Router) {
			r.Get("/", h.ListReports)
			r.Get("/{id}", h.GetReport)
			r.Get("/{id}/download", h.DownloadReport)
		})

		// Conversion methods
		r.Route("/methods", func(r chi.Router) {
			r.Get("/", h.ListMethods)
			r.Get("/recommend", h.RecommendMethod)
			r.Get("/{slug}/download", h.DownloadMethod)
		})

		// Backend relays
		r.Post("/analyze", h.Analyze)
		r.Post("/predict", h.Predict)
		r.Post("/upload", h.Upload)
		r.Post("/chat", h.Chat)

		r.Route("/ccts", func(r chi.Router) {
			r.Get("/orgs", h.ListOrgs)
			r.Get("/ledger", h.GetLedger)
			r.Post("/{action}", h.LedgerAction)
		})
	})

	// Serve static files (dashboard build)
	staticDir := "./web/dist"
	if _, err := os.Stat(staticDir); os.IsNotExist(err) {
		exe, _ := os.Executable()
		staticDir = filepath.Join(filepath.Dir(exe), "web", "dist")
	}

	if _, err := os.Stat(staticDir); err == nil {
		fileServer := http.FileServer(http.Dir(staticDir))
		r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
			fullPath := filepath.Join(staticDir, filepath.Clean(r.URL.Path))
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
			w.Write([]byte(landingPage))
		})
	}

	return r
}

const landingPage = `<!DOCTYPE html>
<html>
<head><title>HeatX Energy Engine</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>HeatX Energy Engine API</h1>
<p>The dashboard is not built. Place the build output in <code>web/dist</code>.</p>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/presets">/api/presets</a> - Starting allocations</li>
<li><a href="/api/reports">/api/reports</a> - Archived allocation bills</li>
<li><a href="/api/methods">/api/methods</a> - Waste-heat conversion methods</li>
<li><a href="/api/health">/api/health</a> - Liveness</li>
</ul>
</body>
</html>`
