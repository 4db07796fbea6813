package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// RouterOptions are the handlers mounted next to the API
type RouterOptions struct {
	// Events serves the SSE stream, optional
	Events http.Handler
	// Gatherer backs /metrics, optional
	Gatherer prometheus.Gatherer
}

// NewRouter builds the HTTP routes
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(Logger(h.log))
	r.Use(middleware.Recoverer)
	r.Use(CORS)

	r.Route("/api", func(r chi.Router) {
		r.Route("/graph", func(r chi.Router) {
			r.Get("/", h.GetGraph)
			r.Get("/export", h.ExportGraph)
			r.Get("/status", h.GetStatus)
			r.Post("/retry", h.Retry)
			r.Get("/history", h.GetHistory)
		})

		r.Route("/view", func(r chi.Router) {
			r.Get("/", h.GetView)
			r.Get("/ws", h.ViewSocket)

			r.Route("/namespaces/{namespace}", func(r chi.Router) {
				r.Put("/applications/{app}", h.NavigateApp)
				r.Put("/applications/{app}/versions/{version}", h.NavigateApp)
				r.Put("/workloads/{workload}", h.NavigateWorkload)
				r.Put("/services/{service}", h.NavigateService)
			})
			r.Put("/node", h.NavigateQuery)
			r.Delete("/node", h.ClearNode)

			r.Patch("/params", h.PatchParams)
			r.Patch("/ui", h.PatchUI)
			r.Post("/refresh", h.Refresh)
			r.Put("/replay", h.Replay)
		})
	})

	if opts.Events != nil {
		r.Method(http.MethodGet, "/events", opts.Events)
	}
	if opts.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	return r
}

// Logger logs each request once it completes
func Logger(log *logrus.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			entry := log.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   ww.Status(),
				"bytes":    ww.BytesWritten(),
				"duration": time.Since(start),
				"request":  middleware.GetReqID(r.Context()),
			})
			if ww.Status() >= http.StatusInternalServerError {
				entry.Warn("request failed")
				return
			}
			entry.Debug("request")
		})
	}
}

// CORS allows browser clients served from another origin
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
