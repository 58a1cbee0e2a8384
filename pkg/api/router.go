package api

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/metorm/groupBin/internal/logger"
	"github.com/metorm/groupBin/pkg/api/handlers"
	apiMiddleware "github.com/metorm/groupBin/pkg/api/middleware"
	"github.com/metorm/groupBin/pkg/service"
	"github.com/metorm/groupBin/pkg/session"
	"github.com/metorm/groupBin/pkg/store"
	"github.com/metorm/groupBin/pkg/upload"
)

// Deps bundles everything the router serves.
type Deps struct {
	// Service backs the group and file endpoints.
	Service *service.Service

	// Assembler stages and merges resumable chunk uploads.
	Assembler *upload.Assembler

	// Sessions resolves and persists browser sessions.
	Sessions *session.Manager

	// DB answers the readiness probe.
	DB store.Store

	// Auth carries the site-wide password settings.
	Auth handlers.AuthOptions

	// Registry receives HTTP metrics and is served on /metrics.
	// Nil disables both.
	Registry *prometheus.Registry
}

// NewRouter builds the chi router serving every public endpoint.
//
// The middleware stack tags each request with an ID, restores the client
// IP from forwarding headers, logs start and completion, recovers panics,
// and times requests out after a minute. HTML forms get POST-based method
// override, and everything under /file and /group runs with a resolved
// browser session.
//
// Routes:
//   - GET  /health - Liveness probe
//   - GET  /health/ready - Readiness probe
//   - GET  /metrics - Prometheus metrics (when a registry is configured)
//   - GET  /file/upload - Resumable chunk probe
//   - POST /file/upload - Resumable chunk ingest
//   - POST /file/upload/{groupID} - Whole-file upload
//   - POST /file/upload_version/{groupID}/{fileID} - Whole-file new version
//   - GET  /file/download/{groupID}/{fileID} - Redirect to latest version
//   - GET  /file/{groupID}/{fileID}/version/{versionID} - Stream a version
//   - GET  /file/version_history/{groupID}/{fileID} - Version list
//   - POST|DELETE /file/delete/{groupID}/{fileID} - Delete a file
//   - GET  /file/zip/{groupID} - Zip bundle of the group
//   - POST /group/create - Create a group
//   - GET  /group/{groupID} - Group view
//   - POST /group/{groupID}/unlock - Submit a group password
//   - GET|POST /group/{groupID}/refresh - Refresh expiration
//   - POST /group/{groupID}/convert-to-readonly - Freeze a group
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(apiMiddleware.MethodOverride)

	if deps.Registry != nil {
		metrics := NewMetrics(deps.Registry)
		r.Use(metrics.Instrument)
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	// Health check handlers
	healthHandler := handlers.NewHealthHandler(deps.DB)

	// Health routes - outside the session group so probes never mint cookies
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})

	// Root redirect to health for convenience
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	uploadHandler := handlers.NewUploadHandler(deps.Service, deps.Assembler)
	fileHandler := handlers.NewFileHandler(deps.Service)
	groupHandler := handlers.NewGroupHandler(deps.Service, deps.Sessions, deps.Auth)

	// Application routes share the session cookie
	r.Group(func(r chi.Router) {
		r.Use(apiMiddleware.Sessions(deps.Sessions))

		r.Route("/file", func(r chi.Router) {
			r.Get("/upload", uploadHandler.Probe)
			r.Post("/upload", uploadHandler.Ingest)
			r.Post("/upload/{groupID}", uploadHandler.UploadFile)
			r.Post("/upload_version/{groupID}/{fileID}", uploadHandler.UploadVersion)

			r.Get("/download/{groupID}/{fileID}", fileHandler.Download)
			r.Get("/{groupID}/{fileID}/version/{versionID}", fileHandler.Stream)
			r.Get("/version_history/{groupID}/{fileID}", fileHandler.VersionHistory)
			r.Post("/delete/{groupID}/{fileID}", fileHandler.Delete)
			r.Delete("/delete/{groupID}/{fileID}", fileHandler.Delete)
			r.Get("/zip/{groupID}", fileHandler.Bundle)
		})

		r.Route("/group", func(r chi.Router) {
			r.Post("/create", groupHandler.Create)
			r.Get("/{groupID}", groupHandler.View)
			r.Post("/{groupID}/unlock", groupHandler.Unlock)
			r.Get("/{groupID}/refresh", groupHandler.Refresh)
			r.Post("/{groupID}/refresh", groupHandler.Refresh)
			r.Post("/{groupID}/convert-to-readonly", groupHandler.Convert)
		})
	})

	return r
}

// isQuietPath returns true for endpoints polled by machines, which log at
// DEBUG to keep the noise down.
func isQuietPath(path string) bool {
	return path == "/health" || strings.HasPrefix(path, "/health/") || path == "/metrics"
}

// requestLogger logs request start at DEBUG and completion at INFO,
// and seeds the LogContext every handler log line inherits. Health and
// metrics requests complete at DEBUG to keep the noise down.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lc := logger.NewLogContext(clientIP(r.RemoteAddr))
		lc.RequestID = middleware.GetReqID(r.Context())
		r = r.WithContext(logger.WithContext(r.Context(), lc))

		logger.DebugCtx(r.Context(), "API request started",
			logger.KeyMethod, r.Method,
			logger.KeyPath, r.URL.Path,
		)

		// Wrap response writer to capture status code
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logArgs := []any{
			logger.KeyMethod, r.Method,
			logger.KeyPath, r.URL.Path,
			logger.KeyStatus, ww.Status(),
			"bytes", ww.BytesWritten(),
			logger.KeyDurationMs, logger.Duration(lc.StartTime),
		}

		if isQuietPath(r.URL.Path) {
			logger.DebugCtx(r.Context(), "API request completed", logArgs...)
		} else {
			logger.InfoCtx(r.Context(), "API request completed", logArgs...)
		}
	})
}

// clientIP strips the port from an address. RealIP rewrites RemoteAddr
// from forwarding headers, which may leave it portless already.
func clientIP(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
