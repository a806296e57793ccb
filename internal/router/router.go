package router

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-registry-go/internal/contact"
	centity "github.com/ovaphlow/pitchfork/service-registry-go/internal/contact/entity"
	"github.com/ovaphlow/pitchfork/service-registry-go/internal/person"
	"github.com/ovaphlow/pitchfork/service-registry-go/pkg/utilities"
)

const prefix = "/api"

// RequestIDHeader carries the per-request id in both directions.
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// RequestID returns the id assigned by RequestIDMiddleware, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

// RequestIDMiddleware keeps an incoming X-Request-ID or assigns a new one
// from ids, and echoes it on the response.
func RequestIDMiddleware(ids *utilities.IDGenerator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" {
				id = ids.Next()
			}
			w.Header().Set(RequestIDHeader, id)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
		})
	}
}

// LoggingMiddleware returns a middleware that logs requests at debug level using the provided sugared logger.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			logger.Debugw("http request",
				"request_id", RequestID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
				"size", lrw.size,
			)
		})
	}
}

// SecurityHeadersMiddleware returns a middleware that sets common HTTP security headers.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Prevent MIME sniffing
			w.Header().Set("X-Content-Type-Options", "nosniff")

			// Clickjacking protection
			w.Header().Set("X-Frame-Options", "DENY")

			w.Header().Set("Referrer-Policy", "no-referrer")
			w.Header().Set("Cache-Control", "no-store")

			// JSON only, nothing to load
			if w.Header().Get("Content-Security-Policy") == "" {
				w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			}

			// HSTS only over TLS
			if r.TLS != nil {
				w.Header().Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Deps are the handlers' collaborators.
type Deps struct {
	Logger   *zap.SugaredLogger
	Registry *person.Registry
	Contacts *contact.Service
	IDs      *utilities.IDGenerator
	// Gatherer backs GET /api/metrics; nil serves the default registry.
	Gatherer prometheus.Gatherer
}

// RegisterRoutes mounts every endpoint on an http.ServeMux under /api and
// wraps it with request id, security header and logging middleware.
func RegisterRoutes(d Deps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET "+prefix+"/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux.Handle("GET "+prefix+"/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	persons := person.NewHandler(d.Registry, d.Logger)
	mux.HandleFunc("GET "+prefix+"/summary", persons.Summary)
	mux.HandleFunc("GET "+prefix+"/persons", persons.List)
	mux.HandleFunc("GET "+prefix+"/persons/search", persons.Search)
	mux.HandleFunc("POST "+prefix+"/persons", persons.Register)
	mux.HandleFunc("GET "+prefix+"/persons/{id}", persons.Get)
	mux.HandleFunc("PUT "+prefix+"/persons/{id}/name", persons.Rename)
	mux.HandleFunc("DELETE "+prefix+"/persons/{id}", persons.Delete)

	// emails and phones share one handler shape
	for _, kind := range centity.Kinds {
		h := contact.NewHandler(d.Contacts, kind, d.Logger)
		plural := string(kind) + "s"
		mux.HandleFunc("GET "+prefix+"/persons/{id}/"+plural, h.List)
		mux.HandleFunc("POST "+prefix+"/persons/{id}/"+plural, h.Add)
		mux.HandleFunc("PUT "+prefix+"/persons/{id}/"+plural+"/{contactID}/primary", h.SetPrimary)
		mux.HandleFunc("DELETE "+prefix+"/"+plural+"/{contactID}", h.Delete)
	}

	handler := LoggingMiddleware(d.Logger)(SecurityHeadersMiddleware()(mux))
	return RequestIDMiddleware(d.IDs)(handler)
}
