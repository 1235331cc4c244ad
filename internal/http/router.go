package httpx

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/swaggo/swag"

	_ "github.com/factorysh/panem/internal/docs"
	"github.com/factorysh/panem/internal/domain"
	"github.com/factorysh/panem/internal/requestid"
	"github.com/factorysh/panem/internal/service/project"
	"github.com/factorysh/panem/internal/service/webhook"
	"github.com/factorysh/panem/pkg/config"
)

const (
	healthCheckTimeout = 2 * time.Second
	actionPrefix       = "_"
)

// Options configures the Router beyond its core services.
type Options struct {
	// APIKeyHash is the hash every non-public request's X-API-KEY must verify against.
	APIKeyHash config.Secret
	Limiter    RateLimiter
	// RateLimit is the number of requests per client per minute; zero disables limiting.
	RateLimit  int
	Health     func(context.Context) error
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

// Router wires HTTP endpoints to services.
type Router struct {
	mux       *http.ServeMux
	handler   http.Handler
	logger    *slog.Logger
	projects  project.Service
	auth      *Authenticator
	limiter   RateLimiter
	rateLimit int
	metrics   *Metrics
	gatherer  prometheus.Gatherer
	dbHealth  func(context.Context) error
}

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, projects project.Service, opts Options) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	registerer := opts.Registerer
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	metrics := NewMetrics(registerer)
	r := &Router{
		mux:       http.NewServeMux(),
		logger:    logger,
		projects:  projects,
		auth:      NewAuthenticator(opts.APIKeyHash, logger, metrics),
		limiter:   opts.Limiter,
		rateLimit: opts.RateLimit,
		metrics:   metrics,
		gatherer:  gatherer,
		dbHealth:  opts.Health,
	}
	if r.limiter == nil && r.rateLimit > 0 {
		r.limiter = NewMemoryRateLimiter()
	}
	r.register()
	r.handler = r.audit(r.withRateLimit(r.auth.Wrap(http.HandlerFunc(r.route))))
	return r
}

// ServeHTTP runs the full pipeline: audit, rate limit, API key gate, routes.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.mux.HandleFunc("GET /{$}", r.handleIndex)
	r.mux.HandleFunc("GET /healthz", r.handleHealthz)
	r.mux.Handle("GET /metrics", promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{}))
	r.mux.HandleFunc("GET /swagger.json", r.handleSwaggerDoc)
	r.mux.Handle("GET /swaggerui/", httpSwagger.Handler(httpSwagger.URL("/swagger.json")))

	r.mux.HandleFunc("GET /projects/{$}", r.handleListProjects)
	r.mux.HandleFunc("POST /projects/{$}", r.handleCreateProject)
	r.mux.HandleFunc("GET /projects/{name}/{$}", r.handleGetProject)
	r.mux.HandleFunc("PUT /projects/{name}/{$}", r.handleUpdateProject)
	r.mux.HandleFunc("POST /projects/{name}/{action}", r.handleProjectAction)
}

// route dispatches through the mux and reports the matched pattern to the
// audit recorder for metric labels.
func (r *Router) route(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
	if setter, ok := w.(routeSetter); ok {
		setter.SetRoute(req.Pattern)
	}
}

type createProjectRequest struct {
	Name        string          `json:"name"`
	Environment []domain.EnvVar `json:"environment"`
	Callback    *string         `json:"callback"`
}

type updateProjectRequest struct {
	Name        *string         `json:"name"`
	Environment []domain.EnvVar `json:"environment"`
	Callback    *string         `json:"callback"`
}

type actionRequest struct {
	Callback *string `json:"callback"`
}

type webhookResult struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

type actionResponse struct {
	Callback *string       `json:"callback"`
	Webhook  webhookResult `json:"webhook"`
}

func (r *Router) handleListProjects(w http.ResponseWriter, req *http.Request) {
	projects, err := r.projects.List(req.Context())
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	views := make([]domain.ProjectView, 0, len(projects))
	for _, p := range projects {
		views = append(views, p.View())
	}
	writeJSON(w, http.StatusOK, views)
}

func (r *Router) handleCreateProject(w http.ResponseWriter, req *http.Request) {
	var payload createProjectRequest
	if err := decodeJSON(w, req, &payload, false); err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	created, err := r.projects.Create(req.Context(), project.CreateInput{
		Name:        payload.Name,
		Environment: payload.Environment,
		Callback:    payload.Callback,
	})
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusCreated, created.View())
}

func (r *Router) handleGetProject(w http.ResponseWriter, req *http.Request) {
	found, err := r.projects.Get(req.Context(), req.PathValue("name"))
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, found.View())
}

// handleUpdateProject answers 201 like creation does; existing clients rely on it.
func (r *Router) handleUpdateProject(w http.ResponseWriter, req *http.Request) {
	name := req.PathValue("name")
	var payload updateProjectRequest
	if err := decodeJSON(w, req, &payload, false); err != nil {
		// An unknown project wins over a malformed body.
		if _, lookupErr := r.projects.Get(req.Context(), name); lookupErr != nil {
			r.writeServiceError(w, req, lookupErr)
			return
		}
		r.writeServiceError(w, req, err)
		return
	}
	updated, err := r.projects.Update(req.Context(), name, project.UpdateInput{
		Name:        payload.Name,
		Environment: payload.Environment,
		Callback:    payload.Callback,
	})
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusCreated, updated.View())
}

func (r *Router) handleProjectAction(w http.ResponseWriter, req *http.Request) {
	segment := req.PathValue("action")
	if !strings.HasPrefix(segment, actionPrefix) {
		r.writeServiceError(w, req, project.ErrUnknownAction)
		return
	}
	name, word := req.PathValue("name"), strings.TrimPrefix(segment, actionPrefix)
	var payload actionRequest
	if err := decodeJSON(w, req, &payload, true); err != nil {
		// Unknown action words and projects win over a malformed body.
		if _, ok := webhook.ParseAction(word); !ok {
			r.writeServiceError(w, req, project.ErrUnknownAction)
			return
		}
		if _, lookupErr := r.projects.Get(req.Context(), name); lookupErr != nil {
			r.writeServiceError(w, req, lookupErr)
			return
		}
		r.writeServiceError(w, req, err)
		return
	}
	result, err := r.projects.Action(req.Context(), name, word, payload.Callback)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, actionResponse{
		Callback: result.Callback,
		Webhook: webhookResult{
			Status: result.Response.StatusCode,
			Body:   result.Response.Body,
		},
	})
}

const indexPage = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>panem</title></head>
<body>
<h1>panem</h1>
<p>Project environments and lifecycle events.</p>
<ul>
<li><a href="/swaggerui/">API documentation (swaggerui)</a></li>
<li><a href="/swagger.json">swagger.json</a></li>
</ul>
</body>
</html>
`

func (r *Router) handleIndex(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(indexPage))
}

func (r *Router) handleSwaggerDoc(w http.ResponseWriter, req *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		r.logger.Error("swagger document unavailable", "error", err)
		writeError(w, http.StatusInternalServerError, "documentation unavailable")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	components := make(map[string]any)
	status := "ok"
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["store"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["store"] = map[string]any{"status": "up"}
		}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

func (r *Router) audit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		reqID := requestid.FromHeader(req.Header.Get(requestid.Header))
		w.Header().Set(requestid.Header, reqID)
		req = req.WithContext(requestid.WithID(req.Context(), reqID))

		recorder := &statusRecorder{ResponseWriter: w, actor: "anonymous"}
		start := time.Now()
		next.ServeHTTP(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		duration := time.Since(start)
		route := recorder.route
		if route == "" {
			route = "unmatched"
		}
		r.metrics.recordRequest(req.Method, route, status, duration)

		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
			"request_id", reqID,
			"actor", recorder.actor,
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	})
}

type routeSetter interface {
	SetRoute(string)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	route  string
	actor  string
}

func (sr *statusRecorder) WriteHeader(code int) {
	if sr.status == 0 {
		sr.status = code
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetRoute(route string) {
	sr.route = route
}

func (sr *statusRecorder) SetActor(actor string) {
	sr.actor = actor
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		if ip := strings.TrimSpace(strings.Split(forwarded, ",")[0]); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}
