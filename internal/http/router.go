package httpx

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/multision/SupaConsole/internal/domain"
	"github.com/multision/SupaConsole/internal/service/auth"
	"github.com/multision/SupaConsole/internal/service/envconfig"
	"github.com/multision/SupaConsole/internal/service/project"
	"github.com/multision/SupaConsole/internal/service/system"
	"github.com/multision/SupaConsole/internal/ws"
)

// Router wires HTTP endpoints to services.
type Router struct {
	mux           *http.ServeMux
	logger        *slog.Logger
	auth          auth.Service
	projects      project.Service
	config        *envconfig.Service
	system        *system.Checker
	hub           *ws.Hub
	upgrader      websocket.Upgrader
	limiter       RateLimiter
	metrics       *routerMetrics
	gatherer      prometheus.Gatherer
	dbHealth      func(context.Context) error
	sessionCookie string
	secureCookies bool
	maxBodyBytes  int64
}

// Dependencies lists the collaborators of a Router. Limiter, System, Hub,
// Registry and DBHealth are optional.
type Dependencies struct {
	Logger        *slog.Logger
	Auth          auth.Service
	Projects      project.Service
	Config        *envconfig.Service
	System        *system.Checker
	Hub           *ws.Hub
	Limiter       RateLimiter
	Registry      *prometheus.Registry
	DBHealth      func(context.Context) error
	SessionCookie string
	SecureCookies bool
	MaxBodyBytes  int64
}

const (
	healthCheckTimeout = 2 * time.Second
	defaultMaxBody     = 1 << 20
)

var (
	budgetSignup    = Budget{Name: "signup", Limit: 5, Window: time.Minute}
	budgetLogin     = Budget{Name: "login", Limit: 12, Window: time.Minute}
	budgetUserWrite = Budget{Name: "write", Limit: 60, Window: time.Minute}
	budgetUserRead  = Budget{Name: "read", Limit: 120, Window: time.Minute}
	budgetRealtime  = Budget{Name: "ws", Limit: 30, Window: 30 * time.Second}
)

// NewRouter assembles routes with dependencies.
func NewRouter(deps Dependencies) *Router {
	r := &Router{
		mux:      http.NewServeMux(),
		logger:   deps.Logger,
		auth:     deps.Auth,
		projects: deps.Projects,
		config:   deps.Config,
		system:   deps.System,
		hub:      deps.Hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		limiter:       deps.Limiter,
		dbHealth:      deps.DBHealth,
		sessionCookie: deps.SessionCookie,
		secureCookies: deps.SecureCookies,
		maxBodyBytes:  deps.MaxBodyBytes,
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	if r.maxBodyBytes <= 0 {
		r.maxBodyBytes = defaultMaxBody
	}
	if deps.Registry != nil {
		r.metrics = newRouterMetrics(deps.Registry)
		r.gatherer = deps.Registry
	} else {
		r.metrics = newRouterMetrics(prometheus.DefaultRegisterer)
		r.gatherer = prometheus.DefaultGatherer
	}
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.mux.HandleFunc("/healthz", r.audit("/healthz", r.handleHealthz))
	r.mux.Handle("/metrics", promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{}))
	r.mux.HandleFunc("/auth/signup", r.audit("/auth/signup", r.withRateLimit("/auth/signup", budgetSignup, rateLimitKeyIP, r.handleSignup)))
	r.mux.HandleFunc("/auth/login", r.audit("/auth/login", r.withRateLimit("/auth/login", budgetLogin, rateLimitKeyIP, r.handleLogin)))
	r.mux.HandleFunc("/auth/logout", r.audit("/auth/logout", r.handleLogout))
	r.mux.HandleFunc("/auth/me", r.audit("/auth/me", r.handlerAuthRate("/auth/me", r.handleMe)))
	r.mux.HandleFunc("/projects", r.audit("/projects", r.handlerAuthRate("/projects", r.handleProjects)))
	r.mux.HandleFunc("/projects/", r.audit("/projects/{id}", r.handlerAuthRate("/projects/{id}", r.handleProjectSubroutes)))
	r.mux.HandleFunc("/system/check", r.audit("/system/check", r.handlerAuthRate("/system/check", r.handleSystemCheck)))
	r.mux.HandleFunc("/ws/projects", r.audit("/ws/projects", r.requireAuth(r.withRateLimit("/ws/projects", budgetRealtime, r.rateLimitKeyUser, r.handleProjectsWS))))
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *Router) decodeCredentials(w http.ResponseWriter, req *http.Request) (credentials, bool) {
	var payload credentials
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, r.maxBodyBytes)).Decode(&payload); err != nil {
		writeErrorKind(w, http.StatusBadRequest, kindInvalidArgument, "invalid JSON body")
		return credentials{}, false
	}
	return payload, true
}

func (r *Router) handleSignup(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	payload, ok := r.decodeCredentials(w, req)
	if !ok {
		return
	}
	user, session, err := r.auth.Signup(req.Context(), payload.Email, payload.Password)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	r.setSessionCookie(w, session)
	writeJSON(w, http.StatusCreated, map[string]any{
		"user": map[string]any{
			"id":    user.ID,
			"email": user.Email,
		},
		"session": session,
	})
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	payload, ok := r.decodeCredentials(w, req)
	if !ok {
		return
	}
	user, session, err := r.auth.Login(req.Context(), payload.Email, payload.Password)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	r.setSessionCookie(w, session)
	writeJSON(w, http.StatusOK, map[string]any{
		"user": map[string]any{
			"id":    user.ID,
			"email": user.Email,
		},
		"session": session,
	})
}

func (r *Router) handleLogout(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	if r.sessionCookie != "" {
		http.SetCookie(w, &http.Cookie{
			Name:     r.sessionCookie,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   r.secureCookies,
			SameSite: http.SameSiteLaxMode,
		})
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) handleMe(w http.ResponseWriter, req *http.Request) {
	principal, ok := r.principal(w, req)
	if !ok {
		return
	}
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": principal.UserID, "email": principal.Email})
}

func (r *Router) setSessionCookie(w http.ResponseWriter, session auth.Session) {
	if r.sessionCookie == "" {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     r.sessionCookie,
		Value:    session.Token,
		Path:     "/",
		MaxAge:   int(session.ExpiresIn / time.Second),
		HttpOnly: true,
		Secure:   r.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (r *Router) handleSystemCheck(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	if r.system == nil {
		writeErrorKind(w, http.StatusServiceUnavailable, kindInternal, "system checks disabled")
		return
	}
	writeJSON(w, http.StatusOK, r.system.Check(req.Context()))
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	components := make(map[string]any)
	status := "ok"
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["database"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["database"] = map[string]any{"status": "up"}
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

func (r *Router) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		r.recordRequestMetrics(req.Method, route, status, duration)

		actor := "anonymous"
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		if principal, ok := principalFromContext(ctx); ok {
			actor = "user"
			fields = append(fields, "user_id", principal.UserID)
		}
		fields = append(fields, "actor", actor)

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
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

// Unwrap lets http.ResponseController reach the connection's deadlines.
func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
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
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}

// principal returns the request principal or answers 500 when the auth
// middleware was not applied.
func (r *Router) principal(w http.ResponseWriter, req *http.Request) (domain.Principal, bool) {
	principal, ok := principalFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return domain.Principal{}, false
	}
	return principal, true
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (r *Router) notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}
