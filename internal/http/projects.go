package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/multision/SupaConsole/internal/domain"
	"github.com/multision/SupaConsole/internal/service/project"
	"github.com/multision/SupaConsole/internal/ws"
)

const (
	sseHeartbeatInterval = 15 * time.Second
	sseRetry             = 3 * time.Second
)

func (r *Router) handleProjects(w http.ResponseWriter, req *http.Request) {
	principal, ok := r.principal(w, req)
	if !ok {
		return
	}
	switch req.Method {
	case http.MethodGet:
		projects, err := r.projects.List(req.Context(), principal)
		if err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		if projects == nil {
			projects = []domain.Project{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
	case http.MethodPost:
		var input project.CreateInput
		if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, r.maxBodyBytes)).Decode(&input); err != nil {
			writeErrorKind(w, http.StatusBadRequest, kindInvalidArgument, "invalid JSON body")
			return
		}
		created, err := r.projects.Create(req.Context(), principal, input)
		if err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleProjectSubroutes(w http.ResponseWriter, req *http.Request) {
	principal, ok := r.principal(w, req)
	if !ok {
		return
	}
	trimmed := strings.Trim(strings.TrimPrefix(req.URL.Path, "/projects/"), "/")
	if trimmed == "" {
		r.notFound(w)
		return
	}
	projectID, rest, _ := strings.Cut(trimmed, "/")
	switch rest {
	case "":
		r.handleProject(w, req, principal, projectID)
	case "initialize":
		r.handleInitialize(w, req, principal, projectID)
	case "env":
		r.handleEnv(w, req, principal, projectID)
	case "env/defaults":
		r.handleEnvDefaults(w, req, principal, projectID)
	case "env/regenerate":
		r.handleEnvRegenerate(w, req, principal, projectID)
	case "env/file":
		r.handleEnvFile(w, req, principal, projectID)
	case "env/events":
		r.handleEnvEvents(w, req, principal, projectID)
	case "generate-keys":
		r.handleGenerateKeys(w, req, principal, projectID)
	default:
		r.notFound(w)
	}
}

func (r *Router) handleProject(w http.ResponseWriter, req *http.Request, principal domain.Principal, projectID string) {
	switch req.Method {
	case http.MethodGet:
		p, err := r.projects.Get(req.Context(), principal, projectID)
		if err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	case http.MethodDelete:
		if err := r.projects.Delete(req.Context(), principal, projectID); err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleInitialize(w http.ResponseWriter, req *http.Request, principal domain.Principal, projectID string) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	p, err := r.projects.Initialize(req.Context(), principal, projectID)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	// A fresh copy of the compose files has no .env yet.
	if r.config == nil {
		writeJSON(w, http.StatusOK, p)
		return
	}
	if _, err := r.config.Sync(req.Context(), principal, p.ID); err != nil {
		r.logger.Warn("env sync after initialize failed", "project_id", p.ID, "error", err)
	}
	writeJSON(w, http.StatusOK, p)
}

func (r *Router) handleEnv(w http.ResponseWriter, req *http.Request, principal domain.Principal, projectID string) {
	switch req.Method {
	case http.MethodGet:
		set, err := r.config.Get(req.Context(), principal, projectID)
		if err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"project_id": projectID, "env": set})
	case http.MethodPost:
		raw, err := io.ReadAll(http.MaxBytesReader(w, req.Body, r.maxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeErrorKind(w, http.StatusRequestEntityTooLarge, kindPayloadTooLarge, "payload too large")
				return
			}
			writeErrorKind(w, http.StatusBadRequest, kindInvalidPayload, "could not read body")
			return
		}
		merged, err := r.config.Update(req.Context(), principal, projectID, raw)
		r.recordConfigSave("update", err)
		if err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"project_id": projectID, "env": merged})
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleEnvDefaults(w http.ResponseWriter, req *http.Request, principal domain.Principal, projectID string) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	var timestamp *int64
	if raw := strings.TrimSpace(req.URL.Query().Get("timestamp")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeErrorKind(w, http.StatusBadRequest, kindInvalidArgument, "timestamp must be an integer in milliseconds")
			return
		}
		timestamp = &parsed
	}
	set, err := r.config.Defaults(req.Context(), principal, projectID, timestamp)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"project_id": projectID, "env": set})
}

func (r *Router) handleEnvRegenerate(w http.ResponseWriter, req *http.Request, principal domain.Principal, projectID string) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	merged, err := r.config.Regenerate(req.Context(), principal, projectID)
	r.recordConfigSave("regenerate", err)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"project_id": projectID, "env": merged})
}

func (r *Router) handleEnvFile(w http.ResponseWriter, req *http.Request, principal domain.Principal, projectID string) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	var buf bytes.Buffer
	if err := r.config.Render(req.Context(), principal, projectID, &buf); err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename=".env"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (r *Router) handleGenerateKeys(w http.ResponseWriter, req *http.Request, principal domain.Principal, projectID string) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	if _, err := r.projects.Get(req.Context(), principal, projectID); err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	var payload struct {
		JWTSecret string `json:"jwtSecret"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, r.maxBodyBytes)).Decode(&payload); err != nil {
		writeErrorKind(w, http.StatusBadRequest, kindInvalidArgument, "invalid JSON body")
		return
	}
	keys, err := r.config.GenerateKeys(req.Context(), principal, payload.JWTSecret)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, keys)
}

func (r *Router) handleEnvEvents(w http.ResponseWriter, req *http.Request, principal domain.Principal, projectID string) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	if r.hub == nil {
		writeErrorKind(w, http.StatusServiceUnavailable, kindInternal, "live events disabled")
		return
	}
	if _, err := r.projects.Get(req.Context(), principal, projectID); err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	client, err := ws.NewEventStream(w, sseRetry, r.logger)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	r.hub.Register(projectID, client)
	defer func() {
		r.hub.Unregister(projectID, client)
		client.Close()
	}()

	ticker := time.NewTicker(sseHeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-req.Context().Done():
			return
		case <-ticker.C:
			if err := client.Heartbeat(); err != nil {
				return
			}
		}
	}
}

func (r *Router) handleProjectsWS(w http.ResponseWriter, req *http.Request) {
	principal, ok := r.principal(w, req)
	if !ok {
		return
	}
	if r.hub == nil {
		writeErrorKind(w, http.StatusServiceUnavailable, kindInternal, "live events disabled")
		return
	}
	projectID := strings.TrimSpace(req.URL.Query().Get("project_id"))
	if projectID == "" {
		writeErrorKind(w, http.StatusBadRequest, kindInvalidArgument, "project_id query parameter required")
		return
	}
	if _, err := r.projects.Get(req.Context(), principal, projectID); err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	client := ws.NewClient(conn, r.logger)
	r.hub.Register(projectID, client)
	go func() {
		defer func() {
			r.hub.Unregister(projectID, client)
			client.Close()
		}()
		client.Drain()
	}()
}
