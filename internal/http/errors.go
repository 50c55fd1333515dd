package httpx

import (
	"errors"
	"net/http"

	"github.com/multision/SupaConsole/internal/domain"
	"github.com/multision/SupaConsole/internal/repository"
	"github.com/multision/SupaConsole/pkg/envset"
	"github.com/multision/SupaConsole/pkg/jwt"
)

// Error kinds reported to clients.
const (
	kindInvalidSecret      = "InvalidSecret"
	kindUnsupportedRole    = "UnsupportedRole"
	kindInvalidPayload     = "InvalidPayload"
	kindInvalidArgument    = "InvalidArgument"
	kindUnauthorized       = "Unauthorized"
	kindNotFound           = "NotFound"
	kindConflict           = "Conflict"
	kindPayloadTooLarge    = "PayloadTooLarge"
	kindRateLimited        = "RateLimited"
	kindPersistenceFailure = "PersistenceFailure"
	kindInternal           = "Internal"
)

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, jwt.ErrInvalidSecret):
		return http.StatusBadRequest, kindInvalidSecret
	case errors.Is(err, jwt.ErrUnsupportedRole):
		return http.StatusBadRequest, kindUnsupportedRole
	case errors.Is(err, envset.ErrInvalidPayload):
		return http.StatusBadRequest, kindInvalidPayload
	case errors.Is(err, repository.ErrInvalidArgument):
		return http.StatusBadRequest, kindInvalidArgument
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, kindUnauthorized
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, kindNotFound
	case errors.Is(err, repository.ErrConflict):
		return http.StatusConflict, kindConflict
	case errors.Is(err, repository.ErrPersistence):
		return http.StatusInternalServerError, kindPersistenceFailure
	default:
		return http.StatusInternalServerError, kindInternal
	}
}

// writeServiceError maps a service error onto a response. Server side
// failures are logged and reported without internal detail.
func (r *Router) writeServiceError(w http.ResponseWriter, req *http.Request, err error) {
	status, kind := classify(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		r.logger.Error("request failed", "path", req.URL.Path, "kind", kind, "error", err)
		msg = "internal error"
		if kind == kindPersistenceFailure {
			msg = "configuration could not be persisted"
		}
	}
	writeErrorKind(w, status, kind, msg)
}
