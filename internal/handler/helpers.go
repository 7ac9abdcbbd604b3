package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"marginalia/internal/domain"
	svc "marginalia/internal/domain/services/annotation"
	"marginalia/internal/httputil"
)

// handleError converts domain errors to HTTP responses
func handleError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		httputil.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		httputil.RespondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		httputil.RespondError(w, http.StatusForbidden, err.Error())
	default:
		logger.Error("request failed", "error", err)
		httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// sessionFor returns the signed-in reader's session
func sessionFor(sessions svc.SessionProvider, r *http.Request) *svc.Session {
	return sessions.ForOwner(httputil.ReaderID(r))
}
