package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/spacesedan/forumpulse/internal/analysis"
	"github.com/spacesedan/forumpulse/internal/models"
)

type errorBody struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("[HTTP] Failed to encode response", slog.Any("error", err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Detail: msg})
}

// writeFailure maps a pipeline error to a status code.
func writeFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidQuery):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrIndexUnavailable):
		writeError(w, http.StatusServiceUnavailable, analysis.ErrorMessage(err))
	case errors.Is(err, models.ErrModelTimeout):
		writeError(w, http.StatusGatewayTimeout, analysis.ErrorMessage(err))
	case errors.Is(err, models.ErrModelUnavailable):
		writeError(w, http.StatusBadGateway, analysis.ErrorMessage(err))
	case errors.Is(err, context.Canceled):
		// client went away
	default:
		slog.Error("[HTTP] Request failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
