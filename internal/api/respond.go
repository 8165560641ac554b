package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/leakmonitor/leakmonitor/internal/models"
)

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logrus.Errorf("Failed to encode response: %v", err)
	}
}

// respondError maps domain errors onto HTTP statuses. Upstream failures
// surface as 502 with the detail in the body so the dashboard can tell a
// bad credential from a flaky service.
func respondError(w http.ResponseWriter, err error) {
	var upstream *models.UpstreamError

	switch {
	case errors.Is(err, models.ErrNotFound):
		respondJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, models.ErrConflict):
		respondJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, models.ErrValidation):
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.As(err, &upstream):
		respondJSON(w, http.StatusBadGateway, errorResponse{Error: upstream.Error()})
	default:
		logrus.Errorf("Internal error: %v", err)
		respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func decodeBody(r *http.Request, dst any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON body", models.ErrValidation)
	}
	return nil
}
