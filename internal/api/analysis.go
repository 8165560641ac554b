package api

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/leakmonitor/leakmonitor/internal/models"
)

type classifyRequest struct {
	VictimIDs []uuid.UUID `json:"victim_ids"`
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if len(req.VictimIDs) == 0 {
		respondError(w, fmt.Errorf("%w: victim_ids is required", models.ErrValidation))
		return
	}

	outcomes, err := s.analysis.Classify(r.Context(), s.apiKey(r), req.VictimIDs)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, outcomes)
}

func (s *Server) handleSearchNews(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, err)
		return
	}

	victim, err := s.analysis.SearchNews(r.Context(), s.apiKey(r), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, victim)
}

func (s *Server) handleCheckFiling(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, err)
		return
	}

	victim, err := s.analysis.CheckFiling(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, victim)
}

func (s *Server) handleBatchCheckFilings(w http.ResponseWriter, r *http.Request) {
	outcomes, err := s.analysis.BatchCheckFilings(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, outcomes)
}
