package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/leakmonitor/leakmonitor/internal/models"
)

type snapshotListResponse struct {
	GroupName string   `json:"group_name"`
	Snapshots []string `json:"snapshots"`
}

type pruneSnapshotsResponse struct {
	DeletedCount int `json:"deleted_count"`
}

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	group := mux.Vars(r)["group"]

	snapshots, err := s.monitors.ListSnapshots(r.Context(), group)
	if err != nil {
		respondError(w, err)
		return
	}
	if snapshots == nil {
		snapshots = []string{}
	}
	respondJSON(w, http.StatusOK, snapshotListResponse{GroupName: group, Snapshots: snapshots})
}

// handleLatestSnapshot streams the stored payload as-is; it is the raw JSON
// captured from the feed, not a re-encoded view.
func (s *Server) handleLatestSnapshot(w http.ResponseWriter, r *http.Request) {
	group := mux.Vars(r)["group"]

	payload, err := s.monitors.LatestSnapshot(r.Context(), group)
	if err != nil {
		respondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(payload)
}

func (s *Server) handlePruneSnapshots(w http.ResponseWriter, r *http.Request) {
	group := mux.Vars(r)["group"]

	keep := 0
	if v := r.URL.Query().Get("keep"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, fmt.Errorf("%w: invalid keep %q", models.ErrValidation, v))
			return
		}
		keep = parsed
	}

	count, err := s.monitors.PruneSnapshots(r.Context(), group, keep)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, pruneSnapshotsResponse{DeletedCount: count})
}
