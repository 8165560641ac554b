package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/leakmonitor/leakmonitor/internal/models"
)

func (s *Server) handleListMonitors(w http.ResponseWriter, r *http.Request) {
	activeOnly := false
	if v := r.URL.Query().Get("active_only"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, fmt.Errorf("%w: invalid active_only %q", models.ErrValidation, v))
			return
		}
		activeOnly = parsed
	}

	monitors, err := s.monitors.ListMonitors(r.Context(), activeOnly)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, monitors)
}

type createMonitorRequest struct {
	GroupName         string  `json:"group_name"`
	StartDate         string  `json:"start_date"`
	EndDate           *string `json:"end_date"`
	PollIntervalHours int     `json:"poll_interval_hours"`
	AutoExpireDays    *int    `json:"auto_expire_days"`
}

func (s *Server) handleCreateMonitor(w http.ResponseWriter, r *http.Request) {
	var req createMonitorRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err)
		return
	}

	in := models.MonitorCreate{
		GroupName:         req.GroupName,
		PollIntervalHours: req.PollIntervalHours,
		AutoExpireDays:    req.AutoExpireDays,
	}

	start, err := parseDate(req.StartDate)
	if err != nil {
		respondError(w, err)
		return
	}
	in.StartDate = start

	if req.EndDate != nil && *req.EndDate != "" {
		end, err := parseDate(*req.EndDate)
		if err != nil {
			respondError(w, err)
			return
		}
		in.EndDate = &end
	}

	monitor, err := s.monitors.CreateMonitor(r.Context(), in)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, monitor)
}

func (s *Server) handleDeleteMonitor(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, err)
		return
	}

	if err := s.monitors.DeactivateMonitor(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handlePollMonitor(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, err)
		return
	}

	result, err := s.monitors.Poll(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.monitors.ListGroups(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, groups)
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q", models.ErrValidation, s)
	}
	return t, nil
}
