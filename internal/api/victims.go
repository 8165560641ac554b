package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/leakmonitor/leakmonitor/internal/models"
)

const defaultListLimit = 100

func pathID(r *http.Request) (uuid.UUID, error) {
	raw := mux.Vars(r)["id"]
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid id %q", models.ErrValidation, raw)
	}
	return id, nil
}

// parseVictimFilter validates the enum query parameters before anything
// reaches the query layer.
func parseVictimFilter(r *http.Request) (models.VictimFilter, error) {
	q := r.URL.Query()
	filter := models.VictimFilter{Limit: defaultListLimit}

	if v := q.Get("review_status"); v != "" {
		status, err := models.ParseReviewStatus(v)
		if err != nil {
			return filter, err
		}
		filter.ReviewStatus = status
	}
	if v := q.Get("company_type"); v != "" {
		ct, err := models.ParseCompanyType(v)
		if err != nil {
			return filter, err
		}
		filter.CompanyType = ct
	}
	filter.GroupName = q.Get("group_name")

	if v := q.Get("is_sec_regulated"); v != "" {
		regulated, err := strconv.ParseBool(v)
		if err != nil {
			return filter, fmt.Errorf("%w: invalid is_sec_regulated %q", models.ErrValidation, v)
		}
		filter.IsSECRegulated = &regulated
	}
	if v := q.Get("start_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return filter, fmt.Errorf("%w: invalid start_date %q", models.ErrValidation, v)
		}
		filter.StartDate = &t
	}
	if v := q.Get("end_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return filter, fmt.Errorf("%w: invalid end_date %q", models.ErrValidation, v)
		}
		filter.EndDate = &t
	}

	if v := q.Get("include_hidden"); v != "" {
		include, err := strconv.ParseBool(v)
		if err != nil {
			return filter, fmt.Errorf("%w: invalid include_hidden %q", models.ErrValidation, v)
		}
		filter.IncludeHidden = include
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return filter, fmt.Errorf("%w: invalid limit %q", models.ErrValidation, v)
		}
		filter.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return filter, fmt.Errorf("%w: invalid offset %q", models.ErrValidation, v)
		}
		filter.Offset = offset
	}

	return filter, nil
}

func (s *Server) handleListVictims(w http.ResponseWriter, r *http.Request) {
	filter, err := parseVictimFilter(r)
	if err != nil {
		respondError(w, err)
		return
	}

	victims, err := s.victims.List(r.Context(), filter)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, victims)
}

func (s *Server) handleListPending(w http.ResponseWriter, r *http.Request) {
	filter, err := parseVictimFilter(r)
	if err != nil {
		respondError(w, err)
		return
	}
	filter.ReviewStatus = models.ReviewStatusPending

	victims, err := s.victims.List(r.Context(), filter)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, victims)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.victims.Stats(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleGetVictim(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, err)
		return
	}

	victim, err := s.victims.Get(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, victim)
}

type reviewRequest struct {
	CompanyName    *string `json:"company_name"`
	CompanyType    string  `json:"company_type"`
	Region         *string `json:"region"`
	Country        *string `json:"country"`
	IsSECRegulated bool    `json:"is_sec_regulated"`
	SECCik         *string `json:"sec_cik"`
	StockTicker    *string `json:"stock_ticker"`
	IsSubsidiary   bool    `json:"is_subsidiary"`
	ParentCompany  *string `json:"parent_company"`
	HasADR         bool    `json:"has_adr"`
	Notes          *string `json:"notes"`
}

func (s *Server) handleReviewVictim(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req reviewRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err)
		return
	}

	companyType := models.CompanyTypeUnknown
	if req.CompanyType != "" {
		companyType, err = models.ParseCompanyType(req.CompanyType)
		if err != nil {
			respondError(w, err)
			return
		}
	}

	victim, err := s.victims.Review(r.Context(), id, models.VictimReview{
		CompanyName:    req.CompanyName,
		CompanyType:    companyType,
		Region:         req.Region,
		Country:        req.Country,
		IsSECRegulated: req.IsSECRegulated,
		SECCik:         req.SECCik,
		StockTicker:    req.StockTicker,
		IsSubsidiary:   req.IsSubsidiary,
		ParentCompany:  req.ParentCompany,
		HasADR:         req.HasADR,
		Notes:          req.Notes,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, victim)
}

func (s *Server) handleDeleteVictim(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, err)
		return
	}

	if err := s.victims.SoftDelete(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

type flagRequest struct {
	Reason *string `json:"reason"`
}

func (s *Server) handleFlagVictim(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req flagRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err)
		return
	}

	if err := s.victims.Flag(r.Context(), id, req.Reason); err != nil {
		respondError(w, err)
		return
	}

	victim, err := s.victims.Get(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, victim)
}

func (s *Server) handleRestoreVictim(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, err)
		return
	}

	if err := s.victims.Restore(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}

	victim, err := s.victims.Get(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, victim)
}

type bulkDeleteRequest struct {
	VictimIDs []uuid.UUID `json:"victim_ids"`
}

type bulkDeleteResponse struct {
	DeletedCount int `json:"deleted_count"`
}

func (s *Server) handleBulkDelete(w http.ResponseWriter, r *http.Request) {
	var req bulkDeleteRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if len(req.VictimIDs) == 0 {
		respondJSON(w, http.StatusOK, bulkDeleteResponse{})
		return
	}

	count, err := s.victims.BulkDelete(r.Context(), req.VictimIDs)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, bulkDeleteResponse{DeletedCount: count})
}
