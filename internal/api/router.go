// Package api exposes the dashboard's REST surface.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/leakmonitor/leakmonitor/internal/analysis"
	"github.com/leakmonitor/leakmonitor/internal/config"
	"github.com/leakmonitor/leakmonitor/internal/models"
)

// VictimStore is the storage surface the victim handlers need.
type VictimStore interface {
	List(ctx context.Context, filter models.VictimFilter) ([]models.Victim, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Victim, error)
	Review(ctx context.Context, id uuid.UUID, review models.VictimReview) (*models.Victim, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
	Flag(ctx context.Context, id uuid.UUID, reason *string) error
	Restore(ctx context.Context, id uuid.UUID) error
	BulkDelete(ctx context.Context, ids []uuid.UUID) (int, error)
	Stats(ctx context.Context) (*models.Stats, error)
}

// MonitorService is the monitoring surface the monitor handlers need.
type MonitorService interface {
	CreateMonitor(ctx context.Context, in models.MonitorCreate) (*models.Monitor, error)
	GetMonitor(ctx context.Context, id uuid.UUID) (*models.Monitor, error)
	ListMonitors(ctx context.Context, activeOnly bool) ([]models.Monitor, error)
	DeactivateMonitor(ctx context.Context, id uuid.UUID) error
	Poll(ctx context.Context, id uuid.UUID) (*models.PollResult, error)
	ListGroups(ctx context.Context) ([]string, error)
	ListSnapshots(ctx context.Context, group string) ([]string, error)
	LatestSnapshot(ctx context.Context, group string) ([]byte, error)
	PruneSnapshots(ctx context.Context, group string, keep int) (int, error)
}

// AnalysisService is the enrichment surface the analyze handlers need.
type AnalysisService interface {
	Classify(ctx context.Context, apiKey string, ids []uuid.UUID) ([]analysis.ClassifyOutcome, error)
	SearchNews(ctx context.Context, apiKey string, id uuid.UUID) (*models.Victim, error)
	CheckFiling(ctx context.Context, id uuid.UUID) (*models.Victim, error)
	BatchCheckFilings(ctx context.Context) ([]analysis.FilingOutcome, error)
}

// Pinger reports database connectivity for health checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the handler dependencies.
type Server struct {
	config   *config.Config
	victims  VictimStore
	monitors MonitorService
	analysis AnalysisService
	db       Pinger
}

// NewServer creates the API server.
func NewServer(cfg *config.Config, victims VictimStore, monitors MonitorService, analysisService AnalysisService, db Pinger) *Server {
	return &Server{
		config:   cfg,
		victims:  victims,
		monitors: monitors,
		analysis: analysisService,
		db:       db,
	}
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(s.corsMiddleware)

	router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/victims", s.handleListVictims).Methods("GET")
	api.HandleFunc("/victims/pending", s.handleListPending).Methods("GET")
	api.HandleFunc("/victims/stats", s.handleStats).Methods("GET")
	api.HandleFunc("/victims/bulk-delete", s.handleBulkDelete).Methods("POST")
	api.HandleFunc("/victims/{id}", s.handleGetVictim).Methods("GET")
	api.HandleFunc("/victims/{id}", s.handleReviewVictim).Methods("PUT")
	api.HandleFunc("/victims/{id}", s.handleDeleteVictim).Methods("DELETE")
	api.HandleFunc("/victims/{id}/flag", s.handleFlagVictim).Methods("POST")
	api.HandleFunc("/victims/{id}/restore", s.handleRestoreVictim).Methods("POST")

	api.HandleFunc("/monitors", s.handleListMonitors).Methods("GET")
	api.HandleFunc("/monitors", s.handleCreateMonitor).Methods("POST")
	api.HandleFunc("/monitors/groups/list", s.handleListGroups).Methods("GET")
	api.HandleFunc("/monitors/{id}", s.handleDeleteMonitor).Methods("DELETE")
	api.HandleFunc("/monitors/{id}/poll", s.handlePollMonitor).Methods("POST")

	api.HandleFunc("/archive/{group}", s.handleListSnapshots).Methods("GET")
	api.HandleFunc("/archive/{group}", s.handlePruneSnapshots).Methods("DELETE")
	api.HandleFunc("/archive/{group}/latest", s.handleLatestSnapshot).Methods("GET")

	api.HandleFunc("/analyze/classify", s.handleClassify).Methods("POST")
	api.HandleFunc("/analyze/news/{id}", s.handleSearchNews).Methods("POST")
	api.HandleFunc("/analyze/8k/batch", s.handleBatchCheckFilings).Methods("POST")
	api.HandleFunc("/analyze/8k/{id}", s.handleCheckFiling).Methods("POST")

	return router
}

// corsMiddleware allows the configured dashboard origin to call the API
// from a browser.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.FrontendURL != "" {
			w.Header().Set("Access-Control-Allow-Origin", s.config.FrontendURL)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Api-Key")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// apiKey returns the caller-supplied Anthropic credential, falling back to
// the server's configured key.
func (s *Server) apiKey(r *http.Request) string {
	if key := r.Header.Get("X-Api-Key"); key != "" {
		return key
	}
	return s.config.AnthropicAPIKey
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"database":  "ok",
	}

	if err := s.db.Ping(ctx); err != nil {
		health["status"] = "degraded"
		health["database"] = err.Error()
		respondJSON(w, http.StatusServiceUnavailable, health)
		return
	}

	if stats, err := s.victims.Stats(ctx); err == nil {
		health["total_victims"] = stats.TotalVictims
		health["pending_count"] = stats.PendingCount
		health["active_monitors"] = stats.ActiveMonitors
	}

	respondJSON(w, http.StatusOK, health)
}
