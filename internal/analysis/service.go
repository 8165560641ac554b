package analysis

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/leakmonitor/leakmonitor/internal/models"
)

// VictimStore is the slice of the storage layer the enrichment service
// needs.
type VictimStore interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Victim, error)
	List(ctx context.Context, filter models.VictimFilter) ([]models.Victim, error)
	ApplyAIClassification(ctx context.Context, id uuid.UUID, c models.AIClassification) (*models.Victim, error)
	ApplyNewsCorrelation(ctx context.Context, id uuid.UUID, n models.NewsCorrelation) (*models.Victim, error)
	ApplyFilingCorrelation(ctx context.Context, id uuid.UUID, f models.FilingCorrelation) (*models.Victim, error)
}

// Service runs the enrichment pipelines and persists their results.
type Service struct {
	store  VictimStore
	llm    LLM
	filing FilingChecker
}

// NewService creates an enrichment service.
func NewService(store VictimStore, llm LLM, filing FilingChecker) *Service {
	return &Service{store: store, llm: llm, filing: filing}
}

// ClassifyOutcome reports the result of classifying one victim in a batch.
// Exactly one of Victim and Error is set.
type ClassifyOutcome struct {
	ID     uuid.UUID      `json:"id"`
	Victim *models.Victim `json:"victim,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// Classify runs the identify-then-verify pipeline for each requested victim
// and persists the result. Individual failures do not abort the batch, with
// one exception: an invalid credential fails everything immediately since
// every remaining call would fail the same way.
func (s *Service) Classify(ctx context.Context, apiKey string, ids []uuid.UUID) ([]ClassifyOutcome, error) {
	outcomes := make([]ClassifyOutcome, 0, len(ids))
	for _, id := range ids {
		victim, err := s.store.Get(ctx, id)
		if err != nil {
			outcomes = append(outcomes, ClassifyOutcome{ID: id, Error: err.Error()})
			continue
		}

		classification, err := s.classify(ctx, apiKey, *victim)
		if err != nil {
			var upstream *models.UpstreamError
			if errors.As(err, &upstream) && upstream.Unauthorized() {
				return nil, err
			}
			logrus.Warnf("Classification failed for %s: %v", id, err)
			outcomes = append(outcomes, ClassifyOutcome{ID: id, Error: err.Error()})
			continue
		}

		updated, err := s.store.ApplyAIClassification(ctx, id, classification)
		if err != nil {
			outcomes = append(outcomes, ClassifyOutcome{ID: id, Error: err.Error()})
			continue
		}
		outcomes = append(outcomes, ClassifyOutcome{ID: id, Victim: updated})
	}
	return outcomes, nil
}

// SearchNews runs the breach-news correlation for one victim. The victim
// must already have an identified company name.
func (s *Service) SearchNews(ctx context.Context, apiKey string, id uuid.UUID) (*models.Victim, error) {
	victim, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if victim.CompanyName == nil || *victim.CompanyName == "" {
		return nil, fmt.Errorf("%w: victim has no identified company name", models.ErrValidation)
	}

	correlation, err := s.searchNews(ctx, apiKey, *victim.CompanyName, *victim)
	if err != nil {
		return nil, err
	}
	return s.store.ApplyNewsCorrelation(ctx, id, correlation)
}

// CheckFiling runs the SEC 8-K correlation for one victim. The victim must
// be marked SEC-regulated and carry a CIK.
func (s *Service) CheckFiling(ctx context.Context, id uuid.UUID) (*models.Victim, error) {
	victim, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !victim.IsSECRegulated {
		return nil, fmt.Errorf("%w: victim is not SEC-regulated", models.ErrValidation)
	}
	if victim.SECCik == nil || *victim.SECCik == "" {
		return nil, fmt.Errorf("%w: victim has no SEC CIK", models.ErrValidation)
	}

	correlation, err := s.filing.CheckFilings(ctx, *victim.SECCik, victim.PostDate)
	if err != nil {
		return nil, err
	}
	return s.store.ApplyFilingCorrelation(ctx, id, correlation)
}

// FilingOutcome reports one victim's result from a batch filing check.
type FilingOutcome struct {
	ID     uuid.UUID      `json:"id"`
	Victim *models.Victim `json:"victim,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// BatchCheckFilings runs the filing check across all SEC-regulated victims
// that have a CIK and no filing verdict yet.
func (s *Service) BatchCheckFilings(ctx context.Context) ([]FilingOutcome, error) {
	regulated := true
	victims, err := s.store.List(ctx, models.VictimFilter{
		IsSECRegulated: &regulated,
		Limit:          1000,
	})
	if err != nil {
		return nil, err
	}

	var outcomes []FilingOutcome
	for _, v := range victims {
		if v.SECCik == nil || *v.SECCik == "" || v.HasFiling != models.TriUnknown {
			continue
		}
		updated, err := s.CheckFiling(ctx, v.ID)
		if err != nil {
			logrus.Warnf("Filing check failed for %s: %v", v.ID, err)
			outcomes = append(outcomes, FilingOutcome{ID: v.ID, Error: err.Error()})
			continue
		}
		outcomes = append(outcomes, FilingOutcome{ID: v.ID, Victim: updated})
	}
	logrus.Infof("Batch filing check processed %d victims", len(outcomes))
	return outcomes, nil
}
