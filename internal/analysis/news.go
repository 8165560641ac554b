package analysis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/leakmonitor/leakmonitor/internal/models"
)

type newsResponse struct {
	NewsFound           bool     `json:"news_found"`
	Summary             *string  `json:"summary"`
	Sources             []string `json:"sources"`
	FirstNewsDate       string   `json:"first_news_date"`
	CompanyAcknowledged bool     `json:"company_acknowledged"`
}

// searchNews asks the model about public reporting of the incident.
// Requires an identified company name.
func (s *Service) searchNews(ctx context.Context, apiKey, companyName string, v models.Victim) (models.NewsCorrelation, error) {
	raw, err := s.llm.Complete(ctx, apiKey, newsPrompt(companyName, v))
	if err != nil {
		return models.NewsCorrelation{}, err
	}

	var decoded newsResponse
	if err := json.Unmarshal(extractJSON(raw), &decoded); err != nil {
		return models.NewsCorrelation{}, fmt.Errorf("parse news response: %w", err)
	}

	result := models.NewsCorrelation{
		NewsFound:              models.TriFromBool(decoded.NewsFound),
		DisclosureAcknowledged: models.TriFromBool(decoded.CompanyAcknowledged),
	}
	if decoded.NewsFound {
		result.NewsSummary = decoded.Summary
		result.NewsSources = decoded.Sources
		result.FirstNewsDate = parseNewsDate(decoded.FirstNewsDate)
	}
	return result, nil
}
