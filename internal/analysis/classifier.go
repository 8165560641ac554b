package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/leakmonitor/leakmonitor/internal/models"
)

type classifyResponse struct {
	CompanyName    *string `json:"company_name"`
	CompanyType    string  `json:"company_type"`
	Region         *string `json:"region"`
	Country        *string `json:"country"`
	IsSECRegulated bool    `json:"is_sec_regulated"`
	SECCik         *string `json:"sec_cik"`
	Confidence     string  `json:"confidence"`
	Notes          string  `json:"notes"`
}

type verifyResponse struct {
	Agrees         bool    `json:"agrees"`
	CompanyName    *string `json:"company_name"`
	CompanyType    string  `json:"company_type"`
	Region         *string `json:"region"`
	Country        *string `json:"country"`
	IsSECRegulated bool    `json:"is_sec_regulated"`
	SECCik         *string `json:"sec_cik"`
	Notes          string  `json:"notes"`
}

// classify runs the two-step identify-then-verify pipeline for one victim.
// Verification agreement upgrades nothing; disagreement downgrades the
// confidence to low and takes the verifier's answer.
func (s *Service) classify(ctx context.Context, apiKey string, v models.Victim) (models.AIClassification, error) {
	raw, err := s.llm.Complete(ctx, apiKey, classifyPrompt(v))
	if err != nil {
		return models.AIClassification{}, err
	}

	var first classifyResponse
	if err := json.Unmarshal(extractJSON(raw), &first); err != nil {
		return models.AIClassification{}, fmt.Errorf("parse classification: %w", err)
	}

	result := models.AIClassification{
		Confidence:     parseConfidence(first.Confidence),
		CompanyName:    first.CompanyName,
		CompanyType:    parseTypeOrUnknown(first.CompanyType),
		Region:         first.Region,
		Country:        first.Country,
		IsSECRegulated: &first.IsSECRegulated,
		SECCik:         normalizeCik(first.SECCik),
	}
	notes := first.Notes

	rawVerify, err := s.llm.Complete(ctx, apiKey, verifyPrompt(v, first))
	if err != nil {
		// The first pass stands on its own; log and keep it.
		logrus.Warnf("Verification step failed for %s: %v", v.ID, err)
	} else {
		var second verifyResponse
		if err := json.Unmarshal(extractJSON(rawVerify), &second); err != nil {
			logrus.Warnf("Failed to parse verification for %s: %v", v.ID, err)
		} else if !second.Agrees {
			logrus.Infof("Verification disagreed for %s, downgrading confidence", v.ID)
			result.Confidence = models.ConfidenceLow
			result.CompanyName = second.CompanyName
			result.CompanyType = parseTypeOrUnknown(second.CompanyType)
			result.Region = second.Region
			result.Country = second.Country
			result.IsSECRegulated = &second.IsSECRegulated
			result.SECCik = normalizeCik(second.SECCik)
			notes = notes + " | Verification: " + second.Notes
		}
	}

	if notes != "" {
		result.AINotes = &notes
	}
	return result, nil
}

// extractJSON strips markdown code fences and surrounding prose so the
// remainder can be unmarshalled. Models occasionally wrap the object even
// when told not to.
func extractJSON(s string) []byte {
	s = strings.TrimSpace(s)
	if start := strings.Index(s, "```"); start >= 0 {
		s = s[start+3:]
		s = strings.TrimPrefix(s, "json")
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
	}
	if start := strings.Index(s, "{"); start >= 0 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = s[start : end+1]
		}
	}
	return []byte(strings.TrimSpace(s))
}

func parseConfidence(s string) models.Confidence {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return models.ConfidenceHigh
	case "medium":
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

func parseTypeOrUnknown(s string) models.CompanyType {
	ct, err := models.ParseCompanyType(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return models.CompanyTypeUnknown
	}
	return ct
}

// normalizeCik pads a numeric CIK to the 10-digit form EDGAR expects.
func normalizeCik(cik *string) *string {
	if cik == nil {
		return nil
	}
	digits := strings.TrimSpace(*cik)
	if digits == "" {
		return nil
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return nil
		}
	}
	if len(digits) > 10 {
		return nil
	}
	padded := strings.Repeat("0", 10-len(digits)) + digits
	return &padded
}
