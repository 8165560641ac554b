// Package analysis enriches victim records using an LLM (company
// classification and breach-news correlation) and the SEC EDGAR API
// (8-K disclosure correlation).
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/leakmonitor/leakmonitor/internal/models"
)

const (
	anthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion = "2023-06-01"
	maxTokens        = 2048
)

// LLM is the completion contract the enrichment steps depend on.
type LLM interface {
	// Complete sends a single-turn prompt and returns the text response.
	// The API key is supplied per call so callers can forward end-user
	// credentials instead of holding a shared one.
	Complete(ctx context.Context, apiKey, prompt string) (string, error)
}

// AnthropicClient implements LLM against the Anthropic Messages API.
type AnthropicClient struct {
	baseURL string
	model   string
	client  *resty.Client
}

var _ LLM = (*AnthropicClient)(nil)

// NewAnthropicClient creates a Messages API client using the given model.
func NewAnthropicClient(model string) *AnthropicClient {
	return &AnthropicClient{
		baseURL: anthropicBaseURL,
		model:   model,
		client: resty.New().
			SetTimeout(60 * time.Second).
			SetHeader("Content-Type", "application/json"),
	}
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *AnthropicClient) Complete(ctx context.Context, apiKey, prompt string) (string, error) {
	if apiKey == "" {
		return "", &models.UpstreamError{
			Service:    "anthropic",
			StatusCode: http.StatusUnauthorized,
			Err:        fmt.Errorf("no API key provided"),
		}
	}

	payload := messagesRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages:  []message{{Role: "user", Content: prompt}},
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("X-Api-Key", apiKey).
		SetHeader("Anthropic-Version", anthropicVersion).
		SetBody(payload).
		Post(c.baseURL + "/v1/messages")
	if err != nil {
		return "", &models.UpstreamError{Service: "anthropic", Err: err}
	}

	var decoded messagesResponse
	if err := json.Unmarshal(resp.Body(), &decoded); err != nil {
		return "", &models.UpstreamError{Service: "anthropic", Err: fmt.Errorf("decode response: %w", err)}
	}

	if resp.StatusCode() != http.StatusOK {
		msg := "request failed"
		if decoded.Error != nil {
			msg = decoded.Error.Message
		}
		logrus.Warnf("Anthropic API returned status %d: %s", resp.StatusCode(), msg)
		return "", &models.UpstreamError{
			Service:    "anthropic",
			StatusCode: resp.StatusCode(),
			Err:        fmt.Errorf("%s", msg),
		}
	}

	for _, block := range decoded.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", &models.UpstreamError{Service: "anthropic", Err: fmt.Errorf("response contained no text block")}
}
