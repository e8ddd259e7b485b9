package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/azure-way/aidocwriter/internal/logger"
)

// HTTPClient is a minimal OpenAI-compatible Responses API client, trimmed
// from the teacher's client down to the two calls agents.Client needs:
// structured JSON output and plain text. Image/video/streaming/conversation
// endpoints aren't part of this domain and were dropped rather than carried
// along unused (see DESIGN.md).
type HTTPClient struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	maxRetries int
}

func NewHTTPClient(log *logger.Logger) (*HTTPClient, error) {
	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("agents: missing OPENAI_API_KEY")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")), "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	model := strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
	if model == "" {
		model = "gpt-5.2"
	}
	timeoutSec := 180
	if v := os.Getenv("OPENAI_TIMEOUT_SECONDS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			timeoutSec = parsed
		}
	}
	maxRetries := 4
	if v := os.Getenv("OPENAI_MAX_RETRIES"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			maxRetries = parsed
		}
	}
	return &HTTPClient{
		log:        log.With("component", "AgentsHTTPClient"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		maxRetries: maxRetries,
	}, nil
}

type responsesRequest struct {
	Model          string          `json:"model"`
	Input          string          `json:"input"`
	Instructions   string          `json:"instructions,omitempty"`
	Text           *responsesText  `json:"text,omitempty"`
}

type responsesText struct {
	Format map[string]any `json:"format"`
}

type responsesResult struct {
	OutputText string `json:"output_text"`
}

func (c *HTTPClient) GenerateText(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(responsesRequest{Model: c.model, Input: user, Instructions: system})
	if err != nil {
		return "", err
	}
	var out responsesResult
	if err := c.doJSON(ctx, body, &out); err != nil {
		return "", err
	}
	return out.OutputText, nil
}

func (c *HTTPClient) GenerateJSON(ctx context.Context, system, user string, schemaName string, schema map[string]any) (map[string]any, error) {
	req := responsesRequest{
		Model:        c.model,
		Input:        user,
		Instructions: system,
		Text: &responsesText{Format: map[string]any{
			"type":   "json_schema",
			"name":   schemaName,
			"schema": schema,
			"strict": true,
		}},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	var out responsesResult
	if err := c.doJSON(ctx, body, &out); err != nil {
		return nil, err
	}
	var parsed map[string]any
	if err := json.Unmarshal([]byte(out.OutputText), &parsed); err != nil {
		return nil, fmt.Errorf("agents: model did not return valid json for schema %q: %w", schemaName, err)
	}
	return parsed, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, body []byte, out any) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/responses", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			c.log.Warn("agents request failed, retrying", "attempt", attempt, "error", err)
			continue
		}
		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("agents: server error %d: %s", resp.StatusCode, string(respBody))
			c.log.Warn("agents request failed, retrying", "attempt", attempt, "status", resp.StatusCode)
			continue
		}
		if resp.StatusCode >= 400 {
			return fmt.Errorf("agents: request error %d: %s", resp.StatusCode, string(respBody))
		}
		return json.Unmarshal(respBody, out)
	}
	return fmt.Errorf("agents: exhausted retries: %w", lastErr)
}
