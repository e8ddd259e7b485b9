package diagram

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/azure-way/aidocwriter/internal/agents"
)

// Renderer calls out to a PlantUML render server (spec.md §6 "PlantUML
// renderer: POST <server>/{png|svg}").
type Renderer interface {
	Render(ctx context.Context, source string, format string) ([]byte, error)
}

// HTTPRenderer is the production Renderer, a 30s-timeout POST per
// spec.md §6.
type HTTPRenderer struct {
	baseURL string
	client  *http.Client
}

func NewHTTPRenderer(baseURL string, timeout time.Duration) *HTTPRenderer {
	return &HTTPRenderer{baseURL: strings.TrimRight(baseURL, "/"), client: &http.Client{Timeout: timeout}}
}

func (r *HTTPRenderer) Render(ctx context.Context, source string, format string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/"+format, bytes.NewReader([]byte(source)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("diagram: render server returned %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// RenderWithRetry implements spec.md §4.11 diagram_render step 1: up to 3
// attempts total. On any failure, ask an LLM to regenerate the PlantUML
// source from the plan's diagram description, then retry; attempts 2 and 3
// reuse whatever reformatted source last succeeded in producing (i.e. we
// don't regenerate again once we already have a reformat to retry with).
func RenderWithRetry(ctx context.Context, r Renderer, client agents.Client, source, format, description string) ([]byte, error) {
	current := source
	var lastErr error
	reformatted := false

	for attempt := 1; attempt <= 3; attempt++ {
		out, err := r.Render(ctx, current, format)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if reformatted || client == nil || description == "" {
			continue
		}
		reformatted = true
		system := "You regenerate valid PlantUML source from a diagram description. Respond with only the PlantUML source, starting with @startuml and ending with @enduml."
		user := fmt.Sprintf("Description: %s\n\nThe following PlantUML failed to render:\n%s\n\nRegenerate corrected PlantUML source.", description, current)
		text, genErr := client.GenerateText(ctx, system, user)
		if genErr != nil || strings.TrimSpace(text) == "" {
			continue
		}
		current = Sanitize(text)
	}
	return nil, fmt.Errorf("diagram: render failed after 3 attempts: %w", lastErr)
}
