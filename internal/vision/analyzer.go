// Package vision analyzes uploaded sketches and images through an LLM vision
// provider. The analyzer is optional and failure-isolated: a broken provider
// never blocks a turn, it just leaves the artifact unanalyzed.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"atelier/internal/logging"
	"atelier/internal/types"
)

// Client sends an image plus prompt to a vision-capable model.
type Client interface {
	AnalyzeImage(ctx context.Context, image []byte, prompt string) (string, error)
}

// SpatialElement is one recognized element with its location.
type SpatialElement struct {
	Label       string    `json:"label"`
	Coordinates []float64 `json:"coordinates,omitempty"` // x, y, w, h normalized
	Notes       string    `json:"notes,omitempty"`
}

// Analysis is the structured result attached to a VisualArtifact.
type Analysis struct {
	SpatialElements    []SpatialElement `json:"spatial_elements"`
	AnalysisConfidence float64          `json:"analysis_confidence"`
	Summary            string           `json:"summary,omitempty"`
}

const analysisPrompt = `You analyze one architectural sketch or drawing from a design student.
Identify the spatial elements (rooms, circulation, openings, site features) and where they sit.
Reply with ONLY a JSON object:
{"spatial_elements": [{"label": "...", "coordinates": [x, y, w, h], "notes": "..."}], "analysis_confidence": number 0-1, "summary": "one sentence"}`

// Analyzer runs vision analysis over visual artifacts.
type Analyzer struct {
	client Client
}

// New creates an analyzer. A nil client disables analysis.
func New(client Client) *Analyzer {
	return &Analyzer{client: client}
}

// Enabled reports whether a vision provider is configured.
func (a *Analyzer) Enabled() bool {
	return a.client != nil
}

// Analyze runs the vision call and stores the result on the artifact. Errors
// are returned for logging but leave the artifact untouched.
func (a *Analyzer) Analyze(ctx context.Context, artifact *types.VisualArtifact) (*Analysis, error) {
	if a.client == nil {
		return nil, fmt.Errorf("no vision provider configured")
	}
	if len(artifact.ImageBytes) == 0 {
		return nil, fmt.Errorf("artifact %s has no image bytes", artifact.ID)
	}

	raw, err := a.client.AnalyzeImage(ctx, artifact.ImageBytes, analysisPrompt)
	if err != nil {
		return nil, fmt.Errorf("vision call failed: %w", err)
	}

	var analysis Analysis
	if err := json.Unmarshal([]byte(extractJSON(raw)), &analysis); err != nil {
		return nil, fmt.Errorf("unparseable vision result: %w", err)
	}
	analysis.AnalysisConfidence = types.Clamp01(analysis.AnalysisConfidence)

	artifact.Analysis = map[string]interface{}{
		"spatial_elements":    analysis.SpatialElements,
		"analysis_confidence": analysis.AnalysisConfidence,
		"summary":             analysis.Summary,
	}

	logging.Get(logging.CategoryVision).Info("Analyzed artifact %s: %d elements, confidence %.2f",
		artifact.ID, len(analysis.SpatialElements), analysis.AnalysisConfidence)
	return &analysis, nil
}

func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

// =============================================================================
// OPENAI VISION CLIENT
// =============================================================================

// OpenAIVisionClient implements Client against the OpenAI chat completions
// API with image content parts.
type OpenAIVisionClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOpenAIVisionClient creates a vision client.
func NewOpenAIVisionClient(apiKey, baseURL, model string) *OpenAIVisionClient {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIVisionClient{
		apiKey:     apiKey,
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// AnalyzeImage implements Client.
func (c *OpenAIVisionClient) AnalyzeImage(ctx context.Context, image []byte, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("API key not configured")
	}

	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(image)
	payload := map[string]interface{}{
		"model": c.model,
		"messages": []map[string]interface{}{
			{
				"role": "user",
				"content": []map[string]interface{}{
					{"type": "text", "text": prompt},
					{"type": "image_url", "image_url": map[string]string{"url": dataURL}},
				},
			},
		},
		"max_tokens": 1024,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("no completion returned")
	}
	return parsed.Choices[0].Message.Content, nil
}
