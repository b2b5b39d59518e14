package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nollyai/studio-server/internal/infra"
)

const (
	defaultBaseURL = "https://api.anthropic.com/v1"
	defaultModel   = "claude-3-5-sonnet-latest"
	apiVersion     = "2023-06-01"
)

// Options controls how the Anthropic client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client wraps the Anthropic messages API for script analysis. When no API
// key is configured it falls back to a deterministic local breakdown so the
// worker stays fully operational in development and CI.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

func NewClient(opts Options) *Client {
	baseURL := strings.TrimSuffix(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := opts.Model
	if model == "" {
		model = defaultModel
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		apiKey:     opts.APIKey,
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
		logger:     opts.Logger,
	}
}

// Synthetic reports whether the client operates without a real API key.
func (c *Client) Synthetic() bool { return c.apiKey == "" }

// Scene is one entry of a script breakdown.
type Scene struct {
	Number     int      `json:"number"`
	Heading    string   `json:"heading"`
	Location   string   `json:"location"`
	TimeOfDay  string   `json:"time_of_day"`
	Characters []string `json:"characters,omitempty"`
	Synopsis   string   `json:"synopsis,omitempty"`
}

// Breakdown is the structured output of script analysis.
type Breakdown struct {
	Scenes []Scene `json:"scenes"`
}

// BreakdownScript analyzes a screenplay and returns a structured scene list.
func (c *Client) BreakdownScript(ctx context.Context, script string) (*Breakdown, error) {
	if c.Synthetic() {
		return syntheticBreakdown(script), nil
	}

	system := "You are a Nollywood pre-production assistant. Break the screenplay into scenes. " +
		"Respond with JSON only: {\"scenes\":[{\"number\",\"heading\",\"location\",\"time_of_day\",\"characters\",\"synopsis\"}]}."
	text, err := c.message(ctx, system, script)
	if err != nil {
		return nil, err
	}

	var breakdown Breakdown
	if err := json.Unmarshal([]byte(extractJSON(text)), &breakdown); err != nil {
		return nil, fmt.Errorf("decode breakdown response: %w", err)
	}
	if len(breakdown.Scenes) == 0 {
		return nil, fmt.Errorf("breakdown response contained no scenes")
	}
	return &breakdown, nil
}

type messageRequest struct {
	Model     string           `json:"model"`
	MaxTokens int              `json:"max_tokens"`
	System    string           `json:"system,omitempty"`
	Messages  []messagePayload `json:"messages"`
}

type messagePayload struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messageResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *Client) message(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(messageRequest{
		Model:     c.model,
		MaxTokens: 4096,
		System:    system,
		Messages:  []messagePayload{{Role: "user", Content: user}},
	})
	if err != nil {
		return "", fmt.Errorf("encode message request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build message request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call anthropic: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("read anthropic response: %w", err)
	}

	var decoded messageResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("decode anthropic response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if decoded.Error != nil {
			return "", fmt.Errorf("anthropic %s: %s", decoded.Error.Type, decoded.Error.Message)
		}
		return "", fmt.Errorf("anthropic status %d", resp.StatusCode)
	}
	var sb strings.Builder
	for _, part := range decoded.Content {
		if part.Type == "text" {
			sb.WriteString(part.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("anthropic response contained no text")
	}
	return sb.String(), nil
}

// extractJSON trims markdown fences and surrounding prose from a model reply.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if start := strings.Index(text, "{"); start >= 0 {
		if end := strings.LastIndex(text, "}"); end > start {
			return text[start : end+1]
		}
	}
	return text
}

var sceneHeadingPrefixes = []string{"INT.", "EXT.", "INT/EXT.", "I/E."}

// syntheticBreakdown parses standard screenplay slug lines locally. It keeps
// the breakdown plugin useful without any external call.
func syntheticBreakdown(script string) *Breakdown {
	breakdown := &Breakdown{Scenes: []Scene{}}
	var current *Scene
	lines := strings.Split(script, "\n")
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		upper := strings.ToUpper(trimmed)
		heading := false
		for _, prefix := range sceneHeadingPrefixes {
			if strings.HasPrefix(upper, prefix) {
				heading = true
				break
			}
		}
		if heading {
			scene := Scene{
				Number:  len(breakdown.Scenes) + 1,
				Heading: trimmed,
			}
			scene.Location, scene.TimeOfDay = splitHeading(upper)
			breakdown.Scenes = append(breakdown.Scenes, scene)
			current = &breakdown.Scenes[len(breakdown.Scenes)-1]
			continue
		}
		if current == nil || trimmed == "" {
			continue
		}
		// All-caps short lines inside a scene are treated as character cues.
		if upper == trimmed && len(trimmed) <= 30 && !strings.ContainsAny(trimmed, ".!?") {
			current.Characters = appendUnique(current.Characters, trimmed)
		} else if current.Synopsis == "" {
			current.Synopsis = trimmed
		}
	}
	if len(breakdown.Scenes) == 0 {
		breakdown.Scenes = append(breakdown.Scenes, Scene{
			Number:   1,
			Heading:  "UNTITLED SCENE",
			Synopsis: firstLine(script),
		})
	}
	return breakdown
}

func splitHeading(heading string) (location, timeOfDay string) {
	location = heading
	if idx := strings.LastIndex(heading, " - "); idx > 0 {
		location = strings.TrimSpace(heading[:idx])
		timeOfDay = strings.TrimSpace(heading[idx+3:])
	}
	for _, prefix := range sceneHeadingPrefixes {
		location = strings.TrimSpace(strings.TrimPrefix(location, prefix))
	}
	return location, timeOfDay
}

func appendUnique(values []string, value string) []string {
	for _, v := range values {
		if v == value {
			return values
		}
	}
	return append(values, value)
}

func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
