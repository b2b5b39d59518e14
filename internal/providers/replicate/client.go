package replicate

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/nollyai/studio-server/internal/infra"
)

const defaultBaseURL = "https://api.replicate.com/v1"

// Prediction statuses reported by the API.
const (
	StatusStarting   = "starting"
	StatusProcessing = "processing"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
	StatusCanceled   = "canceled"
)

// Options controls how the Replicate client is configured.
type Options struct {
	APIToken   string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Prediction is the normalized view of a model invocation.
type Prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  string          `json:"error"`
}

// Terminal reports whether the prediction finished.
func (p *Prediction) Terminal() bool {
	return p.Status == StatusSucceeded || p.Status == StatusFailed || p.Status == StatusCanceled
}

// Client wraps the predictions API. Without an API token it simulates
// predictions in memory: each poll advances starting -> processing ->
// succeeded with a deterministic output, which keeps long-running plugins and
// the scheduler poll loop exercisable offline.
type Client struct {
	apiToken   string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger

	mu       sync.Mutex
	fakes    map[string]*fakePrediction
	fakeSeq  int
	fakeCost int // polls before a synthetic prediction succeeds
}

type fakePrediction struct {
	model string
	input json.RawMessage
	polls int
}

func NewClient(opts Options) *Client {
	baseURL := strings.TrimSuffix(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		apiToken:   opts.APIToken,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     opts.Logger,
		fakes:      make(map[string]*fakePrediction),
		fakeCost:   2,
	}
}

// Synthetic reports whether the client operates without a real API token.
func (c *Client) Synthetic() bool { return c.apiToken == "" }

// SetSyntheticPolls adjusts how many polls a synthetic prediction needs
// before succeeding. Intended for tests.
func (c *Client) SetSyntheticPolls(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fakeCost = n
}

// CreatePrediction starts a model run and returns its handle.
func (c *Client) CreatePrediction(ctx context.Context, model string, input map[string]any) (*Prediction, error) {
	inputJSON, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("encode prediction input: %w", err)
	}
	if c.Synthetic() {
		return c.createFake(model, inputJSON), nil
	}

	body, err := json.Marshal(map[string]any{
		"version": model,
		"input":   json.RawMessage(inputJSON),
	})
	if err != nil {
		return nil, fmt.Errorf("encode prediction request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predictions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build prediction request: %w", err)
	}
	return c.do(req)
}

// GetPrediction fetches the current state of a prediction by handle.
func (c *Client) GetPrediction(ctx context.Context, id string) (*Prediction, error) {
	if c.Synthetic() {
		return c.pollFake(id)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/predictions/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("build prediction request: %w", err)
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*Prediction, error) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+c.apiToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call replicate: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read replicate response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("replicate status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var prediction Prediction
	if err := json.Unmarshal(raw, &prediction); err != nil {
		return nil, fmt.Errorf("decode replicate response: %w", err)
	}
	return &prediction, nil
}

func (c *Client) createFake(model string, input json.RawMessage) *Prediction {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.fakeSeq++
	id := fmt.Sprintf("synthetic-%s-%d", shortHash(model), c.fakeSeq)
	c.fakes[id] = &fakePrediction{model: model, input: input}
	return &Prediction{ID: id, Status: StatusStarting}
}

func (c *Client) pollFake(id string) (*Prediction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fake, ok := c.fakes[id]
	if !ok {
		return nil, fmt.Errorf("unknown prediction %q", id)
	}
	fake.polls++
	if fake.polls < c.fakeCost {
		return &Prediction{ID: id, Status: StatusProcessing}, nil
	}
	output, _ := json.Marshal(map[string]string{
		"url": fmt.Sprintf("https://assets.nollyai.local/%s/%s.bin", shortHash(fake.model), shortHash(string(fake.input))),
	})
	return &Prediction{ID: id, Status: StatusSucceeded, Output: output}, nil
}

func shortHash(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:6])
}
