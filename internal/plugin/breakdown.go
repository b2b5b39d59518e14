package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nollyai/studio-server/internal/domain"
	"github.com/nollyai/studio-server/internal/providers/anthropic"
)

const breakdownCost = 5

type breakdownPayload struct {
	Script string `json:"script"`
	Title  string `json:"title"`
}

// ScriptBreakdown turns a screenplay into a structured scene list. It is
// short-running: the model call completes within one scheduler pass.
type ScriptBreakdown struct {
	client *anthropic.Client
}

func NewScriptBreakdown(client *anthropic.Client) *ScriptBreakdown {
	return &ScriptBreakdown{client: client}
}

func (p *ScriptBreakdown) Type() domain.JobType { return domain.JobTypeScriptBreakdown }

func (p *ScriptBreakdown) Class() LatencyClass { return ClassShort }

func (p *ScriptBreakdown) Cost(json.RawMessage) int { return breakdownCost }

func (p *ScriptBreakdown) Validate(payload json.RawMessage) error {
	var decoded breakdownPayload
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	if strings.TrimSpace(decoded.Script) == "" {
		return fmt.Errorf("%w: script is required", domain.ErrInvalidPayload)
	}
	return nil
}

func (p *ScriptBreakdown) Run(ctx context.Context, job *domain.Job) (Outcome, error) {
	var decoded breakdownPayload
	if err := json.Unmarshal(job.Payload, &decoded); err != nil {
		return Outcome{}, fmt.Errorf("decode breakdown payload: %w", err)
	}
	breakdown, err := p.client.BreakdownScript(ctx, decoded.Script)
	if err != nil {
		return Outcome{}, fmt.Errorf("breakdown script: %w", err)
	}
	return Completed(map[string]any{
		"title":       decoded.Title,
		"scene_count": len(breakdown.Scenes),
		"scenes":      breakdown.Scenes,
	})
}
