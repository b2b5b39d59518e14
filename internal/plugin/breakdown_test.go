package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nollyai/studio-server/internal/domain"
	"github.com/nollyai/studio-server/internal/providers/anthropic"
)

const sampleScript = `INT. MAMA NKECHI'S PARLOUR - NIGHT

ADAEZE
You cannot sell this land while I breathe.

Adaeze confronts her uncle over the family compound.

EXT. LAGOS MARKET - DAY

The market roars back to life after the rains.
`

func TestScriptBreakdownValidate(t *testing.T) {
	p := NewScriptBreakdown(anthropic.NewClient(anthropic.Options{}))

	if err := p.Validate(json.RawMessage(`{"script":"INT. ROOM - DAY"}`)); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}
	err := p.Validate(json.RawMessage(`{"title":"no script"}`))
	if !errors.Is(err, domain.ErrInvalidPayload) {
		t.Fatalf("Validate() without script error = %v, want ErrInvalidPayload", err)
	}
	if err := p.Validate(json.RawMessage(`not json`)); !errors.Is(err, domain.ErrInvalidPayload) {
		t.Fatalf("Validate() with bad JSON error = %v, want ErrInvalidPayload", err)
	}
}

func TestScriptBreakdownRunSynthetic(t *testing.T) {
	p := NewScriptBreakdown(anthropic.NewClient(anthropic.Options{}))
	payload, _ := json.Marshal(map[string]string{"script": sampleScript, "title": "The Compound"})
	job := &domain.Job{ID: "job-1", Type: domain.JobTypeScriptBreakdown, Payload: payload}

	outcome, err := p.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}
	if outcome.Status != domain.JobStatusDone {
		t.Fatalf("Run() status = %s, want done", outcome.Status)
	}

	var result struct {
		Title      string            `json:"title"`
		SceneCount int               `json:"scene_count"`
		Scenes     []anthropic.Scene `json:"scenes"`
	}
	if err := json.Unmarshal(outcome.Result, &result); err != nil {
		t.Fatalf("Run() result decode error: %v", err)
	}
	if result.Title != "The Compound" {
		t.Fatalf("Run() result title = %q", result.Title)
	}
	if result.SceneCount != 2 || len(result.Scenes) != 2 {
		t.Fatalf("Run() scene_count = %d with %d scenes, want 2", result.SceneCount, len(result.Scenes))
	}
	if result.Scenes[0].TimeOfDay != "NIGHT" {
		t.Fatalf("Run() first scene time_of_day = %q, want NIGHT", result.Scenes[0].TimeOfDay)
	}
	if len(result.Scenes[0].Characters) == 0 || result.Scenes[0].Characters[0] != "ADAEZE" {
		t.Fatalf("Run() first scene characters = %v, want [ADAEZE]", result.Scenes[0].Characters)
	}
}

func TestChatAssistantValidate(t *testing.T) {
	p := NewChatAssistant(nil)
	if err := p.Validate(json.RawMessage(`{"message":""}`)); !errors.Is(err, domain.ErrInvalidPayload) {
		t.Fatalf("Validate() with empty message error = %v, want ErrInvalidPayload", err)
	}
	if err := p.Validate(json.RawMessage(`{"message":"How many shoot days?"}`)); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}
}
