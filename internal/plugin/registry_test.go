package plugin

import (
	"errors"
	"testing"

	"github.com/nollyai/studio-server/internal/domain"
	"github.com/nollyai/studio-server/internal/providers/anthropic"
	"github.com/nollyai/studio-server/internal/providers/openai"
	"github.com/nollyai/studio-server/internal/providers/replicate"
)

func syntheticPlugins() []Plugin {
	ant := anthropic.NewClient(anthropic.Options{})
	oai := openai.NewClient(openai.Options{})
	rep := replicate.NewClient(replicate.Options{})
	return []Plugin{
		NewScriptBreakdown(ant),
		NewChatAssistant(oai),
		NewRoto(rep),
		NewColorGrade(rep),
		NewAudioCleanup(rep),
		NewMeshGeneration(rep),
	}
}

func TestRegistryResolve(t *testing.T) {
	registry := NewRegistry(syntheticPlugins()...)

	p, err := registry.Resolve(domain.JobTypeRoto)
	if err != nil {
		t.Fatalf("Resolve(roto) unexpected error: %v", err)
	}
	if p.Type() != domain.JobTypeRoto {
		t.Fatalf("Resolve(roto) returned plugin for %s", p.Type())
	}

	if _, err := registry.Resolve("time-travel"); !errors.Is(err, domain.ErrUnsupportedJobType) {
		t.Fatalf("Resolve(time-travel) error = %v, want ErrUnsupportedJobType", err)
	}
}

func TestRegistryTypesSorted(t *testing.T) {
	registry := NewRegistry(syntheticPlugins()...)
	types := registry.Types()
	if len(types) != 6 {
		t.Fatalf("Types() returned %d entries, want 6", len(types))
	}
	for i := 1; i < len(types); i++ {
		if types[i-1] >= types[i] {
			t.Fatalf("Types() not sorted: %v", types)
		}
	}
}

func TestRegistryCosts(t *testing.T) {
	registry := NewRegistry(syntheticPlugins()...)
	want := map[domain.JobType]int{
		domain.JobTypeScriptBreakdown: 5,
		domain.JobTypeChatAssistant:   1,
		domain.JobTypeRoto:            10,
		domain.JobTypeColorGrade:      8,
		domain.JobTypeAudioCleanup:    6,
		domain.JobTypeMeshGeneration:  12,
	}
	for jobType, cost := range want {
		p, err := registry.Resolve(jobType)
		if err != nil {
			t.Fatalf("Resolve(%s) unexpected error: %v", jobType, err)
		}
		if got := p.Cost(nil); got != cost {
			t.Errorf("Cost(%s) = %d, want %d", jobType, got, cost)
		}
	}
}
