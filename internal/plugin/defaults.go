package plugin

import (
	"net/http"
	"time"

	"github.com/nollyai/studio-server/internal/infra"
	"github.com/nollyai/studio-server/internal/providers/anthropic"
	"github.com/nollyai/studio-server/internal/providers/openai"
	"github.com/nollyai/studio-server/internal/providers/replicate"
)

// BuildRegistry wires the full plugin set from configuration. Providers
// without credentials run in synthetic mode, so the registry is always
// complete.
func BuildRegistry(cfg *infra.Config, logger *infra.Logger) *Registry {
	httpClient := &http.Client{Timeout: 60 * time.Second}

	anthropicClient := anthropic.NewClient(anthropic.Options{
		APIKey:     cfg.AnthropicAPIKey,
		BaseURL:    cfg.AnthropicBaseURL,
		Model:      cfg.AnthropicModel,
		HTTPClient: httpClient,
		Logger:     logger,
	})
	openaiClient := openai.NewClient(openai.Options{
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.OpenAIBaseURL,
		Model:      cfg.OpenAIModel,
		HTTPClient: httpClient,
		Logger:     logger,
	})
	replicateClient := replicate.NewClient(replicate.Options{
		APIToken:   cfg.ReplicateAPIToken,
		BaseURL:    cfg.ReplicateBaseURL,
		HTTPClient: httpClient,
		Logger:     logger,
	})

	if logger != nil {
		if anthropicClient.Synthetic() {
			logger.Warn().Msg("anthropic api key missing, script breakdown runs synthetically")
		}
		if openaiClient.Synthetic() {
			logger.Warn().Msg("openai api key missing, chat assistant runs synthetically")
		}
		if replicateClient.Synthetic() {
			logger.Warn().Msg("replicate api token missing, media jobs run synthetically")
		}
	}

	return NewRegistry(
		NewScriptBreakdown(anthropicClient),
		NewChatAssistant(openaiClient),
		NewRoto(replicateClient),
		NewColorGrade(replicateClient),
		NewAudioCleanup(replicateClient),
		NewMeshGeneration(replicateClient),
	)
}
