package llmgateway

import (
	"fmt"
	"os"

	"github.com/ensemble-maestro/swarm/pkg/config"
)

// NewFromConfig builds a Gateway for the named provider entry in reg,
// selecting AnthropicProvider or FakeProvider by LLMProviderConfig.Type.
func NewFromConfig(reg *config.LLMProviderRegistry, providerName, artifactDir string) (*Gateway, error) {
	cfg, err := reg.Get(providerName)
	if err != nil {
		return nil, fmt.Errorf("llmgateway: %w", err)
	}

	var provider Provider
	switch cfg.Type {
	case config.LLMProviderTypeAnthropic:
		apiKey := os.Getenv(cfg.APIKeyEnv)
		if apiKey == "" {
			return nil, fmt.Errorf("llmgateway: environment variable %q is not set for provider %q", cfg.APIKeyEnv, providerName)
		}
		provider = NewAnthropicProvider(apiKey)
	case config.LLMProviderTypeFake:
		provider = &FakeProvider{Content: "{}"}
	default:
		return nil, fmt.Errorf("llmgateway: unknown provider type %q", cfg.Type)
	}

	return New(provider, providerName, cfg, artifactDir), nil
}
