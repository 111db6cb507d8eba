package main

import (
	"fmt"

	"github.com/Ninot1Quyi/jarvis-sub000/internal/config"
	"github.com/Ninot1Quyi/jarvis-sub000/internal/llmprovider"
)

// buildProvider constructs the llmprovider.Provider named by providerName,
// pulling its credentials from cfg.LLM.Providers and the default model from
// cfg.LLM.Model.
func buildProvider(cfg *config.Config, providerName string) (llmprovider.Provider, error) {
	entry := cfg.LLM.Providers[providerName]

	switch providerName {
	case "anthropic":
		return llmprovider.NewAnthropicNativeProvider(llmprovider.AnthropicConfig{
			APIKey:       entry.APIKey,
			BaseURL:      entry.BaseURL,
			DefaultModel: cfg.LLM.Model,
		})
	case "openai":
		mode := llmprovider.ModeNative
		if entry.Mode == "text" {
			mode = llmprovider.ModeText
		}
		return llmprovider.NewOpenAICompatProvider(llmprovider.OpenAIConfig{
			APIKey:       entry.APIKey,
			BaseURL:      entry.BaseURL,
			DefaultModel: cfg.LLM.Model,
			Mode:         mode,
		})
	default:
		return nil, fmt.Errorf("deskagent: unknown LLM provider %q", providerName)
	}
}
