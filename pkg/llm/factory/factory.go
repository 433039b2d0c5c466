package factory

import (
	"fmt"
	"time"

	"research-assistant-be/pkg/llm"
	"research-assistant-be/pkg/llm/huggingface"
	"research-assistant-be/pkg/llm/ollama"
)

type Params struct {
	Provider  string
	Model     string
	BaseURL   string
	APIKey    string
	KeepAlive string
	Timeout   time.Duration
}

func NewLLMProvider(p Params) (llm.LLMProvider, error) {
	switch p.Provider {
	case "ollama", "":
		baseURL := p.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, p.Model, p.KeepAlive, p.Timeout), nil
	case "huggingface":
		if p.APIKey == "" {
			return nil, fmt.Errorf("huggingface provider requires an API key")
		}
		return huggingface.NewHuggingFaceProvider(p.APIKey, p.BaseURL, p.Model, p.Timeout), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", p.Provider)
	}
}
