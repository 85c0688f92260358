// Package reasoning talks to the external multimodal model: given text and ordered
// images, return text.
package reasoning

import (
	"context"
	"fmt"

	"github.com/your-org/videoqa/internal/config"
	"github.com/your-org/videoqa/internal/prompt"
)

// Backend answers one composed prompt. Implementations make exactly one upstream
// call per Complete and never retry.
type Backend interface {
	Complete(ctx context.Context, p prompt.Prompt) (string, error)
	Name() string
	Close() error
}

// New builds the backend selected by cfg.Provider.
func New(ctx context.Context, cfg config.BackendConfig) (Backend, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAIBackend(cfg)
	case config.ProviderGemini:
		return NewGeminiBackend(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown reasoning provider %q", cfg.Provider)
	}
}
