package backend

import (
	"fmt"
	"strings"

	"github.com/smartdeal/dealextract/internal/domain"
)

// NewClient builds the client for a model configuration. Cloud backends
// are picked by model family; local inference goes through Ollama and the
// OCR pipeline through Tesseract.
func NewClient(cfg domain.ModelConfig, policy Policy) (Client, error) {
	switch cfg.Kind {
	case domain.KindCloudAPI:
		switch {
		case strings.HasPrefix(cfg.ID, "gemini"):
			return NewGeminiClient(cfg, policy), nil
		case strings.HasPrefix(cfg.ID, "claude"):
			return NewAnthropicClient(cfg, policy), nil
		default:
			return NewOpenAIClient(cfg, policy), nil
		}
	case domain.KindLocalInference:
		return NewOllamaClient(cfg, policy), nil
	case domain.KindOCRPipeline:
		return NewOCRClient(cfg, policy), nil
	default:
		return nil, fmt.Errorf("unknown backend kind: %s", cfg.Kind)
	}
}
