// Package provider builds the configured llm.Classifier.
package provider

import (
	"errors"
	"log/slog"

	"github.com/joseph-ayodele/lab-compliance/internal/common"
	"github.com/joseph-ayodele/lab-compliance/internal/llm"
	"github.com/joseph-ayodele/lab-compliance/internal/llm/langchain"
	"github.com/joseph-ayodele/lab-compliance/internal/llm/openai"
)

// New returns the classifier selected by cfg.Provider, bounded by cfg.Timeout.
// A nil classifier with a nil error means semantic classification is disabled.
func New(cfg common.LLMConfig, logger *slog.Logger) (llm.Classifier, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var c llm.Classifier
	switch cfg.Provider {
	case "", "none":
		logger.Info("llm.disabled")
		return nil, nil
	case "openai":
		c = openai.NewClient(openai.Config{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}, logger)
	default:
		m, err := langchain.NewModel(langchain.Config{
			Provider:        cfg.Provider,
			Model:           cfg.Model,
			OpenAIAPIKey:    cfg.APIKey,
			OpenAIBaseURL:   cfg.BaseURL,
			AnthropicAPIKey: cfg.AnthropicAPIKey,
			OllamaHost:      cfg.OllamaHost,
			Temperature:     float64(cfg.Temperature),
		})
		if err != nil {
			return nil, common.NewAppError("CONFIG_ERROR", "llm provider "+cfg.Provider, errors.Join(common.ErrInvalidInput, err))
		}
		c = m
	}

	logger.Info("llm.ready", "provider", cfg.Provider, "model", cfg.Model, "timeout", cfg.Timeout)
	return llm.WithTimeout(c, cfg.Timeout, logger), nil
}
