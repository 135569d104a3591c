package debitor

import (
	"log/slog"
	"strings"
	"time"

	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
	openaiopt "github.com/openai/openai-go/option"
	"github.com/pichlex/debitor/pkg/oracle/anthropic"
	"github.com/pichlex/debitor/pkg/oracle/keyword"
	"github.com/pichlex/debitor/pkg/oracle/openai"
	"github.com/pichlex/debitor/pkg/ports"
)

// Model name prefixes that select a provider.
const (
	ProviderOpenAI    = "openai:"
	ProviderAnthropic = "anthropic:"
	ProviderKeyword   = "keyword"
)

// bindOracle builds the classifier for one shard from its model name.
// A bare model name means OpenAI. A provider without credentials degrades
// to the keyword classifier so the service still answers.
func bindOracle(cfg Config, sc ShardConfig, now func() time.Time, logger *slog.Logger) (ports.Oracle, string) {
	model := strings.TrimSpace(sc.Model)
	offline := func(reason string) (ports.Oracle, string) {
		if reason != "" {
			logger.Warn("Falling back to keyword classifier", "model", model, "reason", reason)
		}
		return keyword.New(keyword.WithClock(now)), ProviderKeyword
	}

	switch {
	case model == ProviderKeyword:
		return offline("")

	case strings.HasPrefix(model, ProviderAnthropic):
		if cfg.AnthropicKey == "" {
			return offline("anthropic api key is not set")
		}
		o := anthropic.New(strings.TrimPrefix(model, ProviderAnthropic), anthropicopt.WithAPIKey(cfg.AnthropicKey))
		return o, ProviderAnthropic + o.Model()

	default:
		if sc.OpenAIKey == "" {
			return offline("openai api key is not set")
		}
		opts := []openaiopt.RequestOption{openaiopt.WithAPIKey(sc.OpenAIKey)}
		if cfg.OpenAIBaseURL != "" {
			opts = append(opts, openaiopt.WithBaseURL(cfg.OpenAIBaseURL))
		}
		o := openai.New(strings.TrimPrefix(model, ProviderOpenAI), opts...)
		return o, ProviderOpenAI + o.Model()
	}
}
