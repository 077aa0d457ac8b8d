package completion

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/anthropic"
	"github.com/firebase/genkit/go/plugins/compat_oai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
)

// GenkitGatewayConfig selects and authenticates the underlying model
// provider. Provider is one of "google" (default), "anthropic", "openai",
// "openai_compatible".
type GenkitGatewayConfig struct {
	Provider string
	APIKey   string

	OpenAICompatibleProvider string
	OpenAICompatibleBaseURL  string
}

// GenkitGateway implements Gateway over a genkit.Genkit instance, mirroring
// how the teacher's GenkitBrain selects a provider plugin, minus the tool
// registry and skill machinery that belong to a chat agent rather than a
// subconscious completion primitive.
type GenkitGateway struct {
	g        *genkit.Genkit
	provider string
	on       bool
}

// NewGenkitGateway initializes Genkit with the configured provider plugin.
// With no API key configured, it still returns a usable Gateway whose
// Complete calls report ErrorKindCompletionEmpty rather than panicking —
// callers are expected to check Configured() before relying on live
// completions.
func NewGenkitGateway(ctx context.Context, cfg GenkitGatewayConfig) *GenkitGateway {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = "google"
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		apiKey = envAPIKeyForProvider(provider)
	}

	var g *genkit.Genkit
	on := false

	switch provider {
	case "anthropic":
		if apiKey != "" {
			g = genkit.Init(ctx, genkit.WithPlugins(&anthropic.Anthropic{
				APIKey:  apiKey,
				BaseURL: os.Getenv("ANTHROPIC_BASE_URL"),
			}))
			on = true
		} else {
			g = genkit.Init(ctx)
			slog.Warn("completion: anthropic api key missing, gateway is unconfigured")
		}
	case "openai":
		if apiKey != "" {
			g = genkit.Init(ctx, genkit.WithPlugins(&compat_oai.OpenAICompatible{
				Provider: "openai",
				APIKey:   apiKey,
				BaseURL:  os.Getenv("OPENAI_BASE_URL"),
			}))
			on = true
		} else {
			g = genkit.Init(ctx)
			slog.Warn("completion: openai api key missing, gateway is unconfigured")
		}
	case "openai_compatible":
		if apiKey != "" {
			g = genkit.Init(ctx, genkit.WithPlugins(&compat_oai.OpenAICompatible{
				Provider: cfg.OpenAICompatibleProvider,
				APIKey:   apiKey,
				BaseURL:  cfg.OpenAICompatibleBaseURL,
			}))
			on = true
		} else {
			g = genkit.Init(ctx)
			slog.Warn("completion: openai-compatible api key missing, gateway is unconfigured")
		}
	case "google", "":
		if apiKey != "" {
			_ = os.Setenv("GEMINI_API_KEY", apiKey)
			g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
			on = true
		} else {
			g = genkit.Init(ctx)
			slog.Warn("completion: google api key missing, gateway is unconfigured")
		}
	default:
		g = genkit.Init(ctx)
		slog.Warn("completion: unknown provider, gateway is unconfigured", "provider", provider)
	}

	return &GenkitGateway{g: g, provider: provider, on: on}
}

// Configured reports whether a live provider plugin is wired in.
func (gw *GenkitGateway) Configured() bool {
	return gw.on
}

func envAPIKeyForProvider(provider string) string {
	switch provider {
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	case "openai", "openai_compatible":
		return os.Getenv("OPENAI_API_KEY")
	case "google", "":
		if k := os.Getenv("GEMINI_API_KEY"); k != "" {
			return k
		}
		return os.Getenv("GOOGLE_API_KEY")
	default:
		return ""
	}
}

func modelNameForProvider(provider, model string) string {
	model = strings.TrimSpace(model)
	switch provider {
	case "anthropic":
		return "anthropic/" + model
	case "openai":
		return "openai/" + model
	case "openai_compatible":
		return model
	case "google", "":
		return "googleai/" + model
	default:
		return "googleai/" + model
	}
}

// Complete implements Gateway. It streams the response and watches for an
// error event per the error-as-event contract: a stream error becomes
// ErrorKindCompletionStreamError rather than a returned Go error, and an
// empty final text becomes ErrorKindCompletionEmpty.
func (gw *GenkitGateway) Complete(ctx context.Context, prompt, model string, temperature float32) (Result, error) {
	if !gw.on {
		return Result{ErrorKind: ErrorKindCompletionEmpty}, nil
	}
	trimmed := strings.TrimSpace(prompt)
	if trimmed == "" {
		return Result{ErrorKind: ErrorKindCompletionEmpty}, nil
	}

	modelName := modelNameForProvider(gw.provider, model)
	opts := []ai.GenerateOption{
		ai.WithModelName(modelName),
		ai.WithPrompt(trimmed),
		ai.WithConfig(&ai.GenerationCommonConfig{Temperature: float64(temperature)}),
	}

	stream := genkit.GenerateStream(ctx, gw.g, opts...)

	var out strings.Builder
	for streamVal, err := range stream {
		if err != nil {
			slog.Warn("completion: stream error event", "provider", gw.provider, "error", err)
			if out.Len() == 0 {
				return Result{ErrorKind: ErrorKindCompletionStreamError}, nil
			}
			return Result{Text: out.String(), ErrorKind: ErrorKindCompletionStreamError}, nil
		}
		if streamVal.Chunk != nil {
			for _, part := range streamVal.Chunk.Content {
				if part.Kind == ai.PartText {
					out.WriteString(part.Text)
				}
			}
		}
	}

	text := strings.TrimSpace(out.String())
	if text == "" {
		return Result{ErrorKind: ErrorKindCompletionEmpty}, nil
	}
	return Result{Text: text}, nil
}
