// Package llm wraps the Gemini text-generation API behind the Provider
// interface the pipeline consumes. The model's output is treated as
// untrusted free-form text; recovering structure from it is the extract
// package's job.
package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/spf13/viper"
	"google.golang.org/api/option"
)

const (
	// DefaultModel is the default Gemini model for discovery and analysis.
	DefaultModel = "gemini-1.5-flash-latest"
	// DefaultTimeout bounds a single generation call so a hung upstream
	// request fails the item instead of stalling a whole batch.
	DefaultTimeout = 60 * time.Second
)

// Options contains per-call generation parameters.
type Options struct {
	Model       string  // Model override; empty uses the client's model
	Temperature float32 // 0.0 to 1.0
	MaxTokens   int32   // Maximum output tokens; 0 leaves the model default
	RecencyDays int     // Restrict results to the last N days (prompt hint)
}

// Usage is the token accounting a call reports. Zero values mean the
// provider returned no usage metadata.
type Usage struct {
	PromptTokens int
	OutputTokens int
}

// Provider is the text-generation dependency of the pipeline.
type Provider interface {
	// GenerateText produces free-form text for a prompt. The returned text
	// is untrusted and may ignore any formatting instructions.
	GenerateText(ctx context.Context, prompt string, opts Options) (string, Usage, error)

	// Name identifies the provider/model for telemetry.
	Name() string
}

// Client is a Gemini-backed Provider.
type Client struct {
	modelName string
	timeout   time.Duration
	gClient   *genai.Client
}

// NewClient creates a Gemini client. The API key is taken, in order, from
// GEMINI_API_KEY, GOOGLE_GEMINI_API_KEY, GOOGLE_AI_API_KEY, then the
// gemini.api_key config entry.
func NewClient(ctx context.Context, modelName string) (*Client, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		if apiKey = os.Getenv("GOOGLE_GEMINI_API_KEY"); apiKey == "" {
			if apiKey = os.Getenv("GOOGLE_AI_API_KEY"); apiKey == "" {
				apiKey = viper.GetString("gemini.api_key")
			}
		}
	}
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required. Set GEMINI_API_KEY or gemini.api_key in the config file")
	}

	if modelName == "" {
		modelName = viper.GetString("gemini.model")
		if modelName == "" {
			modelName = DefaultModel
		}
	}

	timeout := DefaultTimeout
	if t := viper.GetString("gemini.timeout"); t != "" {
		if parsed, err := time.ParseDuration(t); err == nil {
			timeout = parsed
		}
	}

	gClient, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{
		modelName: modelName,
		timeout:   timeout,
		gClient:   gClient,
	}, nil
}

// Name returns the configured model name.
func (c *Client) Name() string {
	return c.modelName
}

// Close releases the underlying API client.
func (c *Client) Close() error {
	return c.gClient.Close()
}

// GenerateText implements Provider.
func (c *Client) GenerateText(ctx context.Context, prompt string, opts Options) (string, Usage, error) {
	modelName := opts.Model
	if modelName == "" {
		modelName = c.modelName
	}

	model := c.gClient.GenerativeModel(modelName)
	model.SetTemperature(opts.Temperature)
	if opts.MaxTokens > 0 {
		model.SetMaxOutputTokens(opts.MaxTokens)
	}

	if opts.RecencyDays > 0 {
		prompt = fmt.Sprintf("%s\n\nOnly consider content published within the last %d days.", prompt, opts.RecencyDays)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", Usage{}, fmt.Errorf("failed to generate content: %w", err)
	}

	text := responseText(resp)
	if text == "" {
		return "", usageFrom(resp), fmt.Errorf("empty response from model %s", modelName)
	}

	return text, usageFrom(resp), nil
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return strings.TrimSpace(sb.String())
}

func usageFrom(resp *genai.GenerateContentResponse) Usage {
	if resp == nil || resp.UsageMetadata == nil {
		return Usage{}
	}
	return Usage{
		PromptTokens: int(resp.UsageMetadata.PromptTokenCount),
		OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
	}
}
