// Package usage records cost, latency and outcome telemetry for every
// upstream model call. The usage log is an append-only side channel for ops
// tooling; it never sits on the critical path, so recording failures are
// logged and swallowed.
package usage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"newsradar/internal/core"
	"newsradar/internal/llm"
	"newsradar/internal/logger"
)

// Recorder is the persistence slice telemetry needs.
type Recorder interface {
	RecordUsage(ctx context.Context, record core.UsageRecord) error
}

// TrackedProvider wraps an llm.Provider and writes one UsageRecord per call,
// success or error.
type TrackedProvider struct {
	provider llm.Provider
	recorder Recorder
	metadata map[string]string
}

// NewTrackedProvider wraps provider so every call lands in the usage log.
// The metadata map is attached to every record (e.g. {"operation":
// "discovery"}); it may be nil.
func NewTrackedProvider(provider llm.Provider, recorder Recorder, metadata map[string]string) *TrackedProvider {
	return &TrackedProvider{
		provider: provider,
		recorder: recorder,
		metadata: metadata,
	}
}

// GenerateText implements llm.Provider.
func (t *TrackedProvider) GenerateText(ctx context.Context, prompt string, opts llm.Options) (string, llm.Usage, error) {
	model := opts.Model
	if model == "" {
		model = t.provider.Name()
	}

	started := time.Now()
	text, tokens, err := t.provider.GenerateText(ctx, prompt, opts)
	duration := time.Since(started)

	if tokens.PromptTokens == 0 && tokens.OutputTokens == 0 {
		// No usage metadata from the provider; estimate from the text.
		tokens.PromptTokens = EstimateTokenCount(prompt)
		tokens.OutputTokens = EstimateTokenCount(text)
	}

	record := core.UsageRecord{
		ID:            uuid.NewString(),
		Model:         model,
		PromptTokens:  tokens.PromptTokens,
		OutputTokens:  tokens.OutputTokens,
		EstimatedCost: EstimateCost(model, tokens.PromptTokens, tokens.OutputTokens),
		Duration:      duration,
		Status:        core.UsageStatusSuccess,
		Metadata:      t.metadata,
		CreatedAt:     time.Now().UTC(),
	}
	if err != nil {
		record.Status = core.UsageStatusError
		record.ErrorMessage = err.Error()
	}

	if recordErr := t.recorder.RecordUsage(ctx, record); recordErr != nil {
		logger.Warn("failed to record usage", "model", model, "error", recordErr.Error())
	}

	return text, tokens, err
}

// Name implements llm.Provider.
func (t *TrackedProvider) Name() string {
	return t.provider.Name()
}
