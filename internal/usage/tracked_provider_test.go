package usage

import (
	"context"
	"errors"
	"testing"

	"newsradar/internal/core"
	"newsradar/internal/llm"
)

type fakeRecorder struct {
	records []core.UsageRecord
}

func (f *fakeRecorder) RecordUsage(_ context.Context, record core.UsageRecord) error {
	f.records = append(f.records, record)
	return nil
}

func TestTrackedProvider_RecordsSuccess(t *testing.T) {
	mock := llm.NewMockProvider().Queue("some response text")
	recorder := &fakeRecorder{}
	tracked := NewTrackedProvider(mock, recorder, map[string]string{"operation": "discovery"})

	text, tokens, err := tracked.GenerateText(context.Background(), "a prompt", llm.Options{})
	if err != nil {
		t.Fatalf("GenerateText failed: %v", err)
	}
	if text != "some response text" {
		t.Errorf("Unexpected text: %q", text)
	}
	if tokens.PromptTokens != 100 || tokens.OutputTokens != 50 {
		t.Errorf("Provider usage metadata should pass through, got %+v", tokens)
	}

	if len(recorder.records) != 1 {
		t.Fatalf("Expected 1 usage record, got %d", len(recorder.records))
	}
	rec := recorder.records[0]
	if rec.Status != core.UsageStatusSuccess {
		t.Errorf("Expected success status, got %q", rec.Status)
	}
	if rec.PromptTokens != 100 || rec.OutputTokens != 50 {
		t.Errorf("Record tokens wrong: %+v", rec)
	}
	if rec.EstimatedCost <= 0 {
		t.Errorf("Expected a positive estimated cost, got %v", rec.EstimatedCost)
	}
	if rec.Metadata["operation"] != "discovery" {
		t.Errorf("Metadata not attached: %v", rec.Metadata)
	}
}

func TestTrackedProvider_RecordsError(t *testing.T) {
	mock := llm.NewMockProvider().QueueError(errors.New("upstream unavailable"))
	recorder := &fakeRecorder{}
	tracked := NewTrackedProvider(mock, recorder, nil)

	_, _, err := tracked.GenerateText(context.Background(), "a prompt", llm.Options{})
	if err == nil {
		t.Fatal("Expected the upstream error to propagate")
	}

	if len(recorder.records) != 1 {
		t.Fatalf("Errors must still be recorded, got %d records", len(recorder.records))
	}
	rec := recorder.records[0]
	if rec.Status != core.UsageStatusError {
		t.Errorf("Expected error status, got %q", rec.Status)
	}
	if rec.ErrorMessage != "upstream unavailable" {
		t.Errorf("Unexpected error message: %q", rec.ErrorMessage)
	}
}

func TestEstimateCost(t *testing.T) {
	flash := EstimateCost("gemini-1.5-flash-latest", 1_000_000, 0)
	if flash != 0.075 {
		t.Errorf("Expected $0.075 for 1M flash input tokens, got %v", flash)
	}

	unknown := EstimateCost("some-future-model", 1_000_000, 0)
	if unknown != flash {
		t.Errorf("Unknown models should fall back to flash pricing, got %v", unknown)
	}
}

func TestEstimateTokenCount(t *testing.T) {
	if got := EstimateTokenCount(""); got != 0 {
		t.Errorf("Empty text should estimate 0 tokens, got %d", got)
	}
	if got := EstimateTokenCount("a seven char"); got == 0 {
		t.Error("Non-empty text should estimate a positive token count")
	}
}
