// Package batch drives per-item work over large backlogs in bounded
// concurrent batches with inter-batch pacing, isolating item failures and
// aggregating outcomes.
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"newsradar/internal/logger"
)

// DefaultBatchSize bounds the concurrent fan-out within one batch.
const DefaultBatchSize = 5

// DefaultPause is the delay inserted between batches (never between items)
// to stay under upstream rate limits.
const DefaultPause = 2 * time.Second

// Options configures a run.
type Options struct {
	BatchSize int           // Concurrent fan-out per batch; DefaultBatchSize when <= 0
	Pause     time.Duration // Delay between batches; no pause when <= 0
}

// ItemResult is the outcome for a single item, in input order.
type ItemResult struct {
	Index int   `json:"index"`
	Err   error `json:"-"`
}

// Tally aggregates a run's outcomes. It is always returned in full, never
// collapsed to a single boolean.
type Tally struct {
	Total     int          `json:"total"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Skipped   int          `json:"skipped"` // Items never dispatched because the run was stopped
	Batches   int          `json:"batches"`
	Items     []ItemResult `json:"items"`
}

// Errors returns the messages of all failed items, in input order.
func (t Tally) Errors() []string {
	var msgs []string
	for _, item := range t.Items {
		if item.Err != nil {
			msgs = append(msgs, fmt.Sprintf("item %d: %v", item.Index, item.Err))
		}
	}
	return msgs
}

// NumBatches returns how many batches a backlog of n items needs at the given
// batch size.
func NumBatches(n, batchSize int) int {
	if n <= 0 || batchSize <= 0 {
		return 0
	}
	return (n + batchSize - 1) / batchSize
}

// Run partitions items into ceil(N/B) batches in original order, dispatches
// each batch's items concurrently, waits for all of them, then pauses before
// the next batch. A failing item never aborts its siblings or later batches.
// Cancelling ctx stops the run after the in-flight batch completes; items
// already dispatched are not aborted, undispatched items are tallied as
// skipped.
func Run[T any](ctx context.Context, items []T, opts Options, process func(ctx context.Context, item T) error) Tally {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	tally := Tally{
		Total: len(items),
		Items: make([]ItemResult, len(items)),
	}
	for i := range tally.Items {
		tally.Items[i].Index = i
	}

	for start := 0; start < len(items); start += batchSize {
		if start > 0 && opts.Pause > 0 {
			select {
			case <-time.After(opts.Pause):
			case <-ctx.Done():
			}
		}

		// Skipped items keep a nil Err: they never ran, so they are neither
		// successes nor failures.
		if ctx.Err() != nil {
			tally.Skipped = len(items) - start
			logger.Warn("batch run stopped", "dispatched", start, "skipped", tally.Skipped)
			break
		}

		end := start + batchSize
		if end > len(items) {
			end = len(items)
		}
		tally.Batches++

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				tally.Items[idx].Err = runOne(ctx, items[idx], process)
			}(i)
		}
		wg.Wait()

		logger.Debug("batch completed", "batch", tally.Batches, "size", end-start)
	}

	for _, item := range tally.Items[:len(items)-tally.Skipped] {
		if item.Err != nil {
			tally.Failed++
		} else {
			tally.Succeeded++
		}
	}

	return tally
}

// runOne shields the run from a panicking process func: a panic is an item
// failure, not a run failure.
func runOne[T any](ctx context.Context, item T, process func(ctx context.Context, item T) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return process(ctx, item)
}
