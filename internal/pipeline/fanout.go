package pipeline

import (
	"context"
	"fmt"

	"github.com/couchcryptid/storm-data-shared/retry"

	"github.com/alexandrecuer/postprocess/internal/process"
)

// Fanout is a BatchLoader that hands every batch to several loaders.
type Fanout []BatchLoader

// LoadBatch implements BatchLoader. Each loader receives the batch once: a
// loader that fails is retried with backoff on its own until it succeeds or
// ctx is done, without resending to the loaders that already took it.
func (f Fanout) LoadBatch(ctx context.Context, results []process.Result) error {
	pending := make([]BatchLoader, len(f))
	copy(pending, f)

	backoff := initialBackoff
	for {
		var failed []BatchLoader
		var lastErr error
		for _, l := range pending {
			if err := l.LoadBatch(ctx, results); err != nil {
				failed = append(failed, l)
				lastErr = err
			}
		}
		if len(failed) == 0 {
			return nil
		}
		pending = failed
		if !retry.SleepWithContext(ctx, backoff) {
			return fmt.Errorf("%d of %d loaders failed: %w", len(failed), len(f), lastErr)
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
}
