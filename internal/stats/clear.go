package stats

import (
	"context"
	"fmt"
	"time"
)

// ClearAll deletes every document across the fixed collection list and
// re-initializes the counter records to zero. It is irreversible; the
// interactive double confirmation lives with the caller (cmd/reset), not
// here. A failure mid-way leaves a partially cleared dataset, which is
// acceptable only because this is an explicit, rare operator action.
func (e *Engine) ClearAll(ctx context.Context) (map[string]int, error) {
	deleted := make(map[string]int, len(AllCollections))

	for _, col := range AllCollections {
		n, err := e.sources.Clear(ctx, col)
		deleted[col] = n
		if err != nil {
			return deleted, fmt.Errorf("clear all: collection %s: %w", col, err)
		}
		e.log.Info().Str("collection", col).Int("deleted", n).Msg("Collection cleared")
	}

	if err := e.counters.SetTotals(ctx, Totals{UpdatedAt: time.Now().UTC()}); err != nil {
		return deleted, fmt.Errorf("clear all: reset totals: %w", err)
	}
	if err := e.counters.SetGeo(ctx, GeoStats{}); err != nil {
		return deleted, fmt.Errorf("clear all: reset geo stats: %w", err)
	}

	e.log.Info().Msg("All collections cleared and counters reset")
	return deleted, nil
}
