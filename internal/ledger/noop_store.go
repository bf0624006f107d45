package ledger

import (
	"context"
	"time"

	"github.com/claudette-ai/claudette/internal/model"
)

// NoopStore satisfies Store for processes with no backing storage at all:
// every write is a no-op, every read returns empty/zero, and nothing ever
// errors.
type NoopStore struct{}

func (NoopStore) AppendQuota(context.Context, model.LedgerEntry) error { return nil }

func (NoopStore) RecentEntries(context.Context, time.Time) ([]model.LedgerEntry, error) {
	return nil, nil
}

func (NoopStore) DailyAggregates(context.Context, int) ([]model.Aggregate, error) {
	return nil, nil
}

func (NoopStore) HourlyAggregates(context.Context, int) ([]model.Aggregate, error) {
	return nil, nil
}

func (NoopStore) UpdateBackendMetrics(context.Context, string, float64, bool, float64) error {
	return nil
}

func (NoopStore) Sweep(context.Context, model.RetentionPolicy) error { return nil }
