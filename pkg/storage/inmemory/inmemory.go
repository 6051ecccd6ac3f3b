package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/papercomputeco/patchbay/pkg/storage"
)

// Driver implements storage.Driver using an in-memory slice.
// Useful for tests and for running the gateway without persistence.
type Driver struct {
	// mu is a read write sync mutex for locking the record slice
	mu sync.RWMutex

	// records holds every recorded usage row in insertion order
	records []*storage.UsageRecord
}

// NewDriver creates a new in-memory usage ledger.
func NewDriver() *Driver {
	return &Driver{}
}

// RecordUsage appends a record to the ledger.
func (d *Driver) RecordUsage(_ context.Context, rec *storage.UsageRecord) error {
	if rec == nil {
		return storage.ErrNilRecord
	}
	rec.Stamp()

	d.mu.Lock()
	defer d.mu.Unlock()

	d.records = append(d.records, rec)
	return nil
}

// RecentUsage returns up to limit records, most recent first.
func (d *Driver) RecentUsage(_ context.Context, limit int) ([]*storage.UsageRecord, error) {
	if limit <= 0 {
		limit = storage.DefaultRecentLimit
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	sorted := make([]*storage.UsageRecord, len(d.records))
	copy(sorted, d.records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted, nil
}

// Totals aggregates the whole ledger.
func (d *Driver) Totals(_ context.Context) (*storage.Totals, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	t := &storage.Totals{Requests: len(d.records)}
	for _, rec := range d.records {
		t.PromptTokens += rec.PromptTokens
		t.CompletionTokens += rec.CompletionTokens
		t.TotalTokens += rec.TotalTokens
	}
	return t, nil
}

// Count returns the number of records in the in-memory ledger.
func (d *Driver) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.records)
}

// Close is a no-op for the in-memory ledger.
func (d *Driver) Close() error {
	return nil
}

// Ensure Driver implements storage.Driver
var _ storage.Driver = (*Driver)(nil)
