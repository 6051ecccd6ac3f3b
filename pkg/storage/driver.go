// Package storage
package storage

import (
	"context"
)

// DefaultRecentLimit is the number of records RecentUsage returns when the
// caller passes a limit of zero or less.
const DefaultRecentLimit = 50

// Driver defines the interface for persisting and querying the usage ledger.
// The gateway records one UsageRecord per completed request; the usage API
// and MCP tools read the ledger back through the same interface.
type Driver interface {
	// RecordUsage appends a record to the ledger. The record's ID and
	// CreatedAt are filled when unset.
	RecordUsage(ctx context.Context, rec *UsageRecord) error

	// RecentUsage returns up to limit records, most recent first.
	// A limit of zero or less means DefaultRecentLimit.
	RecentUsage(ctx context.Context, limit int) ([]*UsageRecord, error)

	// Totals aggregates the whole ledger.
	Totals(ctx context.Context) (*Totals, error)

	// Close closes the ledger and releases any resources.
	Close() error
}
