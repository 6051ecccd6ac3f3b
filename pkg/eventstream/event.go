package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/patchbay/pkg/storage"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeUsageRecorded is emitted after a chat completion's usage is persisted.
	EventTypeUsageRecorded = "patchbay.usage.recorded"
)

// UsageRecordedEvent is a transport-neutral event payload for recorded usage.
type UsageRecordedEvent struct {
	SchemaVersion int                  `json:"schema_version"`
	EventType     string               `json:"event_type"`
	EventID       string               `json:"event_id"`
	EmittedAt     time.Time            `json:"emitted_at"`
	Source        EventSource          `json:"source"`
	Record        *storage.UsageRecord `json:"record"`
}

// EventSource identifies the gateway deployment and backend the usage came from.
type EventSource struct {
	Service   string `json:"service"`
	ProjectID string `json:"project_id,omitempty"`
	Region    string `json:"region,omitempty"`
}

// NewUsageRecorded wraps a ledger record in a v1 event envelope with a fresh
// event ID and emission timestamp.
func NewUsageRecorded(source EventSource, rec *storage.UsageRecord) *UsageRecordedEvent {
	return &UsageRecordedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeUsageRecorded,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source:        source,
		Record:        rec,
	}
}
