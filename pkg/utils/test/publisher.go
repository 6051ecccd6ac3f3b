package testutils

import (
	"context"
	"fmt"
	"sync"

	"github.com/papercomputeco/patchbay/pkg/eventstream"
)

// MockPublisher is a test publisher that captures published usage events
type MockPublisher struct {
	mu     sync.Mutex
	events []*eventstream.UsageRecordedEvent

	// FailOn causes PublishUsage to return an error when the record ID matches
	FailOn string

	closed bool
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		events: make([]*eventstream.UsageRecordedEvent, 0),
	}
}

func (m *MockPublisher) PublishUsage(_ context.Context, event *eventstream.UsageRecordedEvent) error {
	if event == nil {
		return eventstream.ErrNilUsageEvent
	}

	if m.FailOn != "" && event.Record != nil && event.Record.ID == m.FailOn {
		return fmt.Errorf("mock publish failure for: %s", event.Record.ID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Events returns a copy of the captured events.
func (m *MockPublisher) Events() []*eventstream.UsageRecordedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*eventstream.UsageRecordedEvent, len(m.events))
	copy(out, m.events)
	return out
}

func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockPublisher) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
