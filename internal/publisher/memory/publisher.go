// Package memory contains an in-process publisher used in tests and
// dry runs.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// Publisher retains published page events for inspection.
type Publisher struct {
	mu      sync.RWMutex
	records []Record
}

// Record captures one publish call.
type Record struct {
	Topic   string
	Payload any
}

// New returns an empty Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records the event and returns a sequence-stamped pseudo ID.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, Record{Topic: topic, Payload: payload})
	return fmt.Sprintf("mem-%d", len(p.records)), nil
}

// Records returns a copy of the recorded publishes.
func (p *Publisher) Records() []Record {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Record, len(p.records))
	copy(out, p.records)
	return out
}
