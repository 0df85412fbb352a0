// Package common holds the event and broker message types shared between the
// filing domain and the messaging infrastructure.
package common

import (
	"time"

	"github.com/google/uuid"
)

// ─────────────────────────────────────────────────────────────────────────────
// Domain events
// ─────────────────────────────────────────────────────────────────────────────

// DomainEvent is anything the session service publishes after a state change.
type DomainEvent interface {
	EventID() string
	OccurredAt() time.Time
	AggregateID() string
}

// BaseEvent carries the identity and timestamp every domain event shares.
// The event id doubles as the idempotency key downstream.
type BaseEvent struct {
	ID        string    `json:"event_id"`
	Timestamp time.Time `json:"occurred_at"`
	AggID     string    `json:"aggregate_id"`
}

// NewBaseEvent stamps a fresh id and the current UTC time for aggID.
func NewBaseEvent(aggID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		AggID:     aggID,
	}
}

func (e BaseEvent) EventID() string       { return e.ID }
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }
func (e BaseEvent) AggregateID() string   { return e.AggID }

// ─────────────────────────────────────────────────────────────────────────────
// Broker messages
// ─────────────────────────────────────────────────────────────────────────────

// ProducerMessage is one message handed to a message broker. Key selects the
// partition; session events are keyed by session id so a session's events
// stay ordered.
type ProducerMessage struct {
	Topic     string
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Partition int
	Timestamp time.Time
}

//Personal.AI order the ending
