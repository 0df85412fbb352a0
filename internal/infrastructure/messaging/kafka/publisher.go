package kafka

import (
	"context"

	"github.com/turtacn/IPFiling-Assistant/internal/application/session"
	"github.com/turtacn/IPFiling-Assistant/internal/domain/filing"
	"github.com/turtacn/IPFiling-Assistant/pkg/types/common"
)

// EventSource is the envelope source of session events.
const EventSource = "ipfiling-apiserver"

// MessagePublisher is the part of Producer the event publisher needs.
type MessagePublisher interface {
	Publish(ctx context.Context, msg *common.ProducerMessage) error
}

// EventPublisher publishes session events wrapped in an EventEnvelope, keyed
// by session id.
type EventPublisher struct {
	producer MessagePublisher
	topics   Topics
}

func NewEventPublisher(producer MessagePublisher, topics Topics) *EventPublisher {
	return &EventPublisher{producer: producer, topics: topics}
}

func (p *EventPublisher) Publish(ctx context.Context, ev *filing.SessionEvent) error {
	env, err := NewEventEnvelope(string(ev.Type), EventSource, ev)
	if err != nil {
		return err
	}
	env.EventID = ev.EventID()
	env.Timestamp = ev.OccurredAt()
	if ev.OwnerID != "" {
		env.Metadata = map[string]string{"owner_id": ev.OwnerID}
	}

	msg, err := env.ToMessage(p.topics.ForEvent(ev.Type), ev.AggregateID())
	if err != nil {
		return err
	}
	return p.producer.Publish(ctx, msg)
}

var _ session.EventPublisher = (*EventPublisher)(nil)

//Personal.AI order the ending
