// Package audit consumes the session and application event streams and
// keeps an audit trail of filing activity.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/turtacn/IPFiling-Assistant/internal/domain/filing"
	kafkainfra "github.com/turtacn/IPFiling-Assistant/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/IPFiling-Assistant/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/IPFiling-Assistant/pkg/errors"
)

// DefaultDedupeWindow is the number of recent event ids remembered to drop
// redeliveries.
const DefaultDedupeWindow = 4096

// EventRecorder counts consumed events.
type EventRecorder interface {
	RecordEvent(topic, eventType string)
}

// Subscriber is the part of the Kafka consumer the handler registers with.
type Subscriber interface {
	Subscribe(topic string, handler kafkainfra.MessageHandler)
}

// Stats summarises the events seen since start. Scores holds the last
// reported readiness score per saved application.
type Stats struct {
	Total      int64            `json:"total"`
	Duplicates int64            `json:"duplicates"`
	ByType     map[string]int64 `json:"byType"`
	Scores     map[string]int   `json:"scores"`
	LastSeen   time.Time        `json:"lastSeen"`
}

// Handler writes one audit log entry per distinct event.
type Handler struct {
	logger  logging.Logger
	metrics EventRecorder

	mu     sync.Mutex
	seen   map[string]struct{}
	order  []string
	next   int
	window int
	stats  Stats
}

// NewHandler creates a Handler. metrics may be nil.
func NewHandler(logger logging.Logger, metrics EventRecorder, window int) *Handler {
	if window <= 0 {
		window = DefaultDedupeWindow
	}
	return &Handler{
		logger:  logger.Named("audit"),
		metrics: metrics,
		seen:    make(map[string]struct{}, window),
		order:   make([]string, window),
		window:  window,
		stats:   Stats{ByType: map[string]int64{}, Scores: map[string]int{}},
	}
}

// Register subscribes the handler to every event topic.
func (h *Handler) Register(s Subscriber, topics kafkainfra.Topics) {
	for _, t := range topics.Events() {
		s.Subscribe(t, h.Handle)
	}
}

// Handle consumes one message. Undecodable messages return an error so the
// consumer retries and dead-letters them.
func (h *Handler) Handle(ctx context.Context, msg *kafkainfra.Message) error {
	env, err := kafkainfra.MessageToEventEnvelope(msg)
	if err != nil {
		return err
	}
	if env.SchemaVersion != kafkainfra.EnvelopeSchemaVersion {
		h.logger.Warn("unexpected envelope schema version",
			logging.String("schema_version", env.SchemaVersion),
			logging.String("event_id", env.EventID))
	}
	var ev filing.SessionEvent
	if err := env.DecodePayload(&ev); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "undecodable session event").WithDetail(env.EventID)
	}

	if !h.observe(env.EventID, &ev) {
		h.logger.Debug("duplicate event dropped", logging.String("event_id", env.EventID))
		return nil
	}
	if h.metrics != nil {
		h.metrics.RecordEvent(msg.Topic, env.EventType)
	}

	fields := []logging.Field{
		logging.String("event_id", env.EventID),
		logging.String("event_type", env.EventType),
		logging.String("topic", msg.Topic),
		logging.String(logging.FieldSessionID, ev.AggregateID()),
		logging.String("owner_id", ev.OwnerID),
		logging.Int(logging.FieldStep, ev.Step),
		logging.Int("score", ev.Score),
	}
	if ev.ApplicationID != "" {
		fields = append(fields, logging.String(logging.FieldRecordID, ev.ApplicationID))
	}
	if ev.FilingType != filing.FilingTypeUnset {
		fields = append(fields, logging.String(logging.FieldFilingType, string(ev.FilingType)))
	}
	h.logger.Info("filing event", fields...)
	return nil
}

// observe records ev under id and reports whether it was new.
func (h *Handler) observe(id string, ev *filing.SessionEvent) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if id != "" {
		if _, dup := h.seen[id]; dup {
			h.stats.Duplicates++
			return false
		}
		if old := h.order[h.next]; old != "" {
			delete(h.seen, old)
		}
		h.order[h.next] = id
		h.next = (h.next + 1) % h.window
		h.seen[id] = struct{}{}
	}

	h.stats.Total++
	h.stats.ByType[string(ev.Type)]++
	switch ev.Type {
	case filing.EventApplicationSaved:
		if ev.ApplicationID != "" {
			h.stats.Scores[ev.ApplicationID] = ev.Score
		}
	case filing.EventApplicationDeleted:
		delete(h.stats.Scores, ev.ApplicationID)
	}
	if t := ev.OccurredAt(); t.After(h.stats.LastSeen) {
		h.stats.LastSeen = t
	}
	return true
}

// Stats returns a copy of the running totals.
func (h *Handler) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := h.stats
	out.ByType = make(map[string]int64, len(h.stats.ByType))
	for k, v := range h.stats.ByType {
		out.ByType[k] = v
	}
	out.Scores = make(map[string]int, len(h.stats.Scores))
	for k, v := range h.stats.Scores {
		out.Scores[k] = v
	}
	return out
}

//Personal.AI order the ending
