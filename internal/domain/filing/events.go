package filing

import (
	"github.com/turtacn/IPFiling-Assistant/pkg/types/common"
)

// EventType names a filing-session domain event.
type EventType string

const (
	EventSessionCreated     EventType = "session.created"
	EventFilingTypeSelected EventType = "session.filing_type_selected"
	EventStepAdvanced       EventType = "session.step_advanced"
	EventStepRetreated      EventType = "session.step_retreated"
	EventReadyToFinalize    EventType = "session.ready_to_finalize"
	EventRecordMerged       EventType = "session.record_merged"
	EventUploadAdded        EventType = "session.upload_added"
	EventUploadRemoved      EventType = "session.upload_removed"
	EventDocumentGenerated  EventType = "session.document_generated"
	EventSessionReset       EventType = "session.reset"
	EventApplicationSaved   EventType = "application.saved"
	EventApplicationDeleted EventType = "application.deleted"
)

// SessionEvent is published after a successful session operation. The
// aggregate id is the session id.
type SessionEvent struct {
	common.BaseEvent
	Type          EventType         `json:"type"`
	OwnerID       string            `json:"owner_id,omitempty"`
	ApplicationID string            `json:"application_id,omitempty"`
	FilingType    FilingType        `json:"filing_type,omitempty"`
	Step          int               `json:"step"`
	State         string            `json:"state,omitempty"`
	Score         int               `json:"score"`
	Attributes    map[string]string `json:"attributes,omitempty"`
}

// NewSessionEvent returns an event of type typ for the session sessionID.
func NewSessionEvent(typ EventType, sessionID string) *SessionEvent {
	return &SessionEvent{
		BaseEvent: common.NewBaseEvent(sessionID),
		Type:      typ,
	}
}

// With sets an attribute and returns e.
func (e *SessionEvent) With(key, value string) *SessionEvent {
	if e.Attributes == nil {
		e.Attributes = map[string]string{}
	}
	e.Attributes[key] = value
	return e
}

//Personal.AI order the ending
