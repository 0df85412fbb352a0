package session

import (
	"encoding/json"
	"time"

	"github.com/turtacn/IPFiling-Assistant/internal/domain/filing"
	"github.com/turtacn/IPFiling-Assistant/pkg/errors"
)

// State is the wizard state of a filing session.
type State string

const (
	StateUnstarted       State = "unstarted"
	StateInProgress      State = "in_progress"
	StateReadyToFinalize State = "ready_to_finalize"
)

// IsValid reports whether s is a recognised state.
func (s State) IsValid() bool {
	switch s {
	case StateUnstarted, StateInProgress, StateReadyToFinalize:
		return true
	}
	return false
}

// Outcome is the result of a session operation. A rejected operation leaves
// the session unchanged; rejections are routine and never errors.
type Outcome struct {
	Accepted      bool             `json:"accepted"`
	Reason        string           `json:"reason,omitempty"`
	Code          errors.ErrorCode `json:"code,omitempty"`
	MissingFields []string         `json:"missingFields,omitempty"`
}

func accepted() Outcome { return Outcome{Accepted: true} }

func rejected(reason string) Outcome {
	return Outcome{Reason: reason, Code: errors.CodeInvalidState}
}

func rejectedMissing(reason string, missing []string) Outcome {
	return Outcome{Reason: reason, Code: errors.CodeInvalidState, MissingFields: missing}
}

func rejectedErr(err error) Outcome {
	var ae *errors.AppError
	if errors.As(err, &ae) {
		reason := ae.Message
		if ae.Detail != "" {
			reason += ": " + ae.Detail
		}
		return Outcome{Reason: reason, Code: ae.Code}
	}
	return Outcome{Reason: err.Error(), Code: errors.CodeInvalidState}
}

// Notice is a user-visible message about a collaborator failure or a
// discarded background result.
type Notice struct {
	Kind    TaskKind         `json:"kind"`
	Message string           `json:"message"`
	Code    errors.ErrorCode `json:"code,omitempty"`
	At      time.Time        `json:"at"`
}

// Snapshot is the serialisable state of a session.
type Snapshot struct {
	ID              string                     `json:"id"`
	OwnerID         string                     `json:"ownerId"`
	ApplicationID   string                     `json:"applicationId,omitempty"`
	FilingType      filing.FilingType          `json:"filingType"`
	Step            int                        `json:"step"`
	State           State                      `json:"state"`
	Record          json.RawMessage            `json:"record"`
	Uploads         []filing.UploadedFile      `json:"uploads"`
	Score           int                        `json:"score"`
	ComplianceScore *int                       `json:"complianceScore,omitempty"`
	DocumentScore   *int                       `json:"documentScore,omitempty"`
	Documents       []filing.GeneratedDocument `json:"documents"`
	Suggestions     map[string][]string        `json:"suggestions"`
	UpdatedAt       time.Time                  `json:"updatedAt"`
}

// View is the read model of a session returned to API callers.
type View struct {
	Snapshot
	StepCount int                     `json:"stepCount"`
	StepNames []string                `json:"stepNames"`
	Report    filing.ComplianceReport `json:"report"`
	Notices   []Notice                `json:"notices"`
}

//Personal.AI order the ending
