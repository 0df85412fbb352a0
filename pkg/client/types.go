package client

import (
	"encoding/json"
	"time"
)

// Filing types.
const (
	FilingTypePatent    = "patent"
	FilingTypeTrademark = "trademark"
)

// Session states.
const (
	StateUnstarted       = "unstarted"
	StateInProgress      = "in_progress"
	StateReadyToFinalize = "ready_to_finalize"
)

// Outcome is the result of a session operation. Rejections are not errors.
type Outcome struct {
	Accepted      bool     `json:"accepted"`
	Reason        string   `json:"reason,omitempty"`
	Code          string   `json:"code,omitempty"`
	MissingFields []string `json:"missingFields,omitempty"`
}

// UploadedFile describes an accepted upload.
type UploadedFile struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	MediaType  string    `json:"mediaType"`
	Size       int64     `json:"size"`
	Category   string    `json:"category"`
	BlobRef    string    `json:"blobRef"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// GeneratedDocument is a document produced for a session.
type GeneratedDocument struct {
	Kind        string    `json:"kind"`
	MediaType   string    `json:"mediaType"`
	Size        int64     `json:"size"`
	BlobRef     string    `json:"blobRef,omitempty"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// Notice is a user-visible message about a background failure.
type Notice struct {
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	Code    string    `json:"code,omitempty"`
	At      time.Time `json:"at"`
}

// RequirementCheck is one jurisdiction rule evaluated against the record.
type RequirementCheck struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Detail      string `json:"detail,omitempty"`
}

// JurisdictionReport groups the checks of one office.
type JurisdictionReport struct {
	Code   string             `json:"code"`
	Name   string             `json:"name"`
	Checks []RequirementCheck `json:"checks"`
}

// ComplianceReport is the compliance evaluation of a record.
type ComplianceReport struct {
	FilingType    string               `json:"filingType"`
	Jurisdictions []JurisdictionReport `json:"jurisdictions"`
}

// Session is the read model of a filing session.
type Session struct {
	ID              string              `json:"id"`
	OwnerID         string              `json:"ownerId"`
	ApplicationID   string              `json:"applicationId,omitempty"`
	FilingType      string              `json:"filingType"`
	Step            int                 `json:"step"`
	State           string              `json:"state"`
	Record          json.RawMessage     `json:"record"`
	Uploads         []UploadedFile      `json:"uploads"`
	Score           int                 `json:"score"`
	ComplianceScore *int                `json:"complianceScore,omitempty"`
	DocumentScore   *int                `json:"documentScore,omitempty"`
	Documents       []GeneratedDocument `json:"documents"`
	Suggestions     map[string][]string `json:"suggestions"`
	UpdatedAt       time.Time           `json:"updatedAt"`
	StepCount       int                 `json:"stepCount"`
	StepNames       []string            `json:"stepNames"`
	Report          ComplianceReport    `json:"report"`
	Notices         []Notice            `json:"notices"`
}

// Mutation is the answer to a session operation.
type Mutation struct {
	Outcome Outcome  `json:"outcome"`
	Session *Session `json:"session"`
}

func (*Mutation) carriesOutcome() {}

// StepResult reports whether a step's required fields are filled.
type StepResult struct {
	Valid         bool     `json:"isValid"`
	MissingFields []string `json:"missingFields"`
}

// Document is the portable export form of a record.
type Document struct {
	FilingType    string          `json:"filingType"`
	SchemaVersion int             `json:"schemaVersion"`
	Fields        json.RawMessage `json:"fields"`
}

// Application is a saved filing.
type Application struct {
	ID            string          `json:"id"`
	OwnerID       string          `json:"ownerId"`
	FilingType    string          `json:"filingType"`
	SchemaVersion int             `json:"schemaVersion"`
	Record        json.RawMessage `json:"record"`
	Uploads       []UploadedFile  `json:"uploads"`
	Score         int             `json:"score"`
	Step          int             `json:"step"`
	Version       int             `json:"version"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// ApplicationList is a page of saved applications.
type ApplicationList struct {
	Items []Application `json:"items"`
	Total int           `json:"total"`
}

//Personal.AI order the ending
