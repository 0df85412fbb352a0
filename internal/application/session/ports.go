// Package session orchestrates filing sessions: the stateful controller that
// drives one wizard, and the service that manages sessions for the API.
package session

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/turtacn/IPFiling-Assistant/internal/domain/filing"
)

// SuggestionRequest is the structured prompt context sent to a suggestion
// provider.
type SuggestionRequest struct {
	FilingType filing.FilingType `json:"filingType"`
	Field      string            `json:"field"`
	Step       int               `json:"step"`
	StepName   string            `json:"stepName"`
	Record     json.RawMessage   `json:"record"`
	Count      int               `json:"count"`
}

// SuggestionProvider generates candidate text for a record field.
type SuggestionProvider interface {
	Suggest(ctx context.Context, req SuggestionRequest) ([]string, error)
}

// RenderedDocument is the output of a document renderer.
type RenderedDocument struct {
	Data      []byte
	MediaType string
	Extension string
}

// DocumentRenderer turns markdown content into a document byte stream.
type DocumentRenderer interface {
	Render(ctx context.Context, content string) (*RenderedDocument, error)
}

// BlobMetadata describes an object handed to the blob store.
type BlobMetadata struct {
	ContentType string
	FileName    string
	SessionID   string
	Category    string
}

// BlobStore stores upload and document bytes and returns a reference.
type BlobStore interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64, meta BlobMetadata) (string, error)
	Delete(ctx context.Context, ref string) error
}

// Locker serialises writes per key across processes.
type Locker interface {
	Lock(ctx context.Context, key string) (release func(context.Context) error, err error)
}

// SnapshotStore caches session snapshots so sessions outlive the process.
type SnapshotStore interface {
	Save(ctx context.Context, snap *Snapshot) error
	Load(ctx context.Context, id string) (*Snapshot, error)
	Delete(ctx context.Context, id string) error
}

// EventPublisher publishes session domain events.
type EventPublisher interface {
	Publish(ctx context.Context, ev *filing.SessionEvent) error
}

// Metrics records session activity.
type Metrics interface {
	RecordOperation(op string, accepted bool, d time.Duration)
	RecordScore(ft filing.FilingType, score int)
	RecordTask(kind TaskKind, outcome TaskOutcome)
	RecordUpload(ft filing.FilingType, category filing.UploadCategory, size int64)
	SetActiveSessions(n int)
}

type nopMetrics struct{}

func (nopMetrics) RecordOperation(string, bool, time.Duration)                  {}
func (nopMetrics) RecordScore(filing.FilingType, int)                           {}
func (nopMetrics) RecordTask(TaskKind, TaskOutcome)                             {}
func (nopMetrics) RecordUpload(filing.FilingType, filing.UploadCategory, int64) {}
func (nopMetrics) SetActiveSessions(int)                                        {}

//Personal.AI order the ending
