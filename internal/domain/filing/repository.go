package filing

import (
	"context"
	"encoding/json"
	"time"
)

// Application is a persisted filing record. The store assigns ID and the
// timestamps.
type Application struct {
	ID            string          `json:"id"`
	OwnerID       string          `json:"ownerId"`
	FilingType    FilingType      `json:"filingType"`
	SchemaVersion int             `json:"schemaVersion"`
	Record        json.RawMessage `json:"record"`
	Uploads       []UploadedFile  `json:"uploads"`
	Score         int             `json:"score"`
	Step          int             `json:"step"`
	Version       int             `json:"version"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// NewApplication builds the persistence payload for r.
func NewApplication(ownerID string, r Record, uploads *UploadSet, score, step int) (*Application, error) {
	raw, err := MarshalRecord(r)
	if err != nil {
		return nil, err
	}
	app := &Application{
		OwnerID:       ownerID,
		SchemaVersion: SchemaVersion,
		Record:        raw,
		Uploads:       []UploadedFile{},
		Score:         score,
		Step:          step,
	}
	if r != nil {
		app.FilingType = r.FilingType()
	}
	if uploads != nil {
		app.Uploads = uploads.List()
	}
	return app, nil
}

// DecodeRecord decodes the stored record.
func (a *Application) DecodeRecord() (Record, error) {
	return UnmarshalRecord(a.FilingType, a.Record)
}

// ApplicationStore is the persistence port for applications.
type ApplicationStore interface {
	// Insert stores app and returns the id assigned by the store.
	Insert(ctx context.Context, app *Application) (string, error)
	// Update replaces the stored record of app.ID and returns the stored row.
	Update(ctx context.Context, app *Application) (*Application, error)
	FetchByID(ctx context.Context, id string) (*Application, error)
	FetchAllByOwner(ctx context.Context, ownerID string) ([]*Application, error)
	Delete(ctx context.Context, id string) error
}

//Personal.AI order the ending
