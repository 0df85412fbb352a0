// Package sqlite provides a single-file application store for local and
// single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/turtacn/IPFiling-Assistant/internal/domain/filing"
	"github.com/turtacn/IPFiling-Assistant/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/IPFiling-Assistant/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS filing_applications (
	id             TEXT PRIMARY KEY,
	owner_id       TEXT NOT NULL,
	filing_type    TEXT NOT NULL,
	schema_version INTEGER NOT NULL DEFAULT 1,
	record         TEXT NOT NULL DEFAULT '{}',
	uploads        TEXT NOT NULL DEFAULT '[]',
	score          INTEGER NOT NULL DEFAULT 0,
	step           INTEGER NOT NULL DEFAULT 1,
	version        INTEGER NOT NULL DEFAULT 1,
	created_at     TEXT NOT NULL,
	updated_at     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_filing_applications_owner
	ON filing_applications (owner_id, updated_at);
`

const columns = `id, owner_id, filing_type, schema_version, record, uploads, score, step, version, created_at, updated_at`

// Store implements filing.ApplicationStore on SQLite.
type Store struct {
	db  *sqlx.DB
	log logging.Logger
	now func() time.Time
}

type applicationRow struct {
	ID            string `db:"id"`
	OwnerID       string `db:"owner_id"`
	FilingType    string `db:"filing_type"`
	SchemaVersion int    `db:"schema_version"`
	Record        string `db:"record"`
	Uploads       string `db:"uploads"`
	Score         int    `db:"score"`
	Step          int    `db:"step"`
	Version       int    `db:"version"`
	CreatedAt     string `db:"created_at"`
	UpdatedAt     string `db:"updated_at"`
}

// Open opens (creating if needed) the database at path and ensures the
// schema exists.
func Open(path string, log logging.Logger) (*Store, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "open sqlite")
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "create schema")
	}
	log.Info("Opened SQLite application store", logging.String("path", path))
	return &Store{db: db, log: log, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// HealthCheck pings the database.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "sqlite health check failed")
	}
	return nil
}

func (s *Store) Insert(ctx context.Context, app *filing.Application) (string, error) {
	uploads, err := encodeUploads(app.Uploads)
	if err != nil {
		return "", err
	}
	id := uuid.New().String()
	now := formatTime(s.now())
	_, err = s.db.ExecContext(ctx, `INSERT INTO filing_applications (`+columns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		id, app.OwnerID, string(app.FilingType), app.SchemaVersion, recordJSON(app.Record), uploads,
		app.Score, app.Step, now, now)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to insert application")
	}
	return id, nil
}

func (s *Store) Update(ctx context.Context, app *filing.Application) (*filing.Application, error) {
	uploads, err := encodeUploads(app.Uploads)
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE filing_applications SET
			filing_type = ?, schema_version = ?, record = ?, uploads = ?, score = ?, step = ?,
			version = version + 1, updated_at = ?
		WHERE id = ?`,
		string(app.FilingType), app.SchemaVersion, recordJSON(app.Record), uploads, app.Score, app.Step,
		formatTime(s.now()), app.ID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to update application")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, notFound(app.ID)
	}
	return s.FetchByID(ctx, app.ID)
}

func (s *Store) FetchByID(ctx context.Context, id string) (*filing.Application, error) {
	var row applicationRow
	err := s.db.GetContext(ctx, &row, `SELECT `+columns+` FROM filing_applications WHERE id = ?`, id)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, notFound(id)
		}
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to fetch application")
	}
	return row.toApplication()
}

func (s *Store) FetchAllByOwner(ctx context.Context, ownerID string) ([]*filing.Application, error) {
	var rows []applicationRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT `+columns+` FROM filing_applications WHERE owner_id = ? ORDER BY updated_at DESC`, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list applications")
	}
	out := make([]*filing.Application, 0, len(rows))
	for _, r := range rows {
		app, err := r.toApplication()
		if err != nil {
			return nil, err
		}
		out = append(out, app)
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM filing_applications WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to delete application")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(id)
	}
	return nil
}

func (r applicationRow) toApplication() (*filing.Application, error) {
	app := &filing.Application{
		ID:            r.ID,
		OwnerID:       r.OwnerID,
		FilingType:    filing.FilingType(r.FilingType),
		SchemaVersion: r.SchemaVersion,
		Record:        json.RawMessage(r.Record),
		Uploads:       []filing.UploadedFile{},
		Score:         r.Score,
		Step:          r.Step,
		Version:       r.Version,
	}
	if err := json.Unmarshal([]byte(r.Uploads), &app.Uploads); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode stored uploads")
	}
	var err error
	if app.CreatedAt, err = parseTime(r.CreatedAt); err != nil {
		return nil, err
	}
	if app.UpdatedAt, err = parseTime(r.UpdatedAt); err != nil {
		return nil, err
	}
	return app, nil
}

func encodeUploads(files []filing.UploadedFile) (string, error) {
	if files == nil {
		files = []filing.UploadedFile{}
	}
	b, err := json.Marshal(files)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode uploads")
	}
	return string(b), nil
}

func recordJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	return string(raw)
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, errors.Wrap(err, errors.ErrCodeSerialization, fmt.Sprintf("bad timestamp %q", s))
	}
	return t, nil
}

func notFound(id string) error {
	return errors.New(errors.ErrCodeApplicationNotFound, "application not found").WithDetail(id)
}

var _ filing.ApplicationStore = (*Store)(nil)

//Personal.AI order the ending
