package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"

	"github.com/google/uuid"

	"github.com/turtacn/IPFiling-Assistant/internal/domain/filing"
	"github.com/turtacn/IPFiling-Assistant/internal/infrastructure/database/postgres"
	"github.com/turtacn/IPFiling-Assistant/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/IPFiling-Assistant/pkg/errors"
)

const applicationColumns = `id, owner_id, filing_type, schema_version, record, uploads, score, step, version, created_at, updated_at`

type postgresApplicationRepo struct {
	baseRepo
}

// NewPostgresApplicationRepo returns a filing.ApplicationStore backed by the
// filing_applications table.
func NewPostgresApplicationRepo(conn *postgres.Connection, log logging.Logger) filing.ApplicationStore {
	return &postgresApplicationRepo{
		baseRepo: baseRepo{conn: conn, log: log},
	}
}

func (r *postgresApplicationRepo) Insert(ctx context.Context, app *filing.Application) (string, error) {
	query := `
		INSERT INTO filing_applications (
			owner_id, filing_type, schema_version, record, uploads, score, step
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	uploads, err := encodeUploads(app.Uploads)
	if err != nil {
		return "", err
	}

	var id string
	err = r.executor().QueryRowContext(ctx, query,
		app.OwnerID, string(app.FilingType), app.SchemaVersion, recordJSON(app.Record), uploads, app.Score, app.Step,
	).Scan(&id)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to insert application")
	}
	r.log.Debug("application inserted", logging.String(logging.FieldRecordID, id))
	return id, nil
}

func (r *postgresApplicationRepo) Update(ctx context.Context, app *filing.Application) (*filing.Application, error) {
	if _, err := uuid.Parse(app.ID); err != nil {
		return nil, notFound(app.ID)
	}
	query := `
		UPDATE filing_applications SET
			filing_type = $2,
			schema_version = $3,
			record = $4,
			uploads = $5,
			score = $6,
			step = $7,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + applicationColumns
	uploads, err := encodeUploads(app.Uploads)
	if err != nil {
		return nil, err
	}

	row := r.executor().QueryRowContext(ctx, query,
		app.ID, string(app.FilingType), app.SchemaVersion, recordJSON(app.Record), uploads, app.Score, app.Step,
	)
	out, err := scanApplication(row)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, notFound(app.ID)
		}
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to update application")
	}
	return out, nil
}

func (r *postgresApplicationRepo) FetchByID(ctx context.Context, id string) (*filing.Application, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, notFound(id)
	}
	query := `SELECT ` + applicationColumns + ` FROM filing_applications WHERE id = $1`
	out, err := scanApplication(r.executor().QueryRowContext(ctx, query, id))
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, notFound(id)
		}
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to fetch application")
	}
	return out, nil
}

func (r *postgresApplicationRepo) FetchAllByOwner(ctx context.Context, ownerID string) ([]*filing.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM filing_applications WHERE owner_id = $1 ORDER BY updated_at DESC`
	rows, err := r.executor().QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list applications")
	}
	defer rows.Close()

	out := []*filing.Application{}
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan application")
		}
		out = append(out, app)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list applications")
	}
	return out, nil
}

func (r *postgresApplicationRepo) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return notFound(id)
	}
	res, err := r.executor().ExecContext(ctx, `DELETE FROM filing_applications WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to delete application")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to delete application")
	}
	if n == 0 {
		return notFound(id)
	}
	return nil
}

func scanApplication(row scanner) (*filing.Application, error) {
	var (
		app        filing.Application
		filingType string
		record     []byte
		uploads    []byte
	)
	err := row.Scan(
		&app.ID, &app.OwnerID, &filingType, &app.SchemaVersion, &record, &uploads,
		&app.Score, &app.Step, &app.Version, &app.CreatedAt, &app.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	app.FilingType = filing.FilingType(filingType)
	app.Record = json.RawMessage(record)
	app.Uploads = []filing.UploadedFile{}
	if len(uploads) > 0 {
		if err := json.Unmarshal(uploads, &app.Uploads); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode stored uploads")
		}
	}
	return &app, nil
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

func notFound(id string) error {
	return errors.New(errors.ErrCodeApplicationNotFound, "application not found").WithDetail(id)
}

//Personal.AI order the ending
