package sqlite

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/IPFiling-Assistant/internal/domain/filing"
	"github.com/turtacn/IPFiling-Assistant/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/IPFiling-Assistant/pkg/errors"
)

func newTestStore(t *testing.T) (*Store, *time.Time) {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "apps.db"), logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	return s, &now
}

func sampleApp(owner string) *filing.Application {
	return &filing.Application{
		OwnerID:       owner,
		FilingType:    filing.FilingTypeTrademark,
		SchemaVersion: filing.SchemaVersion,
		Record:        json.RawMessage(`{"markText":"ACME"}`),
		Uploads: []filing.UploadedFile{{
			ID: "u1", Name: "logo.png", MediaType: "image/png", Size: 12, Category: filing.CategoryLogo,
		}},
		Score: 30,
		Step:  2,
	}
}

func TestStore_InsertFetch(t *testing.T) {
	s, now := newTestStore(t)
	ctx := context.Background()

	id, err := s.Insert(ctx, sampleApp("owner-1"))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	app, err := s.FetchByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "owner-1", app.OwnerID)
	assert.Equal(t, filing.FilingTypeTrademark, app.FilingType)
	assert.Equal(t, 1, app.Version)
	assert.Equal(t, 30, app.Score)
	assert.Equal(t, 2, app.Step)
	assert.JSONEq(t, `{"markText":"ACME"}`, string(app.Record))
	require.Len(t, app.Uploads, 1)
	assert.Equal(t, "logo.png", app.Uploads[0].Name)
	assert.True(t, app.CreatedAt.Equal(*now))
}

func TestStore_UpdateBumpsVersion(t *testing.T) {
	s, now := newTestStore(t)
	ctx := context.Background()
	id, err := s.Insert(ctx, sampleApp("owner-1"))
	require.NoError(t, err)

	*now = now.Add(time.Hour)
	app := sampleApp("owner-1")
	app.ID = id
	app.Score = 55
	app.Uploads = nil
	got, err := s.Update(ctx, app)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, 55, got.Score)
	assert.NotNil(t, got.Uploads)
	assert.Empty(t, got.Uploads)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))

	app.ID = "missing"
	_, err = s.Update(ctx, app)
	assert.True(t, errors.IsCode(err, errors.ErrCodeApplicationNotFound))
}

func TestStore_FetchAllByOwnerNewestFirst(t *testing.T) {
	s, now := newTestStore(t)
	ctx := context.Background()

	first, err := s.Insert(ctx, sampleApp("owner-1"))
	require.NoError(t, err)
	*now = now.Add(time.Minute)
	second, err := s.Insert(ctx, sampleApp("owner-1"))
	require.NoError(t, err)
	_, err = s.Insert(ctx, sampleApp("owner-2"))
	require.NoError(t, err)

	apps, err := s.FetchAllByOwner(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, apps, 2)
	assert.Equal(t, second, apps[0].ID)
	assert.Equal(t, first, apps[1].ID)

	apps, err = s.FetchAllByOwner(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, apps)
	assert.Empty(t, apps)
}

func TestStore_Delete(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	id, err := s.Insert(ctx, sampleApp("owner-1"))
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, id))
	_, err = s.FetchByID(ctx, id)
	assert.True(t, errors.IsCode(err, errors.ErrCodeApplicationNotFound))
	assert.True(t, errors.IsCode(s.Delete(ctx, id), errors.ErrCodeApplicationNotFound))
}

func TestStore_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.db")
	s, err := Open(path, logging.NewNopLogger())
	require.NoError(t, err)
	id, err := s.Insert(context.Background(), sampleApp("owner-1"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path, logging.NewNopLogger())
	require.NoError(t, err)
	defer s.Close()
	app, err := s.FetchByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, app.ID)
	assert.NoError(t, s.HealthCheck(context.Background()))
}

//Personal.AI order the ending
