package testutil

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/IPFiling-Assistant/internal/domain/filing"
	"github.com/turtacn/IPFiling-Assistant/pkg/errors"
)

// MemoryApplicationStore is an in-memory filing.ApplicationStore. Like the SQL
// stores it bumps Version on every Update without comparing it; callers
// serialize writes per application.
type MemoryApplicationStore struct {
	mu   sync.Mutex
	apps map[string]*filing.Application
	Err  error
}

// NewMemoryApplicationStore returns an empty store.
func NewMemoryApplicationStore() *MemoryApplicationStore {
	return &MemoryApplicationStore{apps: make(map[string]*filing.Application)}
}

func (s *MemoryApplicationStore) Insert(ctx context.Context, app *filing.Application) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return "", s.Err
	}
	cp := copyApplication(app)
	cp.ID = uuid.New().String()
	cp.Version = 1
	cp.CreatedAt = time.Now().UTC()
	cp.UpdatedAt = cp.CreatedAt
	s.apps[cp.ID] = cp
	return cp.ID, nil
}

func (s *MemoryApplicationStore) Update(ctx context.Context, app *filing.Application) (*filing.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	cur, ok := s.apps[app.ID]
	if !ok {
		return nil, errors.New(errors.ErrCodeApplicationNotFound, "application not found").WithDetail(app.ID)
	}
	cp := copyApplication(app)
	cp.Version = cur.Version + 1
	cp.CreatedAt = cur.CreatedAt
	cp.UpdatedAt = time.Now().UTC()
	s.apps[cp.ID] = cp
	return copyApplication(cp), nil
}

func (s *MemoryApplicationStore) FetchByID(ctx context.Context, id string) (*filing.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	app, ok := s.apps[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeApplicationNotFound, "application not found").WithDetail(id)
	}
	return copyApplication(app), nil
}

func (s *MemoryApplicationStore) FetchAllByOwner(ctx context.Context, ownerID string) ([]*filing.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := []*filing.Application{}
	for _, app := range s.apps {
		if app.OwnerID == ownerID {
			out = append(out, copyApplication(app))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *MemoryApplicationStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.apps[id]; !ok {
		return errors.New(errors.ErrCodeApplicationNotFound, "application not found").WithDetail(id)
	}
	delete(s.apps, id)
	return nil
}

// Len returns the number of stored applications.
func (s *MemoryApplicationStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.apps)
}

func copyApplication(app *filing.Application) *filing.Application {
	cp := *app
	cp.Record = append(json.RawMessage(nil), app.Record...)
	cp.Uploads = append([]filing.UploadedFile{}, app.Uploads...)
	return &cp
}

var _ filing.ApplicationStore = (*MemoryApplicationStore)(nil)

//Personal.AI order the ending
