package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/IPFiling-Assistant/internal/domain/filing"
	"github.com/turtacn/IPFiling-Assistant/internal/testutil"
	"github.com/turtacn/IPFiling-Assistant/pkg/errors"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, ev *filing.SessionEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*filing.SessionEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, ev *filing.SessionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []filing.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]filing.EventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type memSnapshots struct {
	mu    sync.Mutex
	snaps map[string]Snapshot
}

func newMemSnapshots() *memSnapshots { return &memSnapshots{snaps: map[string]Snapshot{}} }

func (m *memSnapshots) Save(ctx context.Context, snap *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[snap.ID] = *snap
	return nil
}

func (m *memSnapshots) Load(ctx context.Context, id string) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snaps[id]
	if !ok {
		return nil, errors.NotFound("snapshot not found")
	}
	return &snap, nil
}

func (m *memSnapshots) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snaps, id)
	return nil
}

type serviceFixture struct {
	svc       *Service
	store     *testutil.MemoryApplicationStore
	blobs     *memBlobs
	snapshots *memSnapshots
	pub       *recordingPublisher
	logger    *testutil.MockLogger
}

func newServiceFixture(t *testing.T, mutate ...func(*ServiceConfig)) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		store:     testutil.NewMemoryApplicationStore(),
		blobs:     newMemBlobs(),
		snapshots: newMemSnapshots(),
		pub:       &recordingPublisher{},
		logger:    testutil.NewMockLogger(),
	}
	cfg := ServiceConfig{
		Store:     f.store,
		Snapshots: f.snapshots,
		Publisher: f.pub,
		Blobs:     f.blobs,
		Logger:    f.logger,
	}
	for _, fn := range mutate {
		fn(&cfg)
	}
	svc, err := NewService(cfg)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func logoCandidate(size int64) filing.UploadCandidate {
	return filing.UploadCandidate{Name: "logo.png", MediaType: "image/png", Size: size, Category: filing.CategoryLogo}
}

func TestNewService_RequiresCollaborators(t *testing.T) {
	_, err := NewService(ServiceConfig{Logger: testutil.NewNopLogger()})
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))

	_, err = NewService(ServiceConfig{Store: testutil.NewMemoryApplicationStore()})
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))

	svc, err := NewService(ServiceConfig{Store: testutil.NewMemoryApplicationStore(), Logger: testutil.NewNopLogger()})
	require.NoError(t, err)
	assert.Equal(t, filing.DefaultUploadPolicy().MaxBytes, svc.UploadPolicy().MaxBytes)
}

func TestService_CreateAndGet(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, "", filing.FilingTypePatent)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
	_, err = f.svc.Create(ctx, "owner-1", filing.FilingType("design"))
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidFilingType))

	view, err := f.svc.Create(ctx, "owner-1", filing.FilingTypePatent)
	require.NoError(t, err)
	assert.Equal(t, StateInProgress, view.State)
	assert.Equal(t, 4, view.StepCount)
	assert.Equal(t, 0, view.Score)

	got, err := f.svc.Get(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, view.ID, got.ID)
	assert.Equal(t, "owner-1", got.OwnerID)
	assert.Equal(t, 1, f.svc.ActiveSessions())
	assert.Equal(t, []filing.EventType{filing.EventSessionCreated}, f.pub.types())

	_, err = f.svc.Get(ctx, "nope")
	assert.True(t, errors.IsCode(err, errors.ErrCodeSessionNotFound))
}

func TestService_WizardFlowPublishesEvents(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	view, err := f.svc.Create(ctx, "owner-1", filing.FilingTypeUnset)
	require.NoError(t, err)
	id := view.ID

	out, _, err := f.svc.SelectFilingType(ctx, id, filing.FilingTypePatent)
	require.NoError(t, err)
	require.True(t, out.Accepted)

	out, v, err := f.svc.AdvanceStep(ctx, id)
	require.NoError(t, err)
	assert.False(t, out.Accepted)
	assert.Len(t, out.MissingFields, 4)
	assert.Equal(t, 1, v.Step)

	for _, m := range []map[string]interface{}{patentStep1(), patentStep2(), patentClaims()} {
		out, _, err = f.svc.MergeFields(ctx, id, mustPatch(t, m))
		require.NoError(t, err)
		require.True(t, out.Accepted)
	}
	for i := 0; i < 4; i++ {
		out, v, err = f.svc.AdvanceStep(ctx, id)
		require.NoError(t, err)
		require.True(t, out.Accepted)
	}
	assert.Equal(t, StateReadyToFinalize, v.State)

	out, v, err = f.svc.RetreatStep(ctx, id)
	require.NoError(t, err)
	require.True(t, out.Accepted)
	assert.Equal(t, 3, v.Step)

	assert.Equal(t, []filing.EventType{
		filing.EventSessionCreated,
		filing.EventFilingTypeSelected,
		filing.EventRecordMerged,
		filing.EventRecordMerged,
		filing.EventRecordMerged,
		filing.EventStepAdvanced,
		filing.EventStepAdvanced,
		filing.EventStepAdvanced,
		filing.EventReadyToFinalize,
		filing.EventStepRetreated,
	}, f.pub.types())

	snap, err := f.snapshots.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, snap.Step)
}

func TestService_PublishFailureIsOnlyLogged(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything).Return(fmt.Errorf("broker down"))
	f := newServiceFixture(t, func(cfg *ServiceConfig) { cfg.Publisher = pub })

	view, err := f.svc.Create(context.Background(), "owner-1", filing.FilingTypeTrademark)
	require.NoError(t, err)
	assert.NotEmpty(t, view.ID)
	assert.True(t, f.logger.HasMessage("warn", "failed to publish session event"))
	pub.AssertNumberOfCalls(t, "Publish", 1)
}

func TestService_SaveInsertsThenUpdates(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	view, err := f.svc.Create(ctx, "owner-1", filing.FilingTypePatent)
	require.NoError(t, err)
	_, _, err = f.svc.MergeFields(ctx, view.ID, mustPatch(t, patentStep1()))
	require.NoError(t, err)

	app, err := f.svc.Save(ctx, view.ID)
	require.NoError(t, err)
	require.NotEmpty(t, app.ID)
	assert.Equal(t, "owner-1", app.OwnerID)
	assert.Equal(t, filing.FilingTypePatent, app.FilingType)
	assert.Equal(t, filing.SchemaVersion, app.SchemaVersion)
	assert.Contains(t, string(app.Record), "Self-cleaning widget")

	got, err := f.svc.Get(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, app.ID, got.ApplicationID)

	_, _, err = f.svc.MergeFields(ctx, view.ID, mustPatch(t, map[string]interface{}{"title": "Renamed"}))
	require.NoError(t, err)
	app2, err := f.svc.Save(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, app.ID, app2.ID)
	assert.Equal(t, 2, app2.Version)
	assert.Equal(t, 1, f.store.Len())

	stored, err := f.svc.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Contains(t, string(stored.Record), "Renamed")
	assert.Contains(t, f.pub.types(), filing.EventApplicationSaved)
}

// gatedStore holds the first Insert until gate is closed and tracks how many
// Updates overlap.
type gatedStore struct {
	*testutil.MemoryApplicationStore
	entered chan struct{}
	gate    chan struct{}
	once    sync.Once

	active  atomic.Int32
	maxSeen atomic.Int32
	updates atomic.Int32
}

func newGatedStore() *gatedStore {
	return &gatedStore{
		MemoryApplicationStore: testutil.NewMemoryApplicationStore(),
		entered:                make(chan struct{}),
		gate:                   make(chan struct{}),
	}
}

func (g *gatedStore) Insert(ctx context.Context, app *filing.Application) (string, error) {
	g.once.Do(func() { close(g.entered) })
	<-g.gate
	return g.MemoryApplicationStore.Insert(ctx, app)
}

func (g *gatedStore) Update(ctx context.Context, app *filing.Application) (*filing.Application, error) {
	n := g.active.Add(1)
	defer g.active.Add(-1)
	for {
		cur := g.maxSeen.Load()
		if n <= cur || g.maxSeen.CompareAndSwap(cur, n) {
			break
		}
	}
	g.updates.Add(1)
	time.Sleep(30 * time.Millisecond)
	return g.MemoryApplicationStore.Update(ctx, app)
}

func TestService_SaveSerializesAcrossFirstInsert(t *testing.T) {
	store := newGatedStore()
	f := newServiceFixture(t, func(cfg *ServiceConfig) { cfg.Store = store })
	ctx := context.Background()
	view, err := f.svc.Create(ctx, "owner-1", filing.FilingTypePatent)
	require.NoError(t, err)
	_, _, err = f.svc.MergeFields(ctx, view.ID, mustPatch(t, patentStep1()))
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 3)
	save := func() {
		defer wg.Done()
		_, err := f.svc.Save(ctx, view.ID)
		errs <- err
	}

	wg.Add(1)
	go save()
	select {
	case <-store.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first save never reached Insert")
	}

	// Queued behind the in-flight insert on the session key.
	wg.Add(1)
	go save()
	time.Sleep(20 * time.Millisecond)

	close(store.gate)
	require.Eventually(t, func() bool {
		v, err := f.svc.Get(ctx, view.ID)
		return err == nil && v.ApplicationID != ""
	}, 2*time.Second, 5*time.Millisecond)

	wg.Add(1)
	go save()
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), store.updates.Load())
	assert.LessOrEqual(t, store.maxSeen.Load(), int32(1))
	assert.Equal(t, 1, store.Len())
}

func TestService_SaveFailureLeavesSession(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	view, err := f.svc.Create(ctx, "owner-1", filing.FilingTypePatent)
	require.NoError(t, err)

	f.store.Err = fmt.Errorf("connection refused")
	_, err = f.svc.Save(ctx, view.ID)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeCollaboratorFailure))

	got, err := f.svc.Get(ctx, view.ID)
	require.NoError(t, err)
	assert.Empty(t, got.ApplicationID)
	assert.Equal(t, view.Score, got.Score)
}

func TestService_SaveUnstartedIsRejected(t *testing.T) {
	f := newServiceFixture(t)
	view, err := f.svc.Create(context.Background(), "owner-1", filing.FilingTypeUnset)
	require.NoError(t, err)
	_, err = f.svc.Save(context.Background(), view.ID)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidState))
	assert.Equal(t, 0, f.store.Len())
}

func TestService_ResumeListDelete(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	view, err := f.svc.Create(ctx, "owner-1", filing.FilingTypePatent)
	require.NoError(t, err)
	_, _, err = f.svc.MergeFields(ctx, view.ID, mustPatch(t, patentStep1()))
	require.NoError(t, err)
	_, _, err = f.svc.AdvanceStep(ctx, view.ID)
	require.NoError(t, err)
	app, err := f.svc.Save(ctx, view.ID)
	require.NoError(t, err)

	resumed, err := f.svc.Resume(ctx, app.ID)
	require.NoError(t, err)
	assert.NotEqual(t, view.ID, resumed.ID)
	assert.Equal(t, app.ID, resumed.ApplicationID)
	assert.Equal(t, 2, resumed.Step)
	assert.Equal(t, StateInProgress, resumed.State)
	assert.Equal(t, app.Score, resumed.Score)

	apps, err := f.svc.ListByOwner(ctx, "owner-1")
	require.NoError(t, err)
	assert.Len(t, apps, 1)
	apps, err = f.svc.ListByOwner(ctx, "owner-2")
	require.NoError(t, err)
	assert.NotNil(t, apps)
	assert.Empty(t, apps)

	require.NoError(t, f.svc.DeleteApplication(ctx, app.ID))
	err = f.svc.DeleteApplication(ctx, app.ID)
	assert.True(t, errors.IsCode(err, errors.ErrCodeApplicationNotFound))
	_, err = f.svc.Resume(ctx, app.ID)
	assert.True(t, errors.IsCode(err, errors.ErrCodeApplicationNotFound))
	assert.Contains(t, f.pub.types(), filing.EventApplicationDeleted)
}

func TestService_AddUpload(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	view, err := f.svc.Create(ctx, "owner-1", filing.FilingTypeTrademark)
	require.NoError(t, err)

	out, v, err := f.svc.AddUpload(ctx, view.ID, logoCandidate(2048), strings.NewReader("png-bytes"))
	require.NoError(t, err)
	require.True(t, out.Accepted)
	assert.Equal(t, 10, v.Score)
	require.Len(t, v.Uploads, 1)
	assert.True(t, strings.HasPrefix(v.Uploads[0].BlobRef, "mem://uploads/"+view.ID+"/"))
	assert.Len(t, f.blobs.keys(), 1)
	assert.Contains(t, f.pub.types(), filing.EventUploadAdded)

	out, v, err = f.svc.RemoveUpload(ctx, view.ID, v.Uploads[0].ID)
	require.NoError(t, err)
	require.True(t, out.Accepted)
	assert.Equal(t, 5, v.Score)
	assert.Len(t, f.blobs.deleted, 1)
}

func TestService_AddUploadPolicyRejections(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	view, err := f.svc.Create(ctx, "owner-1", filing.FilingTypeTrademark)
	require.NoError(t, err)

	cases := []struct {
		name string
		cand filing.UploadCandidate
		code errors.ErrorCode
	}{
		{"too large", logoCandidate(filing.DefaultMaxUploadBytes + 1), errors.ErrCodeUploadTooLarge},
		{"empty", logoCandidate(0), errors.ErrCodeUploadEmpty},
		{"media type", filing.UploadCandidate{Name: "x.exe", MediaType: "application/x-msdownload", Size: 10, Category: filing.CategoryLogo}, errors.ErrCodeMediaTypeNotAllowed},
		{"category", filing.UploadCandidate{Name: "d.png", MediaType: "image/png", Size: 10, Category: filing.CategoryDrawings}, errors.ErrCodeInvalidCategory},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, v, err := f.svc.AddUpload(ctx, view.ID, tc.cand, strings.NewReader("x"))
			require.NoError(t, err)
			assert.False(t, out.Accepted)
			assert.Equal(t, tc.code, out.Code)
			assert.Empty(t, v.Uploads)
		})
	}
	assert.Empty(t, f.blobs.keys())
}

func TestService_AddUploadCollaboratorFailures(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	view, err := f.svc.Create(ctx, "owner-1", filing.FilingTypeTrademark)
	require.NoError(t, err)

	f.blobs.err = fmt.Errorf("bucket missing")
	_, _, err = f.svc.AddUpload(ctx, view.ID, logoCandidate(10), strings.NewReader("x"))
	assert.True(t, errors.IsCode(err, errors.ErrCodeCollaboratorFailure))
	got, err := f.svc.Get(ctx, view.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Uploads)
	assert.Equal(t, 0, got.Score)

	g := newServiceFixture(t, func(cfg *ServiceConfig) { cfg.Blobs = nil })
	view, err = g.svc.Create(ctx, "owner-1", filing.FilingTypeTrademark)
	require.NoError(t, err)
	_, _, err = g.svc.AddUpload(ctx, view.ID, logoCandidate(10), strings.NewReader("x"))
	assert.True(t, errors.IsCode(err, errors.ErrCodeFeatureDisabled))
}

func TestService_RehydratesFromSnapshots(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	view, err := f.svc.Create(ctx, "owner-1", filing.FilingTypePatent)
	require.NoError(t, err)
	_, _, err = f.svc.MergeFields(ctx, view.ID, mustPatch(t, patentStep1()))
	require.NoError(t, err)

	other, err := NewService(ServiceConfig{Store: f.store, Snapshots: f.snapshots, Logger: testutil.NewNopLogger()})
	require.NoError(t, err)
	got, err := other.Get(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, view.ID, got.ID)
	assert.Equal(t, filing.FilingTypePatent, got.FilingType)
	assert.Contains(t, string(got.Record), "Self-cleaning widget")
	assert.Equal(t, 1, other.ActiveSessions())
}

func TestService_Discard(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	view, err := f.svc.Create(ctx, "owner-1", filing.FilingTypePatent)
	require.NoError(t, err)

	require.NoError(t, f.svc.Discard(ctx, view.ID))
	assert.Equal(t, 0, f.svc.ActiveSessions())
	_, err = f.svc.Get(ctx, view.ID)
	assert.True(t, errors.IsCode(err, errors.ErrCodeSessionNotFound))
}

func TestService_UpdatePolicy(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	view, err := f.svc.Create(ctx, "owner-1", filing.FilingTypeTrademark)
	require.NoError(t, err)

	f.svc.UpdatePolicy(filing.UploadPolicy{MaxBytes: 100, AllowedMediaTypes: []string{"image/png"}}, filing.IntentToUseWaived)
	assert.Equal(t, int64(100), f.svc.UploadPolicy().MaxBytes)
	assert.Equal(t, filing.IntentToUseWaived, f.svc.sessions[view.ID].validator.Policy())

	out, _, err := f.svc.AddUpload(ctx, view.ID, logoCandidate(101), strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, errors.ErrCodeUploadTooLarge, out.Code)

	created, err := f.svc.Create(ctx, "owner-1", filing.FilingTypeTrademark)
	require.NoError(t, err)
	assert.Equal(t, filing.IntentToUseWaived, f.svc.sessions[created.ID].validator.Policy())
}

func TestService_BackgroundTasksRefreshSnapshot(t *testing.T) {
	f := newServiceFixture(t, func(cfg *ServiceConfig) { cfg.Renderer = &fakeRenderer{} })
	ctx := context.Background()
	view, err := f.svc.Create(ctx, "owner-1", filing.FilingTypePatent)
	require.NoError(t, err)

	out, _, err := f.svc.GenerateDocument(ctx, view.ID, "claims")
	require.NoError(t, err)
	require.True(t, out.Accepted)

	sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, f.svc.Shutdown(sctx))

	snap, err := f.snapshots.Load(ctx, view.ID)
	require.NoError(t, err)
	require.Len(t, snap.Documents, 1)
	assert.Contains(t, f.pub.types(), filing.EventDocumentGenerated)
}

func TestService_ValidateReportExport(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	view, err := f.svc.Create(ctx, "owner-1", filing.FilingTypePatent)
	require.NoError(t, err)

	res, err := f.svc.Validate(ctx, view.ID, 3)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	_, err = f.svc.Validate(ctx, view.ID, 0)
	assert.True(t, errors.IsCode(err, errors.ErrCodeStepOutOfRange))

	report, err := f.svc.Report(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, filing.FilingTypePatent, report.FilingType)

	doc, err := f.svc.Export(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, filing.FilingTypePatent, doc.FilingType)

	_, err = f.svc.Report(ctx, "missing")
	assert.True(t, errors.IsCode(err, errors.ErrCodeSessionNotFound))
}

//Personal.AI order the ending
