package session

import (
	"context"
	"fmt"
	"io"
	"path"
	"sync"
	"time"

	"github.com/turtacn/IPFiling-Assistant/internal/domain/filing"
	"github.com/turtacn/IPFiling-Assistant/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/IPFiling-Assistant/pkg/errors"
)

// ServiceConfig wires the collaborators of a Service. Store and Logger are
// required; every other collaborator is optional.
type ServiceConfig struct {
	Store           filing.ApplicationStore
	Snapshots       SnapshotStore
	Locker          Locker
	Publisher       EventPublisher
	Blobs           BlobStore
	Suggester       SuggestionProvider
	Renderer        DocumentRenderer
	Metrics         Metrics
	Logger          logging.Logger
	UploadPolicy    filing.UploadPolicy
	IntentToUse     filing.IntentToUsePolicy
	Strict          bool
	SuggestionCount int
}

// Service manages filing sessions by id for the API layer.
type Service struct {
	store     filing.ApplicationStore
	snapshots SnapshotStore
	locker    Locker
	publisher EventPublisher
	blobs     BlobStore
	suggester SuggestionProvider
	renderer  DocumentRenderer
	metrics   Metrics
	logger    logging.Logger
	strict    bool
	sugCount  int

	mu       sync.RWMutex
	sessions map[string]*Controller

	policyMu  sync.RWMutex
	policy    filing.UploadPolicy
	validator *filing.StepValidator
}

// NewService validates cfg and returns a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.InvalidParam("application store is required")
	}
	if cfg.Logger == nil {
		return nil, errors.InvalidParam("logger is required")
	}
	if cfg.Locker == nil {
		cfg.Locker = NewKeyedMutex()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = nopMetrics{}
	}
	if cfg.UploadPolicy.MaxBytes <= 0 || len(cfg.UploadPolicy.AllowedMediaTypes) == 0 {
		cfg.UploadPolicy = filing.DefaultUploadPolicy()
	}
	return &Service{
		store:     cfg.Store,
		snapshots: cfg.Snapshots,
		locker:    cfg.Locker,
		publisher: cfg.Publisher,
		blobs:     cfg.Blobs,
		suggester: cfg.Suggester,
		renderer:  cfg.Renderer,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger.Named("session"),
		strict:    cfg.Strict,
		sugCount:  cfg.SuggestionCount,
		sessions:  make(map[string]*Controller),
		policy:    cfg.UploadPolicy,
		validator: filing.NewStepValidator(cfg.IntentToUse),
	}, nil
}

// UpdatePolicy swaps the upload and intent-to-use policies for new and
// existing sessions.
func (s *Service) UpdatePolicy(up filing.UploadPolicy, itu filing.IntentToUsePolicy) {
	v := filing.NewStepValidator(itu)
	s.policyMu.Lock()
	if up.MaxBytes > 0 && len(up.AllowedMediaTypes) > 0 {
		s.policy = up
	}
	s.validator = v
	s.policyMu.Unlock()

	for _, c := range s.controllers() {
		c.SetValidator(v)
	}
	s.logger.Info("filing policy updated",
		logging.Int64("max_upload_bytes", up.MaxBytes),
		logging.String("intent_to_use_policy", string(v.Policy())))
}

// UploadPolicy returns the upload policy in effect.
func (s *Service) UploadPolicy() filing.UploadPolicy {
	s.policyMu.RLock()
	defer s.policyMu.RUnlock()
	return s.policy
}

func (s *Service) currentValidator() *filing.StepValidator {
	s.policyMu.RLock()
	defer s.policyMu.RUnlock()
	return s.validator
}

// ActiveSessions returns the number of sessions held in memory.
func (s *Service) ActiveSessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// ─────────────────────────────────────────────────────────────────────────────
// Session lifecycle
// ─────────────────────────────────────────────────────────────────────────────

// Create starts a new session for ownerID, optionally selecting t.
func (s *Service) Create(ctx context.Context, ownerID string, t filing.FilingType) (*View, error) {
	if ownerID == "" {
		return nil, errors.InvalidParam("owner id is required")
	}
	if t != filing.FilingTypeUnset && !t.IsValid() {
		return nil, errors.New(errors.ErrCodeInvalidFilingType, "filing type must be patent or trademark").WithDetail(string(t))
	}
	c := s.newController("", ownerID)
	if t.IsValid() {
		c.SelectFilingType(t)
	}
	s.register(c)

	view := c.View()
	s.saveSnapshot(ctx, view.Snapshot)
	s.publish(ctx, eventFor(filing.EventSessionCreated, view))
	s.logger.Info("session created",
		logging.String(logging.FieldSessionID, c.ID()),
		logging.String("owner_id", ownerID),
		logging.String(logging.FieldFilingType, t.String()))
	return view, nil
}

// Get returns the session view.
func (s *Service) Get(ctx context.Context, id string) (*View, error) {
	c, err := s.controller(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.View(), nil
}

// Discard drops a session from memory and from the snapshot cache.
func (s *Service) Discard(ctx context.Context, id string) error {
	c, err := s.controller(ctx, id)
	if err != nil {
		return err
	}
	c.Reset()
	s.mu.Lock()
	delete(s.sessions, id)
	n := len(s.sessions)
	s.mu.Unlock()
	s.metrics.SetActiveSessions(n)

	if s.snapshots != nil {
		if err := s.snapshots.Delete(ctx, id); err != nil {
			s.logger.Warn("failed to delete session snapshot", logging.Err(err), logging.String(logging.FieldSessionID, id))
		}
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Session operations
// ─────────────────────────────────────────────────────────────────────────────

// SelectFilingType selects the filing type of session id.
func (s *Service) SelectFilingType(ctx context.Context, id string, t filing.FilingType) (Outcome, *View, error) {
	return s.mutate(ctx, id, "select_filing_type", filing.EventFilingTypeSelected, func(c *Controller) Outcome {
		return c.SelectFilingType(t)
	})
}

// AdvanceStep advances session id.
func (s *Service) AdvanceStep(ctx context.Context, id string) (Outcome, *View, error) {
	return s.mutate(ctx, id, "advance_step", filing.EventStepAdvanced, (*Controller).AdvanceStep)
}

// RetreatStep moves session id back one step.
func (s *Service) RetreatStep(ctx context.Context, id string) (Outcome, *View, error) {
	return s.mutate(ctx, id, "retreat_step", filing.EventStepRetreated, (*Controller).RetreatStep)
}

// Reset clears session id.
func (s *Service) Reset(ctx context.Context, id string) (Outcome, *View, error) {
	return s.mutate(ctx, id, "reset", filing.EventSessionReset, (*Controller).Reset)
}

// MergeFields merges patch into the record of session id.
func (s *Service) MergeFields(ctx context.Context, id string, patch filing.Patch) (Outcome, *View, error) {
	return s.mutate(ctx, id, "merge_fields", filing.EventRecordMerged, func(c *Controller) Outcome {
		return c.MergeFields(patch)
	})
}

// Import merges an exported document into session id.
func (s *Service) Import(ctx context.Context, id string, doc filing.Document) (Outcome, *View, error) {
	return s.mutate(ctx, id, "import", filing.EventRecordMerged, func(c *Controller) Outcome {
		return c.Import(doc)
	})
}

// RequestSuggestions starts a suggestion task on session id.
func (s *Service) RequestSuggestions(ctx context.Context, id, field string, autoApply bool) (Outcome, *View, error) {
	return s.mutate(ctx, id, "request_suggestions", "", func(c *Controller) Outcome {
		return c.RequestSuggestions(field, autoApply)
	})
}

// GenerateDocument starts a document task on session id.
func (s *Service) GenerateDocument(ctx context.Context, id, kind string) (Outcome, *View, error) {
	return s.mutate(ctx, id, "generate_document", "", func(c *Controller) Outcome {
		return c.GenerateDocument(kind)
	})
}

// AddUpload validates cand against the upload policy, stores body in the
// blob store and attaches the file to session id. The blob upload runs
// outside the controller lock; a blob store failure leaves the session
// unchanged.
func (s *Service) AddUpload(ctx context.Context, id string, cand filing.UploadCandidate, body io.Reader) (Outcome, *View, error) {
	c, err := s.controller(ctx, id)
	if err != nil {
		return Outcome{}, nil, err
	}
	ft := c.FilingType()
	if !ft.IsValid() {
		return rejected("select a filing type first"), c.View(), nil
	}
	if err := s.UploadPolicy().Check(ft, cand); err != nil {
		return rejectedErr(err), c.View(), nil
	}
	if s.blobs == nil {
		return Outcome{}, nil, errors.New(errors.ErrCodeFeatureDisabled, "upload storage is not configured")
	}

	f := filing.NewUploadedFile(cand, "", time.Now())
	key := fmt.Sprintf("uploads/%s/%s/%s", id, f.ID, path.Base(cand.Name))
	ref, err := s.blobs.Upload(ctx, key, body, cand.Size, BlobMetadata{
		ContentType: f.MediaType,
		FileName:    cand.Name,
		SessionID:   id,
		Category:    string(cand.Category),
	})
	if err != nil {
		s.logger.Warn("blob upload failed", logging.Err(err), logging.String(logging.FieldSessionID, id))
		return Outcome{}, nil, errors.Collaborator(err, "blob store")
	}
	f.BlobRef = ref

	out, view, err := s.mutate(ctx, id, "add_upload", filing.EventUploadAdded, func(c *Controller) Outcome {
		return c.AddUpload(f)
	})
	if err != nil || !out.Accepted {
		s.deleteBlob(ctx, ref)
		return out, view, err
	}
	s.metrics.RecordUpload(ft, cand.Category, cand.Size)
	return out, view, nil
}

// RemoveUpload detaches an upload from session id and deletes its blob.
func (s *Service) RemoveUpload(ctx context.Context, id, uploadID string) (Outcome, *View, error) {
	var removed filing.UploadedFile
	out, view, err := s.mutate(ctx, id, "remove_upload", filing.EventUploadRemoved, func(c *Controller) Outcome {
		removed, _ = c.Upload(uploadID)
		return c.RemoveUpload(uploadID)
	})
	if err == nil && out.Accepted && removed.BlobRef != "" {
		s.deleteBlob(ctx, removed.BlobRef)
	}
	return out, view, err
}

// Validate runs the step validator for step on session id.
func (s *Service) Validate(ctx context.Context, id string, step int) (filing.StepResult, error) {
	c, err := s.controller(ctx, id)
	if err != nil {
		return filing.StepResult{}, err
	}
	return c.Validate(step)
}

// Report returns the compliance report of session id.
func (s *Service) Report(ctx context.Context, id string) (filing.ComplianceReport, error) {
	c, err := s.controller(ctx, id)
	if err != nil {
		return filing.ComplianceReport{}, err
	}
	return c.Report(), nil
}

// Export returns the record document of session id.
func (s *Service) Export(ctx context.Context, id string) (filing.Document, error) {
	c, err := s.controller(ctx, id)
	if err != nil {
		return filing.Document{}, err
	}
	return c.Export()
}

// ─────────────────────────────────────────────────────────────────────────────
// Persistence
// ─────────────────────────────────────────────────────────────────────────────

// Save writes session id to the application store, inserting on first save.
// Writes are serialised per application so a stale save never overwrites a
// newer one; on failure the session is unchanged.
func (s *Service) Save(ctx context.Context, id string) (*filing.Application, error) {
	start := time.Now()
	c, err := s.controller(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.State() == StateUnstarted {
		return nil, errors.InvalidState("nothing to save before a filing type is selected")
	}

	release, err := s.lockForSave(ctx, c)
	if err != nil {
		return nil, err
	}
	defer release()

	snap := c.Snapshot()
	app := applicationFromSnapshot(snap)
	var saved *filing.Application
	if snap.ApplicationID == "" {
		newID, err := s.store.Insert(ctx, app)
		if err != nil {
			s.metrics.RecordOperation("save", false, time.Since(start))
			return nil, errors.Collaborator(err, "application store")
		}
		app.ID = newID
		c.SetApplicationID(newID)
		saved = app
	} else {
		app.ID = snap.ApplicationID
		saved, err = s.store.Update(ctx, app)
		if err != nil {
			s.metrics.RecordOperation("save", false, time.Since(start))
			if errors.IsNotFound(err) {
				return nil, err
			}
			return nil, errors.Collaborator(err, "application store")
		}
	}
	s.metrics.RecordOperation("save", true, time.Since(start))

	view := c.View()
	s.saveSnapshot(ctx, view.Snapshot)
	s.publish(ctx, eventFor(filing.EventApplicationSaved, view))
	s.logger.Info("application saved",
		logging.String(logging.FieldSessionID, c.ID()),
		logging.String(logging.FieldRecordID, saved.ID))
	return saved, nil
}

// lockForSave takes session:<id> and, once the session is bound to a stored
// application, application:<appID>, always in that order. The application id
// is read after the session lock so a concurrent first save is observed.
func (s *Service) lockForSave(ctx context.Context, c *Controller) (func(), error) {
	var releases []func(context.Context) error
	var keys []string
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			if err := releases[i](context.Background()); err != nil {
				s.logger.Warn("failed to release application lock", logging.Err(err), logging.String("key", keys[i]))
			}
		}
	}
	acquire := func(key string) error {
		release, err := s.locker.Lock(ctx, key)
		if err != nil {
			releaseAll()
			return errors.Collaborator(err, "application lock")
		}
		releases = append(releases, release)
		keys = append(keys, key)
		return nil
	}

	if err := acquire("session:" + c.ID()); err != nil {
		return nil, err
	}
	if appID := c.ApplicationID(); appID != "" {
		if err := acquire("application:" + appID); err != nil {
			return nil, err
		}
	}
	return releaseAll, nil
}

// Resume opens a new session hydrated from a stored application.
func (s *Service) Resume(ctx context.Context, appID string) (*View, error) {
	app, err := s.GetApplication(ctx, appID)
	if err != nil {
		return nil, err
	}
	snap := Snapshot{
		OwnerID:       app.OwnerID,
		ApplicationID: app.ID,
		FilingType:    app.FilingType,
		Step:          min(max(app.Step, 1), max(app.FilingType.StepCount(), 1)),
		State:         StateInProgress,
		Record:        app.Record,
		Uploads:       app.Uploads,
		Score:         app.Score,
	}
	if !app.FilingType.IsValid() {
		snap.State, snap.Step, snap.Record = StateUnstarted, 1, nil
	}
	c := s.newController("", app.OwnerID)
	if err := c.Restore(snap); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "stored application could not be restored").WithDetail(app.ID)
	}
	s.register(c)

	view := c.View()
	s.saveSnapshot(ctx, view.Snapshot)
	s.publish(ctx, eventFor(filing.EventSessionCreated, view).With("resumed_from", app.ID))
	return view, nil
}

// GetApplication fetches a stored application.
func (s *Service) GetApplication(ctx context.Context, appID string) (*filing.Application, error) {
	app, err := s.store.FetchByID(ctx, appID)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.New(errors.ErrCodeApplicationNotFound, "application not found").WithDetail(appID)
		}
		return nil, errors.Collaborator(err, "application store")
	}
	return app, nil
}

// ListByOwner lists the stored applications of ownerID.
func (s *Service) ListByOwner(ctx context.Context, ownerID string) ([]*filing.Application, error) {
	if ownerID == "" {
		return nil, errors.InvalidParam("owner id is required")
	}
	apps, err := s.store.FetchAllByOwner(ctx, ownerID)
	if err != nil {
		return nil, errors.Collaborator(err, "application store")
	}
	if apps == nil {
		apps = []*filing.Application{}
	}
	return apps, nil
}

// DeleteApplication deletes a stored application.
func (s *Service) DeleteApplication(ctx context.Context, appID string) error {
	release, err := s.locker.Lock(ctx, "application:"+appID)
	if err != nil {
		return errors.Collaborator(err, "application lock")
	}
	defer func() { _ = release(context.Background()) }()

	if err := s.store.Delete(ctx, appID); err != nil {
		if errors.IsNotFound(err) {
			return errors.New(errors.ErrCodeApplicationNotFound, "application not found").WithDetail(appID)
		}
		return errors.Collaborator(err, "application store")
	}
	ev := filing.NewSessionEvent(filing.EventApplicationDeleted, appID)
	ev.ApplicationID = appID
	s.publish(ctx, ev)
	return nil
}

// Shutdown waits for background tasks of every session, or until ctx ends.
func (s *Service) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		for _, c := range s.controllers() {
			c.Wait()
		}
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// helpers
// ─────────────────────────────────────────────────────────────────────────────

func (s *Service) mutate(ctx context.Context, id, op string, typ filing.EventType, fn func(*Controller) Outcome) (Outcome, *View, error) {
	start := time.Now()
	c, err := s.controller(ctx, id)
	if err != nil {
		return Outcome{}, nil, err
	}
	out := fn(c)
	s.metrics.RecordOperation(op, out.Accepted, time.Since(start))

	view := c.View()
	if !out.Accepted {
		s.logger.Debug("operation rejected",
			logging.String(logging.FieldSessionID, id),
			logging.String("operation", op),
			logging.String("reason", out.Reason))
		return out, view, nil
	}
	s.metrics.RecordScore(view.FilingType, view.Score)
	s.saveSnapshot(ctx, view.Snapshot)
	if typ == filing.EventStepAdvanced && view.State == StateReadyToFinalize {
		typ = filing.EventReadyToFinalize
	}
	if typ != "" {
		s.publish(ctx, eventFor(typ, view))
	}
	return out, view, nil
}

func (s *Service) newController(id, ownerID string) *Controller {
	opts := []Option{
		WithOwner(ownerID),
		WithValidator(s.currentValidator()),
		WithLogger(s.logger),
		WithStrict(s.strict),
		WithSuggestionCount(s.sugCount),
		WithTaskObserver(s.onTask),
	}
	if id != "" {
		opts = append(opts, WithID(id))
	}
	if s.suggester != nil {
		opts = append(opts, WithSuggestionProvider(s.suggester))
	}
	if s.renderer != nil {
		opts = append(opts, WithRenderer(s.renderer))
	}
	if s.blobs != nil {
		opts = append(opts, WithDocumentStore(s.blobs))
	}
	return NewController(opts...)
}

func (s *Service) register(c *Controller) *Controller {
	s.mu.Lock()
	if existing, ok := s.sessions[c.ID()]; ok {
		s.mu.Unlock()
		return existing
	}
	s.sessions[c.ID()] = c
	n := len(s.sessions)
	s.mu.Unlock()
	s.metrics.SetActiveSessions(n)
	return c
}

func (s *Service) controllers() []*Controller {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Controller, 0, len(s.sessions))
	for _, c := range s.sessions {
		out = append(out, c)
	}
	return out
}

// controller returns the live controller for id, rehydrating it from the
// snapshot cache when it is not in memory.
func (s *Service) controller(ctx context.Context, id string) (*Controller, error) {
	s.mu.RLock()
	c, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return c, nil
	}
	notFound := errors.New(errors.ErrCodeSessionNotFound, "session not found").WithDetail(id)
	if s.snapshots == nil || id == "" {
		return nil, notFound
	}
	snap, err := s.snapshots.Load(ctx, id)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, notFound
		}
		return nil, errors.Collaborator(err, "session cache")
	}
	c = s.newController(id, snap.OwnerID)
	if err := c.Restore(*snap); err != nil {
		s.logger.Warn("discarding unreadable session snapshot", logging.Err(err), logging.String(logging.FieldSessionID, id))
		return nil, notFound
	}
	return s.register(c), nil
}

func (s *Service) onTask(res TaskResult) {
	s.metrics.RecordTask(res.Kind, res.Outcome)
	if res.Outcome != TaskApplied {
		return
	}
	s.mu.RLock()
	c, ok := s.sessions[res.SessionID]
	s.mu.RUnlock()
	if !ok {
		return
	}
	ctx := context.Background()
	view := c.View()
	s.saveSnapshot(ctx, view.Snapshot)
	s.metrics.RecordScore(view.FilingType, view.Score)
	if res.Kind == TaskDocument {
		s.publish(ctx, eventFor(filing.EventDocumentGenerated, view).With("kind", res.Target))
	}
}

func (s *Service) saveSnapshot(ctx context.Context, snap Snapshot) {
	if s.snapshots == nil {
		return
	}
	if err := s.snapshots.Save(ctx, &snap); err != nil {
		s.logger.Warn("failed to cache session snapshot", logging.Err(err), logging.String(logging.FieldSessionID, snap.ID))
	}
}

func (s *Service) publish(ctx context.Context, ev *filing.SessionEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn("failed to publish session event", logging.Err(err),
			logging.String("event_type", string(ev.Type)),
			logging.String(logging.FieldSessionID, ev.AggregateID()))
	}
}

func (s *Service) deleteBlob(ctx context.Context, ref string) {
	if s.blobs == nil || ref == "" {
		return
	}
	if err := s.blobs.Delete(ctx, ref); err != nil {
		s.logger.Warn("failed to delete blob", logging.Err(err), logging.String("blob_ref", ref))
	}
}

func eventFor(typ filing.EventType, v *View) *filing.SessionEvent {
	ev := filing.NewSessionEvent(typ, v.ID)
	ev.OwnerID = v.OwnerID
	ev.ApplicationID = v.ApplicationID
	ev.FilingType = v.FilingType
	ev.Step = v.Step
	ev.State = string(v.State)
	ev.Score = v.Score
	return ev
}

func applicationFromSnapshot(snap Snapshot) *filing.Application {
	uploads := snap.Uploads
	if uploads == nil {
		uploads = []filing.UploadedFile{}
	}
	return &filing.Application{
		ID:            snap.ApplicationID,
		OwnerID:       snap.OwnerID,
		FilingType:    snap.FilingType,
		SchemaVersion: filing.SchemaVersion,
		Record:        snap.Record,
		Uploads:       uploads,
		Score:         snap.Score,
		Step:          snap.Step,
	}
}

//Personal.AI order the ending
