package session

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/IPFiling-Assistant/internal/domain/filing"
	"github.com/turtacn/IPFiling-Assistant/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/IPFiling-Assistant/pkg/errors"
)

// maxNotices bounds the notice backlog kept per session.
const maxNotices = 20

// Option configures a Controller.
type Option func(*Controller)

// WithID sets the session id; a random UUID is used otherwise.
func WithID(id string) Option { return func(c *Controller) { c.id = id } }

// WithOwner sets the owning user id.
func WithOwner(ownerID string) Option { return func(c *Controller) { c.ownerID = ownerID } }

// WithValidator sets the step validator.
func WithValidator(v *filing.StepValidator) Option {
	return func(c *Controller) {
		if v != nil {
			c.validator = v
		}
	}
}

// WithSuggestionProvider enables RequestSuggestions.
func WithSuggestionProvider(p SuggestionProvider) Option {
	return func(c *Controller) { c.suggester = p }
}

// WithRenderer enables GenerateDocument.
func WithRenderer(r DocumentRenderer) Option { return func(c *Controller) { c.renderer = r } }

// WithDocumentStore stores rendered documents; without it only their size
// is recorded.
func WithDocumentStore(b BlobStore) Option { return func(c *Controller) { c.blobs = b } }

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithStrict makes internal invariant violations panic instead of being
// clamped and logged.
func WithStrict(strict bool) Option { return func(c *Controller) { c.strict = strict } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(c *Controller) { c.now = now } }

// WithSuggestionCount sets how many suggestions are requested per field.
func WithSuggestionCount(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.suggestionCount = n
		}
	}
}

// WithTaskObserver registers a callback run after each background task
// finishes, outside the controller lock.
func WithTaskObserver(fn func(TaskResult)) Option { return func(c *Controller) { c.observer = fn } }

// Controller owns one filing session. Every operation runs to completion
// under the controller mutex before the next one is admitted; background
// tasks re-enter through the same mutex.
type Controller struct {
	mu sync.Mutex

	id              string
	ownerID         string
	applicationID   string
	validator       *filing.StepValidator
	evaluator       *filing.ComplianceEvaluator
	suggester       SuggestionProvider
	renderer        DocumentRenderer
	blobs           BlobStore
	logger          logging.Logger
	strict          bool
	now             func() time.Time
	suggestionCount int
	observer        func(TaskResult)

	filingType      filing.FilingType
	step            int
	state           State
	record          filing.Record
	uploads         *filing.UploadSet
	score           int
	complianceScore *int
	documentScore   *int
	report          filing.ComplianceReport
	documents       map[filing.DocumentKind]filing.GeneratedDocument
	suggestions     map[string][]string
	notices         []Notice
	updatedAt       time.Time

	scope         scope
	tasks         sync.WaitGroup
	staleDiscards int
}

// NewController returns an unstarted session.
func NewController(opts ...Option) *Controller {
	c := &Controller{
		validator:       filing.NewStepValidator(filing.IntentToUseRequiresDescription),
		evaluator:       filing.NewComplianceEvaluator(),
		logger:          logging.NewNopLogger(),
		now:             time.Now,
		suggestionCount: 3,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.id == "" {
		c.id = uuid.New().String()
	}
	c.logger = c.logger.With(logging.String(logging.FieldSessionID, c.id))
	c.scope = newScope(0)
	c.resetLocked()
	return c
}

// ID returns the session id.
func (c *Controller) ID() string { return c.id }

// OwnerID returns the owning user id.
func (c *Controller) OwnerID() string { return c.ownerID }

// ApplicationID returns the id of the stored application, if saved.
func (c *Controller) ApplicationID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.applicationID
}

// SetApplicationID records the stored application id after a first save.
func (c *Controller) SetApplicationID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applicationID = id
	c.touchLocked()
}

// SetValidator replaces the step validator, e.g. after a policy reload.
func (c *Controller) SetValidator(v *filing.StepValidator) {
	if v == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.validator = v
}

// FilingType returns the selected filing type.
func (c *Controller) FilingType() filing.FilingType {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filingType
}

// Step returns the current step, 1-based.
func (c *Controller) Step() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.step
}

// State returns the wizard state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Score returns the displayed readiness score.
func (c *Controller) Score() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.score
}

// Record returns a copy of the filing record; nil before a type is selected.
func (c *Controller) Record() filing.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return filing.Clone(c.record)
}

// Uploads returns the attached files in order.
func (c *Controller) Uploads() []filing.UploadedFile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.uploads.List()
}

// Upload returns one attached file.
func (c *Controller) Upload(id string) (filing.UploadedFile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.uploads.Get(id)
}

// ─────────────────────────────────────────────────────────────────────────────
// Navigation
// ─────────────────────────────────────────────────────────────────────────────

// SelectFilingType starts the wizard for t. Selecting the active type again
// is a no-op; selecting a different type resets the session first so no
// field of the previous type survives.
func (c *Controller) SelectFilingType(t filing.FilingType) Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectLocked(t)
}

func (c *Controller) selectLocked(t filing.FilingType) Outcome {
	if !t.IsValid() {
		return Outcome{Reason: "filing type must be patent or trademark", Code: errors.ErrCodeInvalidFilingType}
	}
	if c.state != StateUnstarted {
		if t == c.filingType {
			return accepted()
		}
		c.logger.Info("filing type changed, resetting session",
			logging.String("from", c.filingType.String()),
			logging.String("to", t.String()))
		c.resetLocked()
	}
	c.filingType = t
	c.step = 1
	c.state = StateInProgress
	c.record = filing.NewRecord(t)
	c.uploads = filing.NewUploadSet()
	c.score = 0
	c.report = c.evaluator.Evaluate(t, c.record)
	c.scope.cancel()
	c.scope = newScope(c.scope.epoch + 1)
	c.touchLocked()
	return accepted()
}

// AdvanceStep moves to the next step when the current one is valid. From the
// last step it checks whole-record completeness and enters ReadyToFinalize.
func (c *Controller) AdvanceStep() Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateUnstarted {
		return rejected("select a filing type first")
	}
	if c.state == StateReadyToFinalize {
		return rejected("application is ready to finalize")
	}
	c.checkStepLocked()

	res, err := c.validator.CanAdvance(c.filingType, c.step, c.record)
	if err != nil {
		c.invariantLocked(err)
		return rejectedErr(err)
	}
	if !res.Valid {
		return rejectedMissing("step is incomplete", res.MissingFields)
	}
	if c.step < c.filingType.StepCount() {
		c.setStepLocked(c.step + 1)
		return accepted()
	}

	complete, err := c.validator.CheckComplete(c.filingType, c.record)
	if err != nil {
		c.invariantLocked(err)
		return rejectedErr(err)
	}
	if !complete.Valid {
		return rejectedMissing("application is incomplete", complete.MissingFields)
	}
	c.state = StateReadyToFinalize
	c.touchLocked()
	return accepted()
}

// RetreatStep moves back one step. It is never blocked by validation; it
// clamps at step 1, and from ReadyToFinalize returns to the step before the
// last.
func (c *Controller) RetreatStep() Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateUnstarted {
		return rejected("select a filing type first")
	}
	c.checkStepLocked()
	n := c.filingType.StepCount()
	if c.state == StateReadyToFinalize {
		c.state = StateInProgress
		c.setStepLocked(max(n-1, 1))
		return accepted()
	}
	if c.step > 1 {
		c.setStepLocked(c.step - 1)
	}
	return accepted()
}

// Reset returns the session to Unstarted with everything cleared and cancels
// background tasks.
func (c *Controller) Reset() Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
	return accepted()
}

func (c *Controller) resetLocked() {
	c.scope.cancel()
	c.scope = newScope(c.scope.epoch + 1)
	c.filingType = filing.FilingTypeUnset
	c.step = 1
	c.state = StateUnstarted
	c.record = nil
	c.uploads = filing.NewUploadSet()
	c.score = 0
	c.complianceScore = nil
	c.documentScore = nil
	c.report = filing.ComplianceReport{Jurisdictions: []filing.JurisdictionReport{}}
	c.documents = map[filing.DocumentKind]filing.GeneratedDocument{}
	c.suggestions = map[string][]string{}
	c.notices = nil
	c.touchLocked()
}

// ─────────────────────────────────────────────────────────────────────────────
// Mutation
// ─────────────────────────────────────────────────────────────────────────────

// MergeFields shallow-merges patch into the record and re-scores. A merge
// that breaks completeness while ReadyToFinalize returns to the last step.
func (c *Controller) MergeFields(patch filing.Patch) Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mergeLocked(patch)
}

func (c *Controller) mergeLocked(patch filing.Patch) Outcome {
	if c.state == StateUnstarted {
		return rejected("select a filing type first")
	}
	merged, err := filing.Merge(c.record, patch)
	if err != nil {
		return rejectedErr(err)
	}
	c.record = merged
	c.rescoreLocked()

	if c.state == StateReadyToFinalize {
		complete, err := c.validator.CheckComplete(c.filingType, c.record)
		if err != nil || !complete.Valid {
			c.state = StateInProgress
			c.setStepLocked(c.filingType.StepCount())
		}
	}
	c.touchLocked()
	return accepted()
}

func (c *Controller) rescoreLocked() {
	c.report = c.evaluator.Evaluate(c.filingType, c.record)
	cs := filing.Score(c.report)
	c.complianceScore = &cs
	c.score = filing.Combine(c.complianceScore, c.documentScore)
}

// AddUpload attaches an already-stored file and applies the upload bonus.
func (c *Controller) AddUpload(f filing.UploadedFile) Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateUnstarted {
		return rejected("select a filing type first")
	}
	if err := filing.ValidateCategory(c.filingType, f.Category); err != nil {
		return rejectedErr(err)
	}
	if err := c.uploads.Add(f); err != nil {
		return rejectedErr(err)
	}
	c.score = filing.UploadBonus(c.score)
	c.touchLocked()
	return accepted()
}

// RemoveUpload detaches a file and applies the upload penalty. Removing an
// unknown id is rejected.
func (c *Controller) RemoveUpload(id string) Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.uploads.Remove(id); !ok {
		return Outcome{Reason: "upload not found: " + id, Code: errors.CodeNotFound}
	}
	c.score = filing.UploadPenalty(c.score)
	c.touchLocked()
	return accepted()
}

// Import merges an exported document. An unstarted session adopts the
// document's filing type; a document of another type is rejected.
func (c *Controller) Import(doc filing.Document) Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateUnstarted {
		if out := c.selectLocked(doc.FilingType); !out.Accepted {
			return out
		}
	}
	if doc.FilingType != c.filingType {
		return Outcome{
			Reason: fmt.Sprintf("document is a %s record, session is %s", doc.FilingType, c.filingType),
			Code:   errors.ErrCodeInvalidFilingType,
		}
	}
	patch, err := doc.Patch()
	if err != nil {
		return rejectedErr(err)
	}
	return c.mergeLocked(patch)
}

// ─────────────────────────────────────────────────────────────────────────────
// Queries
// ─────────────────────────────────────────────────────────────────────────────

// Validate runs the step validator on step without navigating.
func (c *Controller) Validate(step int) (filing.StepResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.validator.CanAdvance(c.filingType, step, c.record)
}

// Report returns the latest compliance report.
func (c *Controller) Report() filing.ComplianceReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.report
}

// Export returns the downloadable record document.
func (c *Controller) Export() (filing.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return filing.ExportDocument(c.record)
}

// Notices returns pending notices, oldest first.
func (c *Controller) Notices() []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Notice, len(c.notices))
	copy(out, c.notices)
	return out
}

// StaleDiscards returns how many background results were discarded because
// the session moved on.
func (c *Controller) StaleDiscards() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.staleDiscards
}

// Snapshot captures the session state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	raw, err := filing.MarshalRecord(c.record)
	if err != nil {
		c.logger.Error("failed to encode record for snapshot", logging.Err(err))
		raw = []byte("{}")
	}
	docs := make([]filing.GeneratedDocument, 0, len(c.documents))
	for _, d := range c.documents {
		docs = append(docs, d)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Kind < docs[j].Kind })
	sugg := make(map[string][]string, len(c.suggestions))
	for k, v := range c.suggestions {
		sugg[k] = append([]string(nil), v...)
	}
	return Snapshot{
		ID:              c.id,
		OwnerID:         c.ownerID,
		ApplicationID:   c.applicationID,
		FilingType:      c.filingType,
		Step:            c.step,
		State:           c.state,
		Record:          raw,
		Uploads:         c.uploads.List(),
		Score:           c.score,
		ComplianceScore: copyInt(c.complianceScore),
		DocumentScore:   copyInt(c.documentScore),
		Documents:       docs,
		Suggestions:     sugg,
		UpdatedAt:       c.updatedAt,
	}
}

// View returns the read model of the session.
func (c *Controller) View() *View {
	c.mu.Lock()
	defer c.mu.Unlock()
	notices := make([]Notice, len(c.notices))
	copy(notices, c.notices)
	return &View{
		Snapshot:  c.snapshotLocked(),
		StepCount: c.filingType.StepCount(),
		StepNames: c.filingType.StepNames(),
		Report:    c.report,
		Notices:   notices,
	}
}

// Restore replaces the session state with snap; the session id is kept. The
// snapshot is validated first and on error the session is unchanged.
// Background tasks are cancelled.
func (c *Controller) Restore(snap Snapshot) error {
	if !snap.State.IsValid() {
		return errors.InvalidParam("snapshot state is invalid").WithDetail(string(snap.State))
	}
	var record filing.Record
	if snap.State == StateUnstarted {
		if snap.FilingType != filing.FilingTypeUnset {
			return errors.New(errors.ErrCodeInvalidFilingType, "unstarted snapshot carries a filing type")
		}
	} else {
		if !snap.FilingType.IsValid() {
			return errors.New(errors.ErrCodeInvalidFilingType, "snapshot filing type is invalid").WithDetail(string(snap.FilingType))
		}
		if snap.Step < 1 || snap.Step > snap.FilingType.StepCount() {
			return errors.Newf(errors.ErrCodeStepOutOfRange, "snapshot step %d out of range", snap.Step)
		}
		r, err := filing.UnmarshalRecord(snap.FilingType, snap.Record)
		if err != nil {
			return err
		}
		record = r
	}
	uploads := filing.NewUploadSet()
	for _, f := range snap.Uploads {
		if err := uploads.Add(f); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
	if snap.OwnerID != "" {
		c.ownerID = snap.OwnerID
	}
	c.applicationID = snap.ApplicationID
	c.filingType = snap.FilingType
	c.state = snap.State
	c.step = 1
	if c.state != StateUnstarted {
		c.step = snap.Step
	}
	c.record = record
	c.uploads = uploads
	c.score = clamp(snap.Score)
	c.complianceScore = copyInt(snap.ComplianceScore)
	c.documentScore = copyInt(snap.DocumentScore)
	c.report = c.evaluator.Evaluate(c.filingType, c.record)
	for _, d := range snap.Documents {
		c.documents[d.Kind] = d
	}
	for k, v := range snap.Suggestions {
		c.suggestions[k] = append([]string(nil), v...)
	}
	if !snap.UpdatedAt.IsZero() {
		c.updatedAt = snap.UpdatedAt
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// helpers
// ─────────────────────────────────────────────────────────────────────────────

func (c *Controller) setStepLocked(step int) {
	if step == c.step {
		return
	}
	c.step = step
	c.scope.cancel()
	c.scope = newScope(c.scope.epoch + 1)
	c.touchLocked()
}

// checkStepLocked enforces step ∈ [1, N] for a started session.
func (c *Controller) checkStepLocked() {
	n := c.filingType.StepCount()
	if c.step >= 1 && c.step <= n {
		return
	}
	c.invariantLocked(errors.Newf(errors.ErrCodeStepOutOfRange, "step %d outside [1, %d]", c.step, n))
	c.step = min(max(c.step, 1), n)
}

func (c *Controller) invariantLocked(err error) {
	if c.strict {
		panic(fmt.Sprintf("session %s: invariant violated: %v", c.id, err))
	}
	c.logger.Error("session invariant violated", logging.Err(err),
		logging.Int(logging.FieldStep, c.step),
		logging.String(logging.FieldFilingType, c.filingType.String()))
}

func (c *Controller) addNoticeLocked(n Notice) {
	n.At = c.now().UTC()
	c.notices = append(c.notices, n)
	if len(c.notices) > maxNotices {
		c.notices = c.notices[len(c.notices)-maxNotices:]
	}
}

func (c *Controller) touchLocked() { c.updatedAt = c.now().UTC() }

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func clamp(score int) int {
	return min(max(score, 0), filing.MaxScore)
}

//Personal.AI order the ending
