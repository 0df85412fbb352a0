package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/turtacn/IPFiling-Assistant/internal/domain/filing"
	"github.com/turtacn/IPFiling-Assistant/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/IPFiling-Assistant/pkg/errors"
)

// TaskKind names a background task.
type TaskKind string

const (
	TaskSuggestion TaskKind = "suggestion"
	TaskDocument   TaskKind = "document"
)

// TaskOutcome is how a background task ended.
type TaskOutcome string

const (
	TaskApplied TaskOutcome = "applied"
	TaskStale   TaskOutcome = "stale"
	TaskFailed  TaskOutcome = "failed"
)

// TaskResult is reported to the task observer.
type TaskResult struct {
	SessionID string
	Kind      TaskKind
	Target    string
	Outcome   TaskOutcome
	Err       error
}

// scope ties background tasks to the session state that started them. Any
// step change, type change or reset cancels the scope and bumps the epoch.
type scope struct {
	epoch  uint64
	ctx    context.Context
	cancel context.CancelFunc
}

func newScope(epoch uint64) scope {
	ctx, cancel := context.WithCancel(context.Background())
	return scope{epoch: epoch, ctx: ctx, cancel: cancel}
}

// scopeToken identifies the state a task was started in.
type scopeToken struct {
	epoch      uint64
	filingType filing.FilingType
	step       int
}

func (c *Controller) tokenLocked() scopeToken {
	return scopeToken{epoch: c.scope.epoch, filingType: c.filingType, step: c.step}
}

func (c *Controller) isCurrentLocked(tok scopeToken) bool {
	return c.tokenLocked() == tok && c.scope.ctx.Err() == nil
}

// RequestSuggestions asks the suggestion provider for text for field in the
// background. Results are stored per field; with autoApply the first
// suggestion is merged when the field is still empty. Results arriving after
// the session moved to another step or type are discarded.
func (c *Controller) RequestSuggestions(field string, autoApply bool) Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateUnstarted {
		return rejected("select a filing type first")
	}
	if c.suggester == nil {
		return Outcome{Reason: "suggestions are not available", Code: errors.ErrCodeFeatureDisabled}
	}
	if !filing.IsKnownField(c.filingType, field) {
		return Outcome{Reason: "unknown field for " + c.filingType.String() + " record: " + field, Code: errors.ErrCodeUnknownField}
	}
	raw, err := filing.MarshalRecord(c.record)
	if err != nil {
		return rejectedErr(err)
	}
	req := SuggestionRequest{
		FilingType: c.filingType,
		Field:      field,
		Step:       c.step,
		StepName:   c.filingType.StepNames()[c.step-1],
		Record:     raw,
		Count:      c.suggestionCount,
	}
	tok, ctx := c.tokenLocked(), c.scope.ctx

	c.tasks.Add(1)
	go func() {
		defer c.tasks.Done()
		list, err := c.suggester.Suggest(ctx, req)
		c.finish(c.applySuggestions(tok, field, autoApply, list, err))
	}()
	return accepted()
}

func (c *Controller) applySuggestions(tok scopeToken, field string, autoApply bool, list []string, err error) TaskResult {
	res := TaskResult{SessionID: c.id, Kind: TaskSuggestion, Target: field}
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isCurrentLocked(tok) {
		c.staleDiscards++
		res.Outcome = TaskStale
		return res
	}
	if err != nil {
		c.addNoticeLocked(Notice{Kind: TaskSuggestion, Message: "suggestions for " + field + " are unavailable", Code: errors.ErrCodeCollaboratorFailure})
		c.logger.Warn("suggestion provider failed", logging.Err(err), logging.String("field", field))
		res.Outcome, res.Err = TaskFailed, err
		return res
	}
	cleaned := make([]string, 0, len(list))
	for _, s := range list {
		if s = strings.TrimSpace(s); s != "" {
			cleaned = append(cleaned, s)
		}
	}
	c.suggestions[field] = cleaned
	c.touchLocked()
	res.Outcome = TaskApplied

	if autoApply && len(cleaned) > 0 && !hasField(c.record, field) {
		value, _ := json.Marshal(cleaned[0])
		if out := c.mergeLocked(filing.Patch{field: value}); !out.Accepted {
			c.addNoticeLocked(Notice{Kind: TaskSuggestion, Message: "suggestion for " + field + " could not be applied: " + out.Reason, Code: out.Code})
		}
	}
	return res
}

func hasField(r filing.Record, field string) bool {
	for _, f := range filing.Fields(r) {
		if f == field {
			return true
		}
	}
	return false
}

// GenerateDocument renders the document kind in the background, stores it
// when a document store is configured and updates the document score.
func (c *Controller) GenerateDocument(kind string) Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateUnstarted {
		return rejected("select a filing type first")
	}
	if c.renderer == nil {
		return Outcome{Reason: "document rendering is not available", Code: errors.ErrCodeFeatureDisabled}
	}
	k, err := filing.ParseDocumentKind(c.filingType, kind)
	if err != nil {
		return rejectedErr(err)
	}
	content, err := filing.BuildDocument(k, c.record)
	if err != nil {
		return rejectedErr(err)
	}
	tok, ctx := c.tokenLocked(), c.scope.ctx

	c.tasks.Add(1)
	go func() {
		defer c.tasks.Done()
		doc, ref, err := c.renderAndStore(ctx, k, content)
		c.finish(c.applyDocument(tok, k, doc, ref, err))
	}()
	return accepted()
}

func (c *Controller) renderAndStore(ctx context.Context, k filing.DocumentKind, content string) (*RenderedDocument, string, error) {
	doc, err := c.renderer.Render(ctx, content)
	if err != nil {
		return nil, "", errors.Collaborator(err, "document renderer")
	}
	if c.blobs == nil {
		return doc, "", nil
	}
	ext := doc.Extension
	if ext == "" {
		ext = "bin"
	}
	key := fmt.Sprintf("documents/%s/%s.%s", c.id, k, ext)
	ref, err := c.blobs.Upload(ctx, key, bytes.NewReader(doc.Data), int64(len(doc.Data)), BlobMetadata{
		ContentType: doc.MediaType,
		FileName:    string(k) + "." + ext,
		SessionID:   c.id,
		Category:    "document",
	})
	if err != nil {
		return nil, "", errors.Collaborator(err, "blob store")
	}
	return doc, ref, nil
}

func (c *Controller) applyDocument(tok scopeToken, k filing.DocumentKind, doc *RenderedDocument, ref string, err error) TaskResult {
	res := TaskResult{SessionID: c.id, Kind: TaskDocument, Target: string(k)}
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isCurrentLocked(tok) {
		c.staleDiscards++
		res.Outcome = TaskStale
		return res
	}
	if err != nil {
		c.addNoticeLocked(Notice{Kind: TaskDocument, Message: "could not generate " + string(k), Code: errors.GetCode(err)})
		c.logger.Warn("document generation failed", logging.Err(err), logging.String("kind", string(k)))
		res.Outcome, res.Err = TaskFailed, err
		return res
	}
	c.documents[k] = filing.GeneratedDocument{
		Kind:        k,
		MediaType:   doc.MediaType,
		Size:        int64(len(doc.Data)),
		BlobRef:     ref,
		GeneratedAt: c.now().UTC(),
	}
	required := filing.RequiredDocuments(c.filingType)
	ds := filing.DocumentScore(filing.CountGenerated(c.filingType, c.documents), len(required))
	c.documentScore = &ds
	c.score = filing.Combine(c.complianceScore, c.documentScore)
	c.touchLocked()
	res.Outcome = TaskApplied
	return res
}

func (c *Controller) finish(res TaskResult) {
	if res.Outcome == TaskStale {
		c.logger.Debug("discarded stale background result",
			logging.String("kind", string(res.Kind)),
			logging.String("target", res.Target))
	}
	if c.observer != nil {
		c.observer(res)
	}
}

// Wait blocks until every background task has finished.
func (c *Controller) Wait() {
	c.tasks.Wait()
}

//Personal.AI order the ending
