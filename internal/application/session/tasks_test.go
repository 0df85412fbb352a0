package session

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/IPFiling-Assistant/internal/domain/filing"
	"github.com/turtacn/IPFiling-Assistant/pkg/errors"
)

type fakeSuggester struct {
	list    []string
	err     error
	release chan struct{}

	mu   sync.Mutex
	reqs []SuggestionRequest
}

func (f *fakeSuggester) Suggest(ctx context.Context, req SuggestionRequest) ([]string, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if f.release != nil {
		<-f.release
	}
	return f.list, f.err
}

type fakeRenderer struct {
	err     error
	release chan struct{}
}

func (f *fakeRenderer) Render(ctx context.Context, content string) (*RenderedDocument, error) {
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	return &RenderedDocument{Data: []byte(content), MediaType: "text/html", Extension: "html"}, nil
}

type memBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
	deleted []string
}

func newMemBlobs() *memBlobs { return &memBlobs{objects: map[string][]byte{}} }

func (m *memBlobs) Upload(ctx context.Context, key string, body io.Reader, size int64, meta BlobMetadata) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = buf.Bytes()
	return "mem://" + key, nil
}

func (m *memBlobs) Delete(ctx context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, ref)
	return nil
}

func (m *memBlobs) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.objects))
	for k := range m.objects {
		out = append(out, k)
	}
	return out
}

type taskRecorder struct {
	mu      sync.Mutex
	results []TaskResult
}

func (r *taskRecorder) observe(res TaskResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func (r *taskRecorder) outcomes() []TaskOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TaskOutcome, 0, len(r.results))
	for _, res := range r.results {
		out = append(out, res.Outcome)
	}
	return out
}

func TestRequestSuggestions_Applied(t *testing.T) {
	sugg := &fakeSuggester{list: []string{"  Rotating brush widget ", "", "Widget"}}
	rec := &taskRecorder{}
	c := NewController(WithSuggestionProvider(sugg), WithTaskObserver(rec.observe), WithSuggestionCount(2))
	require.True(t, c.SelectFilingType(filing.FilingTypePatent).Accepted)

	require.True(t, c.RequestSuggestions("title", true).Accepted)
	c.Wait()

	snap := c.Snapshot()
	assert.Equal(t, []string{"Rotating brush widget", "Widget"}, snap.Suggestions["title"])
	assert.Equal(t, "Rotating brush widget", c.Record().(*filing.PatentRecord).Title)
	assert.NotNil(t, snap.ComplianceScore)
	assert.Equal(t, []TaskOutcome{TaskApplied}, rec.outcomes())

	require.Len(t, sugg.reqs, 1)
	assert.Equal(t, 2, sugg.reqs[0].Count)
	assert.Equal(t, "Basic Info", sugg.reqs[0].StepName)
	assert.Equal(t, filing.FilingTypePatent, sugg.reqs[0].FilingType)
}

func TestRequestSuggestions_AutoApplyKeepsExistingValue(t *testing.T) {
	c := NewController(WithSuggestionProvider(&fakeSuggester{list: []string{"Other"}}))
	require.True(t, c.SelectFilingType(filing.FilingTypePatent).Accepted)
	require.True(t, c.MergeFields(mustPatch(t, map[string]interface{}{"title": "Mine"})).Accepted)

	require.True(t, c.RequestSuggestions("title", true).Accepted)
	c.Wait()
	assert.Equal(t, "Mine", c.Record().(*filing.PatentRecord).Title)
	assert.Equal(t, []string{"Other"}, c.Snapshot().Suggestions["title"])
}

func TestRequestSuggestions_Rejections(t *testing.T) {
	c := NewController()
	assert.False(t, c.RequestSuggestions("title", false).Accepted)

	require.True(t, c.SelectFilingType(filing.FilingTypePatent).Accepted)
	out := c.RequestSuggestions("title", false)
	assert.False(t, out.Accepted)
	assert.Equal(t, errors.ErrCodeFeatureDisabled, out.Code)

	c = NewController(WithSuggestionProvider(&fakeSuggester{}))
	require.True(t, c.SelectFilingType(filing.FilingTypePatent).Accepted)
	out = c.RequestSuggestions("markText", false)
	assert.False(t, out.Accepted)
	assert.Equal(t, errors.ErrCodeUnknownField, out.Code)
}

func TestRequestSuggestions_FailureAddsNotice(t *testing.T) {
	rec := &taskRecorder{}
	c := NewController(
		WithSuggestionProvider(&fakeSuggester{err: fmt.Errorf("provider down")}),
		WithTaskObserver(rec.observe),
	)
	require.True(t, c.SelectFilingType(filing.FilingTypePatent).Accepted)
	before := c.Snapshot()

	require.True(t, c.RequestSuggestions("briefSummary", false).Accepted)
	c.Wait()

	notices := c.Notices()
	require.Len(t, notices, 1)
	assert.Equal(t, TaskSuggestion, notices[0].Kind)
	assert.Equal(t, errors.ErrCodeCollaboratorFailure, notices[0].Code)
	assert.Equal(t, []TaskOutcome{TaskFailed}, rec.outcomes())

	after := c.Snapshot()
	assert.Equal(t, before.Record, after.Record)
	assert.Equal(t, before.Score, after.Score)
	assert.Empty(t, after.Suggestions)
}

func TestRequestSuggestions_StaleAfterStepChange(t *testing.T) {
	sugg := &fakeSuggester{list: []string{"late"}, release: make(chan struct{})}
	rec := &taskRecorder{}
	c := NewController(WithSuggestionProvider(sugg), WithTaskObserver(rec.observe))
	require.True(t, c.SelectFilingType(filing.FilingTypePatent).Accepted)
	require.True(t, c.MergeFields(mustPatch(t, patentStep1())).Accepted)

	require.True(t, c.RequestSuggestions("abstract", true).Accepted)
	require.True(t, c.AdvanceStep().Accepted)
	close(sugg.release)
	c.Wait()

	assert.Equal(t, 1, c.StaleDiscards())
	assert.Empty(t, c.Snapshot().Suggestions)
	assert.Empty(t, c.Record().(*filing.PatentRecord).Abstract)
	assert.Empty(t, c.Notices())
	assert.Equal(t, []TaskOutcome{TaskStale}, rec.outcomes())
}

func TestRequestSuggestions_StaleAfterTypeChange(t *testing.T) {
	sugg := &fakeSuggester{list: []string{"late"}, release: make(chan struct{})}
	c := NewController(WithSuggestionProvider(sugg))
	require.True(t, c.SelectFilingType(filing.FilingTypePatent).Accepted)

	require.True(t, c.RequestSuggestions("title", true).Accepted)
	require.True(t, c.SelectFilingType(filing.FilingTypeTrademark).Accepted)
	close(sugg.release)
	c.Wait()

	assert.Equal(t, 1, c.StaleDiscards())
	assert.True(t, filing.IsEmpty(c.Record()))
}

func TestGenerateDocument_UpdatesDocumentScore(t *testing.T) {
	blobs := newMemBlobs()
	rec := &taskRecorder{}
	c := NewController(WithID("s-doc"), WithRenderer(&fakeRenderer{}), WithDocumentStore(blobs), WithTaskObserver(rec.observe))
	require.True(t, c.SelectFilingType(filing.FilingTypePatent).Accepted)
	require.True(t, c.MergeFields(mustPatch(t, patentStep1())).Accepted)
	compliance := *c.Snapshot().ComplianceScore

	require.True(t, c.GenerateDocument("claims").Accepted)
	c.Wait()

	snap := c.Snapshot()
	require.Len(t, snap.Documents, 1)
	assert.Equal(t, filing.DocumentKind("claims"), snap.Documents[0].Kind)
	assert.Equal(t, "mem://documents/s-doc/claims.html", snap.Documents[0].BlobRef)
	assert.Equal(t, "text/html", snap.Documents[0].MediaType)
	assert.Equal(t, []string{"documents/s-doc/claims.html"}, blobs.keys())

	ds := filing.DocumentScore(1, len(filing.RequiredDocuments(filing.FilingTypePatent)))
	require.NotNil(t, snap.DocumentScore)
	assert.Equal(t, ds, *snap.DocumentScore)
	assert.Equal(t, filing.Combine(&compliance, &ds), snap.Score)
	assert.Equal(t, []TaskOutcome{TaskApplied}, rec.outcomes())
}

func TestGenerateDocument_WithoutStoreKeepsMetadata(t *testing.T) {
	c := NewController(WithRenderer(&fakeRenderer{}))
	require.True(t, c.SelectFilingType(filing.FilingTypeTrademark).Accepted)
	require.True(t, c.GenerateDocument("APPLICATION").Accepted)
	c.Wait()

	snap := c.Snapshot()
	require.Len(t, snap.Documents, 1)
	assert.Empty(t, snap.Documents[0].BlobRef)
	assert.Positive(t, snap.Documents[0].Size)
}

func TestGenerateDocument_Rejections(t *testing.T) {
	c := NewController()
	assert.False(t, c.GenerateDocument("claims").Accepted)

	require.True(t, c.SelectFilingType(filing.FilingTypePatent).Accepted)
	out := c.GenerateDocument("claims")
	assert.Equal(t, errors.ErrCodeFeatureDisabled, out.Code)

	c = NewController(WithRenderer(&fakeRenderer{}))
	require.True(t, c.SelectFilingType(filing.FilingTypePatent).Accepted)
	out = c.GenerateDocument("specimen_statement")
	assert.False(t, out.Accepted)
	assert.Equal(t, errors.ErrCodeUnknownDocumentKind, out.Code)
}

func TestGenerateDocument_FailuresAddNotice(t *testing.T) {
	c := NewController(WithRenderer(&fakeRenderer{err: fmt.Errorf("chrome crashed")}))
	require.True(t, c.SelectFilingType(filing.FilingTypePatent).Accepted)
	require.True(t, c.GenerateDocument("abstract").Accepted)
	c.Wait()

	notices := c.Notices()
	require.Len(t, notices, 1)
	assert.Equal(t, TaskDocument, notices[0].Kind)
	assert.Equal(t, errors.ErrCodeCollaboratorFailure, notices[0].Code)
	assert.Empty(t, c.Snapshot().Documents)
	assert.Nil(t, c.Snapshot().DocumentScore)

	blobs := newMemBlobs()
	blobs.err = fmt.Errorf("bucket missing")
	c = NewController(WithRenderer(&fakeRenderer{}), WithDocumentStore(blobs))
	require.True(t, c.SelectFilingType(filing.FilingTypePatent).Accepted)
	require.True(t, c.GenerateDocument("abstract").Accepted)
	c.Wait()
	require.Len(t, c.Notices(), 1)
	assert.Empty(t, c.Snapshot().Documents)
}

func TestGenerateDocument_StaleAfterReset(t *testing.T) {
	r := &fakeRenderer{release: make(chan struct{})}
	c := NewController(WithRenderer(r))
	require.True(t, c.SelectFilingType(filing.FilingTypePatent).Accepted)
	require.True(t, c.GenerateDocument("specification").Accepted)
	require.True(t, c.Reset().Accepted)
	close(r.release)
	c.Wait()

	assert.Equal(t, 1, c.StaleDiscards())
	snap := c.Snapshot()
	assert.Empty(t, snap.Documents)
	assert.Nil(t, snap.DocumentScore)
	assert.Equal(t, 0, snap.Score)
}

//Personal.AI order the ending
