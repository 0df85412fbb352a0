package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/IPFiling-Assistant/internal/application/session"
	"github.com/turtacn/IPFiling-Assistant/internal/config"
	"github.com/turtacn/IPFiling-Assistant/internal/domain/filing"
	"github.com/turtacn/IPFiling-Assistant/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/IPFiling-Assistant/pkg/errors"
)

type mockMessager struct {
	response *anthropic.Message
	err      error
	params   anthropic.MessageNewParams
	deadline bool
}

func (m *mockMessager) New(ctx context.Context, params anthropic.MessageNewParams, _ ...option.RequestOption) (*anthropic.Message, error) {
	m.params = params
	_, m.deadline = ctx.Deadline()
	return m.response, m.err
}

func newMockMessage(text string) *anthropic.Message {
	return &anthropic.Message{
		Content: []anthropic.ContentBlockUnion{
			{Type: "text", Text: text},
		},
	}
}

func testRequest() session.SuggestionRequest {
	return session.SuggestionRequest{
		FilingType: filing.FilingTypeTrademark,
		Field:      "markDescription",
		Step:       1,
		StepName:   "Basic Info",
		Record:     json.RawMessage(`{"markText":"ACME"}`),
		Count:      2,
	}
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(config.SuggestionConfig{}, logging.NewNopLogger())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeInvalidConfig))

	p, err := New(config.SuggestionConfig{APIKey: "test-key"}, logging.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, p.model)
}

func TestSuggest_Success(t *testing.T) {
	m := &mockMessager{response: newMockMessage(`{"suggestions": ["Stylised word ACME", " ", "Stylised word ACME", "ACME in block capitals", "third"]}`)}
	p := NewWithMessager(m, config.SuggestionConfig{Model: "claude-test", MaxTokens: 256, Timeout: time.Minute}, logging.NewNopLogger())

	got, err := p.Suggest(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, []string{"Stylised word ACME", "ACME in block capitals"}, got)

	assert.Equal(t, anthropic.Model("claude-test"), m.params.Model)
	assert.Equal(t, int64(256), m.params.MaxTokens)
	assert.True(t, m.deadline)
	require.Len(t, m.params.System, 1)
	assert.Contains(t, m.params.System[0].Text, `"suggestions"`)
}

func TestSuggest_CodeFences(t *testing.T) {
	m := &mockMessager{response: newMockMessage("```json\n{\"suggestions\": [\"A\"]}\n```")}
	p := NewWithMessager(m, config.SuggestionConfig{}, logging.NewNopLogger())

	got, err := p.Suggest(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, got)
	assert.False(t, m.deadline)
}

func TestSuggest_Failures(t *testing.T) {
	cases := map[string]*mockMessager{
		"api error": {err: errors.New("status code: 529")},
		"empty":     {response: newMockMessage("")},
		"not json":  {response: newMockMessage("Here are some ideas: A, B")},
		"no text":   {response: &anthropic.Message{Content: []anthropic.ContentBlockUnion{{Type: "tool_use"}}}},
	}
	for name, m := range cases {
		t.Run(name, func(t *testing.T) {
			p := NewWithMessager(m, config.SuggestionConfig{}, logging.NewNopLogger())
			_, err := p.Suggest(context.Background(), testRequest())
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeExternalService))
		})
	}
}

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFences(`  {"a":1} `))
	assert.True(t, strings.HasPrefix(stripCodeFences("```json\n[1]\n```"), "[1]"))
}

func TestDedupe(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, dedupe([]string{" a", "a", "", "b", "c"}, 2))
	assert.Empty(t, dedupe(nil, 3))
}

//Personal.AI order the ending
