// Package anthropic implements the field suggestion provider on the Claude
// Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/turtacn/IPFiling-Assistant/internal/application/session"
	"github.com/turtacn/IPFiling-Assistant/internal/config"
	"github.com/turtacn/IPFiling-Assistant/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/IPFiling-Assistant/pkg/errors"
)

// DefaultModel is used when no model is configured.
const DefaultModel = anthropic.ModelClaudeSonnet4_20250514

const systemPrompt = `You help applicants draft intellectual property filings.
You are given the current draft record as JSON and the name of one field.
Propose concise, professional candidate values for that field, consistent with the rest of the record.

Respond with valid JSON only, no markdown and no commentary:
{"suggestions": ["<candidate 1>", "<candidate 2>", ...]}

Each candidate must be a complete value for the field, not an explanation.
Never invent registration numbers, dates or personal data that the record does not contain.`

const userPrompt = `Filing type: %s
Wizard step: %d (%s)
Field: %s
Number of candidates: %d

--- BEGIN RECORD ---
%s
--- END RECORD ---`

// Messager is the subset of the Anthropic client used here.
type Messager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

type suggestionResponse struct {
	Suggestions []string `json:"suggestions"`
}

// Provider implements session.SuggestionProvider.
type Provider struct {
	messages  Messager
	model     anthropic.Model
	maxTokens int64
	timeout   time.Duration
	logger    logging.Logger
}

// New builds a provider from configuration.
func New(cfg config.SuggestionConfig, log logging.Logger) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "anthropic api key is required")
	}
	client := anthropic.NewClient(option.WithAPIKey(cfg.APIKey))
	return NewWithMessager(&client.Messages, cfg, log), nil
}

func NewWithMessager(m Messager, cfg config.SuggestionConfig, log logging.Logger) *Provider {
	p := &Provider{
		messages:  m,
		model:     anthropic.Model(cfg.Model),
		maxTokens: int64(cfg.MaxTokens),
		timeout:   cfg.Timeout,
		logger:    log.Named("suggestion"),
	}
	if p.model == "" {
		p.model = DefaultModel
	}
	if p.maxTokens <= 0 {
		p.maxTokens = config.DefaultSuggestionMaxTokens
	}
	return p
}

func (p *Provider) Suggest(ctx context.Context, req session.SuggestionRequest) ([]string, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	count := req.Count
	if count <= 0 {
		count = config.DefaultSuggestionCount
	}
	record := string(req.Record)
	if record == "" {
		record = "{}"
	}

	start := time.Now()
	resp, err := p.messages.New(ctx, anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: p.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(
				fmt.Sprintf(userPrompt, req.FilingType, req.Step, req.StepName, req.Field, count, record),
			)),
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExternalService, "claude API call failed")
	}

	var parts []string
	for _, block := range resp.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	raw := stripCodeFences(strings.Join(parts, ""))
	if raw == "" {
		return nil, errors.New(errors.ErrCodeExternalService, "empty response from Claude API")
	}

	var out suggestionResponse
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExternalService, "failed to parse Claude response as JSON")
	}

	list := dedupe(out.Suggestions, count)
	p.logger.Debug("Suggestions generated",
		logging.String("field", req.Field),
		logging.Int("count", len(list)),
		logging.Duration("latency", time.Since(start)))
	return list, nil
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		parts := strings.SplitN(s, "\n", 2)
		if len(parts) == 2 {
			s = parts[1]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
	}
	return s
}

// dedupe trims, drops blanks and repeats, and keeps at most limit entries.
func dedupe(in []string, limit int) []string {
	out := make([]string, 0, min(len(in), limit))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
		if len(out) == limit {
			break
		}
	}
	return out
}

var _ session.SuggestionProvider = (*Provider)(nil)

//Personal.AI order the ending
