// Package enrich calls the Anthropic messages API to synthesize
// descriptive fields that no human curated. Each invocation makes
// exactly one outbound request with its own timeout; there is no
// internal retry, and failures surface as typed *Error values for the
// orchestrator to classify.
package enrich

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skillsite/pkg/source"
)

// Field shape constraints, enforced on every model reply.
const (
	MaxSummaryLength   = 600
	MaxHighlightLength = 160
	MaxHighlights      = 6
	MaxWorkflowSteps   = 10
)

// Default configuration values
const (
	DefaultModel     = anthropic.ModelClaude3_5HaikuLatest
	DefaultMaxTokens = 2048
	DefaultTimeout   = 60 * time.Second
)

// Config holds the adapter configuration.
type Config struct {
	// APIKey is the Anthropic API key (required).
	APIKey string

	// Model overrides the default model.
	Model string

	// MaxTokens caps the reply length.
	MaxTokens int64

	// Timeout bounds each outbound request. Enforced here, not left to
	// the transport default.
	Timeout time.Duration

	// BaseURL overrides the API endpoint, used by tests.
	BaseURL string
}

// Adapter enriches source units through the Anthropic API.
type Adapter struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
	timeout   time.Duration
}

// PluginFields is the fixed-shape enrichment result for a plugin.
type PluginFields struct {
	Summary    string   `json:"summary"`
	Highlights []string `json:"highlights"`
}

// SkillFields is the fixed-shape enrichment result for a skill.
type SkillFields struct {
	Summary  string                `json:"summary"`
	Workflow []source.WorkflowStep `json:"workflow"`
}

// NewAdapter creates an enrichment adapter. A missing API key is an
// error; the orchestrator only constructs an adapter when some unit
// actually needs enrichment.
func NewAdapter(cfg Config) (*Adapter, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic API key is required for enrichment")
	}
	if cfg.Model == "" {
		cfg.Model = string(DefaultModel)
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// One request per invocation; the caller owns failure policy
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Adapter{
		client:    anthropic.NewClient(opts...),
		model:     anthropic.Model(cfg.Model),
		maxTokens: cfg.MaxTokens,
		timeout:   cfg.Timeout,
	}, nil
}

// EnrichPlugin synthesizes summary and highlights for a plugin unit.
func (a *Adapter) EnrichPlugin(ctx context.Context, unit source.Unit) (*PluginFields, error) {
	text, err := a.complete(ctx, pluginPrompt(unit))
	if err != nil {
		return nil, err
	}

	var fields PluginFields
	if err := decodeReply(text, &fields); err != nil {
		return nil, err
	}
	if err := validatePluginFields(&fields); err != nil {
		return nil, err
	}

	return &fields, nil
}

// EnrichSkill synthesizes summary and workflow steps for a skill unit.
func (a *Adapter) EnrichSkill(ctx context.Context, unit source.Unit) (*SkillFields, error) {
	text, err := a.complete(ctx, skillPrompt(unit))
	if err != nil {
		return nil, err
	}

	var fields SkillFields
	if err := decodeReply(text, &fields); err != nil {
		return nil, err
	}
	if err := validateSkillFields(&fields); err != nil {
		return nil, err
	}

	return &fields, nil
}

func (a *Adapter) complete(ctx context.Context, prompt string) (string, error) {
	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		// Deterministic decoding keeps repeated runs textually stable
		Temperature: anthropic.Float(0),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}, option.WithRequestTimeout(a.timeout))
	if err != nil {
		return "", &Error{Kind: ErrKindNetwork, Err: err}
	}

	var b strings.Builder
	for _, block := range message.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(text.Text)
		}
	}

	if b.Len() == 0 {
		return "", &Error{Kind: ErrKindMalformed, Err: errors.New("empty model reply")}
	}

	return b.String(), nil
}

// decodeReply extracts the JSON object from the model reply. Models
// occasionally wrap JSON in markdown fences despite instructions, so
// decoding tolerates surrounding text.
func decodeReply(text string, out any) error {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end < start {
		return &Error{Kind: ErrKindMalformed, Err: errors.New("no JSON object in model reply")}
	}

	if err := json.Unmarshal([]byte(text[start:end+1]), out); err != nil {
		return &Error{Kind: ErrKindMalformed, Err: err}
	}

	return nil
}

func validatePluginFields(fields *PluginFields) error {
	if fields.Summary == "" {
		return missingField("summary")
	}
	if len(fields.Summary) > MaxSummaryLength {
		return lengthError("summary")
	}
	if len(fields.Highlights) == 0 {
		return missingField("highlights")
	}
	if len(fields.Highlights) > MaxHighlights {
		return lengthError("highlights")
	}
	for i, h := range fields.Highlights {
		if h == "" {
			return missingField(highlightField(i))
		}
		if len(h) > MaxHighlightLength {
			return lengthError(highlightField(i))
		}
	}
	return nil
}

func validateSkillFields(fields *SkillFields) error {
	if fields.Summary == "" {
		return missingField("summary")
	}
	if len(fields.Summary) > MaxSummaryLength {
		return lengthError("summary")
	}
	if len(fields.Workflow) == 0 {
		return missingField("workflow")
	}
	if len(fields.Workflow) > MaxWorkflowSteps {
		return lengthError("workflow")
	}
	for i, step := range fields.Workflow {
		if step.Name == "" {
			return missingField(workflowField(i, "name"))
		}
		if step.Description == "" {
			return missingField(workflowField(i, "description"))
		}
	}
	return nil
}

func highlightField(i int) string {
	return "highlights[" + strconv.Itoa(i) + "]"
}

func workflowField(i int, sub string) string {
	return "workflow[" + strconv.Itoa(i) + "]." + sub
}
