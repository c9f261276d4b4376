package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"strings"
	"text/template"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/Ramsey-B/bramble/pkg/metrics"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/tracing"
)

const (
	defaultModel   = "claude-3-5-haiku-20241022"
	initialBackoff = 1 * time.Second
)

// ErrAPIKeyRequired is returned when no API key is configured.
var ErrAPIKeyRequired = errors.New("API key required")

// ClaudeProvider asks Claude whether two names refer to the same entity.
type ClaudeProvider struct {
	client         anthropic.Client
	model          anthropic.Model
	promptTemplate *template.Template
	maxRetries     int
	initialBackoff time.Duration
	logger         ectologger.Logger
}

var _ Provider = (*ClaudeProvider)(nil)

// NewClaudeProvider creates a Claude-backed provider.
func NewClaudeProvider(apiKey, model string, maxRetries int, logger ectologger.Logger) (*ClaudeProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: set ANTHROPIC_API_KEY or provide via config", ErrAPIKeyRequired)
	}
	if model == "" {
		model = defaultModel
	}
	if maxRetries < 0 {
		maxRetries = 0
	}

	tmpl, err := template.New("compare").Parse(comparePromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse compare template: %w", err)
	}

	return &ClaudeProvider{
		client:         anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:          anthropic.Model(model),
		promptTemplate: tmpl,
		maxRetries:     maxRetries,
		initialBackoff: initialBackoff,
		logger:         logger,
	}, nil
}

// CompareEntities renders the comparison prompt, calls the model with retry
// and parses the JSON verdict. Failures surface as LLM_UNAVAILABLE so the
// resolver can degrade to the string-similarity signal alone.
func (p *ClaudeProvider) CompareEntities(ctx context.Context, nameA, nameB, entityType string) (*Judgment, error) {
	ctx, span := tracing.StartSpan(ctx, "llm.ClaudeProvider.CompareEntities")
	defer span.End()

	prompt, err := p.renderPrompt(nameA, nameB, entityType)
	if err != nil {
		return nil, models.WrapError(models.ErrLLMUnavailable, err, "failed to render prompt")
	}

	raw, err := p.callWithRetry(ctx, prompt)
	if err != nil {
		metrics.RecordLLMCall("failed")
		p.logger.WithContext(ctx).WithError(err).Warn("LLM comparison failed")
		return nil, models.WrapError(models.ErrLLMUnavailable, err, "model call failed")
	}

	judgment, err := parseJudgment(raw)
	if err != nil {
		metrics.RecordLLMCall("unparseable")
		return nil, models.WrapError(models.ErrLLMUnavailable, err, "unparseable model response")
	}
	metrics.RecordLLMCall("ok")
	return judgment, nil
}

func (p *ClaudeProvider) callWithRetry(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	params := anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := p.initialBackoff * time.Duration(math.Pow(2, float64(attempt-1)))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		message, err := p.client.Messages.New(ctx, params)

		if err == nil {
			if len(message.Content) > 0 {
				content := message.Content[0]
				if content.Type == "text" {
					return content.Text, nil
				}
				return "", fmt.Errorf("unexpected response format: not a text block (type=%s)", content.Type)
			}
			return "", fmt.Errorf("unexpected response format: no content blocks")
		}

		lastErr = err

		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		if !isRetryable(err) {
			return "", fmt.Errorf("non-retryable error: %w", err)
		}
	}

	return "", fmt.Errorf("failed after %d attempts: %w", p.maxRetries+1, lastErr)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		statusCode := apiErr.StatusCode
		if statusCode == 429 || statusCode >= 500 {
			return true
		}
		return false
	}

	return false
}

type compareData struct {
	NameA      string
	NameB      string
	EntityType string
}

func (p *ClaudeProvider) renderPrompt(nameA, nameB, entityType string) (string, error) {
	var sb strings.Builder
	if err := p.promptTemplate.Execute(&sb, compareData{NameA: nameA, NameB: nameB, EntityType: entityType}); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// parseJudgment tolerates prose or code fences around the JSON object.
func parseJudgment(raw string) (*Judgment, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in response")
	}

	var judgment Judgment
	if err := json.Unmarshal([]byte(raw[start:end+1]), &judgment); err != nil {
		return nil, err
	}

	if judgment.Confidence < 0 {
		judgment.Confidence = 0
	}
	if judgment.Confidence > 1 {
		judgment.Confidence = 1
	}
	return &judgment, nil
}

const comparePromptTemplate = `You are an entity resolution assistant. Decide whether two names refer to the same real-world entity of type {{.EntityType}}.

Name A: {{.NameA}}
Name B: {{.NameB}}

Consider abbreviations, legal suffixes, transliterations and common misspellings. Two distinct organizations with similar names (e.g. regional branches, competitors) are NOT the same entity.

Respond with ONLY a JSON object in this exact format:
{"same_entity": true|false, "confidence": 0.0-1.0, "reasoning": "one short sentence"}`
