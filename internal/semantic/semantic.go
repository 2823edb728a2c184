// Package semantic is the LLM analysis layer: consistency checking
// between reasoning and transaction, prompt injection detection, and
// semantic risk scoring. It degrades rather than fails - a provider
// outage yields a conservative mid-range score, never an error.
package semantic

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kyvernlabs/shield/internal/model"
)

// Provider completes a single prompt against an LLM backend.
type Provider interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Name() string
}

// Config holds provider selection and common LLM parameters.
type Config struct {
	Provider    string
	BaseURL     string
	APIKey      string
	Model       string
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
}

// NewProvider builds the configured Provider. Recognized values:
// "openai-compatible" (any chat-completions endpoint, Ollama included)
// and "openai" (official SDK).
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "", "openai-compatible":
		return NewHTTPProvider(cfg)
	case "openai":
		return NewOpenAIProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// Analyzer runs semantic analysis through a Provider.
type Analyzer struct {
	provider Provider
	log      *zap.Logger
}

// NewAnalyzer wraps a provider. A nil provider means unconfigured; every
// call then returns the degraded fallback result.
func NewAnalyzer(provider Provider, log *zap.Logger) *Analyzer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Analyzer{provider: provider, log: log}
}

// Analyze evaluates a transaction intent. sandboxMode switches to the
// elevated-scrutiny prompt and feeds riskFactors into it. Never returns
// an error: any failure produces a Degraded result instead.
func (a *Analyzer) Analyze(ctx context.Context, intent *model.TransactionIntent, sandboxMode bool, riskFactors []string) *model.LLMAnalysisResult {
	if a.provider == nil {
		a.log.Warn("llm analysis skipped, no provider configured")
		return fallbackResult("no LLM provider configured", "", sandboxMode)
	}

	prompt := buildPrompt(intent, sandboxMode, riskFactors)

	raw, err := a.provider.Complete(ctx, prompt)
	if err != nil {
		a.log.Warn("llm completion failed",
			zap.String("provider", a.provider.Name()),
			zap.Error(err))
		return fallbackResult(err.Error(), "", sandboxMode)
	}

	result := parseResponse(raw, sandboxMode)
	if result.Degraded {
		a.log.Warn("llm response unparseable",
			zap.String("provider", a.provider.Name()),
			zap.Int("response_len", len(raw)))
	}
	return result
}

// jsonObjectPattern extracts a JSON object allowing one level of nesting,
// for models that wrap their answer in prose.
var jsonObjectPattern = regexp.MustCompile(`\{(?:[^{}]|\{[^{}]*\})*\}`)

type llmResponse struct {
	RiskScore               *float64 `json:"risk_score"`
	ConsistencyCheck        *bool    `json:"consistency_check"`
	PromptInjectionDetected *bool    `json:"prompt_injection_detected"`
	Explanation             string   `json:"explanation"`
}

// parseResponse decodes the model's JSON answer. Markdown fences are
// stripped first; if direct decoding fails, the first balanced object in
// the text is tried before giving up.
func parseResponse(raw string, sandboxMode bool) *model.LLMAnalysisResult {
	cleaned := cleanJSON(raw)

	var parsed llmResponse
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		match := jsonObjectPattern.FindString(cleaned)
		if match == "" {
			return fallbackResult("could not parse LLM response", raw, sandboxMode)
		}
		if err := json.Unmarshal([]byte(match), &parsed); err != nil {
			return fallbackResult("invalid JSON in LLM response", raw, sandboxMode)
		}
	}

	score := 50
	if parsed.RiskScore != nil {
		score = model.ClampScore(int(*parsed.RiskScore))
	}
	consistency := true
	if parsed.ConsistencyCheck != nil {
		consistency = *parsed.ConsistencyCheck
	}
	injection := false
	if parsed.PromptInjectionDetected != nil {
		injection = *parsed.PromptInjectionDetected
	}
	explanation := parsed.Explanation
	if explanation == "" {
		explanation = "No explanation provided"
	}

	return &model.LLMAnalysisResult{
		RiskScore:               score,
		ConsistencyCheck:        consistency,
		PromptInjectionDetected: injection,
		Explanation:             explanation,
		RawResponse:             raw,
	}
}

// fallbackResult is the conservative stand-in when analysis cannot
// complete. Sandbox mode carries a higher floor because the intent
// already touched untrusted data.
func fallbackResult(reason, raw string, sandboxMode bool) *model.LLMAnalysisResult {
	score := 50
	if sandboxMode {
		score = 65
	}
	return &model.LLMAnalysisResult{
		RiskScore:               score,
		ConsistencyCheck:        true,
		PromptInjectionDetected: false,
		Explanation:             fmt.Sprintf("LLM analysis incomplete: %s. Manual review recommended.", reason),
		RawResponse:             raw,
		Degraded:                true,
	}
}

// cleanJSON strips markdown fences and surrounding whitespace.
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
