// Package pipeline orchestrates the analysis layers into a single
// decision: heuristic rules and source detection run concurrently,
// then the LLM layer runs unless an early block made it pointless,
// and the scores fuse into one risk number with one verdict.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kyvernlabs/shield/internal/heuristic"
	"github.com/kyvernlabs/shield/internal/model"
	"github.com/kyvernlabs/shield/internal/semantic"
	"github.com/kyvernlabs/shield/internal/source"
)

// Config holds fusion thresholds and weights.
type Config struct {
	AutoBlockThreshold      int
	AutoAllowThreshold      int
	SkipLLMOnHeuristicBlock bool
	HeuristicWeight         float64
	LLMWeight               float64
	AlwaysRunSemantic       bool
}

// DefaultConfig returns production fusion parameters.
func DefaultConfig() Config {
	return Config{
		AutoBlockThreshold:      80,
		AutoAllowThreshold:      20,
		SkipLLMOnHeuristicBlock: true,
		HeuristicWeight:         0.4,
		LLMWeight:               0.6,
	}
}

// Analyzer is the pipeline orchestrator. Safe for concurrent use.
type Analyzer struct {
	cfg       Config
	heuristic *heuristic.Analyzer
	detector  *source.Detector
	semantic  *semantic.Analyzer
	log       *zap.Logger
}

// analysisState tracks a request's progress through the pipeline.
// Transitions only move forward; stateDecided is terminal, so a layer
// skipped by an early exit can never run afterwards and change the
// verdict.
type analysisState int

const (
	stateHeuristicPending analysisState = iota
	stateSourceCheckPending
	stateSemanticPending
	stateDecided
)

// New assembles the pipeline from its layers.
func New(cfg Config, h *heuristic.Analyzer, d *source.Detector, s *semantic.Analyzer, log *zap.Logger) *Analyzer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Analyzer{cfg: cfg, heuristic: h, detector: d, semantic: s, log: log}
}

// Analyze runs the full pipeline on one intent. The returned error covers
// only intent validation; layer failures degrade instead of erroring.
func (a *Analyzer) Analyze(ctx context.Context, intent *model.TransactionIntent) (*model.AnalysisResult, error) {
	if err := intent.Validate(); err != nil {
		return nil, fmt.Errorf("invalid intent: %w", err)
	}

	start := time.Now()
	a.log.Info("starting transaction analysis",
		zap.String("request_id", intent.RequestID),
		zap.String("agent_id", intent.AgentID),
		zap.String("target", truncateAddr(intent.TargetAddress)),
		zap.Float64("amount_sol", intent.AmountSOL))

	var (
		hres *model.HeuristicResult
		sres *model.SourceDetectionResult
		lres *model.LLMAnalysisResult
	)

	// The source scan is independent of the heuristic pass; it runs
	// alongside and is collected at the source-check state.
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		sres = a.detector.Analyze(intent.Reasoning, nil)
		return nil
	})

	// ruleBlock records a verdict reached before the semantic layer.
	// The semantic layer may still run afterwards (audit mode) but
	// cannot downgrade it.
	ruleBlock := false
	ruleScore := 0
	sourceBlock := false

	for st := stateHeuristicPending; st != stateDecided; {
		switch st {
		case stateHeuristicPending:
			hres = a.heuristic.Analyze(intent)
			st = stateSourceCheckPending

		case stateSourceCheckPending:
			_ = g.Wait()
			if sres.SandboxMode {
				a.log.Warn("sandbox mode activated, untrusted sources detected",
					zap.String("request_id", intent.RequestID),
					zap.Int("warnings", len(sres.Warnings)),
					zap.String("action", string(sres.RecommendedAction)))
			}
			sourceBlock = sres.RecommendedAction == model.ActionBlock
			if (!hres.Passed && a.cfg.SkipLLMOnHeuristicBlock) || sourceBlock {
				ruleBlock = true
				ruleScore = a.heuristicRisk(hres)
				if sourceBlock {
					ruleScore = 100
				}
				if a.cfg.AlwaysRunSemantic {
					st = stateSemanticPending
				} else {
					st = stateDecided
				}
			} else {
				st = stateSemanticPending
			}

		case stateSemanticPending:
			lres = a.semantic.Analyze(ctx, intent, sres.SandboxMode, warningMessages(sres))
			st = stateDecided
		}
	}

	var (
		decision model.Decision
		score    int
	)
	if ruleBlock {
		decision = model.DecisionBlock
		score = ruleScore
		a.log.Warn("transaction blocked by pre-llm analysis",
			zap.String("request_id", intent.RequestID),
			zap.Int("risk_score", score),
			zap.Bool("blacklisted", hres.Blacklisted),
			zap.Bool("sandbox_blocked", sourceBlock))
	} else {
		score = a.combineScores(hres, sres, lres.RiskScore)
		decision = a.decide(score, hres, sres, lres)
	}

	result := &model.AnalysisResult{
		RequestID:      intent.RequestID,
		Decision:       decision,
		RiskScore:      score,
		Explanation:    buildExplanation(decision, hres, sres, lres),
		Heuristic:      hres,
		Source:         sres,
		LLM:            lres,
		AnalysisTimeMS: elapsedMS(start),
		Timestamp:      time.Now().UTC(),
	}

	a.log.Info("transaction analysis complete",
		zap.String("request_id", intent.RequestID),
		zap.String("decision", string(decision)),
		zap.Int("risk_score", score),
		zap.Bool("sandbox_mode", sres.SandboxMode),
		zap.Float64("analysis_time_ms", result.AnalysisTimeMS))
	return result, nil
}

// heuristicRisk converts rule findings into a score. Blacklist hits take
// the maximum, amount violations score high, and suspicious reasoning
// patterns floor the score at 60 plus 15 per finding.
func (a *Analyzer) heuristicRisk(hres *model.HeuristicResult) int {
	score := 0
	if hres.Blacklisted {
		score = 100
	} else if hres.AmountExceeded {
		score = 75
	}

	suspicious := 0
	for _, d := range hres.Details {
		if strings.Contains(d, "SUSPICIOUS") {
			suspicious++
		}
	}
	if suspicious > 0 {
		floor := model.ClampScore(60 + suspicious*15)
		if floor > score {
			score = floor
		}
	}
	return score
}

// combineScores fuses the layer scores. Critical heuristic findings take
// whichever layer scored higher; otherwise a weighted blend plus source
// detection penalties, clamped once at the end.
func (a *Analyzer) combineScores(hres *model.HeuristicResult, sres *model.SourceDetectionResult, llmScore int) int {
	hScore := a.heuristicRisk(hres)

	if hres.Blacklisted || hres.AmountExceeded {
		if llmScore > hScore {
			return llmScore
		}
		return hScore
	}

	combined := float64(hScore)*a.cfg.HeuristicWeight + float64(llmScore)*a.cfg.LLMWeight

	if sres.HasUntrustedSources() {
		combined += 10
	}
	if sres.SandboxMode {
		combined += 15
	}
	combined += float64(sres.CountBySeverity(model.SevHigh)) * 10

	return model.ClampScore(int(combined))
}

// decide applies the block rules in priority order, falling through to
// the score threshold.
func (a *Analyzer) decide(combined int, hres *model.HeuristicResult, sres *model.SourceDetectionResult, lres *model.LLMAnalysisResult) model.Decision {
	if hres.Blacklisted {
		return model.DecisionBlock
	}
	if lres != nil && lres.PromptInjectionDetected {
		return model.DecisionBlock
	}
	if sres.RecommendedAction == model.ActionBlock {
		return model.DecisionBlock
	}
	if sres.CountBySeverity(model.SevCritical) > 0 {
		return model.DecisionBlock
	}
	if combined >= a.cfg.AutoBlockThreshold {
		return model.DecisionBlock
	}
	return model.DecisionAllow
}

// buildExplanation renders the decision into one deterministic string:
// verdict, primary reason, sandbox context, then layer findings.
func buildExplanation(decision model.Decision, hres *model.HeuristicResult, sres *model.SourceDetectionResult, lres *model.LLMAnalysisResult) string {
	var parts []string

	if decision == model.DecisionBlock {
		parts = append(parts, "Transaction BLOCKED.")
		switch {
		case hres.Blacklisted:
			parts = append(parts, "Reason: Target address is on blacklist.")
		case hres.AmountExceeded:
			parts = append(parts, "Reason: Transaction amount exceeds configured limits.")
		case sres != nil && sres.RecommendedAction == model.ActionBlock:
			parts = append(parts, "Reason: Untrusted data source detected - potential indirect injection attack.")
		case lres != nil && lres.PromptInjectionDetected:
			parts = append(parts, "Reason: Potential prompt injection detected in reasoning.")
		case lres != nil && !lres.ConsistencyCheck:
			parts = append(parts, "Reason: Agent reasoning inconsistent with transaction.")
		default:
			parts = append(parts, "Reason: Risk score exceeded threshold.")
		}
	} else {
		parts = append(parts, "Transaction ALLOWED.", "All security checks passed.")
	}

	if sres != nil && sres.SandboxMode {
		parts = append(parts, "[SANDBOX MODE]")
		if len(sres.Warnings) > 0 {
			msgs := warningMessages(sres)
			if len(msgs) > 2 {
				msgs = msgs[:2]
			}
			parts = append(parts, "Source warnings: "+strings.Join(msgs, "; "))
		}
	}

	if len(hres.Details) > 0 {
		details := hres.Details
		if len(details) > 3 {
			details = details[:3]
		}
		parts = append(parts, "Heuristic findings: "+strings.Join(details, "; "))
	}

	if lres != nil && lres.Explanation != "" {
		parts = append(parts, "LLM assessment: "+lres.Explanation)
	}

	return strings.Join(parts, " ")
}

func warningMessages(sres *model.SourceDetectionResult) []string {
	msgs := make([]string, len(sres.Warnings))
	for i, w := range sres.Warnings {
		msgs[i] = w.Message
	}
	return msgs
}

func elapsedMS(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

func truncateAddr(addr string) string {
	if len(addr) <= 20 {
		return addr
	}
	return addr[:20] + "..."
}
