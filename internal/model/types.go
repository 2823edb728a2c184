package model

import "time"

// Decision is the terminal outcome of intent analysis.
type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionBlock Decision = "block"
)

// Severity grades a sandbox warning.
type Severity string

const (
	SevLow      Severity = "low"
	SevMedium   Severity = "medium"
	SevHigh     Severity = "high"
	SevCritical Severity = "critical"
)

// SevRank maps severity to a comparable integer for monotonic escalation.
var SevRank = map[Severity]int{
	SevLow:      0,
	SevMedium:   1,
	SevHigh:     2,
	SevCritical: 3,
}

// ParseSeverity coerces a raw string to a known severity, defaulting to low.
func ParseSeverity(s string) Severity {
	switch Severity(s) {
	case SevLow, SevMedium, SevHigh, SevCritical:
		return Severity(s)
	default:
		return SevLow
	}
}

// SourceFlag identifies a detection raised by the untrusted-source layer.
type SourceFlag string

const (
	FlagUntrustedSource     SourceFlag = "UNTRUSTED_SOURCE"
	FlagSandboxTrigger      SourceFlag = "SANDBOX_TRIGGER"
	FlagBlockedDomain       SourceFlag = "BLOCKED_DOMAIN"
	FlagIndirectInjection   SourceFlag = "INDIRECT_INJECTION"
	FlagManipulationPattern SourceFlag = "MANIPULATION_PATTERN"
)

// RecommendedAction is the untrusted-source layer's advisory verdict.
type RecommendedAction string

const (
	ActionAllow   RecommendedAction = "allow"
	ActionMonitor RecommendedAction = "monitor"
	ActionBlock   RecommendedAction = "block"
)

// SandboxWarning is one finding from the untrusted-source layer.
type SandboxWarning struct {
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// TransactionIntent is a proposed financial action submitted by an agent
// for review before execution. Immutable once submitted.
type TransactionIntent struct {
	AgentID           string    `json:"agent_id"`
	TargetAddress     string    `json:"target_address"`
	AmountSOL         float64   `json:"amount_sol"`
	FunctionSignature string    `json:"function_signature,omitempty"`
	Reasoning         string    `json:"reasoning"`
	Timestamp         time.Time `json:"timestamp"`
	RequestID         string    `json:"request_id"`
}

// HeuristicResult is the output of the rule-based first pass.
type HeuristicResult struct {
	Passed         bool     `json:"passed"`
	Blacklisted    bool     `json:"blacklisted"`
	AmountExceeded bool     `json:"amount_exceeded"`
	Details        []string `json:"details"`
}

// SourceDetectionResult is the output of the untrusted-source layer.
type SourceDetectionResult struct {
	RiskScore         int               `json:"risk_score"`
	Flags             []SourceFlag      `json:"flags"`
	URLsFound         []string          `json:"urls_found"`
	UntrustedDomains  []string          `json:"untrusted_domains"`
	SandboxMode       bool              `json:"sandbox_mode"`
	RecommendedAction RecommendedAction `json:"recommended_action"`
	Warnings          []SandboxWarning  `json:"warnings"`
}

// HasFlag reports whether the given flag was raised.
func (r *SourceDetectionResult) HasFlag(flag SourceFlag) bool {
	for _, f := range r.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// HasUntrustedSources reports whether any extracted domain fell outside
// the trusted allowlist.
func (r *SourceDetectionResult) HasUntrustedSources() bool {
	return len(r.UntrustedDomains) > 0
}

// CountBySeverity returns the number of warnings at or above minimum.
func (r *SourceDetectionResult) CountBySeverity(minimum Severity) int {
	n := 0
	for _, w := range r.Warnings {
		if SevRank[w.Severity] >= SevRank[minimum] {
			n++
		}
	}
	return n
}

// LLMAnalysisResult is the output of the semantic layer.
type LLMAnalysisResult struct {
	RiskScore               int    `json:"risk_score"`
	ConsistencyCheck        bool   `json:"consistency_check"`
	PromptInjectionDetected bool   `json:"prompt_injection_detected"`
	Explanation             string `json:"explanation"`
	RawResponse             string `json:"raw_response,omitempty"`
	Degraded                bool   `json:"degraded,omitempty"`
}

// AnalysisResult is the terminal artifact of the pipeline. Produced exactly
// once per request, never mutated after return.
type AnalysisResult struct {
	RequestID      string                 `json:"request_id"`
	Decision       Decision               `json:"decision"`
	RiskScore      int                    `json:"risk_score"`
	Explanation    string                 `json:"explanation"`
	Heuristic      *HeuristicResult       `json:"heuristic_result"`
	Source         *SourceDetectionResult `json:"source_detection_result"`
	LLM            *LLMAnalysisResult     `json:"llm_result,omitempty"`
	AnalysisTimeMS float64                `json:"analysis_time_ms"`
	Timestamp      time.Time              `json:"timestamp"`
}

// ClampScore forces a risk score into [0,100]. Out-of-range values from any
// layer are corrected here rather than failing the request.
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
