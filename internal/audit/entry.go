package audit

import (
	"time"

	"github.com/kyvernlabs/shield/internal/model"
)

// Entry is one line in the hash-chained JSONL decision log.
// All fields are scalars or slices (no map[string]any) to guarantee
// deterministic json.Marshal field order for reproducible hashing.
type Entry struct {
	Timestamp   string             `json:"ts"`
	RequestID   string             `json:"request_id"`
	AgentID     string             `json:"agent_id"`
	Target      string             `json:"target"`
	AmountSOL   float64            `json:"amount_sol"`
	Decision    string             `json:"decision"`
	RiskScore   int                `json:"risk_score"`
	Reason      string             `json:"reason"`
	SandboxMode bool               `json:"sandbox_mode"`
	Flags       []model.SourceFlag `json:"flags,omitempty"`
	LLMDegraded bool               `json:"llm_degraded,omitempty"`
	ConfigHash  string             `json:"config_hash"`
	PrevHash    string             `json:"prev_hash"`
}

// FromResult flattens an analysis outcome into a log entry. ConfigHash
// ties the decision to the exact config revision that produced it.
func FromResult(intent *model.TransactionIntent, result *model.AnalysisResult, configHash string) Entry {
	e := Entry{
		Timestamp:  result.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z"),
		RequestID:  result.RequestID,
		AgentID:    intent.AgentID,
		Target:     intent.TargetAddress,
		AmountSOL:  intent.AmountSOL,
		Decision:   string(result.Decision),
		RiskScore:  result.RiskScore,
		Reason:     result.Explanation,
		ConfigHash: configHash,
	}
	if result.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	}
	if result.Source != nil {
		e.SandboxMode = result.Source.SandboxMode
		e.Flags = result.Source.Flags
	}
	if result.LLM != nil {
		e.LLMDegraded = result.LLM.Degraded
	}
	return e
}
