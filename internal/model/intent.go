package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Address and reasoning bounds for intent validation. Addresses are
// base58-encoded account keys, 32-44 characters.
const (
	MinAddressLen   = 32
	MaxAddressLen   = 44
	MaxReasoningLen = 2000
)

// NewIntent builds a validated TransactionIntent with a fresh request ID
// and timestamp.
func NewIntent(agentID, targetAddress string, amountSOL float64, functionSignature, reasoning string) (*TransactionIntent, error) {
	intent := &TransactionIntent{
		AgentID:           agentID,
		TargetAddress:     targetAddress,
		AmountSOL:         amountSOL,
		FunctionSignature: functionSignature,
		Reasoning:         reasoning,
		Timestamp:         time.Now().UTC(),
		RequestID:         uuid.NewString(),
	}
	if err := intent.Validate(); err != nil {
		return nil, err
	}
	return intent, nil
}

// Validate rejects malformed intents before they enter the pipeline.
// A well-formed intent is guaranteed a decision; a malformed one never
// reaches the orchestrator.
func (t *TransactionIntent) Validate() error {
	if t.AgentID == "" {
		return fmt.Errorf("intent: agent_id is required")
	}
	if n := len(t.TargetAddress); n < MinAddressLen || n > MaxAddressLen {
		return fmt.Errorf("intent: target_address length %d outside [%d,%d]", n, MinAddressLen, MaxAddressLen)
	}
	if t.AmountSOL < 0 {
		return fmt.Errorf("intent: amount_sol %v is negative", t.AmountSOL)
	}
	if t.Reasoning == "" {
		return fmt.Errorf("intent: reasoning is required")
	}
	if len(t.Reasoning) > MaxReasoningLen {
		return fmt.Errorf("intent: reasoning length %d exceeds %d", len(t.Reasoning), MaxReasoningLen)
	}
	return nil
}
