package model

import (
	"strings"
	"testing"
)

func TestClampScore(t *testing.T) {
	cases := []struct {
		in   int
		want int
	}{
		{-50, 0},
		{-1, 0},
		{0, 0},
		{42, 42},
		{100, 100},
		{101, 100},
		{5000, 100},
	}
	for _, tc := range cases {
		if got := ClampScore(tc.in); got != tc.want {
			t.Errorf("ClampScore(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestParseSeverity(t *testing.T) {
	if got := ParseSeverity("critical"); got != SevCritical {
		t.Errorf("expected critical, got %s", got)
	}
	if got := ParseSeverity("bogus"); got != SevLow {
		t.Errorf("unknown severity should default to low, got %s", got)
	}
}

func TestSeverityRankOrdering(t *testing.T) {
	if !(SevRank[SevLow] < SevRank[SevMedium] &&
		SevRank[SevMedium] < SevRank[SevHigh] &&
		SevRank[SevHigh] < SevRank[SevCritical]) {
		t.Fatal("severity ranks must be strictly increasing")
	}
}

func TestCountBySeverity(t *testing.T) {
	r := &SourceDetectionResult{
		Warnings: []SandboxWarning{
			{Message: "a", Severity: SevLow},
			{Message: "b", Severity: SevHigh},
			{Message: "c", Severity: SevCritical},
		},
	}
	if got := r.CountBySeverity(SevHigh); got != 2 {
		t.Errorf("expected 2 warnings >= high, got %d", got)
	}
	if got := r.CountBySeverity(SevCritical); got != 1 {
		t.Errorf("expected 1 critical warning, got %d", got)
	}
}

func TestHasFlag(t *testing.T) {
	r := &SourceDetectionResult{Flags: []SourceFlag{FlagUntrustedSource, FlagSandboxTrigger}}
	if !r.HasFlag(FlagSandboxTrigger) {
		t.Error("expected SANDBOX_TRIGGER to be present")
	}
	if r.HasFlag(FlagBlockedDomain) {
		t.Error("did not expect BLOCKED_DOMAIN")
	}
}

func TestNewIntentValid(t *testing.T) {
	intent, err := NewIntent("agent-1", strings.Repeat("A", 44), 0.5, "swap", "Swapping SOL for USDC.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent.RequestID == "" {
		t.Error("expected a generated request ID")
	}
	if intent.Timestamp.IsZero() {
		t.Error("expected a timestamp")
	}
}

func TestIntentValidation(t *testing.T) {
	addr := strings.Repeat("A", 40)
	cases := []struct {
		name   string
		intent TransactionIntent
		ok     bool
	}{
		{"valid", TransactionIntent{AgentID: "a", TargetAddress: addr, AmountSOL: 1, Reasoning: "ok"}, true},
		{"missing agent", TransactionIntent{TargetAddress: addr, AmountSOL: 1, Reasoning: "ok"}, false},
		{"short address", TransactionIntent{AgentID: "a", TargetAddress: "short", AmountSOL: 1, Reasoning: "ok"}, false},
		{"long address", TransactionIntent{AgentID: "a", TargetAddress: strings.Repeat("A", 45), AmountSOL: 1, Reasoning: "ok"}, false},
		{"negative amount", TransactionIntent{AgentID: "a", TargetAddress: addr, AmountSOL: -1, Reasoning: "ok"}, false},
		{"empty reasoning", TransactionIntent{AgentID: "a", TargetAddress: addr, AmountSOL: 1}, false},
		{"oversized reasoning", TransactionIntent{AgentID: "a", TargetAddress: addr, AmountSOL: 1, Reasoning: strings.Repeat("x", 2001)}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.intent.Validate()
			if tc.ok && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tc.ok && err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
