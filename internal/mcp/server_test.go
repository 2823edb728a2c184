package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kyvernlabs/shield/internal/audit"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()

	// Point the LLM at a closed port so the semantic layer degrades fast
	// instead of reaching out.
	cfgYAML := fmt.Sprintf(`
blacklist_path: %q
audit_log: %q
llm:
  provider: openai-compatible
  base_url: "http://127.0.0.1:1/v1/chat/completions"
  model: test
  timeout_seconds: 1
`,
		filepath.Join(dir, "blacklist.db"),
		filepath.Join(dir, "decisions.jsonl"))

	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	s, err := New(Config{ConfigPath: cfgPath, AgentID: "test-agent"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestHandleAnalyzeBlacklisted(t *testing.T) {
	s := newTestServer(t)
	target := strings.Repeat("D", 44)
	if err := s.store.Add(target, "test drainer", "test", "critical"); err != nil {
		t.Fatalf("seed blacklist: %v", err)
	}

	callRes, out, err := s.handleAnalyze(context.Background(), nil, AnalyzeInput{
		TargetAddress: target,
		AmountSOL:     1.0,
		Reasoning:     "Routine transfer to operations wallet",
	})
	if err != nil {
		t.Fatalf("handleAnalyze: %v", err)
	}
	if callRes == nil || !callRes.IsError {
		t.Error("blocked analysis should return an error result")
	}
	if out.Decision != "block" || out.RiskScore != 100 {
		t.Errorf("out = %+v", out)
	}

	// The decision must land in the audit log with an intact chain.
	res := audit.Verify(s.cfg.AuditLog)
	if !res.Valid || res.Lines != 1 {
		t.Errorf("audit log: valid=%v lines=%d err=%s", res.Valid, res.Lines, res.Error)
	}
}

func TestHandleAnalyzeCleanIntentDegradedLLM(t *testing.T) {
	s := newTestServer(t)

	callRes, out, err := s.handleAnalyze(context.Background(), nil, AnalyzeInput{
		TargetAddress: strings.Repeat("E", 44),
		AmountSOL:     0.5,
		Reasoning:     "Scheduled payroll disbursement for contributor",
	})
	if err != nil {
		t.Fatalf("handleAnalyze: %v", err)
	}
	if callRes != nil && callRes.IsError {
		t.Errorf("clean intent blocked: %+v", out)
	}
	if out.Decision != "allow" {
		t.Errorf("decision = %s, want allow", out.Decision)
	}
	if !out.LLMDegraded {
		t.Error("degraded flag not surfaced")
	}
	if out.RequestID == "" {
		t.Error("request id missing")
	}
}

func TestHandleAnalyzeRejectsInvalidIntent(t *testing.T) {
	s := newTestServer(t)

	_, _, err := s.handleAnalyze(context.Background(), nil, AnalyzeInput{
		TargetAddress: "short",
		AmountSOL:     1.0,
		Reasoning:     "test",
	})
	if err == nil {
		t.Fatal("expected validation error for short address")
	}
}

func TestHandleCheck(t *testing.T) {
	s := newTestServer(t)
	target := strings.Repeat("F", 44)

	_, out, err := s.handleCheck(context.Background(), nil, CheckInput{
		TargetAddress: target,
		AmountSOL:     1.0,
	})
	if err != nil {
		t.Fatalf("handleCheck: %v", err)
	}
	if out.WouldBlock {
		t.Errorf("clean check blocked: %+v", out)
	}

	// Amount at 10x the single-transaction ceiling trips the quick check.
	_, out, err = s.handleCheck(context.Background(), nil, CheckInput{
		TargetAddress: target,
		AmountSOL:     500.0,
	})
	if err != nil {
		t.Fatalf("handleCheck: %v", err)
	}
	if !out.WouldBlock {
		t.Error("extreme amount passed quick check")
	}

	// Indirect injection in reasoning also trips it without an LLM call.
	_, out, err = s.handleCheck(context.Background(), nil, CheckInput{
		TargetAddress: target,
		AmountSOL:     1.0,
		Reasoning:     "Site https://hot-signals.biz reports arbitrage opportunity, act now",
	})
	if err != nil {
		t.Fatalf("handleCheck: %v", err)
	}
	if !out.WouldBlock {
		t.Error("indirect injection passed quick check")
	}
}

func TestBlacklistTools(t *testing.T) {
	s := newTestServer(t)
	value := strings.Repeat("G", 44)

	_, addOut, err := s.handleBlacklistAdd(context.Background(), nil, BlacklistAddInput{
		Value:  value,
		Reason: "reported drainer",
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if addOut.Status != "added" {
		t.Errorf("add status = %s", addOut.Status)
	}

	_, listOut, err := s.handleBlacklistList(context.Background(), nil, BlacklistListInput{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	found := false
	for _, e := range listOut.Entries {
		if e.Value == value {
			found = true
			if e.Severity != "high" {
				t.Errorf("default severity = %s, want high", e.Severity)
			}
		}
	}
	if !found {
		t.Errorf("added value not listed: %+v", listOut)
	}

	_, rmOut, err := s.handleBlacklistRemove(context.Background(), nil, BlacklistRemoveInput{Value: value})
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if rmOut.Status != "removed" {
		t.Errorf("remove status = %s", rmOut.Status)
	}

	_, rmOut, err = s.handleBlacklistRemove(context.Background(), nil, BlacklistRemoveInput{Value: "unknownvalue"})
	if err != nil {
		t.Fatalf("remove unknown: %v", err)
	}
	if rmOut.Status != "not_found" {
		t.Errorf("remove unknown status = %s", rmOut.Status)
	}
}

func TestApplyConfigSwapsLimits(t *testing.T) {
	s := newTestServer(t)
	target := strings.Repeat("H", 44)

	_, out, err := s.handleCheck(context.Background(), nil, CheckInput{
		TargetAddress: target,
		AmountSOL:     50.0,
	})
	if err != nil {
		t.Fatalf("handleCheck: %v", err)
	}
	if out.WouldBlock {
		t.Fatal("50 SOL under default 10x ceiling should pass quick check")
	}

	cfg := s.cfg
	cfg.Limits.MaxSingleTransactionSOL = 1.0
	if err := s.ApplyConfig(cfg, "sha256:new"); err != nil {
		t.Fatalf("ApplyConfig: %v", err)
	}

	_, out, err = s.handleCheck(context.Background(), nil, CheckInput{
		TargetAddress: target,
		AmountSOL:     50.0,
	})
	if err != nil {
		t.Fatalf("handleCheck after reload: %v", err)
	}
	if !out.WouldBlock {
		t.Error("tightened limit not applied")
	}
}
