package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/kyvernlabs/shield/internal/model"
)

// --- Input/Output types ---

// AnalyzeInput defines parameters for the shield_analyze tool.
type AnalyzeInput struct {
	AgentID           string  `json:"agent_id" jsonschema:"identifier of the agent proposing the transaction"`
	TargetAddress     string  `json:"target_address" jsonschema:"Solana recipient address (32-44 chars)"`
	AmountSOL         float64 `json:"amount_sol" jsonschema:"transfer amount in SOL"`
	FunctionSignature string  `json:"function_signature,omitempty" jsonschema:"on-chain function being invoked"`
	Reasoning         string  `json:"reasoning" jsonschema:"the agent's stated reasoning for the transaction"`
}

// AnalyzeOutput contains the full pipeline verdict.
type AnalyzeOutput struct {
	RequestID      string   `json:"request_id"`
	Decision       string   `json:"decision"`
	RiskScore      int      `json:"risk_score"`
	Explanation    string   `json:"explanation"`
	SandboxMode    bool     `json:"sandbox_mode,omitempty"`
	Flags          []string `json:"flags,omitempty"`
	LLMDegraded    bool     `json:"llm_degraded,omitempty"`
	AnalysisTimeMS float64  `json:"analysis_time_ms"`
}

// CheckInput defines parameters for the shield_check tool.
type CheckInput struct {
	TargetAddress string  `json:"target_address" jsonschema:"Solana recipient address"`
	AmountSOL     float64 `json:"amount_sol" jsonschema:"transfer amount in SOL"`
	Reasoning     string  `json:"reasoning,omitempty" jsonschema:"optional reasoning to scan for untrusted sources"`
}

// CheckOutput contains the fast pre-flight verdict. No LLM call is made.
type CheckOutput struct {
	WouldBlock bool   `json:"would_block"`
	Reason     string `json:"reason,omitempty"`
}

// BlacklistAddInput defines parameters for shield_blacklist_add.
type BlacklistAddInput struct {
	Value    string `json:"value" jsonschema:"address or program id to deny"`
	Reason   string `json:"reason,omitempty" jsonschema:"why this value is denied"`
	Severity string `json:"severity,omitempty" jsonschema:"low, medium, high or critical"`
}

// BlacklistRemoveInput defines parameters for shield_blacklist_remove.
type BlacklistRemoveInput struct {
	Value string `json:"value" jsonschema:"address or program id to reactivate"`
}

// BlacklistListInput defines parameters for shield_blacklist_list.
type BlacklistListInput struct {
	Limit  int `json:"limit,omitempty" jsonschema:"maximum entries to return (default 50)"`
	Offset int `json:"offset,omitempty" jsonschema:"entries to skip"`
}

// BlacklistMutationOutput confirms an add or remove.
type BlacklistMutationOutput struct {
	Value  string `json:"value"`
	Status string `json:"status"`
}

// BlacklistListOutput lists denylist entries.
type BlacklistListOutput struct {
	Total   int                  `json:"total"`
	Entries []BlacklistListEntry `json:"entries"`
}

// BlacklistListEntry is one denylist row.
type BlacklistListEntry struct {
	Value    string `json:"value"`
	Reason   string `json:"reason,omitempty"`
	Source   string `json:"source,omitempty"`
	Severity string `json:"severity,omitempty"`
}

// --- Handlers ---

func (s *Server) handleAnalyze(ctx context.Context, req *mcpsdk.CallToolRequest, input AnalyzeInput) (*mcpsdk.CallToolResult, AnalyzeOutput, error) {
	agentID := input.AgentID
	if agentID == "" {
		agentID = s.agentID
	}

	intent, err := model.NewIntent(agentID, input.TargetAddress, input.AmountSOL,
		input.FunctionSignature, input.Reasoning)
	if err != nil {
		return nil, AnalyzeOutput{}, fmt.Errorf("invalid intent: %w", err)
	}

	components, dispatcher, configHash := s.snapshot()
	result, err := components.Pipeline.Analyze(ctx, intent)
	if err != nil {
		return nil, AnalyzeOutput{}, err
	}

	s.recordDecision(intent, result, dispatcher, configHash)

	out := AnalyzeOutput{
		RequestID:      result.RequestID,
		Decision:       string(result.Decision),
		RiskScore:      result.RiskScore,
		Explanation:    result.Explanation,
		AnalysisTimeMS: result.AnalysisTimeMS,
	}
	if result.Source != nil {
		out.SandboxMode = result.Source.SandboxMode
		out.Flags = make([]string, len(result.Source.Flags))
		for i, f := range result.Source.Flags {
			out.Flags[i] = string(f)
		}
	}
	if result.LLM != nil {
		out.LLMDegraded = result.LLM.Degraded
	}

	if result.Decision == model.DecisionBlock {
		return &mcpsdk.CallToolResult{IsError: true}, out, nil
	}
	return nil, out, nil
}

func (s *Server) handleCheck(ctx context.Context, req *mcpsdk.CallToolRequest, input CheckInput) (*mcpsdk.CallToolResult, CheckOutput, error) {
	components, _, _ := s.snapshot()

	intent := &model.TransactionIntent{
		TargetAddress: input.TargetAddress,
		AmountSOL:     input.AmountSOL,
		Reasoning:     input.Reasoning,
	}

	if block, reason := components.Heuristic.QuickBlockCheck(intent); block {
		return nil, CheckOutput{WouldBlock: true, Reason: reason}, nil
	}

	if input.Reasoning != "" {
		sres := components.Detector.Analyze(input.Reasoning, nil)
		if sres.RecommendedAction == model.ActionBlock {
			return nil, CheckOutput{
				WouldBlock: true,
				Reason:     "Untrusted data source detected - potential indirect injection attack",
			}, nil
		}
	}

	return nil, CheckOutput{WouldBlock: false}, nil
}

func (s *Server) handleBlacklistAdd(ctx context.Context, req *mcpsdk.CallToolRequest, input BlacklistAddInput) (*mcpsdk.CallToolResult, BlacklistMutationOutput, error) {
	if input.Value == "" {
		return nil, BlacklistMutationOutput{}, fmt.Errorf("value is required")
	}
	severity := string(model.SevHigh)
	if input.Severity != "" {
		severity = string(model.ParseSeverity(input.Severity))
	}

	if err := s.store.Add(input.Value, input.Reason, "mcp", severity); err != nil {
		return nil, BlacklistMutationOutput{}, fmt.Errorf("blacklist add: %w", err)
	}
	s.log.Info("blacklist entry added",
		zap.String("value", input.Value),
		zap.String("severity", severity))
	return nil, BlacklistMutationOutput{Value: input.Value, Status: "added"}, nil
}

func (s *Server) handleBlacklistRemove(ctx context.Context, req *mcpsdk.CallToolRequest, input BlacklistRemoveInput) (*mcpsdk.CallToolResult, BlacklistMutationOutput, error) {
	if input.Value == "" {
		return nil, BlacklistMutationOutput{}, fmt.Errorf("value is required")
	}
	removed, err := s.store.Remove(input.Value)
	if err != nil {
		return nil, BlacklistMutationOutput{}, fmt.Errorf("blacklist remove: %w", err)
	}
	status := "removed"
	if !removed {
		status = "not_found"
	}
	return nil, BlacklistMutationOutput{Value: input.Value, Status: status}, nil
}

func (s *Server) handleBlacklistList(ctx context.Context, req *mcpsdk.CallToolRequest, input BlacklistListInput) (*mcpsdk.CallToolResult, BlacklistListOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 50
	}
	entries, err := s.store.List(limit, input.Offset)
	if err != nil {
		return nil, BlacklistListOutput{}, fmt.Errorf("blacklist list: %w", err)
	}
	total, err := s.store.Count()
	if err != nil {
		return nil, BlacklistListOutput{}, fmt.Errorf("blacklist count: %w", err)
	}

	out := BlacklistListOutput{Total: total, Entries: make([]BlacklistListEntry, 0, len(entries))}
	for _, e := range entries {
		out.Entries = append(out.Entries, BlacklistListEntry{
			Value:    e.Value,
			Reason:   e.Reason,
			Source:   e.Source,
			Severity: e.Severity,
		})
	}
	return nil, out, nil
}

// registerTools adds all shield tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "shield_analyze",
		Description: "Analyze a transaction intent through the full firewall pipeline. Blocked transactions return an error with the risk assessment.",
	}, s.handleAnalyze)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "shield_check",
		Description: "Fast pre-flight check of a transaction against the blacklist and hard limits without LLM analysis (dry-run).",
	}, s.handleCheck)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "shield_blacklist_add",
		Description: "Add an address or program id to the denylist.",
	}, s.handleBlacklistAdd)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "shield_blacklist_remove",
		Description: "Deactivate a denylist entry.",
	}, s.handleBlacklistRemove)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "shield_blacklist_list",
		Description: "List active denylist entries.",
	}, s.handleBlacklistList)
}
