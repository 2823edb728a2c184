package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kyvernlabs/shield/internal/audit"
	"github.com/kyvernlabs/shield/internal/blacklist"
	"github.com/kyvernlabs/shield/internal/config"
	"github.com/kyvernlabs/shield/internal/model"
	"github.com/kyvernlabs/shield/internal/pipeline"
)

var (
	analyzeAgent     string
	analyzeTarget    string
	analyzeAmount    float64
	analyzeFunction  string
	analyzeReasoning string
	analyzeFormat    string
)

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVar(&analyzeAgent, "agent", "cli", "Agent identifier")
	analyzeCmd.Flags().StringVar(&analyzeTarget, "target", "", "Target Solana address (required)")
	analyzeCmd.Flags().Float64Var(&analyzeAmount, "amount", 0, "Amount in SOL (required)")
	analyzeCmd.Flags().StringVar(&analyzeFunction, "function", "transfer", "Function signature")
	analyzeCmd.Flags().StringVar(&analyzeReasoning, "reasoning", "", "Agent reasoning for the transaction (required)")
	analyzeCmd.Flags().StringVarP(&analyzeFormat, "format", "f", "text", "Output format (text|json)")
	analyzeCmd.MarkFlagRequired("target")
	analyzeCmd.MarkFlagRequired("amount")
	analyzeCmd.MarkFlagRequired("reasoning")
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a single transaction intent",
	Long: "Runs one intent through the full pipeline and prints the verdict.\n" +
		"Exits 0 on allow, 2 on block.",
	RunE: runAnalyze,
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	log := newLogger()
	defer log.Sync()

	cfg, hash, err := config.LoadWithHash(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := blacklist.Open(cfg.Blacklist)
	if err != nil {
		return fmt.Errorf("open blacklist: %w", err)
	}
	defer store.Close()

	components, err := pipeline.Build(cfg, store, log)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	intent, err := model.NewIntent(analyzeAgent, analyzeTarget, analyzeAmount,
		analyzeFunction, analyzeReasoning)
	if err != nil {
		return fmt.Errorf("invalid intent: %w", err)
	}

	result, err := components.Pipeline.Analyze(context.Background(), intent)
	if err != nil {
		return err
	}

	if cfg.AuditLog != "" {
		if auditLog, err := audit.Open(cfg.AuditLog); err == nil {
			_ = auditLog.Record(audit.FromResult(intent, result, hash))
			auditLog.Close()
		}
	}

	switch analyzeFormat {
	case "json":
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	default:
		printResult(result)
	}

	if result.Decision == model.DecisionBlock {
		os.Exit(2)
	}
	return nil
}

func printResult(result *model.AnalysisResult) {
	verdict := "ALLOW"
	if result.Decision == model.DecisionBlock {
		verdict = "BLOCK"
	}
	fmt.Printf("Decision:    %s\n", verdict)
	fmt.Printf("Risk score:  %d/100\n", result.RiskScore)
	fmt.Printf("Request id:  %s\n", result.RequestID)
	if result.Source != nil && result.Source.SandboxMode {
		fmt.Printf("Sandbox:     active (%d warnings)\n", len(result.Source.Warnings))
	}
	if result.LLM != nil && result.LLM.Degraded {
		fmt.Println("LLM:         degraded (fallback scoring)")
	}
	fmt.Printf("Time:        %.1fms\n", result.AnalysisTimeMS)
	fmt.Printf("\n%s\n", result.Explanation)
}
