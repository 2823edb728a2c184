package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kyvernlabs/shield/internal/audit"
	"github.com/kyvernlabs/shield/internal/config"
)

var auditTailN int

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditTailCmd)
	auditTailCmd.Flags().IntVarP(&auditTailN, "lines", "n", 20, "Number of entries to show")
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the decision log",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Validate the decision log hash chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := auditPath()
		if err != nil {
			return err
		}
		res := audit.Verify(path)
		out, _ := json.MarshalIndent(res, "", "  ")
		fmt.Println(string(out))
		if !res.Valid {
			return fmt.Errorf("audit chain broken at line %d", res.ErrorLine)
		}
		return nil
	},
}

var auditTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Show recent decisions",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := auditPath()
		if err != nil {
			return err
		}
		entries, err := audit.Tail(path, auditTailN)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("%s %-5s risk=%3d agent=%s target=%s\n",
				e.Timestamp, e.Decision, e.RiskScore, e.AgentID, e.Target)
		}
		return nil
	},
}

func auditPath() (string, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return "", fmt.Errorf("load config: %w", err)
	}
	if cfg.AuditLog == "" {
		return "", fmt.Errorf("no audit_log configured")
	}
	return cfg.AuditLog, nil
}
