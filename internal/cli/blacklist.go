package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kyvernlabs/shield/internal/blacklist"
	"github.com/kyvernlabs/shield/internal/config"
	"github.com/kyvernlabs/shield/internal/model"
)

var (
	blAddReason   string
	blAddSeverity string
	blListLimit   int
	blListOffset  int
)

func init() {
	rootCmd.AddCommand(blacklistCmd)
	blacklistCmd.AddCommand(blacklistAddCmd)
	blacklistCmd.AddCommand(blacklistRemoveCmd)
	blacklistCmd.AddCommand(blacklistListCmd)

	blacklistAddCmd.Flags().StringVar(&blAddReason, "reason", "", "Why this value is denied")
	blacklistAddCmd.Flags().StringVar(&blAddSeverity, "severity", "high", "Severity (low|medium|high|critical)")
	blacklistListCmd.Flags().IntVar(&blListLimit, "limit", 50, "Maximum entries to show")
	blacklistListCmd.Flags().IntVar(&blListOffset, "offset", 0, "Entries to skip")
}

var blacklistCmd = &cobra.Command{
	Use:   "blacklist",
	Short: "Manage the address denylist",
}

var blacklistAddCmd = &cobra.Command{
	Use:   "add <value>",
	Short: "Add an address or program id to the denylist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		severity := string(model.ParseSeverity(blAddSeverity))
		if err := store.Add(args[0], blAddReason, "cli", severity); err != nil {
			return fmt.Errorf("blacklist add: %w", err)
		}
		fmt.Printf("added %s (severity %s)\n", args[0], severity)
		return nil
	},
}

var blacklistRemoveCmd = &cobra.Command{
	Use:   "remove <value>",
	Short: "Deactivate a denylist entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		removed, err := store.Remove(args[0])
		if err != nil {
			return fmt.Errorf("blacklist remove: %w", err)
		}
		if !removed {
			fmt.Printf("%s not found\n", args[0])
			return nil
		}
		fmt.Printf("removed %s\n", args[0])
		return nil
	},
}

var blacklistListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active denylist entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		entries, err := store.List(blListLimit, blListOffset)
		if err != nil {
			return fmt.Errorf("blacklist list: %w", err)
		}
		total, err := store.Count()
		if err != nil {
			return fmt.Errorf("blacklist count: %w", err)
		}

		fmt.Printf("%d active entries\n", total)
		for _, e := range entries {
			fmt.Printf("  %-46s %-8s %s\n", e.Value, e.Severity, e.Reason)
		}
		return nil
	},
}

func openStore() (*blacklist.Store, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	store, err := blacklist.Open(cfg.Blacklist)
	if err != nil {
		return nil, fmt.Errorf("open blacklist: %w", err)
	}
	return store, nil
}
