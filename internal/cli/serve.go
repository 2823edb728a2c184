package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kyvernlabs/shield/internal/config"
	shieldmcp "github.com/kyvernlabs/shield/internal/mcp"
)

var serveAgentID string

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAgentID, "agent-id", "", "Default agent id for intents that omit one")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP analysis server for agent integration",
	Long: "Runs shield as an MCP (Model Context Protocol) server over stdio.\n" +
		"Exposes tools: shield_analyze, shield_check, shield_blacklist_add,\n" +
		"shield_blacklist_remove, shield_blacklist_list.\n" +
		"The config file is watched and hot-reloaded on change.",
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	log := newLogger()
	defer log.Sync()

	srv, err := shieldmcp.New(shieldmcp.Config{
		ConfigPath: configPath,
		AgentID:    serveAgentID,
		Logger:     log,
	})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down...")
		cancel()
	}()

	// Hot reload: a failed reload keeps the running config.
	if configPath != "" {
		reloader, err := config.NewReloader(configPath, func(cfg *config.Config, hash string) {
			if err := srv.ApplyConfig(cfg, hash); err != nil {
				log.Error("config reload rejected", zap.Error(err))
			}
		})
		if err != nil {
			log.Warn("config watch unavailable", zap.Error(err))
		} else {
			go func() {
				if err := reloader.Run(ctx); err != nil {
					log.Warn("config watcher stopped", zap.Error(err))
				}
			}()
		}
	}

	fmt.Fprintln(os.Stderr, "shield MCP server running on stdio")
	return srv.Run(ctx)
}
