// Package mcp exposes the analysis pipeline over the Model Context
// Protocol, so agent runtimes can gate transactions through shield
// as a tool call.
package mcp

import (
	"context"
	"fmt"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/kyvernlabs/shield/internal/alert"
	"github.com/kyvernlabs/shield/internal/audit"
	"github.com/kyvernlabs/shield/internal/blacklist"
	"github.com/kyvernlabs/shield/internal/config"
	"github.com/kyvernlabs/shield/internal/model"
	"github.com/kyvernlabs/shield/internal/pipeline"
)

// Config holds MCP server configuration.
type Config struct {
	ConfigPath string
	AgentID    string
	Logger     *zap.Logger
}

// Server wraps the MCP SDK server around the analysis pipeline.
type Server struct {
	mcpServer  *mcpsdk.Server
	store      *blacklist.Store
	auditLog   *audit.Log
	log        *zap.Logger
	agentID    string
	configPath string

	mu         sync.RWMutex
	cfg        *config.Config
	configHash string
	components *pipeline.Components
	dispatcher *alert.Dispatcher
}

// New loads configuration, opens the blacklist and audit log, and
// registers the shield tools.
func New(cfg Config) (*Server, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	shieldCfg, hash, err := config.LoadWithHash(cfg.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	store, err := blacklist.Open(shieldCfg.Blacklist)
	if err != nil {
		return nil, fmt.Errorf("open blacklist: %w", err)
	}

	components, err := pipeline.Build(shieldCfg, store, log)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	var auditLog *audit.Log
	if shieldCfg.AuditLog != "" {
		auditLog, err = audit.Open(shieldCfg.AuditLog)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("open audit log: %w", err)
		}
	}

	s := &Server{
		store:      store,
		auditLog:   auditLog,
		log:        log,
		agentID:    cfg.AgentID,
		configPath: cfg.ConfigPath,
		cfg:        shieldCfg,
		configHash: hash,
		components: components,
		dispatcher: alert.NewDispatcher(shieldCfg.Alerts),
	}

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "shield",
			Version: "0.1.0",
		},
		nil,
	)
	s.registerTools()
	return s, nil
}

// Run starts the MCP server on stdio transport. Blocks until ctx is
// cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// Close releases the blacklist and audit log.
func (s *Server) Close() error {
	var firstErr error
	if s.auditLog != nil {
		firstErr = s.auditLog.Close()
	}
	if err := s.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// ApplyConfig swaps in a reloaded configuration. Requests already in
// flight finish against the components they started with.
func (s *Server) ApplyConfig(cfg *config.Config, hash string) error {
	components, err := pipeline.Build(cfg, s.store, s.log)
	if err != nil {
		return fmt.Errorf("rebuild pipeline: %w", err)
	}

	s.mu.Lock()
	s.cfg = cfg
	s.configHash = hash
	s.components = components
	s.dispatcher = alert.NewDispatcher(cfg.Alerts)
	s.mu.Unlock()

	s.log.Info("configuration applied", zap.String("config_hash", hash))
	return nil
}

func (s *Server) snapshot() (*pipeline.Components, *alert.Dispatcher, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.components, s.dispatcher, s.configHash
}

func (s *Server) recordDecision(intent *model.TransactionIntent, result *model.AnalysisResult, dispatcher *alert.Dispatcher, configHash string) {
	if s.auditLog != nil {
		if err := s.auditLog.Record(audit.FromResult(intent, result, configHash)); err != nil {
			s.log.Error("audit record failed", zap.Error(err))
		}
	}
	if dispatcher != nil {
		event := alert.AlertEvent{
			Timestamp:  time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
			RequestID:  result.RequestID,
			AgentID:    intent.AgentID,
			Target:     intent.TargetAddress,
			AmountSOL:  intent.AmountSOL,
			Decision:   string(result.Decision),
			RiskScore:  result.RiskScore,
			Reason:     result.Explanation,
			ConfigHash: configHash,
		}
		if result.Source != nil {
			event.SandboxMode = result.Source.SandboxMode
			event.Flags = make([]string, len(result.Source.Flags))
			for i, f := range result.Source.Flags {
				event.Flags[i] = string(f)
			}
		}
		dispatcher.Dispatch(event)
	}
}
