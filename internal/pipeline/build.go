package pipeline

import (
	"go.uber.org/zap"

	"github.com/kyvernlabs/shield/internal/config"
	"github.com/kyvernlabs/shield/internal/heuristic"
	"github.com/kyvernlabs/shield/internal/semantic"
	"github.com/kyvernlabs/shield/internal/source"
)

// Components bundles the assembled analysis layers so callers that need
// direct layer access (pre-flight checks, tooling) share one wiring path
// with the pipeline itself.
type Components struct {
	Heuristic *heuristic.Analyzer
	Detector  *source.Detector
	Semantic  *semantic.Analyzer
	Pipeline  *Analyzer
}

// Build assembles all layers from configuration. An LLM provider that
// cannot be constructed degrades to fallback scoring instead of failing
// the build.
func Build(cfg *config.Config, bl heuristic.BlacklistLookup, log *zap.Logger) (*Components, error) {
	if log == nil {
		log = zap.NewNop()
	}

	h, err := heuristic.New(heuristic.Config{
		MaxSingleTransactionSOL: cfg.Limits.MaxSingleTransactionSOL,
		SuspiciousPatterns:      cfg.Heuristic.SuspiciousPatterns,
	}, bl)
	if err != nil {
		return nil, err
	}

	d := source.New(source.Config{
		TrustedDomains: cfg.Source.TrustedDomains,
		BlockedDomains: cfg.Source.BlockedDomains,
	})

	provider, err := semantic.NewProvider(semantic.Config{
		Provider:    cfg.LLM.Provider,
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Timeout:     cfg.LLM.Timeout(),
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	})
	if err != nil {
		log.Warn("llm provider unavailable, semantic layer degraded", zap.Error(err))
		provider = nil
	}
	s := semantic.NewAnalyzer(provider, log)

	p := New(Config{
		AutoBlockThreshold:      cfg.Thresholds.AutoBlock,
		AutoAllowThreshold:      cfg.Thresholds.AutoAllow,
		SkipLLMOnHeuristicBlock: cfg.Pipeline.SkipLLMOnHeuristicBlock,
		HeuristicWeight:         cfg.Weights.Heuristic,
		LLMWeight:               cfg.Weights.LLM,
		AlwaysRunSemantic:       cfg.Pipeline.AlwaysRunSemantic,
	}, h, d, s, log)

	return &Components{Heuristic: h, Detector: d, Semantic: s, Pipeline: p}, nil
}
