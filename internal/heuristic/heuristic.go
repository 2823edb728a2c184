// Package heuristic is the rule-based first pass of the analysis pipeline:
// blacklist membership, spend-limit checks, and suspicious-phrase matching.
// Fast, synchronous, no I/O beyond the blacklist lookup.
package heuristic

import (
	"fmt"
	"regexp"

	"github.com/kyvernlabs/shield/internal/blacklist"
	"github.com/kyvernlabs/shield/internal/model"
)

// BlacklistLookup is the lookup capability this layer consumes.
type BlacklistLookup interface {
	IsBlacklisted(value string) bool
	GetEntry(value string) (*blacklist.Entry, error)
}

// Config holds heuristic layer parameters.
type Config struct {
	MaxSingleTransactionSOL float64
	SuspiciousPatterns      []string
}

// Analyzer performs rule-based checks on transaction intents.
type Analyzer struct {
	cfg      Config
	bl       BlacklistLookup
	patterns []*regexp.Regexp
}

// New creates an Analyzer, compiling the suspicious-phrase patterns.
// Patterns are matched case-insensitively.
func New(cfg Config, bl BlacklistLookup) (*Analyzer, error) {
	if cfg.MaxSingleTransactionSOL <= 0 {
		cfg.MaxSingleTransactionSOL = 10.0
	}

	a := &Analyzer{cfg: cfg, bl: bl}
	for _, p := range cfg.SuspiciousPatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("heuristic: compile pattern %q: %w", p, err)
		}
		a.patterns = append(a.patterns, re)
	}
	return a, nil
}

// Analyze runs all checks in order. Every check always runs so the result
// accumulates complete findings; there is no short-circuit within this
// layer.
func (a *Analyzer) Analyze(intent *model.TransactionIntent) *model.HeuristicResult {
	var details []string
	blacklisted := false
	amountExceeded := false

	// Check 1: blacklist lookup.
	if a.bl != nil && a.bl.IsBlacklisted(intent.TargetAddress) {
		blacklisted = true
		reason := "Unknown reason"
		if entry, err := a.bl.GetEntry(intent.TargetAddress); err == nil && entry != nil {
			reason = entry.Reason
		}
		details = append(details, fmt.Sprintf("CRITICAL: Target address is blacklisted - %s", reason))
	} else {
		details = append(details, "Address not on blacklist")
	}

	// Check 2: amount limit.
	if intent.AmountSOL > a.cfg.MaxSingleTransactionSOL {
		amountExceeded = true
		details = append(details, fmt.Sprintf(
			"ALERT: Amount %g SOL exceeds limit of %g SOL",
			intent.AmountSOL, a.cfg.MaxSingleTransactionSOL))
	} else {
		details = append(details, fmt.Sprintf(
			"Amount %g SOL within limit of %g SOL",
			intent.AmountSOL, a.cfg.MaxSingleTransactionSOL))
	}

	// Check 3: suspicious patterns in reasoning.
	suspicious := a.scanReasoning(intent.Reasoning)
	details = append(details, suspicious...)

	return &model.HeuristicResult{
		Passed:         !blacklisted && !amountExceeded && len(suspicious) == 0,
		Blacklisted:    blacklisted,
		AmountExceeded: amountExceeded,
		Details:        details,
	}
}

func (a *Analyzer) scanReasoning(reasoning string) []string {
	var findings []string
	for _, re := range a.patterns {
		if m := re.FindString(reasoning); m != "" {
			findings = append(findings, fmt.Sprintf("SUSPICIOUS: Detected pattern '%s' in reasoning", m))
		}
	}
	return findings
}

// QuickBlockCheck is a cheap gate for callers that only need an obvious
// verdict before committing to the full pipeline: blacklist hit, or an
// amount ten times over the configured ceiling.
func (a *Analyzer) QuickBlockCheck(intent *model.TransactionIntent) (bool, string) {
	if a.bl != nil && a.bl.IsBlacklisted(intent.TargetAddress) {
		return true, "Target address is on blacklist"
	}
	if intent.AmountSOL > a.cfg.MaxSingleTransactionSOL*10 {
		return true, fmt.Sprintf("Amount %g SOL is extremely high", intent.AmountSOL)
	}
	return false, ""
}
