// Package source defends against indirect prompt injection: malicious
// instructions reaching the agent through external content it consumed
// (a fetched web page, a price feed) rather than through its operator.
// The detector scans reasoning text for embedded URLs, classifies their
// domains against a trusted allowlist, and looks for manipulation
// phrasings tied to unverified external data.
package source

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kyvernlabs/shield/internal/model"
)

// Config holds detector parameters.
type Config struct {
	TrustedDomains []string
	BlockedDomains []string
}

// Detector is the untrusted-source analysis layer. Pure and synchronous.
type Detector struct {
	trusted map[string]struct{}
	blocked map[string]struct{}
}

var urlPattern = regexp.MustCompile(`(?i)\bhttps?://[^\s<>"')\]]+|\bwww\.[a-z0-9][a-z0-9.-]*\.[a-z]{2,}(?:/[^\s<>"')\]]*)?`)

// manipulationPatterns are phrasings of financial urgency tied to external
// data. Deliberately distinct from the heuristic layer's injection set.
var manipulationPatterns = []struct {
	re       *regexp.Regexp
	label    string
	severity model.Severity
}{
	{regexp.MustCompile(`(?i)arbitrage\s+opportunit`), "arbitrage opportunity language", model.SevHigh},
	{regexp.MustCompile(`(?i)price\s+discrepanc`), "price discrepancy claim", model.SevHigh},
	{regexp.MustCompile(`(?i)limited\s+time`), "limited-time pressure", model.SevMedium},
	{regexp.MustCompile(`(?i)expir(?:es|ing)\s+(?:soon|reward|offer|bonus)`), "expiring reward pressure", model.SevMedium},
	{regexp.MustCompile(`(?i)act\s+now|right\s+away|immediately\s+or`), "urgency language", model.SevMedium},
	{regexp.MustCompile(`(?i)guaranteed\s+(?:profit|return|gain)`), "guaranteed profit claim", model.SevHigh},
	{regexp.MustCompile(`(?i)once[\s-]in[\s-]a[\s-]lifetime`), "once-in-a-lifetime pressure", model.SevMedium},
	{regexp.MustCompile(`(?i)before\s+it'?s\s+too\s+late`), "deadline pressure", model.SevMedium},
	{regexp.MustCompile(`(?i)claim\s+(?:your|the)\s+(?:reward|airdrop|bonus)`), "reward claim lure", model.SevHigh},
}

// injectionMarkers are structural signs of text copied into the reasoning
// from an external source carrying instructions of its own.
var injectionMarkers = []struct {
	re       *regexp.Regexp
	label    string
	severity model.Severity
}{
	{regexp.MustCompile(`(?i)ignore\s+(?:all\s+)?(?:previous|prior)\s+instructions`), "embedded instruction override", model.SevHigh},
	{regexp.MustCompile(`<\|[^|]*\|>`), "model control tokens", model.SevHigh},
	{regexp.MustCompile(`(?i)\[(?:system|admin|instruction)\]`), "role marker in reasoning", model.SevHigh},
	{regexp.MustCompile(`<!--[\s\S]*?-->`), "hidden HTML comment", model.SevMedium},
	{regexp.MustCompile("```"), "code fence inside reasoning", model.SevLow},
	{regexp.MustCompile(`(?im)^\s*(?:SYSTEM|ASSISTANT|USER)\s*:`), "transcript formatting in reasoning", model.SevMedium},
}

// severityIncrement maps warning severity to its risk score contribution.
var severityIncrement = map[model.Severity]int{
	model.SevLow:      5,
	model.SevMedium:   10,
	model.SevHigh:     20,
	model.SevCritical: 35,
}

// New creates a Detector. Domain lists are normalized to lowercase.
func New(cfg Config) *Detector {
	d := &Detector{
		trusted: make(map[string]struct{}, len(cfg.TrustedDomains)),
		blocked: make(map[string]struct{}, len(cfg.BlockedDomains)),
	}
	for _, dom := range cfg.TrustedDomains {
		d.trusted[strings.ToLower(dom)] = struct{}{}
	}
	for _, dom := range cfg.BlockedDomains {
		d.blocked[strings.ToLower(dom)] = struct{}{}
	}
	return d
}

// Analyze scans reasoning text (plus any explicitly declared data sources)
// and grades what it finds. Always returns a well-formed result.
func (d *Detector) Analyze(reasoning string, dataSources []string) *model.SourceDetectionResult {
	result := &model.SourceDetectionResult{
		RecommendedAction: model.ActionAllow,
	}

	// Step 1: extract URL-like substrings.
	urls := urlPattern.FindAllString(reasoning, -1)
	urls = append(urls, dataSources...)
	result.URLsFound = urls

	// Step 2: classify domains.
	var blockedDomains []string
	seen := map[string]bool{}
	for _, u := range urls {
		domain := extractDomain(u)
		if domain == "" || seen[domain] {
			continue
		}
		seen[domain] = true

		if d.isBlocked(domain) {
			blockedDomains = append(blockedDomains, domain)
			continue
		}
		if !d.isTrusted(domain) {
			result.UntrustedDomains = append(result.UntrustedDomains, domain)
		}
	}

	addFlag := func(f model.SourceFlag) {
		if !result.HasFlag(f) {
			result.Flags = append(result.Flags, f)
		}
	}
	warn := func(msg string, sev model.Severity) {
		result.Warnings = append(result.Warnings, model.SandboxWarning{Message: msg, Severity: sev})
	}

	for _, domain := range blockedDomains {
		addFlag(model.FlagBlockedDomain)
		warn(fmt.Sprintf("Hard-denylisted domain referenced: %s", domain), model.SevCritical)
	}
	for _, domain := range result.UntrustedDomains {
		addFlag(model.FlagUntrustedSource)
		warn(fmt.Sprintf("Untrusted data source: %s", domain), model.SevMedium)
	}

	// Step 3: manipulation-pattern scan.
	manipulation := false
	for _, p := range manipulationPatterns {
		if p.re.MatchString(reasoning) {
			manipulation = true
			addFlag(model.FlagManipulationPattern)
			warn(fmt.Sprintf("Manipulation pattern: %s", p.label), p.severity)
		}
	}

	// Structural markers of injected text.
	injected := false
	for _, p := range injectionMarkers {
		if p.re.MatchString(reasoning) {
			injected = true
			addFlag(model.FlagIndirectInjection)
			warn(fmt.Sprintf("Injected-text marker: %s", p.label), p.severity)
		}
	}

	// Step 4: sandbox trigger when signals combine. A hard-denylisted
	// domain always trips it; otherwise an untrusted domain co-occurring
	// with manipulation or injection language does.
	externalData := len(result.UntrustedDomains) > 0
	if len(blockedDomains) > 0 || (externalData && (manipulation || injected)) {
		addFlag(model.FlagSandboxTrigger)
		if len(blockedDomains) == 0 {
			warn("Untrusted external data combined with manipulation language", model.SevCritical)
		}
	}

	// Step 5: sandbox mode and recommended action.
	for _, w := range result.Warnings {
		if model.SevRank[w.Severity] >= model.SevRank[model.SevHigh] {
			result.SandboxMode = true
			break
		}
	}
	if result.HasFlag(model.FlagSandboxTrigger) {
		result.SandboxMode = true
		result.RecommendedAction = model.ActionBlock
	} else if result.HasFlag(model.FlagUntrustedSource) {
		result.RecommendedAction = model.ActionMonitor
	}

	// Step 6: severity-weighted risk score, monotonic in warnings.
	score := 0
	for _, w := range result.Warnings {
		score += severityIncrement[w.Severity]
	}
	result.RiskScore = model.ClampScore(score)

	return result
}

// extractDomain pulls the lowercase host out of a URL-like string.
func extractDomain(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.Index(s, "@"); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.Index(s, ":"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSuffix(s, ".")
	if !strings.Contains(s, ".") {
		return ""
	}
	return s
}

func (d *Detector) isTrusted(domain string) bool {
	return matchesDomain(d.trusted, domain)
}

func (d *Detector) isBlocked(domain string) bool {
	return matchesDomain(d.blocked, domain)
}

// matchesDomain checks exact and parent-domain membership, so
// "api.coingecko.com" matches a "coingecko.com" list entry.
func matchesDomain(set map[string]struct{}, domain string) bool {
	domain = strings.TrimPrefix(domain, "www.")
	if _, ok := set[domain]; ok {
		return true
	}
	for i := strings.Index(domain, "."); i >= 0; i = strings.Index(domain, ".") {
		domain = domain[i+1:]
		if _, ok := set[domain]; ok {
			return true
		}
	}
	return false
}
