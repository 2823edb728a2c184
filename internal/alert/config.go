package alert

// AlertConfig defines a webhook alert destination.
type AlertConfig struct {
	URL     string            `yaml:"url"     json:"url"`
	Format  string            `yaml:"format"  json:"format"` // "generic", "slack", "pagerduty"
	Events  []string          `yaml:"events"  json:"events"` // ["block", "allow"]
	Headers map[string]string `yaml:"headers" json:"headers"`
}

// AlertEvent is the payload sent to webhook endpoints when an analysis
// completes.
type AlertEvent struct {
	Timestamp   string   `json:"timestamp"`
	RequestID   string   `json:"request_id"`
	AgentID     string   `json:"agent_id"`
	Target      string   `json:"target_address"`
	AmountSOL   float64  `json:"amount_sol"`
	Decision    string   `json:"decision"`
	RiskScore   int      `json:"risk_score"`
	Reason      string   `json:"reason"`
	SandboxMode bool     `json:"sandbox_mode,omitempty"`
	Flags       []string `json:"flags,omitempty"`
	ConfigHash  string   `json:"config_hash,omitempty"`
}
