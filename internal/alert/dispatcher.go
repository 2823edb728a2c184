package alert

// Dispatcher fans out analysis events to matching webhook configurations.
type Dispatcher struct {
	configs []AlertConfig
}

// NewDispatcher creates a Dispatcher from webhook configurations.
// Returns nil if configs is empty (callers should nil-check).
func NewDispatcher(configs []AlertConfig) *Dispatcher {
	if len(configs) == 0 {
		return nil
	}
	return &Dispatcher{configs: configs}
}

// Dispatch sends the event to all webhooks whose Events list matches the
// decision. Delivery runs in goroutines and does not block the caller.
func (d *Dispatcher) Dispatch(event AlertEvent) {
	for _, cfg := range d.configs {
		if matches(cfg.Events, event.Decision) {
			go Send(cfg, event)
		}
	}
}

func matches(events []string, decision string) bool {
	for _, e := range events {
		if e == decision {
			return true
		}
	}
	return false
}
