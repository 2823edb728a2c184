package alert

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestDispatchMatchesDecision(t *testing.T) {
	var called atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher([]AlertConfig{
		{URL: srv.URL, Format: "generic", Events: []string{"block"}},
	})

	d.Dispatch(AlertEvent{Decision: "block", AgentID: "agent-1", RiskScore: 100})
	time.Sleep(200 * time.Millisecond)

	if called.Load() != 1 {
		t.Errorf("expected 1 call, got %d", called.Load())
	}
}

func TestDispatchSkipsNonMatching(t *testing.T) {
	var called atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher([]AlertConfig{
		{URL: srv.URL, Format: "generic", Events: []string{"block"}},
	})

	d.Dispatch(AlertEvent{Decision: "allow", AgentID: "agent-1", RiskScore: 5})
	time.Sleep(200 * time.Millisecond)

	if called.Load() != 0 {
		t.Errorf("expected 0 calls for non-matching event, got %d", called.Load())
	}
}

func TestNewDispatcherEmptyIsNil(t *testing.T) {
	if d := NewDispatcher(nil); d != nil {
		t.Error("expected nil dispatcher for empty configs")
	}
}

func TestSendRetriesOn5xx(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := Send(AlertConfig{URL: srv.URL, Format: "generic"}, AlertEvent{Decision: "block"})
	if err != nil {
		t.Errorf("expected success after retry, got %v", err)
	}
	if attempts.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts.Load())
	}
}

func TestSendDoesNotRetryOn4xx(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	err := Send(AlertConfig{URL: srv.URL, Format: "generic"}, AlertEvent{Decision: "block"})
	if err == nil {
		t.Error("expected error for 4xx response")
	}
	if attempts.Load() != 1 {
		t.Errorf("expected single attempt for 4xx, got %d", attempts.Load())
	}
}

func TestFormatPayloads(t *testing.T) {
	event := AlertEvent{
		Decision:  "block",
		AgentID:   "agent-1",
		Target:    "SomeAddress111111111111111111111111111111",
		RiskScore: 95,
		Reason:    "blacklisted",
	}

	for _, format := range []string{"generic", "slack", "pagerduty"} {
		body, err := FormatPayload(format, event)
		if err != nil {
			t.Fatalf("%s: %v", format, err)
		}
		var parsed map[string]any
		if err := json.Unmarshal(body, &parsed); err != nil {
			t.Errorf("%s payload is not valid JSON: %v", format, err)
		}
	}
}
