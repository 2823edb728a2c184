package blacklist

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "blacklist.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSeededEntries(t *testing.T) {
	s := openTestStore(t)

	if !s.IsBlacklisted("DrainWa11etXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXX") {
		t.Error("expected seeded drainer wallet to be blacklisted")
	}

	entry, err := s.GetEntry("DrainWa11etXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXX")
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	if entry == nil {
		t.Fatal("expected entry metadata")
	}
	if entry.Reason != "Known drainer wallet - multiple theft incidents" {
		t.Errorf("unexpected reason: %q", entry.Reason)
	}
	if entry.Severity != "critical" {
		t.Errorf("unexpected severity: %q", entry.Severity)
	}
}

func TestAddRemoveReadYourWrites(t *testing.T) {
	s := openTestStore(t)
	const addr = "NewBadAddr11111111111111111111111111111111"

	if s.IsBlacklisted(addr) {
		t.Fatal("address should not be blacklisted yet")
	}

	if err := s.Add(addr, "test reason", "manual", "high"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if !s.IsBlacklisted(addr) {
		t.Error("add must be visible to the next lookup")
	}

	removed, err := s.Remove(addr)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if !removed {
		t.Error("expected removal to report success")
	}
	if s.IsBlacklisted(addr) {
		t.Error("removed address must not be blacklisted")
	}

	removed, err = s.Remove(addr)
	if err != nil {
		t.Fatalf("second remove: %v", err)
	}
	if removed {
		t.Error("removing an inactive entry should report false")
	}
}

func TestReAddRefreshesMetadata(t *testing.T) {
	s := openTestStore(t)
	const addr = "ReAddedAddr1111111111111111111111111111111"

	if err := s.Add(addr, "first reason", "manual", "medium"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Add(addr, "second reason", "automated", "critical"); err != nil {
		t.Fatalf("re-add: %v", err)
	}

	entry, err := s.GetEntry(addr)
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	if entry == nil {
		t.Fatal("expected entry")
	}
	if entry.Reason != "second reason" || entry.Severity != "critical" {
		t.Errorf("re-add should refresh metadata, got %+v", entry)
	}
}

func TestGetEntryAbsent(t *testing.T) {
	s := openTestStore(t)
	entry, err := s.GetEntry("NotInTheList111111111111111111111111111111")
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	if entry != nil {
		t.Errorf("expected nil for absent value, got %+v", entry)
	}
}

func TestListAndCount(t *testing.T) {
	s := openTestStore(t)

	count, err := s.Count()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != len(seedEntries) {
		t.Errorf("expected %d seeded entries, got %d", len(seedEntries), count)
	}

	entries, err := s.List(10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != len(seedEntries) {
		t.Errorf("expected %d listed entries, got %d", len(seedEntries), len(entries))
	}
}

func TestConcurrentReadersDuringWrites(t *testing.T) {
	s := openTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			addr := fmt.Sprintf("ConcurrentAddr%02d11111111111111111111111111", i)
			_ = s.Add(addr, "concurrent", "testing", "low")
			for j := 0; j < 100; j++ {
				s.IsBlacklisted(addr)
			}
			_, _ = s.Remove(addr)
		}(i)
	}
	wg.Wait()
}
