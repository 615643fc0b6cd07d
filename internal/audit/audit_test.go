package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func init() {
	// Freeze time for deterministic tests.
	timeNow = func() time.Time {
		return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	}
}

func readEvents(t *testing.T, dataDir string) []Event {
	t.Helper()
	f, err := os.Open(filepath.Join(dataDir, "audit.log"))
	if err != nil {
		t.Fatalf("open audit.log: %v", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("parse audit line: %v", err)
		}
		events = append(events, e)
	}
	return events
}

func TestRecord_WritesJSONLines(t *testing.T) {
	dir := t.TempDir()
	log, err := NewLog(dir)
	if err != nil {
		t.Fatalf("NewLog: %v", err)
	}

	log.Record(Event{
		Action:     "proposal_approved",
		Actor:      "reviewer@example.com",
		TargetType: "proposal",
		TargetID:   "p-42",
		Details:    map[string]string{"risk": "high"},
	})
	if err := log.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	events := readEvents(t, dir)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	e := events[0]
	if e.Action != "proposal_approved" || e.TargetID != "p-42" {
		t.Errorf("event = %+v", e)
	}
	if e.Timestamp != "2026-03-01T09:00:00Z" {
		t.Errorf("Timestamp = %s, want frozen time", e.Timestamp)
	}
	if e.PrevHash != genesisHash {
		t.Errorf("first event PrevHash = %s, want genesis", e.PrevHash)
	}
}

func TestRecord_ChainsHashes(t *testing.T) {
	dir := t.TempDir()
	log, err := NewLog(dir)
	if err != nil {
		t.Fatalf("NewLog: %v", err)
	}

	for i := 0; i < 3; i++ {
		log.Record(Event{Action: "step", Actor: "agent", TargetType: "pipeline", TargetID: "pl-1"})
	}
	if err := log.Sync(); err != nil {
		t.Fatal(err)
	}

	events := readEvents(t, dir)
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	if got := Verify(events); got != -1 {
		t.Errorf("Verify = %d, want -1 (intact chain)", got)
	}
}

func TestVerify_DetectsTampering(t *testing.T) {
	dir := t.TempDir()
	log, err := NewLog(dir)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		log.Record(Event{Action: "step", Actor: "agent", TargetType: "pipeline", TargetID: "pl-1"})
	}
	if err := log.Sync(); err != nil {
		t.Fatal(err)
	}

	events := readEvents(t, dir)
	// Rewrite the middle event as an attacker would.
	events[1].Actor = "someone-else"

	if got := Verify(events); got != 2 {
		t.Errorf("Verify after tamper = %d, want 2 (successor's link broken)", got)
	}
}
