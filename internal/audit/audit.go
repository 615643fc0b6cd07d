// Package audit emits the append-only audit trail. Every state-changing
// operation records an event; nothing is ever silently dropped.
//
// Events are written as JSON lines through zap. Each event carries the
// SHA-256 of its predecessor's serialized form, so truncating or rewriting
// the log breaks the chain and is detectable by replay.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// timeNow is swapped in tests for deterministic timestamps.
var timeNow = time.Now

// Event is one audit record.
type Event struct {
	Action     string            `json:"action"`
	Actor      string            `json:"actor"`
	TargetType string            `json:"target_type"`
	TargetID   string            `json:"target_id"`
	Details    map[string]string `json:"details,omitempty"`
	Timestamp  string            `json:"timestamp"`
	PrevHash   string            `json:"prev_hash"`
}

// Sink accepts audit events. Engines depend on this interface so tests can
// capture events without a filesystem.
type Sink interface {
	Record(e Event)
}

// Log is the zap-backed Sink writing hash-chained JSON lines.
type Log struct {
	mu       sync.Mutex
	logger   *zap.Logger
	lastHash string
}

// genesisHash seeds the chain for the first event of a log.
const genesisHash = "genesis"

// NewLog opens (or appends to) audit.log in dataDir.
func NewLog(dataDir string) (*Log, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("audit: create data dir: %w", err)
	}

	path := filepath.Join(dataDir, "audit.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("audit: open log: %w", err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "" // events carry their own timestamp field
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.Lock(zapcore.AddSync(f)),
		zapcore.InfoLevel,
	)

	return &Log{logger: zap.New(core), lastHash: genesisHash}, nil
}

// Record appends one event to the log, stamping the timestamp and linking
// it to the previous event's hash.
func (l *Log) Record(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.Timestamp = timeNow().UTC().Format(time.RFC3339)
	e.PrevHash = l.lastHash
	l.lastHash = hashEvent(e)

	l.logger.Info("audit",
		zap.String("action", e.Action),
		zap.String("actor", e.Actor),
		zap.String("target_type", e.TargetType),
		zap.String("target_id", e.TargetID),
		zap.Any("details", e.Details),
		zap.String("timestamp", e.Timestamp),
		zap.String("prev_hash", e.PrevHash),
	)
}

// Sync flushes buffered events. Called on shutdown.
func (l *Log) Sync() error {
	return l.logger.Sync()
}

// hashEvent returns the hex SHA-256 of the event's canonical JSON form.
func hashEvent(e Event) string {
	data, err := json.Marshal(e)
	if err != nil {
		// Event fields are plain strings and a string map; marshal
		// cannot fail for them, but never chain an empty hash.
		return genesisHash
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Verify replays a sequence of events and reports the first index whose
// prev_hash does not match the chain, or -1 if the chain is intact.
func Verify(events []Event) int {
	prev := genesisHash
	for i, e := range events {
		if e.PrevHash != prev {
			return i
		}
		prev = hashEvent(e)
	}
	return -1
}

// Discard is a Sink that drops events. Used in tests that don't assert
// on the audit trail.
type Discard struct{}

// Record implements Sink.
func (Discard) Record(Event) {}
