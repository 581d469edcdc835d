// Package outbox is the durable journal for failed-send messages. It
// survives process restarts so a draft that never reached the server can be
// retried after relaunch; the in-memory engine itself persists nothing.
package outbox

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"

	"feedstore/pkg/logger"
	"feedstore/pkg/models"
	"feedstore/pkg/store"
)

var db *pebble.DB

// seq reduces key collisions when multiple messages share the same
// nanosecond timestamp.
var seq uint64

const keyPrefix = "outbox:"

// Entry is one journaled failed send.
type Entry struct {
	ID      string         `json:"id"`
	Message models.Message `json:"message"`
}

// Open opens (or creates) the journal at path and keeps a package handle.
func Open(path string) error {
	var err error
	logger.Info("opening_outbox", "path", path)
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("outbox_open_failed", "path", path, "error", err)
		return err
	}
	return nil
}

// Close closes the journal if open.
func Close() error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	logger.Info("outbox_closed")
	return nil
}

// Ready reports whether the journal is open.
func Ready() bool {
	return db != nil
}

// Record journals a failed send and returns the entry id. The key embeds
// the message timestamp so scans come back in send order.
func Record(m models.Message) (string, error) {
	if db == nil {
		return "", fmt.Errorf("outbox not opened; call outbox.Open first")
	}
	if m.DID == "" {
		return "", fmt.Errorf("outbox record: message has no discussion id")
	}
	ts := m.CreatedTS
	if ts == 0 {
		ts = time.Now().UTC().UnixNano()
	}
	s := atomic.AddUint64(&seq, 1)
	key := fmt.Sprintf("%s%s:%020d-%06d", keyPrefix, m.DID, ts, s)

	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("outbox record: marshal: %w", err)
	}
	if err := db.Set([]byte(key), data, pebble.Sync); err != nil {
		logger.Error("outbox_record_failed", "did", m.DID, "key", key, "error", err)
		return "", err
	}
	logger.Info("outbox_recorded", "did", m.DID, "key", key)
	return key, nil
}

// Discard removes a journaled entry after a successful resend or a user
// delete; unknown ids are a no-op.
func Discard(id string) error {
	if db == nil {
		return fmt.Errorf("outbox not opened; call outbox.Open first")
	}
	return db.Delete([]byte(id), pebble.Sync)
}

// Entries returns every journaled entry in send order.
func Entries() ([]Entry, error) {
	return scan(keyPrefix)
}

// EntriesFor returns the journaled entries of one discussion in send order.
func EntriesFor(did string) ([]Entry, error) {
	return scan(keyPrefix + did + ":")
}

func scan(prefix string) ([]Entry, error) {
	if db == nil {
		return nil, fmt.Errorf("outbox not opened; call outbox.Open first")
	}
	p := []byte(prefix)
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []Entry
	for iter.SeekGE(p); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), p) {
			break
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			logger.Warn("outbox_entry_invalid", "key", string(iter.Key()), "error", err)
			continue
		}
		out = append(out, Entry{ID: string(iter.Key()), Message: m})
	}
	return out, nil
}

// Replay re-appends every journaled message through the store's append
// path and discards the successfully applied entries. Entries whose
// discussion has no stored response yet are kept for a later replay.
// Returns the number applied.
func Replay(s *store.Store) (int, error) {
	entries, err := Entries()
	if err != nil {
		return 0, err
	}
	applied := 0
	for _, e := range entries {
		m := e.Message
		if err := s.AppendMessage(&m, nil); err != nil {
			logger.Warn("outbox_replay_skipped", "key", e.ID, "error", err)
			continue
		}
		if err := Discard(e.ID); err != nil {
			return applied, err
		}
		applied++
	}
	if applied > 0 {
		logger.Info("outbox_replayed", "applied", applied, "kept", len(entries)-applied)
	}
	return applied, nil
}
