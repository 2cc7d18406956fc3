// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Key layout:
//   - settings: key = "settings" (JSON)
//   - journal:  key = "evt:<session>:" + big-endian sequence (JSON), with TTL
var badgerSettingsKey = []byte("settings")

// Badger is an embedded on-disk Store. Journal entries expire after the
// configured retention.
type Badger struct {
	db        *badger.DB
	seq       *badger.Sequence
	retention time.Duration
	maxEvents int
}

// OpenBadger opens the database directory at path.
func OpenBadger(path string, retention time.Duration, maxEvents int) (*Badger, error) {
	if path == "" {
		return nil, errors.New("badger path is required")
	}
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	seq, err := db.GetSequence([]byte("seq:events"), 128)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	defaults := Config{}.withDefaults()
	if retention <= 0 {
		retention = defaults.Retention
	}
	if maxEvents <= 0 {
		maxEvents = defaults.MaxEvents
	}
	return &Badger{db: db, seq: seq, retention: retention, maxEvents: maxEvents}, nil
}

func eventPrefix(sessionID string) []byte {
	return []byte("evt:" + sessionID + ":")
}

func (b *Badger) LoadSettings(context.Context) (Settings, error) {
	out := DefaultSettings()
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerSettingsKey)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &out)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return out, nil
}

func (b *Badger) SaveSettings(_ context.Context, s Settings) error {
	s, err := s.Normalize()
	if err != nil {
		return err
	}
	buf, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerSettingsKey, buf)
	})
}

func (b *Badger) ResetSettings(context.Context) (Settings, error) {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(badgerSettingsKey)
	})
	if err != nil {
		return Settings{}, fmt.Errorf("reset settings: %w", err)
	}
	return DefaultSettings(), nil
}

func (b *Badger) AppendEvent(_ context.Context, e Entry) error {
	n, err := b.seq.Next()
	if err != nil {
		return err
	}
	buf, err := json.Marshal(e)
	if err != nil {
		return err
	}
	prefix := eventPrefix(e.SessionID)
	key := binary.BigEndian.AppendUint64(append([]byte(nil), prefix...), n)

	return b.db.Update(func(txn *badger.Txn) error {
		if err := txn.SetEntry(badger.NewEntry(key, buf).WithTTL(b.retention)); err != nil {
			return err
		}
		// Trim the oldest entries beyond maxEvents.
		stale := b.staleKeys(txn, prefix)
		for _, k := range stale {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *Badger) staleKeys(txn *badger.Txn, prefix []byte) [][]byte {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Reverse = true
	it := txn.NewIterator(opts)
	defer it.Close()

	var stale [][]byte
	kept := 0
	for it.Seek(seekLast(prefix)); it.ValidForPrefix(prefix); it.Next() {
		kept++
		if kept > b.maxEvents {
			stale = append(stale, it.Item().KeyCopy(nil))
		}
	}
	return stale
}

// seekLast is the reverse-iteration start for prefix.
func seekLast(prefix []byte) []byte {
	return append(append([]byte(nil), prefix...), 0xFF)
}

func (b *Badger) ListEvents(_ context.Context, sessionID string, limit int) ([]Entry, error) {
	limit = clampLimit(limit, b.maxEvents)
	prefix := eventPrefix(sessionID)
	var out []Entry
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(seekLast(prefix)); it.ValidForPrefix(prefix) && len(out) < limit; it.Next() {
			var e Entry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return err
			}
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (b *Badger) Ping(context.Context) error {
	if b.db.IsClosed() {
		return errors.New("badger: database closed")
	}
	return nil
}

func (b *Badger) Close() error {
	_ = b.seq.Release()
	return b.db.Close()
}
