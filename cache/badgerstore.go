package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	badger "github.com/dgraph-io/badger/v3"
)

// BadgerStore persists envelopes in an embedded Badger database. Like the
// Redis backend it keeps entries physically alive past their logical TTL
// so stale fallback reads keep working.
type BadgerStore struct {
	db        *badger.DB
	retention time.Duration
	now       func() time.Time
}

// NewBadgerStore opens (or creates) a Badger database at dir. A zero
// retention uses DefaultRetention.
func NewBadgerStore(dir string, retention time.Duration) (*BadgerStore, error) {
	if retention <= 0 {
		retention = DefaultRetention
	}

	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, err
	}

	return &BadgerStore{db: db, retention: retention, now: time.Now}, nil
}

func (s *BadgerStore) Get(ctx context.Context, key string) ([]byte, error) {
	entry, err := s.GetStale(ctx, key)
	if err != nil {
		return nil, err
	}

	if !entry.Valid(s.now()) {
		_ = s.db.Update(func(txn *badger.Txn) error {
			return txn.Delete([]byte(key))
		})
		return nil, ErrNotFound
	}

	return entry.Data, nil
}

func (s *BadgerStore) GetStale(_ context.Context, key string) (Entry, error) {
	var blob []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		blob, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, err
	}

	var entry Entry
	if err := json.Unmarshal(blob, &entry); err != nil {
		return Entry{}, ErrNotFound
	}

	return entry, nil
}

func (s *BadgerStore) Set(_ context.Context, key string, data []byte, ttl time.Duration) error {
	entry := Entry{Data: data, StoredAt: s.now(), TTL: ttl}

	blob, err := json.Marshal(entry)
	if err != nil {
		return &WriteError{Key: key, Err: err}
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), blob).WithTTL(ttl + s.retention)
		return txn.SetEntry(e)
	})
	if err != nil {
		return &WriteError{Key: key, Err: err}
	}

	return nil
}

func (s *BadgerStore) Delete(_ context.Context, key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

func (s *BadgerStore) Clear(ctx context.Context, ns Keyspace) (int, error) {
	keys, err := s.keys(ns)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		for _, key := range keys {
			if err := txn.Delete([]byte(key)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return len(keys), nil
}

func (s *BadgerStore) Stats(_ context.Context, ns Keyspace) (Stats, error) {
	keys, err := s.keys(ns)
	if err != nil {
		return Stats{}, err
	}

	sort.Strings(keys)
	return Stats{Count: len(keys), Keys: keys}, nil
}

func (s *BadgerStore) Close() error { return s.db.Close() }

// keys collects every key under the namespace without loading values.
func (s *BadgerStore) keys(ns Keyspace) ([]string, error) {
	prefix := []byte(ns.Prefix())
	keys := []string{}

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return keys, nil
}
