package store

import (
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

// ExtendableHandle identifies an append-only streaming dataset created by
// CreateExtendable (spec.md §4.1): "gmf_data/<rlz>", "sescollection/<serial>"
// and similar growable record arrays are modeled this way rather than as a
// single Set call, since rows arrive incrementally across many tasks.
type ExtendableHandle struct {
	key string
}

// CreateExtendable declares an append-only dataset at key. recordDtype
// documents the row shape for callers/inspection tools; the store itself
// does not enforce it beyond what Append's JSON round-trip already does.
func (s *Store) CreateExtendable(key string, recordDtype map[string]string) (*ExtendableHandle, error) {
	buckets, leaf := splitKey(key)
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := openOrCreateBuckets(tx, buckets)
		if err != nil {
			return err
		}
		if existing := b.Get([]byte(leaf)); existing != nil {
			return nil // already created; Append resumes it
		}
		env := envelope{
			Class:   "extendable",
			Attrs:   map[string]interface{}{"dtype": recordDtype, "nbytes": int64(0), "nrows": 0},
			Payload: json.RawMessage("[]"),
		}
		raw, err := json.Marshal(env)
		if err != nil {
			return err
		}
		return b.Put([]byte(leaf), raw)
	})
	if err != nil {
		return nil, err
	}
	return &ExtendableHandle{key: key}, nil
}

// Append streams rows onto an extendable dataset, in the order given. Rows
// must be JSON-marshalable; callers that need ordering guarantees (e.g.
// "gmfs[rlz] rows occur in event-id order", spec.md §3) are responsible for
// presenting rows pre-sorted.
func (s *Store) Append(h *ExtendableHandle, rows ...interface{}) error {
	if len(rows) == 0 {
		return nil
	}
	buckets, leaf := splitKey(h.key)
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := openOrCreateBuckets(tx, buckets)
		if err != nil {
			return err
		}
		raw := b.Get([]byte(leaf))
		if raw == nil {
			return fmt.Errorf("store: extendable dataset %q not created", h.key)
		}
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return err
		}
		var existing []json.RawMessage
		if err := json.Unmarshal(env.Payload, &existing); err != nil {
			return err
		}
		for _, r := range rows {
			encoded, err := json.Marshal(r)
			if err != nil {
				return err
			}
			existing = append(existing, encoded)
		}
		payload, err := json.Marshal(existing)
		if err != nil {
			return err
		}
		env.Payload = payload
		env.Attrs["nrows"] = len(existing)
		env.Attrs["nbytes"] = int64(len(payload))
		out, err := json.Marshal(env)
		if err != nil {
			return err
		}
		return b.Put([]byte(leaf), out)
	})
}

// GetRows reads back all rows of an extendable dataset, in append order,
// unmarshaling each into a fresh value produced by newRow and passed to fn.
func (s *Store) GetRows(key string, newRow func() interface{}, fn func(row interface{}) error) error {
	env, err := s.getEnvelope(key)
	if err != nil {
		return err
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(env.Payload, &rows); err != nil {
		return err
	}
	for _, r := range rows {
		v := newRow()
		if err := json.Unmarshal(r, v); err != nil {
			return err
		}
		if err := fn(v); err != nil {
			return err
		}
	}
	return nil
}

// RowCount returns the number of rows appended to an extendable dataset.
func (s *Store) RowCount(key string) (int, error) {
	env, err := s.getEnvelope(key)
	if err != nil {
		return 0, err
	}
	if n, ok := env.Attrs["nrows"]; ok {
		return int(toInt64(n)), nil
	}
	return 0, nil
}
