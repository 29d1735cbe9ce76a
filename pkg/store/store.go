// Package store implements spec.md §4.1's typed hierarchical store: a
// key→dataset store with attributes, chunked/extendable arrays, and a
// parent-chain so risk calculators can reuse a hazard calculator's output
// without copying it.
//
// Grounded on other_examples/…cuemby-warren__pkg-storage-doc.go (a
// BoltDB-backed hierarchical store: nested buckets as groups, ACID
// transactions, cursor iteration) for the Go "how", and
// _examples/original_source/openquake/commonlib/datastore.py for the
// "what" (attrs, nbytes accounting, parent fallback, WriteConflict).
package store

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	bolt "go.etcd.io/bbolt"

	sharederrors "github.com/tandemseis/hazengine/pkg/shared/errors"
)

// groupAttrsKey is the reserved leaf key inside a bucket that holds that
// bucket's own (group-level) attributes, distinct from the attributes
// carried by each value it contains.
const groupAttrsKey = "\x00__attrs__"

// Store is one calc-id's on-disk file.
type Store struct {
	db     *bolt.DB
	path   string
	calcID int64

	mu     sync.RWMutex
	parent *Store

	registry map[string]FromRecordFunc
}

// Create opens or creates the datastore file for calcID under dataDir. If
// calcID is 0, a new id is minted (monotonically increasing within
// dataDir, per spec.md §3's "DataStore entity" invariant).
func Create(dataDir string, calcID int64) (*Store, error) {
	if calcID == 0 {
		calcID = mintCalcID(dataDir)
	}
	path := fmt.Sprintf("%s/calc_%d.hazdb", dataDir, calcID)
	db, err := bolt.Open(path, 0o644, nil)
	if err != nil {
		return nil, sharederrors.FailedToWithDetails("open datastore", "store", path, err)
	}
	return &Store{db: db, path: path, calcID: calcID, registry: map[string]FromRecordFunc{}}, nil
}

func mintCalcID(dataDir string) int64 {
	// A monotonically increasing id derived from the current nanosecond
	// clock is sufficient for local/batch use; a multi-host deployment
	// would instead reserve an id from a shared sequence.
	return nowNano()
}

// RegisterType registers a FromRecordFunc used to reconstruct opaque
// values written through the Recorder protocol. Get uses it for values
// whose class matches; a value whose class has no registered function is
// decoded as plain JSON into the caller's target.
func (s *Store) RegisterType(class string, fn FromRecordFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registry[class] = fn
}

// SetParent links a parent store: reads that miss in s cascade to parent,
// and parent's group attributes not already present in s are merged in.
func (s *Store) SetParent(parent *Store) error {
	s.mu.Lock()
	s.parent = parent
	s.mu.Unlock()
	return nil
}

// CalcID returns this store's calculation id.
func (s *Store) CalcID() int64 { return s.calcID }

// Set stores value under key (a slash-separated hierarchical path),
// replacing any existing value, with optional attrs. The value's Go type
// name is recorded as its class, which Get matches against RegisterType
// entries for Recorder round-tripping.
func (s *Store) Set(key string, value interface{}, attrs map[string]interface{}) error {
	return s.setClass(key, classNameOf(value), value, attrs)
}

func (s *Store) setClass(key, class string, value interface{}, attrs map[string]interface{}) error {
	buckets, leaf := splitKey(key)
	raw, err := encodeValue(class, value, attrs)
	if err != nil {
		return sharederrors.FailedToWithDetails("encode value", "store", key, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := openOrCreateBuckets(tx, buckets)
		if err != nil {
			return err
		}
		return b.Put([]byte(leaf), raw)
	})
}

// SetIfCompatible is like Set but fails with WriteConflict if an existing
// array-shaped value under key has a different shape/dtype (spec.md §4.1),
// requiring the caller to Delete first. Plain scalar overwrites are always
// allowed via Set.
func (s *Store) SetIfCompatible(key string, value interface{}, attrs map[string]interface{}, shape []int) error {
	buckets, leaf := splitKey(key)
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := openOrCreateBuckets(tx, buckets)
		if err != nil {
			return err
		}
		if existing := b.Get([]byte(leaf)); existing != nil {
			env, derr := decodeEnvelope(existing)
			if derr == nil {
				if existingShape, ok := env.Attrs["shape"]; ok {
					if !shapesEqual(existingShape, shape) {
						return &WriteConflict{Key: key}
					}
				}
			}
		}
		if attrs == nil {
			attrs = map[string]interface{}{}
		}
		attrs["shape"] = shape
		raw, err := encodeValue(classNameOf(value), value, attrs)
		if err != nil {
			return err
		}
		return b.Put([]byte(leaf), raw)
	})
}

// Delete removes key, required before overwriting an incompatible array
// (spec.md §4.1).
func (s *Store) Delete(key string) error {
	buckets, leaf := splitKey(key)
	return s.db.Update(func(tx *bolt.Tx) error {
		b := navigateBuckets(tx, buckets)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(leaf))
	})
}

// Get reads key into out (a pointer), falling back to the parent store on
// miss. Returns a NotFound error when neither store has the key.
func (s *Store) Get(key string, out interface{}) error {
	env, err := s.getEnvelope(key)
	if err != nil {
		return err
	}
	if rf, ok := s.lookupFromRecord(env.Class); ok {
		v, rerr := rf(env.Payload, env.Attrs)
		if rerr != nil {
			return sharederrors.FailedToWithDetails("reconstruct value", "store", key, rerr)
		}
		return assign(out, v)
	}
	return unmarshalInto(env.Payload, out)
}

func (s *Store) getEnvelope(key string) (*envelope, error) {
	buckets, leaf := splitKey(key)
	var raw []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := navigateBuckets(tx, buckets)
		if b == nil {
			return nil
		}
		v := b.Get([]byte(leaf))
		if v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if raw == nil {
		s.mu.RLock()
		parent := s.parent
		s.mu.RUnlock()
		if parent != nil {
			return parent.getEnvelope(key)
		}
		return nil, sharederrors.NewNotFound(key)
	}
	return decodeEnvelope(raw)
}

func (s *Store) lookupFromRecord(class string) (FromRecordFunc, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn, ok := s.registry[class]
	return fn, ok
}

// SetAttrs sets group-level attributes on the bucket identified by key
// (which need not itself hold a value).
func (s *Store) SetAttrs(key string, kv map[string]interface{}) error {
	buckets, leaf := splitKey(key)
	allBuckets := append(append([]string{}, buckets...), leaf)
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := openOrCreateBuckets(tx, allBuckets)
		if err != nil {
			return err
		}
		existing := map[string]interface{}{}
		if raw := b.Get([]byte(groupAttrsKey)); raw != nil {
			_ = unmarshalInto(raw, &existing)
		}
		for k, v := range kv {
			existing[k] = v
		}
		raw, err := marshalJSON(existing)
		if err != nil {
			return err
		}
		return b.Put([]byte(groupAttrsKey), raw)
	})
}

// GetAttr reads a single group attribute, returning def if unset.
func (s *Store) GetAttr(key, name string, def interface{}) (interface{}, error) {
	buckets, leaf := splitKey(key)
	allBuckets := append(append([]string{}, buckets...), leaf)
	var attrs map[string]interface{}
	err := s.db.View(func(tx *bolt.Tx) error {
		b := navigateBuckets(tx, allBuckets)
		if b == nil {
			return nil
		}
		raw := b.Get([]byte(groupAttrsKey))
		if raw == nil {
			return nil
		}
		attrs = map[string]interface{}{}
		return unmarshalInto(raw, &attrs)
	})
	if err != nil {
		return nil, err
	}
	if v, ok := attrs[name]; ok {
		return v, nil
	}
	s.mu.RLock()
	parent := s.parent
	s.mu.RUnlock()
	if parent != nil {
		if v, err := parent.GetAttr(key, name, nil); err == nil && v != nil {
			return v, nil
		}
	}
	return def, nil
}

// Keys enumerates the direct value keys under the bucket path given by
// prefix, in lexicographic order (spec.md §4.1 guarantee (a)).
func (s *Store) Keys(prefix string) ([]string, error) {
	buckets := strings.Split(strings.Trim(prefix, "/"), "/")
	if prefix == "" {
		buckets = nil
	}
	var keys []string
	err := s.db.View(func(tx *bolt.Tx) error {
		b := navigateBuckets(tx, buckets)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if string(k) == groupAttrsKey {
				continue
			}
			if v == nil {
				continue // sub-bucket, not a value
			}
			keys = append(keys, string(k))
		}
		return nil
	})
	sort.Strings(keys)
	return keys, err
}

// Size returns the nbytes attribute for key, or the sum over a group's
// direct children if key names a bucket rather than a value. This
// computes the true total rather than the original's single-child
// shortcut (see DESIGN.md's Open Question resolution).
func (s *Store) Size(key string) (int64, error) {
	env, err := s.getEnvelope(key)
	if err == nil {
		if n, ok := env.Attrs["nbytes"]; ok {
			return toInt64(n), nil
		}
		return 0, nil
	}
	keys, kerr := s.Keys(key)
	if kerr != nil || len(keys) == 0 {
		return 0, sharederrors.NewNotFound(key)
	}
	var total int64
	for _, k := range keys {
		n, _ := s.Size(key + "/" + k)
		total += n
	}
	return total, nil
}

// Flush commits outstanding writes. bbolt commits at the end of every
// Update transaction, so this is a durability/fsync nudge for callers that
// want an explicit checkpoint between calculator phases.
func (s *Store) Flush() error {
	return s.db.Sync()
}

// Close closes the underlying file. Per spec.md §6 the store is not closed
// at the end of a calculation — only the process exit (or an explicit
// exporter/inspection tool) calls this.
func (s *Store) Close() error {
	return s.db.Close()
}

// WriteConflict is returned by SetIfCompatible when an existing array of a
// different shape would be silently overwritten.
type WriteConflict struct {
	Key string
}

func (e *WriteConflict) Error() string {
	return fmt.Sprintf("write conflict: %s already holds an array of a different shape; delete it first", e.Key)
}
