package store

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"
)

// splitKey splits a slash-separated hierarchical path into its bucket path
// and leaf name, e.g. "poes/0001/PGA" -> (["poes", "0001"], "PGA").
func splitKey(key string) (buckets []string, leaf string) {
	parts := strings.Split(strings.Trim(key, "/"), "/")
	if len(parts) == 1 {
		return nil, parts[0]
	}
	return parts[:len(parts)-1], parts[len(parts)-1]
}

// openOrCreateBuckets walks (creating as needed) a chain of nested buckets.
func openOrCreateBuckets(tx *bolt.Tx, path []string) (*bolt.Bucket, error) {
	if len(path) == 0 {
		return tx.CreateBucketIfNotExists([]byte("/"))
	}
	b, err := tx.CreateBucketIfNotExists([]byte(path[0]))
	if err != nil {
		return nil, err
	}
	for _, p := range path[1:] {
		b, err = b.CreateBucketIfNotExists([]byte(p))
		if err != nil {
			return nil, err
		}
	}
	return b, nil
}

// navigateBuckets walks an existing chain of nested buckets, returning nil
// if any segment is missing.
func navigateBuckets(tx *bolt.Tx, path []string) *bolt.Bucket {
	if len(path) == 0 {
		return tx.Bucket([]byte("/"))
	}
	b := tx.Bucket([]byte(path[0]))
	if b == nil {
		return nil
	}
	for _, p := range path[1:] {
		b = b.Bucket([]byte(p))
		if b == nil {
			return nil
		}
	}
	return b
}

// classNameOf derives a stable type-locator string for a value, used as
// the envelope's "class" attribute (spec.md §4.1/§9's bounded protocol).
func classNameOf(value interface{}) string {
	if value == nil {
		return ""
	}
	t := reflect.TypeOf(value)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.PkgPath() == "" {
		return t.Name()
	}
	return t.PkgPath() + "." + t.Name()
}

func marshalJSON(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func unmarshalInto(raw []byte, out interface{}) error {
	return json.Unmarshal(raw, out)
}

// assign copies v into the pointer out, going through a JSON round-trip
// when the dynamic types don't already match (the common case after a
// Recorder reconstruction, where the registered FromRecordFunc returns an
// interface{} of the caller's concrete type).
func assign(out interface{}, v interface{}) error {
	ov := reflect.ValueOf(out)
	if ov.Kind() != reflect.Ptr || ov.IsNil() {
		return fmt.Errorf("store: Get target must be a non-nil pointer")
	}
	rv := reflect.ValueOf(v)
	elem := ov.Elem()
	if rv.IsValid() && rv.Type().AssignableTo(elem.Type()) {
		elem.Set(rv)
		return nil
	}
	if rv.IsValid() && rv.Kind() == reflect.Ptr && rv.Type().Elem().AssignableTo(elem.Type()) {
		elem.Set(rv.Elem())
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func shapesEqual(existing interface{}, want []int) bool {
	raw, err := json.Marshal(existing)
	if err != nil {
		return false
	}
	var got []int
	if err := json.Unmarshal(raw, &got); err != nil {
		return false
	}
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	default:
		return 0
	}
}

var calcIDCounter int64

// nowNano mints an id from the current wall-clock nanoseconds plus a
// process-wide counter incremented on every call, so two stores created
// back-to-back in the same nanosecond get different ids.
func nowNano() int64 {
	base := time.Now().UnixNano()
	return base + atomic.AddInt64(&calcIDCounter, 1)
}
