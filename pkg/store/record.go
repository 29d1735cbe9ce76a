package store

import "encoding/json"

// Recorder is the bounded persistence protocol spec.md §4.1/§9 requires:
// every type stored in the datastore that isn't a plain record array
// exposes ToRecord/FromRecord so it can be serialized and, on read,
// restored without the reader having prior knowledge of its concrete type
// (the "class" name below is the locator attribute).
type Recorder interface {
	ToRecord() (payload []byte, attrs map[string]interface{}, err error)
}

// FromRecordFunc reconstructs a value from its serialized payload and
// attributes. Registered per type name via RegisterType.
type FromRecordFunc func(payload []byte, attrs map[string]interface{}) (interface{}, error)

// envelope is the on-disk shape of every value: a class locator, the
// caller-supplied attributes (always including "nbytes"), and the opaque
// payload.
type envelope struct {
	Class   string                 `json:"class"`
	Attrs   map[string]interface{} `json:"attrs"`
	Payload json.RawMessage        `json:"payload"`
}

func encodeValue(class string, value interface{}, attrs map[string]interface{}) ([]byte, error) {
	var payload []byte
	var err error
	if r, ok := value.(Recorder); ok {
		var attrs2 map[string]interface{}
		var rerr error
		payload, attrs2, rerr = r.ToRecord()
		if rerr != nil {
			return nil, rerr
		}
		for k, v := range attrs2 {
			if attrs == nil {
				attrs = map[string]interface{}{}
			}
			attrs[k] = v
		}
	} else {
		payload, err = json.Marshal(value)
		if err != nil {
			return nil, err
		}
	}
	if attrs == nil {
		attrs = map[string]interface{}{}
	}
	attrs["nbytes"] = int64(len(payload))

	env := envelope{Class: class, Attrs: attrs, Payload: json.RawMessage(payload)}
	return json.Marshal(env)
}

func decodeEnvelope(raw []byte) (*envelope, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	return &env, nil
}
