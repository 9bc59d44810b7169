package chat

import (
	"encoding/json"
	"reflect"
	"strings"
)

// Object members that the structs in this package do not model are kept in
// an Extra map and written back out unchanged, so a request can pass
// through the shim without losing fields newer than these types.

// fieldNames lists the JSON member names t declares.
func fieldNames(t reflect.Type) map[string]bool {
	names := make(map[string]bool, t.NumField())
	for i := range t.NumField() {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			continue
		case "":
			name = f.Name
		}
		names[name] = true
	}
	return names
}

// splitExtra decodes data into known and returns the members known does
// not declare, or nil when there are none.
func splitExtra(data []byte, known any, names map[string]bool) (map[string]json.RawMessage, error) {
	if err := json.Unmarshal(data, known); err != nil {
		return nil, err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for k := range all {
		if names[k] {
			delete(all, k)
		}
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

// joinExtra encodes known and adds the extra members. A member of known
// wins over an extra one with the same name.
func joinExtra(known any, extra map[string]json.RawMessage) ([]byte, error) {
	data, err := json.Marshal(known)
	if err != nil || len(extra) == 0 {
		return data, err
	}
	merged := make(map[string]json.RawMessage, len(extra))
	for k, v := range extra {
		merged[k] = v
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}

type (
	requestFields CompletionRequest
	messageFields Message
)

var (
	requestNames = fieldNames(reflect.TypeFor[requestFields]())
	messageNames = fieldNames(reflect.TypeFor[messageFields]())
)

func (r *CompletionRequest) UnmarshalJSON(data []byte) error {
	var known requestFields
	extra, err := splitExtra(data, &known, requestNames)
	if err != nil {
		return err
	}
	known.Extra = extra
	*r = CompletionRequest(known)
	return nil
}

func (r CompletionRequest) MarshalJSON() ([]byte, error) {
	return joinExtra(requestFields(r), r.Extra)
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var known messageFields
	extra, err := splitExtra(data, &known, messageNames)
	if err != nil {
		return err
	}
	known.Extra = extra
	*m = Message(known)
	return nil
}

func (m Message) MarshalJSON() ([]byte, error) {
	return joinExtra(messageFields(m), m.Extra)
}

// UnmarshalJSON decodes the tool and keeps its exact encoding, which
// MarshalJSON then reproduces.
func (t *Tool) UnmarshalJSON(data []byte) error {
	type fields Tool
	var known fields
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	*t = Tool(known)
	t.raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON returns the bytes the tool was decoded from, or the encoding
// of its fields for a tool built in code.
func (t Tool) MarshalJSON() ([]byte, error) {
	if t.raw != nil {
		return t.raw, nil
	}
	type fields Tool
	return json.Marshal(fields(t))
}
