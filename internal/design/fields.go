package design

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Field is a single key/value pair of a Fields mapping.
type Field struct {
	Key   string
	Value string
}

// Fields is a string mapping that remembers insertion order. Placeholder
// matching walks keys in this order, so the order is part of the contract.
type Fields []Field

// FieldsOf builds Fields from alternating key/value arguments.
func FieldsOf(kv ...string) Fields {
	var out Fields
	for i := 0; i+1 < len(kv); i += 2 {
		out.Set(kv[i], kv[i+1])
	}
	return out
}

// Get returns the value stored under key.
func (f Fields) Get(key string) (string, bool) {
	for _, field := range f {
		if field.Key == key {
			return field.Value, true
		}
	}
	return "", false
}

// Keys returns the keys in insertion order.
func (f Fields) Keys() []string {
	keys := make([]string, 0, len(f))
	for _, field := range f {
		keys = append(keys, field.Key)
	}
	return keys
}

// Set replaces the value of an existing key in place or appends a new one.
func (f *Fields) Set(key, value string) {
	for i := range *f {
		if (*f)[i].Key == key {
			(*f)[i].Value = value
			return
		}
	}
	*f = append(*f, Field{Key: key, Value: value})
}

// Merge returns a copy of f overlaid with over. Existing keys keep their
// position and take the overriding value, new keys are appended.
func (f Fields) Merge(over Fields) Fields {
	out := make(Fields, len(f), len(f)+len(over))
	copy(out, f)
	for _, field := range over {
		out.Set(field.Key, field.Value)
	}
	return out
}

// Filter returns the fields whose value satisfies keep, preserving order.
func (f Fields) Filter(keep func(key, value string) bool) Fields {
	var out Fields
	for _, field := range f {
		if keep(field.Key, field.Value) {
			out = append(out, field)
		}
	}
	return out
}

func (f Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, field := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(field.Key)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(field.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping document order. Strings are
// taken as-is, numbers and booleans are kept in their literal form, and
// nulls, arrays and nested objects are dropped.
func (f *Fields) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decode fields: %w", err)
	}
	if tok == nil {
		*f = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("decode fields: expected object, got %v", tok)
	}

	out := Fields{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decode fields: %w", err)
		}
		key, _ := keyTok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("decode field %q: %w", key, err)
		}
		if value, ok := scalarString(raw); ok {
			out.Set(key, value)
		}
	}
	*f = out
	return nil
}

func scalarString(raw json.RawMessage) (string, bool) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return "", false
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	case '{', '[':
		return "", false
	default:
		return trimmed, true
	}
}
