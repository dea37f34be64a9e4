// Package hyper models hyperparameter sets: ordered name/value pairs whose
// values are kept as raw JSON so that classifiers decide how to read them.
package hyper

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalid is returned when a set names a hyperparameter a classifier does
// not accept.
var ErrInvalid = errors.New("invalid hyperparameter")

// Param is one bound hyperparameter.
type Param struct {
	Name  string
	Value json.RawMessage
}

// Set is an ordered collection of bound hyperparameters. Order is the
// declaration order of the source document and is preserved on output.
type Set []Param

// Parse decodes a JSON object into a Set.
func Parse(raw string) (Set, error) {
	var s Set
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("parse hyperparameters %q: %w", raw, err)
	}
	return s, nil
}

// MarshalJSON implements json.Marshaler and keeps declaration order.
func (s Set) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(p.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(p.Value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler. A JSON null yields an empty set.
func (s *Set) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	var out Set
	err := ReadObject(dec, func(key string) error {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		out = out.With(key, raw)
		return nil
	})
	if err != nil {
		return err
	}
	*s = out
	return nil
}

// Lookup returns the raw value bound to name.
func (s Set) Lookup(name string) (json.RawMessage, bool) {
	for _, p := range s {
		if p.Name == name {
			return p.Value, true
		}
	}
	return nil, false
}

// Decode unmarshals the value bound to name into v. It reports whether the
// name was present.
func (s Set) Decode(name string, v any) (bool, error) {
	raw, ok := s.Lookup(name)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("hyperparameter %s: %w", name, err)
	}
	return true, nil
}

// With returns a copy of the set with name bound to value. An existing binding
// keeps its position.
func (s Set) With(name string, value json.RawMessage) Set {
	out := make(Set, len(s), len(s)+1)
	copy(out, s)
	value = compact(value)
	for i := range out {
		if out[i].Name == name {
			out[i].Value = value
			return out
		}
	}
	return append(out, Param{Name: name, Value: value})
}

// Names returns the bound names in order.
func (s Set) Names() []string {
	names := make([]string, len(s))
	for i, p := range s {
		names[i] = p.Name
	}
	return names
}

// Check fails with ErrInvalid if the set binds a name missing from valid.
func (s Set) Check(valid []string) error {
	allowed := make(map[string]struct{}, len(valid))
	for _, v := range valid {
		allowed[v] = struct{}{}
	}
	for _, p := range s {
		if _, ok := allowed[p.Name]; !ok {
			return fmt.Errorf("%w: %s; passed hyperparameters are %s, valid hyperparameters are {%s}",
				ErrInvalid, p.Name, s.String(), strings.Join(valid, ","))
		}
	}
	return nil
}

// String renders the set as compact JSON.
func (s Set) String() string {
	b, err := s.MarshalJSON()
	if err != nil {
		return "{?}"
	}
	return string(b)
}

// ReadObject consumes one JSON object from dec, calling fn for every key in
// document order. fn must consume exactly one value from dec.
func ReadObject(dec *json.Decoder, fn func(key string) error) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected JSON object, found %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, found %v", tok)
		}
		if err := fn(key); err != nil {
			return fmt.Errorf("key %q: %w", key, err)
		}
	}
	_, err = dec.Token()
	return err
}

func compact(raw json.RawMessage) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}
