package design

import (
	"encoding/json"
	"reflect"
	"strings"
	"sync"
)

type (
	designAlias  Design
	pageAlias    Page
	elementAlias Element
)

func (d *Design) UnmarshalJSON(data []byte) error {
	var alias designAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	extra, err := unknownFields(data, alias)
	if err != nil {
		return err
	}
	*d = Design(alias)
	d.Extra = extra
	return nil
}

func (d Design) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(designAlias(d), d.Extra)
}

func (p *Page) UnmarshalJSON(data []byte) error {
	var alias pageAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	extra, err := unknownFields(data, alias)
	if err != nil {
		return err
	}
	*p = Page(alias)
	p.Extra = extra
	return nil
}

func (p Page) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(pageAlias(p), p.Extra)
}

func (e *Element) UnmarshalJSON(data []byte) error {
	var alias elementAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	extra, err := unknownFields(data, alias)
	if err != nil {
		return err
	}
	*e = Element(alias)
	e.Extra = extra
	return nil
}

func (e Element) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(elementAlias(e), e.Extra)
}

// unknownFields returns the members of the JSON object in data that are
// not mapped to a struct field of model.
func unknownFields(data []byte, model any) (map[string]json.RawMessage, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	known := knownKeys(reflect.TypeOf(model))
	for key := range all {
		if _, ok := known[key]; ok {
			delete(all, key)
		}
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

func marshalWithExtra(v any, extra map[string]json.RawMessage) ([]byte, error) {
	base, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(extra) == 0 {
		return base, nil
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for key, value := range extra {
		if _, exists := merged[key]; !exists {
			merged[key] = value
		}
	}
	return json.Marshal(merged)
}

var keyCache sync.Map // reflect.Type -> map[string]struct{}

func knownKeys(t reflect.Type) map[string]struct{} {
	if cached, ok := keyCache.Load(t); ok {
		return cached.(map[string]struct{})
	}
	keys := make(map[string]struct{})
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("json")
		name, _, _ := strings.Cut(tag, ",")
		if name == "" || name == "-" {
			continue
		}
		keys[name] = struct{}{}
	}
	keyCache.Store(t, keys)
	return keys
}
