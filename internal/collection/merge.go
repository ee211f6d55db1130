package collection

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Patch is a set of top-level record fields keyed by their JSON names.
// A nil value overwrites the field with JSON null.
type Patch map[string]any

// PatchOf builds a Patch from the JSON encoding of v, which must encode to
// an object. Fields dropped by omitempty are not part of the patch.
func PatchOf(v any) (Patch, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("patch source must encode to an object: %w", err)
	}
	if fields == nil {
		return nil, errors.New("patch source must encode to an object")
	}
	p := make(Patch, len(fields))
	for k, v := range fields {
		p[k] = v
	}
	return p, nil
}

type objectField struct {
	name  string
	value json.RawMessage
}

var errNotObject = errors.New("record is not a JSON object")

// mergeObject shallow-merges patch into the JSON object doc. Patch keys
// match existing fields case-insensitively, as encoding/json does. Existing
// fields keep their position, spelling and, unless patched, their exact
// bytes. New fields are appended in name order.
func mergeObject(doc json.RawMessage, patch Patch) (json.RawMessage, error) {
	fields, err := splitObject(doc)
	if err != nil {
		return nil, err
	}
	encoded := make(map[string]json.RawMessage, len(patch))
	for name, v := range patch {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode field %q: %w", name, err)
		}
		encoded[name] = raw
	}
	names := make([]string, 0, len(encoded))
	for name := range encoded {
		names = append(names, name)
	}
	sort.Strings(names)
	for i, name := range names {
		for _, other := range names[i+1:] {
			if strings.EqualFold(name, other) {
				return nil, fmt.Errorf("patch fields %q and %q differ only in case", name, other)
			}
		}
	}
	used := make(map[string]bool, len(names))
	for i := range fields {
		if name, ok := matchField(fields[i].name, names); ok {
			fields[i].value = encoded[name]
			used[name] = true
		}
	}
	for _, name := range names {
		if !used[name] {
			fields = append(fields, objectField{name: name, value: encoded[name]})
		}
	}
	return joinObject(fields)
}

// matchField picks the patch key that decoding would bind to a stored field:
// the exact name first, otherwise a case-insensitive match. Stored fields
// keep their own spelling.
func matchField(field string, names []string) (string, bool) {
	folded := ""
	for _, name := range names {
		if name == field {
			return name, true
		}
		if folded == "" && strings.EqualFold(name, field) {
			folded = name
		}
	}
	return folded, folded != ""
}

func splitObject(doc json.RawMessage) ([]objectField, error) {
	dec := json.NewDecoder(bytes.NewReader(doc))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errNotObject
	}
	var fields []objectField
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, ok := tok.(string)
		if !ok {
			return nil, errNotObject
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		fields = append(fields, objectField{name: name, value: value})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return fields, nil
}

func joinObject(fields []objectField) (json.RawMessage, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(f.name)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(f.value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
