package kgforge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// Store metadata keys of the tree form.
const (
	KeyRevision   = "_rev"
	KeyDeprecated = "_deprecated"
	KeyTags       = "_tags"
)

// JSONOptions controls the tree form.
type JSONOptions struct {
	// StoreMetadata adds _rev, _deprecated and _tags to registered resources.
	StoreMetadata bool
}

// AsJSON renders r as a tree of maps, slices and scalars. A single type is
// rendered as a string, several as a list. Pending actions render as their path.
func AsJSON(r *Resource, opts JSONOptions) map[string]any {
	if r == nil {
		return nil
	}
	out := make(map[string]any, r.props.Len()+2)
	if r.ID != "" {
		out["id"] = r.ID
	}
	if types := typesValue(r.Types); types != nil {
		out["type"] = types
	}
	r.props.Range(func(name string, value any) bool {
		out[name] = treeValue(value, opts)
		return true
	})
	if opts.StoreMetadata {
		addMetadata(out, r.Meta)
	}
	return out
}

// AsJSONMany renders every resource in order.
func AsJSONMany(rs []*Resource, opts JSONOptions) []map[string]any {
	out := make([]map[string]any, len(rs))
	for i, r := range rs {
		out[i] = AsJSON(r, opts)
	}
	return out
}

// FromJSON builds a resource from its tree form. Property values equal to any
// na entry are dropped. Store metadata keys, when present, restore Meta.
func FromJSON(data map[string]any, na ...any) (*Resource, error) {
	if data == nil {
		return nil, fmt.Errorf("kgforge: from json: nil document")
	}
	cleaned := dropNA(data, na).(map[string]any)
	r, err := resourceFromMap(cleaned)
	if err != nil {
		return nil, fmt.Errorf("kgforge: from json: %w", err)
	}
	meta, err := readMetadata(data)
	if err != nil {
		return nil, fmt.Errorf("kgforge: from json: %w", err)
	}
	r.Meta = meta
	return r, nil
}

// FromJSONMany converts a list of tree documents, collecting failures by position.
func FromJSONMany(data []map[string]any, na ...any) ([]*Resource, error) {
	out := make([]*Resource, len(data))
	var failures []ItemError
	for i, doc := range data {
		r, err := FromJSON(doc, na...)
		if err != nil {
			failures = append(failures, ItemError{Index: i, Err: err})
			continue
		}
		out[i] = r
	}
	return out, NewBatchError("from json", len(data), failures)
}

func typesValue(types []string) any {
	switch len(types) {
	case 0:
		return nil
	case 1:
		return types[0]
	default:
		return stringsToAny(types)
	}
}

func treeValue(value any, opts JSONOptions) any {
	switch typed := value.(type) {
	case *Resource:
		return AsJSON(typed, opts)
	case *LazyAction:
		return typed.Path
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = treeValue(item, opts)
		}
		return out
	default:
		return value
	}
}

func addMetadata(out map[string]any, meta Metadata) {
	if !meta.Registered() {
		return
	}
	out[KeyRevision] = int64(meta.Revision)
	out[KeyDeprecated] = meta.Deprecated
	if len(meta.Tags) > 0 {
		tags := make(map[string]any, len(meta.Tags))
		for name, rev := range meta.Tags {
			tags[name] = int64(rev)
		}
		out[KeyTags] = tags
	}
}

func readMetadata(data map[string]any) (Metadata, error) {
	var meta Metadata
	if raw, ok := data[KeyRevision]; ok {
		rev, err := asInt(raw)
		if err != nil {
			return meta, fmt.Errorf("%s: %w", KeyRevision, err)
		}
		meta.Revision = rev
	}
	if raw, ok := data[KeyDeprecated].(bool); ok {
		meta.Deprecated = raw
	}
	if raw, ok := data[KeyTags].(map[string]any); ok && len(raw) > 0 {
		meta.Tags = make(map[string]int, len(raw))
		for name, value := range raw {
			rev, err := asInt(value)
			if err != nil {
				return meta, fmt.Errorf("%s.%s: %w", KeyTags, name, err)
			}
			meta.Tags[name] = rev
		}
	}
	return meta, nil
}

func asInt(value any) (int, error) {
	switch typed := value.(type) {
	case int:
		return typed, nil
	case int64:
		return int(typed), nil
	case float64:
		return int(typed), nil
	case json.Number:
		i, err := typed.Int64()
		return int(i), err
	case string:
		return strconv.Atoi(typed)
	default:
		return 0, fmt.Errorf("expected an integer, got %T", value)
	}
}

func dropNA(value any, na []any) any {
	if len(na) == 0 {
		return value
	}
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			if IsNA(item, na) {
				continue
			}
			out[key] = dropNA(item, na)
		}
		return out
	case []any:
		out := make([]any, 0, len(typed))
		for _, item := range typed {
			if IsNA(item, na) {
				continue
			}
			out = append(out, dropNA(item, na))
		}
		return out
	default:
		return value
	}
}

// IsNA reports whether a scalar value equals one of the na markers, numbers
// compared by value. Composite values are never na.
func IsNA(value any, na []any) bool {
	if _, composite := value.(map[string]any); composite {
		return false
	}
	if _, composite := value.([]any); composite {
		return false
	}
	normalized, err := NormalizeValue(value)
	if err != nil {
		return false
	}
	for _, marker := range na {
		m, err := NormalizeValue(marker)
		if err != nil {
			continue
		}
		if valuesEqual(normalized, m) {
			return true
		}
	}
	return false
}

// MarshalJSON writes the tree form without store metadata, keeping property order.
func (r *Resource) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	field := func(name string, value any) error {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		key, _ := json.Marshal(name)
		buf.Write(key)
		buf.WriteByte(':')
		encoded, err := json.Marshal(value)
		if err != nil {
			return err
		}
		buf.Write(encoded)
		return nil
	}
	if r.ID != "" {
		if err := field("id", r.ID); err != nil {
			return nil, err
		}
	}
	if types := typesValue(r.Types); types != nil {
		if err := field("type", types); err != nil {
			return nil, err
		}
	}
	var err error
	r.props.Range(func(name string, value any) bool {
		if action, ok := value.(*LazyAction); ok {
			value = action.Path
		}
		err = field(name, value)
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads the tree form, keeping the document's property order.
func (r *Resource) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("kgforge: resource must be a JSON object")
	}
	decoded, err := decodeObject(dec)
	if err != nil {
		return err
	}
	*r = *decoded
	return nil
}

func decodeObject(dec *json.Decoder) (*Resource, error) {
	r := &Resource{}
	raw := map[string]any{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("kgforge: unexpected token %v", tok)
		}
		if IsReservedProperty(key) && !isIdentityKey(key) {
			var value any
			if err := dec.Decode(&value); err != nil {
				return nil, err
			}
			raw[key] = value
			continue
		}
		value, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		switch {
		case key == "id" || key == "@id":
			id, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("kgforge: id must be a string, got %T", value)
			}
			r.ID = id
		case key == "type" || key == "@type":
			types, err := toTypes(value)
			if err != nil {
				return nil, err
			}
			r.Types = types
		default:
			r.props.Set(key, value)
		}
	}
	if _, err := dec.Token(); err != nil && err != io.EOF {
		return nil, err
	}
	meta, err := readMetadata(raw)
	if err != nil {
		return nil, err
	}
	r.Meta = meta
	return r, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch typed := tok.(type) {
	case json.Delim:
		switch typed {
		case '{':
			return decodeObject(dec)
		case '[':
			out := []any{}
			for dec.More() {
				item, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				out = append(out, item)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return out, nil
		}
		return nil, fmt.Errorf("kgforge: unexpected delimiter %v", typed)
	case json.Number:
		return NormalizeValue(typed)
	default:
		return typed, nil
	}
}

func isIdentityKey(key string) bool {
	switch key {
	case "id", "@id", "type", "@type":
		return true
	}
	return false
}
