package kgforge

import (
	"fmt"
	"strings"
)

// LDOptions controls the linked-data form.
type LDOptions struct {
	// Compacted emits an @context and compact terms; otherwise terms are
	// expanded to IRIs and every property value is an array of value objects.
	Compacted     bool
	StoreMetadata bool
}

// AsJSONLD renders r as a linked-data document using the prefixes of v.
func AsJSONLD(v *Vocabulary, r *Resource, opts LDOptions) map[string]any {
	if r == nil {
		return nil
	}
	var out map[string]any
	if opts.Compacted {
		out = compactNode(r, opts)
		out["@context"] = v.Document()
	} else {
		out = expandNode(v, r, opts)
	}
	return out
}

func compactNode(r *Resource, opts LDOptions) map[string]any {
	out := make(map[string]any, r.props.Len()+2)
	if r.ID != "" {
		out["@id"] = r.ID
	}
	if types := typesValue(r.Types); types != nil {
		out["@type"] = types
	}
	r.props.Range(func(name string, value any) bool {
		out[name] = compactValue(value, opts)
		return true
	})
	if opts.StoreMetadata {
		addMetadata(out, r.Meta)
	}
	return out
}

func compactValue(value any, opts LDOptions) any {
	switch typed := value.(type) {
	case *Resource:
		return compactNode(typed, opts)
	case *LazyAction:
		return typed.Path
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = compactValue(item, opts)
		}
		return out
	default:
		return value
	}
}

func expandNode(v *Vocabulary, r *Resource, opts LDOptions) map[string]any {
	out := make(map[string]any, r.props.Len()+2)
	if r.ID != "" {
		out["@id"] = r.ID
	}
	if len(r.Types) > 0 {
		types := make([]any, len(r.Types))
		for i, typ := range r.Types {
			types[i] = v.Expand(typ)
		}
		out["@type"] = types
	}
	r.props.Range(func(name string, value any) bool {
		out[v.Expand(name)] = []any{expandValue(v, value, opts)}
		return true
	})
	if opts.StoreMetadata {
		addMetadata(out, r.Meta)
	}
	return out
}

func expandValue(v *Vocabulary, value any, opts LDOptions) any {
	switch typed := value.(type) {
	case *Resource:
		return expandNode(v, typed, opts)
	case *LazyAction:
		return map[string]any{"@value": typed.Path}
	case []any:
		items := make([]any, len(typed))
		for i, item := range typed {
			items[i] = expandValue(v, item, opts)
		}
		return map[string]any{"@list": items}
	default:
		return map[string]any{"@value": value}
	}
}

// FromJSONLD builds a resource from a compacted or expanded linked-data
// document. A document carrying @context is read as compacted.
func FromJSONLD(v *Vocabulary, doc map[string]any) (*Resource, error) {
	if doc == nil {
		return nil, fmt.Errorf("kgforge: from json-ld: nil document")
	}
	var (
		r   *Resource
		err error
	)
	if ctx, compacted := doc["@context"]; compacted {
		local := v
		if m, ok := ctx.(map[string]any); ok {
			local = vocabularyFromContext(m)
		}
		r, err = readCompactNode(local, doc)
	} else {
		r, err = readExpandedNode(v, doc)
	}
	if err != nil {
		return nil, fmt.Errorf("kgforge: from json-ld: %w", err)
	}
	meta, err := readMetadata(doc)
	if err != nil {
		return nil, fmt.Errorf("kgforge: from json-ld: %w", err)
	}
	r.Meta = meta
	return r, nil
}

func vocabularyFromContext(ctx map[string]any) *Vocabulary {
	prefixes := map[string]string{}
	var vocab string
	for key, value := range ctx {
		iri, ok := value.(string)
		if !ok {
			continue
		}
		if key == "@vocab" {
			vocab = iri
			continue
		}
		if !strings.HasPrefix(key, "@") {
			prefixes[key] = iri
		}
	}
	return NewVocabulary(vocab, prefixes)
}

func readCompactNode(v *Vocabulary, doc map[string]any) (*Resource, error) {
	r := &Resource{}
	for _, key := range sortedKeys(doc) {
		value := doc[key]
		switch key {
		case "@id", "id":
			id, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("@id must be a string, got %T", value)
			}
			r.ID = id
			continue
		case "@type", "type":
			types, err := toTypes(value)
			if err != nil {
				return nil, err
			}
			r.Types = types
			continue
		}
		if IsReservedProperty(key) {
			continue
		}
		converted, err := readCompactValue(v, value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		r.props.Set(v.Compact(key), converted)
	}
	return r, nil
}

func readCompactValue(v *Vocabulary, value any) (any, error) {
	switch typed := value.(type) {
	case map[string]any:
		if literal, ok := typed["@value"]; ok {
			return NormalizeValue(literal)
		}
		return readCompactNode(v, typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			converted, err := readCompactValue(v, item)
			if err != nil {
				return nil, err
			}
			out[i] = converted
		}
		return out, nil
	default:
		return NormalizeValue(value)
	}
}

func readExpandedNode(v *Vocabulary, doc map[string]any) (*Resource, error) {
	r := &Resource{}
	for _, key := range sortedKeys(doc) {
		value := doc[key]
		switch key {
		case "@id":
			id, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("@id must be a string, got %T", value)
			}
			r.ID = id
			continue
		case "@type":
			types, err := toTypes(value)
			if err != nil {
				return nil, err
			}
			for i, typ := range types {
				types[i] = v.Compact(typ)
			}
			r.Types = types
			continue
		}
		if strings.HasPrefix(key, "@") || strings.HasPrefix(key, "_") {
			continue
		}
		converted, err := readExpandedProperty(v, value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		r.props.Set(v.Compact(key), converted)
	}
	return r, nil
}

// readExpandedProperty unwraps the value array of an expanded property. A
// single entry is a single value; several entries form a list.
func readExpandedProperty(v *Vocabulary, value any) (any, error) {
	entries, ok := value.([]any)
	if !ok {
		return readExpandedValue(v, value)
	}
	if len(entries) == 1 {
		return readExpandedValue(v, entries[0])
	}
	out := make([]any, len(entries))
	for i, entry := range entries {
		converted, err := readExpandedValue(v, entry)
		if err != nil {
			return nil, err
		}
		out[i] = converted
	}
	return out, nil
}

func readExpandedValue(v *Vocabulary, value any) (any, error) {
	object, ok := value.(map[string]any)
	if !ok {
		return NormalizeValue(value)
	}
	if literal, ok := object["@value"]; ok {
		return NormalizeValue(literal)
	}
	if items, ok := object["@list"].([]any); ok {
		out := make([]any, len(items))
		for i, item := range items {
			converted, err := readExpandedValue(v, item)
			if err != nil {
				return nil, err
			}
			out[i] = converted
		}
		return out, nil
	}
	return readExpandedNode(v, object)
}
