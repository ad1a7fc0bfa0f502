package kgforge

import (
	"fmt"
	"slices"
	"strings"
)

// Vocabulary is the prefix and vocabulary registry of one forge. It is built
// once and passed explicitly to every component that expands or compacts
// terms; there is no process-wide registry.
type Vocabulary struct {
	Vocab string

	prefixes map[string]string
	order    []string
}

// NewVocabulary builds a registry from a default vocabulary IRI and prefixes.
// Prefixes are kept sorted by name for deterministic output.
func NewVocabulary(vocab string, prefixes map[string]string) *Vocabulary {
	v := &Vocabulary{Vocab: vocab}
	names := make([]string, 0, len(prefixes))
	for name := range prefixes {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		v.Bind(name, prefixes[name])
	}
	return v
}

// Bind registers or replaces a prefix.
func (v *Vocabulary) Bind(prefix, iri string) {
	if v.prefixes == nil {
		v.prefixes = map[string]string{}
	}
	if _, exists := v.prefixes[prefix]; !exists {
		v.order = append(v.order, prefix)
	}
	v.prefixes[prefix] = iri
}

// Prefixes returns a copy of the prefix bindings.
func (v *Vocabulary) Prefixes() map[string]string {
	out := make(map[string]string, len(v.prefixes))
	for prefix, iri := range v.prefixes {
		out[prefix] = iri
	}
	return out
}

// PrefixNames returns the bound prefixes in binding order.
func (v *Vocabulary) PrefixNames() []string {
	return slices.Clone(v.order)
}

// Expand turns a compact term (prefix:local or a bare vocabulary term) into an
// IRI. Absolute IRIs and blank nodes are returned unchanged.
func (v *Vocabulary) Expand(term string) string {
	if v == nil || term == "" || isAbsoluteIRI(term) || strings.HasPrefix(term, "_:") {
		return term
	}
	if prefix, local, ok := strings.Cut(term, ":"); ok {
		if iri, bound := v.prefixes[prefix]; bound {
			return iri + local
		}
		return term
	}
	if v.Vocab != "" {
		return v.Vocab + term
	}
	return term
}

// Compact is the inverse of Expand: vocabulary terms first, then the longest
// matching prefix.
func (v *Vocabulary) Compact(iri string) string {
	if v == nil || iri == "" {
		return iri
	}
	if v.Vocab != "" && strings.HasPrefix(iri, v.Vocab) {
		local := strings.TrimPrefix(iri, v.Vocab)
		if local != "" && !strings.ContainsAny(local, "/#:") {
			return local
		}
	}
	best, bestIRI := "", ""
	for _, prefix := range v.order {
		candidate := v.prefixes[prefix]
		if strings.HasPrefix(iri, candidate) && len(candidate) > len(bestIRI) {
			best, bestIRI = prefix, candidate
		}
	}
	if best == "" {
		return iri
	}
	return best + ":" + strings.TrimPrefix(iri, bestIRI)
}

// Document renders the registry as a JSON-LD @context object.
func (v *Vocabulary) Document() map[string]any {
	doc := map[string]any{}
	if v == nil {
		return doc
	}
	if v.Vocab != "" {
		doc["@vocab"] = v.Vocab
	}
	for _, prefix := range v.order {
		doc[prefix] = v.prefixes[prefix]
	}
	return doc
}

// SPARQLPrologue renders PREFIX declarations for a query.
func (v *Vocabulary) SPARQLPrologue() string {
	if v == nil {
		return ""
	}
	var b strings.Builder
	for _, prefix := range v.order {
		fmt.Fprintf(&b, "PREFIX %s: <%s>\n", prefix, v.prefixes[prefix])
	}
	return b.String()
}

func isAbsoluteIRI(term string) bool {
	return strings.HasPrefix(term, "http://") || strings.HasPrefix(term, "https://") || strings.HasPrefix(term, "urn:")
}
