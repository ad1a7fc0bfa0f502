package kgforge

import (
	"fmt"
	"strings"
)

// RDFType is the predicate used for semantic types.
const RDFType = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"

// Ref is a triple object naming another node rather than a literal.
type Ref string

// IsBlank reports whether the reference is a blank node label.
func (r Ref) IsBlank() bool {
	return strings.HasPrefix(string(r), "_:")
}

// Triple is one subject-predicate-object statement. Object is a Ref or a
// literal scalar.
type Triple struct {
	Subject   string
	Predicate string
	Object    any
}

// AsTriples flattens r into triples. Predicates and types are expanded with v;
// nested resources without an id become blank nodes _:bN.
func AsTriples(v *Vocabulary, r *Resource) []Triple {
	if r == nil {
		return nil
	}
	w := &tripleWriter{vocab: v}
	w.node(r)
	return w.out
}

// AsTriplesMany flattens each resource in order; blank node labels stay unique
// across the whole set.
func AsTriplesMany(v *Vocabulary, rs []*Resource) []Triple {
	w := &tripleWriter{vocab: v}
	for _, r := range rs {
		if r != nil {
			w.node(r)
		}
	}
	return w.out
}

type tripleWriter struct {
	vocab *Vocabulary
	blank int
	out   []Triple
}

func (w *tripleWriter) node(r *Resource) string {
	subject := r.ID
	if subject == "" {
		subject = fmt.Sprintf("_:b%d", w.blank)
		w.blank++
	}
	for _, typ := range r.Types {
		w.out = append(w.out, Triple{Subject: subject, Predicate: RDFType, Object: Ref(w.vocab.Expand(typ))})
	}
	r.props.Range(func(name string, value any) bool {
		w.value(subject, w.vocab.Expand(name), value)
		return true
	})
	return subject
}

func (w *tripleWriter) value(subject, predicate string, value any) {
	switch typed := value.(type) {
	case *Resource:
		w.out = append(w.out, Triple{Subject: subject, Predicate: predicate, Object: Ref(w.node(typed))})
	case *LazyAction:
		w.out = append(w.out, Triple{Subject: subject, Predicate: predicate, Object: typed.Path})
	case []any:
		for _, item := range typed {
			w.value(subject, predicate, item)
		}
	case nil:
	default:
		w.out = append(w.out, Triple{Subject: subject, Predicate: predicate, Object: value})
	}
}

// FromTriples groups triples by subject in first-seen order. Blank nodes
// referenced from another subject are embedded as nested resources; repeated
// predicates become lists. Only subjects not embedded elsewhere are returned.
func FromTriples(v *Vocabulary, triples []Triple) ([]*Resource, error) {
	var order []string
	bySubject := map[string][]Triple{}
	embedded := map[string]bool{}
	for _, t := range triples {
		if t.Subject == "" || t.Predicate == "" {
			return nil, fmt.Errorf("kgforge: from triples: incomplete triple %+v", t)
		}
		if _, seen := bySubject[t.Subject]; !seen {
			order = append(order, t.Subject)
		}
		bySubject[t.Subject] = append(bySubject[t.Subject], t)
		if ref, ok := t.Object.(Ref); ok && ref.IsBlank() {
			embedded[string(ref)] = true
		}
	}

	building := map[string]bool{}
	var build func(subject string) (*Resource, error)
	build = func(subject string) (*Resource, error) {
		if building[subject] {
			return nil, fmt.Errorf("kgforge: from triples: blank node %s references itself", subject)
		}
		building[subject] = true
		defer delete(building, subject)

		r := &Resource{}
		if !Ref(subject).IsBlank() {
			r.ID = subject
		}
		for _, t := range bySubject[subject] {
			if t.Predicate == RDFType {
				r.Types = append(r.Types, v.Compact(fmt.Sprint(t.Object)))
				continue
			}
			object := t.Object
			if ref, ok := object.(Ref); ok {
				if _, known := bySubject[string(ref)]; known && ref.IsBlank() {
					nested, err := build(string(ref))
					if err != nil {
						return nil, err
					}
					object = nested
				} else if ref.IsBlank() {
					object = &Resource{}
				} else {
					object = &Resource{ID: string(ref)}
				}
			} else {
				normalized, err := NormalizeValue(object)
				if err != nil {
					return nil, fmt.Errorf("kgforge: from triples: %w", err)
				}
				object = normalized
			}
			name := v.Compact(t.Predicate)
			if existing, ok := r.props.Get(name); ok {
				if list, isList := existing.([]any); isList {
					r.props.Set(name, append(list, object))
				} else {
					r.props.Set(name, []any{existing, object})
				}
				continue
			}
			r.props.Set(name, object)
		}
		return r, nil
	}

	var out []*Resource
	for _, subject := range order {
		if embedded[subject] {
			continue
		}
		r, err := build(subject)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// NTriples serializes triples in N-Triples syntax.
func NTriples(triples []Triple) string {
	var sb strings.Builder
	for _, t := range triples {
		fmt.Fprintf(&sb, "%s <%s> %s .\n", ntriplesNode(t.Subject), t.Predicate, ntriplesObject(t.Object))
	}
	return sb.String()
}

func ntriplesNode(node string) string {
	if Ref(node).IsBlank() {
		return node
	}
	return "<" + node + ">"
}

func ntriplesObject(obj any) string {
	switch typed := obj.(type) {
	case Ref:
		return ntriplesNode(string(typed))
	case string:
		return fmt.Sprintf("%q", typed)
	case int64:
		return fmt.Sprintf("\"%d\"^^<http://www.w3.org/2001/XMLSchema#integer>", typed)
	case float64:
		return fmt.Sprintf("\"%g\"^^<http://www.w3.org/2001/XMLSchema#double>", typed)
	case bool:
		return fmt.Sprintf("\"%t\"^^<http://www.w3.org/2001/XMLSchema#boolean>", typed)
	default:
		return fmt.Sprintf("%q", fmt.Sprint(typed))
	}
}
