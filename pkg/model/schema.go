package model

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	kgforge "github.com/goliatone/go-kgforge"
	"github.com/goliatone/go-kgforge/pkg/mapping"
	"gopkg.in/yaml.v3"
)

// SchemaPattern selects the schema files read from a directory.
const SchemaPattern = "**/*.{yaml,yml,json}"

// Schema is the declarative form of a shapes model.
type Schema struct {
	Vocab    string            `yaml:"vocab,omitempty"`
	Prefixes map[string]string `yaml:"prefixes,omitempty"`
	Shapes   []Shape           `yaml:"shapes"`
	// Mappings are keyed by source name, then by type.
	Mappings map[string]map[string]*mapping.Mapping `yaml:"mappings,omitempty"`
}

// Shape constrains the resources of one type.
type Shape struct {
	Type       string     `yaml:"type"`
	Closed     bool       `yaml:"closed,omitempty"`
	Properties []Property `yaml:"properties,omitempty"`
}

// Property constrains one property. Exactly one of Datatype and Shape is
// meaningful: Shape names the type nested resources must carry.
type Property struct {
	Path     string `yaml:"path"`
	Datatype string `yaml:"datatype,omitempty"`
	Shape    string `yaml:"shape,omitempty"`
	List     bool   `yaml:"list,omitempty"`
	Required bool   `yaml:"required,omitempty"`
	In       []any  `yaml:"in,omitempty"`
}

var datatypes = []string{"", "string", "integer", "number", "boolean", "date", "datetime", "anyuri"}

func canonicalDatatype(datatype string) string {
	switch dt := strings.TrimPrefix(strings.ToLower(datatype), "xsd:"); dt {
	case "int", "long":
		return "integer"
	case "decimal", "double", "float":
		return "number"
	case "iri":
		return "anyuri"
	default:
		return dt
	}
}

// ParseSchema decodes a YAML or JSON schema document and checks it.
func ParseSchema(data []byte) (*Schema, error) {
	var s Schema
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}
	if err := s.Check(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadSchema reads a schema file, or every schema file below a directory
// merged in lexical order.
func LoadSchema(source string) (*Schema, error) {
	info, err := os.Stat(source)
	if err != nil {
		return nil, &kgforge.ConfigurationError{Component: "model", Name: source, Reason: "schema source unreadable", Err: err}
	}
	if !info.IsDir() {
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("failed to read schema file %s: %w", source, err)
		}
		return ParseSchema(data)
	}
	return loadSchemaDir(os.DirFS(source), source)
}

func loadSchemaDir(fsys fs.FS, label string) (*Schema, error) {
	files, err := doublestar.Glob(fsys, SchemaPattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("failed to list schema files in %s: %w", label, err)
	}
	if len(files) == 0 {
		return nil, &kgforge.ConfigurationError{Component: "model", Name: label, Reason: "no schema files found"}
	}
	slices.Sort(files)
	merged := &Schema{}
	for _, file := range files {
		data, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("failed to read schema file %s: %w", path.Join(label, file), err)
		}
		part, err := ParseSchema(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path.Join(label, file), err)
		}
		if err := merged.merge(part); err != nil {
			return nil, fmt.Errorf("%s: %w", path.Join(label, file), err)
		}
	}
	return merged, nil
}

func (s *Schema) merge(other *Schema) error {
	if other.Vocab != "" {
		if s.Vocab != "" && s.Vocab != other.Vocab {
			return invalid("vocab", fmt.Sprintf("conflicting vocab %q and %q", s.Vocab, other.Vocab))
		}
		s.Vocab = other.Vocab
	}
	for prefix, iri := range other.Prefixes {
		if existing, ok := s.Prefixes[prefix]; ok && existing != iri {
			return invalid("prefixes."+prefix, fmt.Sprintf("bound to %q and %q", existing, iri))
		}
		if s.Prefixes == nil {
			s.Prefixes = map[string]string{}
		}
		s.Prefixes[prefix] = iri
	}
	s.Shapes = append(s.Shapes, other.Shapes...)
	for source, byType := range other.Mappings {
		if s.Mappings == nil {
			s.Mappings = map[string]map[string]*mapping.Mapping{}
		}
		if s.Mappings[source] == nil {
			s.Mappings[source] = map[string]*mapping.Mapping{}
		}
		for typ, m := range byType {
			if _, dup := s.Mappings[source][typ]; dup {
				return invalid("mappings."+source+"."+typ, "declared twice")
			}
			s.Mappings[source][typ] = m
		}
	}
	return s.Check()
}

// Check verifies that shape types are unique, datatypes known and shape
// references resolvable, and that embedded mappings are valid.
func (s *Schema) Check() error {
	var errs []error
	declared := map[string]bool{}
	for i, shape := range s.Shapes {
		where := fmt.Sprintf("shapes[%d]", i)
		if shape.Type == "" {
			errs = append(errs, invalid(where, "type must not be empty"))
			continue
		}
		if declared[shape.Type] {
			errs = append(errs, invalid(where, fmt.Sprintf("type %q declared twice", shape.Type)))
		}
		declared[shape.Type] = true
	}
	for i, shape := range s.Shapes {
		seen := map[string]bool{}
		for j, prop := range shape.Properties {
			where := fmt.Sprintf("shapes[%d].properties[%d]", i, j)
			switch {
			case prop.Path == "":
				errs = append(errs, invalid(where, "path must not be empty"))
				continue
			case strings.Contains(prop.Path, "."):
				errs = append(errs, invalid(where, "path must be a single property name; use shape for nesting"))
			case kgforge.IsReservedProperty(prop.Path):
				errs = append(errs, invalid(where, fmt.Sprintf("path %q is reserved", prop.Path)))
			case seen[prop.Path]:
				errs = append(errs, invalid(where, fmt.Sprintf("path %q declared twice", prop.Path)))
			}
			seen[prop.Path] = true
			if prop.Shape != "" {
				if prop.Datatype != "" {
					errs = append(errs, invalid(where, "datatype and shape are exclusive"))
				}
				if !declared[prop.Shape] {
					errs = append(errs, invalid(where, fmt.Sprintf("unknown shape %q", prop.Shape)))
				}
				continue
			}
			if !knownDatatype(prop.Datatype) {
				errs = append(errs, invalid(where, fmt.Sprintf("unknown datatype %q", prop.Datatype)))
			}
		}
	}
	for _, source := range slices.Sorted(maps.Keys(s.Mappings)) {
		for _, typ := range slices.Sorted(maps.Keys(s.Mappings[source])) {
			m := s.Mappings[source][typ]
			where := "mappings." + source + "." + typ
			if !declared[typ] {
				errs = append(errs, invalid(where, fmt.Sprintf("unknown type %q", typ)))
			}
			if m == nil {
				errs = append(errs, invalid(where, "mapping is empty"))
				continue
			}
			if m.Version == "" {
				m.Version = mapping.DefaultVersion
			}
			if m.Type == "" {
				m.Type = typ
			}
			if err := m.Validate(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", where, err))
			}
		}
	}
	return errors.Join(errs...)
}

func knownDatatype(datatype string) bool {
	return slices.Contains(datatypes, canonicalDatatype(datatype))
}

func invalid(where, reason string) error {
	return &kgforge.ConfigurationError{Component: "model", Name: where, Reason: reason}
}
