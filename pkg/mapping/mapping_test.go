package mapping

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	kgforge "github.com/goliatone/go-kgforge"
	"github.com/google/go-cmp/cmp"
)

const personMapping = `
type: Person
rules:
  - target: fullName
    expression: concat(given, family)
  - target: email
    source: contact.email
  - target: active
    constant: false
  - target: address
    source: addr
    mapping:
      rules:
        - target: city
          source: city
        - target: label
          expression: upper(target.city)
`

func TestLoadParsesRules(t *testing.T) {
	m, err := Load([]byte(personMapping))
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if m.Version != DefaultVersion {
		t.Fatalf("expected default version, got %q", m.Version)
	}
	if diff := cmp.Diff([]string{"fullName", "email", "active", "address"}, m.Targets()); diff != "" {
		t.Fatalf("targets mismatch (-want +got):\n%s", diff)
	}
	kinds := []RuleKind{KindExpression, KindSource, KindConstant, KindMapping}
	for i, rule := range m.Rules {
		if rule.Kind() != kinds[i] {
			t.Fatalf("rule %d: expected kind %q, got %q", i, kinds[i], rule.Kind())
		}
	}
	if m.Rules[2].Constant.Value != false {
		t.Fatalf("expected false constant, got %#v", m.Rules[2].Constant.Value)
	}
	if m.Rules[3].Source != "addr" || len(m.Rules[3].Mapping.Rules) != 2 {
		t.Fatalf("nested mapping not parsed: %+v", m.Rules[3])
	}
}

func TestSaveLoadIsByteStable(t *testing.T) {
	m, err := Load([]byte(personMapping))
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	first, err := Save(m)
	if err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	reloaded, err := Load(first)
	if err != nil {
		t.Fatalf("unexpected reload error: %v", err)
	}
	second, err := Save(reloaded)
	if err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	if string(first) != string(second) {
		t.Fatalf("save is not stable:\nfirst:\n%s\nsecond:\n%s", first, second)
	}
	if diff := cmp.Diff(m, reloaded); diff != "" {
		t.Fatalf("reloaded mapping differs (-want +got):\n%s", diff)
	}
}

func TestWriteFileAndLoadFile(t *testing.T) {
	m := &Mapping{Type: "Dataset", Rules: []Rule{
		{Target: "name", Source: "title"},
		{Target: "size", Constant: Const(0)},
	}}
	path := filepath.Join(t.TempDir(), "dataset.yaml")
	if err := WriteFile(m, path); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file to exist: %v", err)
	}
	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if loaded.Rules[1].Constant == nil || loaded.Rules[1].Constant.Value != 0 {
		t.Fatalf("zero constant lost: %+v", loaded.Rules[1])
	}
}

func TestValidateRejectsMalformedRules(t *testing.T) {
	cases := []struct {
		name string
		m    *Mapping
	}{
		{"empty target", &Mapping{Rules: []Rule{{Source: "a"}}}},
		{"duplicate target", &Mapping{Rules: []Rule{{Target: "a", Source: "a"}, {Target: "a", Source: "b"}}}},
		{"no payload", &Mapping{Rules: []Rule{{Target: "a"}}}},
		{"two payloads", &Mapping{Rules: []Rule{{Target: "a", Source: "a", Expression: "1"}}}},
		{"reserved segment", &Mapping{Rules: []Rule{{Target: "_rev", Constant: Const(1)}}}},
		{"nested invalid", &Mapping{Rules: []Rule{{Target: "a", Mapping: &Mapping{Rules: []Rule{{Target: ""}}}}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.m.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !errors.Is(err, kgforge.ErrConfiguration) {
				t.Fatalf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestValidateAcceptsIdentityTargets(t *testing.T) {
	m := &Mapping{Rules: []Rule{
		{Target: "id", Source: "identifier"},
		{Target: "type", Constant: Const("Person")},
		{Target: "affiliation.id", Source: "org"},
	}}
	if err := m.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	if _, err := Load([]byte("rules:\n  - target: a\n    sauce: b\n")); err == nil {
		t.Fatalf("expected unknown key error")
	}
}

func TestReferences(t *testing.T) {
	rule := Rule{Target: "label", Expression: `target.name + " " + target.address.city + target.name + source.target.x`}
	if diff := cmp.Diff([]string{"name", "address.city"}, References(rule)); diff != "" {
		t.Fatalf("references mismatch (-want +got):\n%s", diff)
	}
	if got := References(Rule{Target: "x", Source: "target.y"}); got != nil {
		t.Fatalf("source rules reference nothing, got %v", got)
	}
}

func TestCloneIsDeep(t *testing.T) {
	m, err := Load([]byte(personMapping))
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	clone := m.Clone()
	clone.Rules[3].Mapping.Rules[0].Source = "town"
	clone.Rules[2].Constant.Value = true
	if m.Rules[3].Mapping.Rules[0].Source != "city" || m.Rules[2].Constant.Value != false {
		t.Fatalf("clone shares state with original")
	}
}
