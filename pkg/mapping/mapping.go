// Package mapping defines declarative mapping documents: ordered rules that
// project source records onto resource properties.
//
// A document looks like:
//
//	version: "1"
//	type: Person
//	rules:
//	  - target: fullName
//	    expression: concat(given, family)
//	  - target: email
//	    source: contact.email
//	  - target: address
//	    source: addr
//	    mapping:
//	      rules:
//	        - target: city
//	          source: city
//	  - target: active
//	    constant: true
//
// A Mapping only loads, saves and validates; evaluation lives in the mapper
// package.
package mapping

import "gopkg.in/yaml.v3"

// DefaultVersion is written by Load when a document omits its version.
const DefaultVersion = "1"

// RuleKind identifies the payload of a rule.
type RuleKind string

const (
	KindConstant   RuleKind = "constant"
	KindSource     RuleKind = "source"
	KindMapping    RuleKind = "mapping"
	KindExpression RuleKind = "expression"
	KindInvalid    RuleKind = ""
)

// Mapping is an ordered rule set. Type, when set, becomes the type of the
// produced resources unless a rule targets "type".
type Mapping struct {
	Version string `yaml:"version,omitempty"`
	Type    string `yaml:"type,omitempty"`
	Rules   []Rule `yaml:"rules"`
}

// Rule binds a target property path to exactly one payload. A nested Mapping
// may name a Source field holding the record (or list of records) it maps.
type Rule struct {
	Target     string    `yaml:"target"`
	Constant   *Constant `yaml:"constant,omitempty"`
	Source     string    `yaml:"source,omitempty"`
	Expression string    `yaml:"expression,omitempty"`
	Mapping    *Mapping  `yaml:"mapping,omitempty"`
}

// Constant wraps a literal so zero values such as false or 0 survive a
// save/load round trip.
type Constant struct {
	Value any
}

// Const is shorthand for a constant payload.
func Const(value any) *Constant {
	return &Constant{Value: value}
}

func (c Constant) MarshalYAML() (any, error) {
	return c.Value, nil
}

func (c *Constant) UnmarshalYAML(node *yaml.Node) error {
	return node.Decode(&c.Value)
}

// Kind reports the payload carried by the rule, or KindInvalid when it carries
// none or several.
func (r Rule) Kind() RuleKind {
	kinds := r.kinds()
	if len(kinds) != 1 {
		return KindInvalid
	}
	return kinds[0]
}

func (r Rule) kinds() []RuleKind {
	var out []RuleKind
	if r.Constant != nil {
		out = append(out, KindConstant)
	}
	if r.Expression != "" {
		out = append(out, KindExpression)
	}
	if r.Mapping != nil {
		out = append(out, KindMapping)
	} else if r.Source != "" {
		out = append(out, KindSource)
	}
	return out
}

// Targets lists rule targets in declaration order.
func (m *Mapping) Targets() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.Rules))
	for i, rule := range m.Rules {
		out[i] = rule.Target
	}
	return out
}

// Clone returns a deep copy.
func (m *Mapping) Clone() *Mapping {
	if m == nil {
		return nil
	}
	out := &Mapping{Version: m.Version, Type: m.Type, Rules: make([]Rule, len(m.Rules))}
	for i, rule := range m.Rules {
		cloned := rule
		if rule.Constant != nil {
			cloned.Constant = &Constant{Value: rule.Constant.Value}
		}
		cloned.Mapping = rule.Mapping.Clone()
		out.Rules[i] = cloned
	}
	return out
}
