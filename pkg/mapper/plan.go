package mapper

import (
	"strings"

	kgforge "github.com/goliatone/go-kgforge"
	"github.com/goliatone/go-kgforge/pkg/mapping"
)

// plan is a validated mapping with its rules in execution order and its
// expressions compiled.
type plan struct {
	mapping *mapping.Mapping
	order   []int
	rules   []compiledRule
}

type compiledRule struct {
	rule     mapping.Rule
	kind     mapping.RuleKind
	program  kgforge.CompiledRule
	children *plan
}

func (m *dictionaryMapper) compile(mp *mapping.Mapping) (*plan, error) {
	if mp == nil {
		return nil, &kgforge.ConfigurationError{Component: "mapper", Name: m.engine, Reason: "mapping is nil"}
	}
	if err := mp.Validate(); err != nil {
		return nil, err
	}
	return m.compileValidated(mp, "")
}

func (m *dictionaryMapper) compileValidated(mp *mapping.Mapping, prefix string) (*plan, error) {
	order, err := executionOrder(mp, prefix)
	if err != nil {
		return nil, err
	}
	p := &plan{mapping: mp, order: order, rules: make([]compiledRule, len(mp.Rules))}
	for i, rule := range mp.Rules {
		compiled := compiledRule{rule: rule, kind: rule.Kind()}
		switch compiled.kind {
		case mapping.KindExpression:
			program, err := m.evaluator.Compile(rule.Expression)
			if err != nil {
				return nil, err
			}
			compiled.program = program
		case mapping.KindMapping:
			children, err := m.compileValidated(rule.Mapping, prefix+rule.Target+".")
			if err != nil {
				return nil, err
			}
			compiled.children = children
		}
		p.rules[i] = compiled
	}
	return p, nil
}

// executionOrder sorts rules so that every expression runs after the rules
// whose targets it reads. A reference to a path depends on rules targeting
// that path, one of its ancestors, or one of its descendants.
func executionOrder(mp *mapping.Mapping, prefix string) ([]int, error) {
	targets := mp.Targets()
	order, stuck, err := topoSort(len(mp.Rules), func(i int) []int {
		var deps []int
		for _, ref := range mapping.References(mp.Rules[i]) {
			for j, target := range targets {
				if overlaps(ref, target) {
					deps = append(deps, j)
				}
			}
		}
		return deps
	})
	if err != nil {
		return nil, err
	}
	if len(stuck) > 0 {
		cycle := make([]string, len(stuck))
		for k, i := range stuck {
			cycle[k] = prefix + targets[i]
		}
		return nil, &kgforge.MappingCycleError{Targets: cycle}
	}
	return order, nil
}

func overlaps(ref, target string) bool {
	return ref == target || strings.HasPrefix(ref, target+".") || strings.HasPrefix(target, ref+".")
}
