package mapping

import (
	"errors"
	"fmt"
	"strings"

	kgforge "github.com/goliatone/go-kgforge"
)

// Validate checks rule shape recursively: non-empty unique targets, valid
// path segments and exactly one payload per rule.
func (m *Mapping) Validate() error {
	return m.validate("")
}

func (m *Mapping) validate(prefix string) error {
	if m == nil {
		return invalid(prefix, "mapping is nil")
	}
	var errs []error
	seen := map[string]int{}
	for i, rule := range m.Rules {
		where := fmt.Sprintf("%srules[%d]", prefix, i)
		if rule.Target == "" {
			errs = append(errs, invalid(where, "target must not be empty"))
			continue
		}
		if first, dup := seen[rule.Target]; dup {
			errs = append(errs, invalid(where, fmt.Sprintf("target %q already bound by rules[%d]", rule.Target, first)))
		}
		seen[rule.Target] = i
		if err := checkTarget(rule.Target); err != nil {
			errs = append(errs, invalid(where, err.Error()))
		}
		switch kinds := rule.kinds(); len(kinds) {
		case 0:
			errs = append(errs, invalid(where, "rule needs one of constant, source, mapping or expression"))
		case 1:
		default:
			names := make([]string, len(kinds))
			for j, kind := range kinds {
				names[j] = string(kind)
			}
			errs = append(errs, invalid(where, "rule has several payloads: "+strings.Join(names, ", ")))
		}
		if rule.Mapping != nil {
			if err := rule.Mapping.validate(where + ".mapping."); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func checkTarget(target string) error {
	segments := strings.Split(target, ".")
	for i, segment := range segments {
		if segment == "" {
			return fmt.Errorf("target %q has an empty segment", target)
		}
		last := i == len(segments)-1
		if (segment == "id" || segment == "type") && last {
			continue
		}
		if kgforge.IsReservedProperty(segment) {
			return fmt.Errorf("target %q uses reserved name %q", target, segment)
		}
	}
	return nil
}

func invalid(where, reason string) error {
	return &kgforge.ConfigurationError{Component: "mapping", Name: where, Reason: reason}
}
