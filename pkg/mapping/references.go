package mapping

import (
	"regexp"
	"slices"
)

var targetReference = regexp.MustCompile(`(?:^|[^.\w])target\.([A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)*)`)

// References lists the target paths an expression rule reads through
// target.<path>, in first-seen order without duplicates. Other rule kinds
// reference nothing.
func References(rule Rule) []string {
	if rule.Expression == "" {
		return nil
	}
	var out []string
	for _, match := range targetReference.FindAllStringSubmatch(rule.Expression, -1) {
		if !slices.Contains(out, match[1]) {
			out = append(out, match[1])
		}
	}
	return out
}
