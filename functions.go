package kgforge

import (
	"fmt"
	"strings"
)

// DefaultFunctions returns a registry holding the builtin mapping functions:
// concat, join, lower, upper, trim, coalesce, split and format.
func DefaultFunctions() *FunctionRegistry {
	registry := NewFunctionRegistry()
	builtins := map[string]Function{
		"concat":   concatFunction,
		"join":     joinFunction,
		"lower":    stringFunction("lower", strings.ToLower),
		"upper":    stringFunction("upper", strings.ToUpper),
		"trim":     stringFunction("trim", strings.TrimSpace),
		"coalesce": coalesceFunction,
		"split":    splitFunction,
		"format":   formatFunction,
	}
	for _, name := range sortedKeys(builtins) {
		_ = registry.Register(name, builtins[name])
	}
	return registry
}

// concatFunction joins the non-empty arguments with single spaces. List
// arguments are flattened.
func concatFunction(args ...any) (any, error) {
	return strings.Join(textParts(args), " "), nil
}

func joinFunction(args ...any) (any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("join: separator required")
	}
	sep, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("join: separator must be a string, got %T", args[0])
	}
	return strings.Join(textParts(args[1:]), sep), nil
}

func stringFunction(name string, fn func(string) string) Function {
	return func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("%s: expected 1 argument, got %d", name, len(args))
		}
		if args[0] == nil {
			return nil, nil
		}
		return fn(textOf(args[0])), nil
	}
}

// coalesceFunction returns the first argument that is neither nil nor an
// empty string.
func coalesceFunction(args ...any) (any, error) {
	for _, arg := range args {
		if arg == nil {
			continue
		}
		if s, ok := arg.(string); ok && s == "" {
			continue
		}
		return arg, nil
	}
	return nil, nil
}

func splitFunction(args ...any) (any, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("split: expected 2 arguments, got %d", len(args))
	}
	if args[0] == nil {
		return nil, nil
	}
	sep, ok := args[1].(string)
	if !ok {
		return nil, fmt.Errorf("split: separator must be a string, got %T", args[1])
	}
	parts := strings.Split(textOf(args[0]), sep)
	out := make([]any, len(parts))
	for i, part := range parts {
		out[i] = part
	}
	return out, nil
}

func formatFunction(args ...any) (any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("format: template required")
	}
	template, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("format: template must be a string, got %T", args[0])
	}
	return FormatTemplate(template, args[1:]...)
}

// FormatTemplate replaces each {} in template with the next argument.
func FormatTemplate(template string, args ...any) (string, error) {
	var b strings.Builder
	next := 0
	for {
		i := strings.Index(template, "{}")
		if i < 0 {
			b.WriteString(template)
			break
		}
		if next >= len(args) {
			return "", fmt.Errorf("format: template needs more than %d argument(s)", len(args))
		}
		b.WriteString(template[:i])
		b.WriteString(textOf(args[next]))
		next++
		template = template[i+2:]
	}
	if next != len(args) {
		return "", fmt.Errorf("format: %d argument(s) given for %d placeholder(s)", len(args), next)
	}
	return b.String(), nil
}

func textParts(args []any) []string {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		switch typed := arg.(type) {
		case nil:
		case []any:
			parts = append(parts, textParts(typed)...)
		default:
			if s := textOf(typed); s != "" {
				parts = append(parts, s)
			}
		}
	}
	return parts
}

func textOf(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case float64:
		if typed == float64(int64(typed)) {
			return fmt.Sprintf("%d", int64(typed))
		}
		return fmt.Sprint(typed)
	default:
		return fmt.Sprint(typed)
	}
}
