package mapper

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	kgforge "github.com/goliatone/go-kgforge"
	"github.com/goliatone/go-kgforge/pkg/mapping"
	"go.uber.org/zap"
)

// dictionaryMapper maps records viewed as nested dictionaries.
type dictionaryMapper struct {
	engine    string
	evaluator kgforge.Evaluator
	cfg       config
}

func dictionaryFactory(engine string) Factory {
	return func(opts ...Option) (Mapper, error) {
		cfg := applyOptions(config{functions: kgforge.DefaultFunctions()}, opts)
		evaluator, err := kgforge.NewEvaluator(engine, cfg.cache, cfg.functions)
		if err != nil {
			return nil, err
		}
		return &dictionaryMapper{engine: engine, evaluator: evaluator, cfg: cfg}, nil
	}
}

func (m *dictionaryMapper) Map(ctx context.Context, record any, mp *mapping.Mapping, opts ...Option) (*kgforge.Resource, error) {
	p, err := m.compile(mp)
	if err != nil {
		return nil, err
	}
	cfg := applyOptions(m.cfg, opts)
	return m.mapRecord(ctx, p, record, cfg)
}

func (m *dictionaryMapper) MapMany(ctx context.Context, records []any, mp *mapping.Mapping, opts ...Option) ([]*kgforge.Resource, error) {
	p, err := m.compile(mp)
	if err != nil {
		return nil, err
	}
	cfg := applyOptions(m.cfg, opts)
	out := make([]*kgforge.Resource, len(records))
	var failures []kgforge.ItemError
	for i, record := range records {
		if err := ctx.Err(); err != nil {
			failures = append(failures, kgforge.ItemError{Index: i, Err: err})
			continue
		}
		r, err := m.mapRecord(ctx, p, record, cfg)
		if err != nil {
			failures = append(failures, kgforge.ItemError{Index: i, Err: err})
			continue
		}
		out[i] = r
	}
	if len(failures) > 0 {
		cfg.logger.Warn("mapping finished with failures",
			zap.String("engine", m.engine),
			zap.Int("records", len(records)),
			zap.Int("failures", len(failures)),
		)
	}
	return out, kgforge.NewBatchError("map", len(records), failures)
}

func (m *dictionaryMapper) mapRecord(ctx context.Context, p *plan, record any, cfg config) (*kgforge.Resource, error) {
	source, err := asRecord(record)
	if err != nil {
		return nil, err
	}
	source = substituteNA(source, cfg.na, cfg.nullMarker).(map[string]any)
	r, err := m.apply(ctx, p, source, cfg)
	if err != nil {
		return nil, err
	}
	cfg.logger.Debug("record mapped", zap.String("engine", m.engine), zap.Strings("types", r.Types))
	return r, nil
}

// apply runs the plan's rules in execution order, then writes the results in
// declaration order.
func (m *dictionaryMapper) apply(ctx context.Context, p *plan, source map[string]any, cfg config) (*kgforge.Resource, error) {
	values := make([]any, len(p.rules))
	tree := map[string]any{}
	evalLogger := kgforge.ZapEvaluatorLogger(cfg.logger)
	for _, i := range p.order {
		compiled := p.rules[i]
		var value any
		switch compiled.kind {
		case mapping.KindConstant:
			value = compiled.rule.Constant.Value
		case mapping.KindSource:
			value, _ = lookup(source, compiled.rule.Source)
		case mapping.KindExpression:
			result, err := kgforge.EvaluateRule(evalLogger, m.engine, compiled.program, kgforge.RuleContext{
				Record: source,
				Target: tree,
				Rule:   compiled.rule.Target,
			}, compiled.rule.Expression)
			if err != nil {
				return nil, err
			}
			value = result
		case mapping.KindMapping:
			nested, err := m.applyNested(ctx, compiled, source, cfg)
			if err != nil {
				return nil, fmt.Errorf("kgforge: rule %s: %w", compiled.rule.Target, err)
			}
			value = nested
		}
		if value == nil {
			continue
		}
		normalized, err := kgforge.NormalizeValue(value)
		if err != nil {
			return nil, fmt.Errorf("kgforge: rule %s: %w", compiled.rule.Target, err)
		}
		values[i] = normalized
		setTree(tree, compiled.rule.Target, treeOf(normalized))
	}

	r := &kgforge.Resource{}
	if p.mapping.Type != "" {
		r.Types = []string{p.mapping.Type}
	}
	for i, compiled := range p.rules {
		if values[i] == nil {
			continue
		}
		if err := r.Set(compiled.rule.Target, values[i]); err != nil {
			return nil, fmt.Errorf("kgforge: rule %s: %w", compiled.rule.Target, err)
		}
	}
	return r, nil
}

// applyNested maps the record (or each record of a list) found at the rule
// source with the nested plan. Without a source the whole record is used.
func (m *dictionaryMapper) applyNested(ctx context.Context, compiled compiledRule, source map[string]any, cfg config) (any, error) {
	input := any(source)
	if compiled.rule.Source != "" {
		input, _ = lookup(source, compiled.rule.Source)
	}
	switch typed := input.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return m.apply(ctx, compiled.children, typed, cfg)
	case []any:
		out := make([]any, 0, len(typed))
		for i, item := range typed {
			nested, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("item %d of %s is %T, not a record", i, compiled.rule.Source, item)
			}
			r, err := m.apply(ctx, compiled.children, nested, cfg)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			out = append(out, r)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s is %T, not a record", compiled.rule.Source, input)
	}
}

// asRecord views a record as a nested dictionary. Resources use their tree
// form; other values go through JSON.
func asRecord(record any) (map[string]any, error) {
	switch typed := record.(type) {
	case nil:
		return nil, fmt.Errorf("kgforge: record is nil")
	case map[string]any:
		return typed, nil
	case *kgforge.Resource:
		return kgforge.AsJSON(typed, kgforge.JSONOptions{}), nil
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("kgforge: record of type %T: %w", record, err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("kgforge: record of type %T is not an object: %w", record, err)
	}
	return out, nil
}

func lookup(source map[string]any, path string) (any, bool) {
	var current any = source
	for _, segment := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func setTree(tree map[string]any, path string, value any) {
	segments := strings.Split(path, ".")
	current := tree
	for _, segment := range segments[:len(segments)-1] {
		next, ok := current[segment].(map[string]any)
		if !ok {
			next = map[string]any{}
			current[segment] = next
		}
		current = next
	}
	current[segments[len(segments)-1]] = value
}

func treeOf(value any) any {
	switch typed := value.(type) {
	case *kgforge.Resource:
		return kgforge.AsJSON(typed, kgforge.JSONOptions{})
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = treeOf(item)
		}
		return out
	default:
		return value
	}
}

// substituteNA replaces every value equal to one of na with marker.
func substituteNA(value any, na []any, marker any) any {
	if len(na) == 0 {
		return value
	}
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[key] = substituteNA(item, na, marker)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = substituteNA(item, na, marker)
		}
		return out
	default:
		if kgforge.IsNA(value, na) {
			return marker
		}
		return value
	}
}
