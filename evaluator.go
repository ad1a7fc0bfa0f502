package kgforge

import (
	"fmt"
	"maps"
	"time"
)

// Expression engines understood by NewEvaluator.
const (
	EngineExpr = "expr"
	EngineCEL  = "cel"
	EngineJS   = "js"
)

// RuleContext carries the inputs of one computed mapping rule.
type RuleContext struct {
	// Record is the source record; its keys are bound at the top level.
	Record map[string]any
	// Target holds the already resolved target values as a tree.
	Target map[string]any
	Now    *time.Time
	Args   map[string]any
	// Rule labels the rule being evaluated, for errors and logs.
	Rule string
}

func (ctx RuleContext) withDefaultNow() RuleContext {
	if ctx.Now != nil {
		return ctx
	}
	now := time.Now()
	ctx.Now = &now
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	ctx = ctx.withDefaultNow()
	return *ctx.Now
}

func (ctx RuleContext) withDefaults() RuleContext {
	ctx = ctx.withDefaultNow()
	if ctx.Record == nil {
		ctx.Record = map[string]any{}
	}
	if ctx.Target == nil {
		ctx.Target = map[string]any{}
	}
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) label() string {
	if ctx.Rule != "" {
		return ctx.Rule
	}
	return "unknown"
}

// bindings flattens the context into variables. Record keys come first so the
// names source, target, now and args always refer to the context itself.
func (ctx RuleContext) bindings() map[string]any {
	env := make(map[string]any, len(ctx.Record)+4)
	maps.Copy(env, ctx.Record)
	env["source"] = ctx.Record
	env["target"] = ctx.Target
	env["now"] = ctx.timestamp()
	env["args"] = ctx.Args
	return env
}

// Evaluator executes expressions against a rule context.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// NewEvaluator builds the evaluator for engine. The js engine is only
// available when built with the js_eval tag.
func NewEvaluator(engine string, cache ProgramCache, registry *FunctionRegistry) (Evaluator, error) {
	switch engine {
	case "", EngineExpr:
		return NewExprEvaluator(ExprWithProgramCache(cache), ExprWithFunctionRegistry(registry)), nil
	case EngineCEL:
		return NewCELEvaluator(CELWithProgramCache(cache), CELWithFunctionRegistry(registry)), nil
	case EngineJS:
		if !jsEvaluatorAvailable() {
			return nil, &ConfigurationError{Component: "evaluator", Name: engine, Reason: "built without the js_eval tag"}
		}
		return NewJSEvaluator(JSWithProgramCache(cache), JSWithFunctionRegistry(registry)), nil
	default:
		return nil, &ConfigurationError{Component: "evaluator", Name: engine, Reason: "unknown expression engine"}
	}
}

// EngineName reports the engine behind e.
func EngineName(e Evaluator) string {
	switch e.(type) {
	case nil:
		return "unknown"
	case *exprEvaluator:
		return EngineExpr
	case *celEvaluator:
		return EngineCEL
	default:
		if isJSEvaluator(e) {
			return EngineJS
		}
		return "custom"
	}
}

// EvaluateRule runs a compiled rule, wrapping failures in EvaluationError and
// reporting the attempt to logger.
func EvaluateRule(logger EvaluatorLogger, engine string, rule CompiledRule, ctx RuleContext, expr string) (any, error) {
	if rule == nil {
		return nil, wrapEvaluatorError(engine, fmt.Errorf("rule %s is not compiled", ctx.label()))
	}
	if logger == nil {
		logger = noopEvaluatorLogger{}
	}
	ctx = ctx.withDefaults()
	start := time.Now()
	value, err := rule.Evaluate(ctx)
	duration := time.Since(start)
	err = wrapEvaluationError(engine, expr, ctx.label(), err)
	logger.LogEvaluation(EvaluatorLogEvent{
		Engine:   engine,
		Expr:     expr,
		Rule:     ctx.label(),
		Duration: duration,
		Err:      err,
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}
