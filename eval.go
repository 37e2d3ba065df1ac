package brutaltpl

import (
	"fmt"
	"log/slog"
	"sync"
)

// ----------------------------- Evaluator ------------------------------------

// Evaluator evaluates expression source text, including trailing filter
// pipelines, against a Frame. It is safe for concurrent use.
type Evaluator struct {
	filters *filterRegistry
	cache   *exprCache // nil disables caching
	logger  *slog.Logger
}

// NewEvaluator returns an Evaluator using filters, or the default filters
// when filters is nil. Parsed expressions are cached by source text.
func NewEvaluator(filters Filters) *Evaluator {
	if filters == nil {
		filters = DefaultFilters()
	}
	return newEvaluator(newFilterRegistry(filters), true, discardLogger)
}

func newEvaluator(reg *filterRegistry, cache bool, logger *slog.Logger) *Evaluator {
	e := &Evaluator{filters: reg, logger: logger}
	if cache {
		e.cache = &exprCache{entries: make(map[string]*pipeline)}
	}
	return e
}

// RegisterFilter adds or replaces a filter. Cached expressions pick it up
// because filters are resolved by name on every evaluation.
func (e *Evaluator) RegisterFilter(name string, fn FilterFunc) { e.filters.set(name, fn) }

type exprCache struct {
	mu      sync.RWMutex
	entries map[string]*pipeline
}

func (c *exprCache) get(src string) (*pipeline, bool) {
	c.mu.RLock()
	pl, ok := c.entries[src]
	c.mu.RUnlock()
	return pl, ok
}

func (c *exprCache) put(pl *pipeline) {
	c.mu.Lock()
	c.entries[pl.src] = pl
	c.mu.Unlock()
}

func (c *exprCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (e *Evaluator) pipeline(src string) (*pipeline, error) {
	if e.cache != nil {
		if pl, ok := e.cache.get(src); ok {
			return pl, nil
		}
	}
	pl, err := parsePipeline(src)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.put(pl)
	}
	return pl, nil
}

// Eval parses src (or reuses a cached parse) and evaluates it in f. A nil
// frame evaluates against an empty context. Errors are *EvalError values that
// wrap one of the Err kinds.
func (e *Evaluator) Eval(src string, f *Frame) (any, error) {
	if f == nil {
		f = NewFrame(nil)
	}
	pl, err := e.pipeline(src)
	if err != nil {
		return nil, wrapEval(src, err)
	}
	v, err := e.eval(pl.base, f)
	if err != nil {
		return nil, wrapEval(src, err)
	}
	for _, fc := range pl.filters {
		fn, ok := e.filters.get(fc.name)
		if !ok {
			e.logger.Debug("unknown filter", "filter", fc.name, "expr", src)
			return nil, wrapEval(src, unknownFilterError(fc.name, e.filters.sortedNames()))
		}
		args := make([]any, len(fc.args))
		for i, a := range fc.args {
			if args[i], err = e.eval(a, f); err != nil {
				return nil, wrapEval(src, err)
			}
		}
		if v, err = fn(v, args...); err != nil {
			return nil, wrapEval(src, fmt.Errorf("filter %s: %w", fc.name, err))
		}
	}
	return v, nil
}

func (e *Evaluator) eval(x Expr, f *Frame) (any, error) {
	switch n := x.(type) {
	case *Literal:
		return n.Value, nil
	case *Identifier:
		return f.Lookup(n.Name), nil
	case *Member:
		return e.member(n, f)
	case *Call:
		callee, err := e.eval(n.Callee, f)
		if err != nil {
			return nil, err
		}
		args := make([]any, len(n.Args))
		for i, a := range n.Args {
			if args[i], err = e.eval(a, f); err != nil {
				return nil, err
			}
		}
		return call(callee, args)
	case *Binary:
		return e.binary(n, f)
	case *Unary:
		v, err := e.eval(n.Operand, f)
		if err != nil {
			return nil, err
		}
		switch n.Op {
		case "!":
			return !truthy(v), nil
		case "-":
			return -toNumber(v), nil
		}
		return nil, fmt.Errorf("%w %q", ErrUnknownOperator, n.Op)
	case *Conditional:
		test, err := e.eval(n.Test, f)
		if err != nil {
			return nil, err
		}
		if truthy(test) {
			return e.eval(n.Consequent, f)
		}
		return e.eval(n.Alternate, f)
	}
	return nil, fmt.Errorf("%w: unsupported expression %T", ErrUnknownOperator, x)
}

// member evaluates obj.prop and obj[key]. A nullish object short-circuits to
// Undefined instead of failing.
func (e *Evaluator) member(n *Member, f *Frame) (any, error) {
	obj, err := e.eval(n.Object, f)
	if err != nil {
		return nil, err
	}
	if isNullish(obj) {
		return Undefined, nil
	}
	var (
		v  any
		ok bool
	)
	if lit, static := n.Property.(*Literal); static && !n.Computed {
		v, ok = property(obj, toString(lit.Value))
	} else {
		key, err := e.eval(n.Property, f)
		if err != nil {
			return nil, err
		}
		v, ok = index(obj, key)
	}
	if !ok {
		return Undefined, nil
	}
	return v, nil
}

func (e *Evaluator) binary(n *Binary, f *Frame) (any, error) {
	left, err := e.eval(n.Left, f)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case "&&":
		if !truthy(left) {
			return left, nil
		}
		return e.eval(n.Right, f)
	case "||":
		if truthy(left) {
			return left, nil
		}
		return e.eval(n.Right, f)
	}

	right, err := e.eval(n.Right, f)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case "==":
		return looseEqual(left, right), nil
	case "!=":
		return !looseEqual(left, right), nil
	case "===":
		return strictEqual(left, right), nil
	case "!==":
		return !strictEqual(left, right), nil
	case "<", ">", "<=", ">=":
		return compare(n.Op, left, right)
	case "+", "-", "*", "/", "%":
		return arith(n.Op, left, right)
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownOperator, n.Op)
}
