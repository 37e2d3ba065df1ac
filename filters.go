package brutaltpl

import (
	"sort"
	"strings"
	"sync"
	"unicode/utf8"
)

// ----------------------------- Filters --------------------------------------

// FilterFunc transforms the value of an expression. Arguments are the
// evaluated expressions inside the parentheses of name(args).
type FilterFunc func(value any, args ...any) (any, error)

// Filters maps filter names to implementations.
type Filters map[string]FilterFunc

// filterRegistry is the per-template, read-mostly view of Filters.
type filterRegistry struct {
	mu    sync.RWMutex
	funcs Filters
	names []string // sorted, rebuilt lazily after a set
}

func newFilterRegistry(base Filters) *filterRegistry {
	r := &filterRegistry{funcs: make(Filters, len(base))}
	for k, v := range base {
		r.funcs[k] = v
	}
	return r
}

func (r *filterRegistry) get(name string) (FilterFunc, bool) {
	r.mu.RLock()
	f, ok := r.funcs[name]
	r.mu.RUnlock()
	return f, ok
}

func (r *filterRegistry) set(name string, f FilterFunc) {
	r.mu.Lock()
	r.funcs[name] = f
	r.names = nil
	r.mu.Unlock()
}

func (r *filterRegistry) sortedNames() []string {
	r.mu.RLock()
	names := r.names
	r.mu.RUnlock()
	if names != nil {
		return names
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.names == nil {
		r.names = make([]string, 0, len(r.funcs))
		for k := range r.funcs {
			r.names = append(r.names, k)
		}
		sort.Strings(r.names)
	}
	return r.names
}

// DefaultFilters returns a fresh copy of the built-in filters.
func DefaultFilters() Filters {
	f := Filters{
		"upper":    func(v any, _ ...any) (any, error) { return strings.ToUpper(toString(v)), nil },
		"lower":    func(v any, _ ...any) (any, error) { return strings.ToLower(toString(v)), nil },
		"trim":     func(v any, _ ...any) (any, error) { return fastTrim(toString(v)), nil },
		"truncate": truncateFilter,
		"default":  defaultFilter,
		"join":     joinFilter,
		"length": func(v any, _ ...any) (any, error) {
			n, _ := lengthOf(v)
			return float64(n), nil
		},
		"raw":    func(v any, _ ...any) (any, error) { return SafeHTML(toString(v)), nil },
		"escape": func(v any, _ ...any) (any, error) { return SafeHTML(htmlEscapeFast(toString(v))), nil },
	}
	for k, v := range textFilters() {
		f[k] = v
	}
	return f
}

func arg(args []any, i int) any {
	if i < len(args) {
		return args[i]
	}
	return Undefined
}

// truncate(n) keeps the first n runes.
func truncateFilter(v any, args ...any) (any, error) {
	s := toString(v)
	if len(args) == 0 {
		return s, nil
	}
	n := int(toNumber(args[0]))
	if n < 0 || utf8.RuneCountInString(s) <= n {
		return s, nil
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos], nil
		}
		i++
	}
	return s, nil
}

// default(x) replaces null, undefined and the empty string.
func defaultFilter(v any, args ...any) (any, error) {
	if isNullish(v) || v == "" {
		return arg(args, 0), nil
	}
	return v, nil
}

// join(sep) concatenates the elements of a collection, "," by default.
func joinFilter(v any, args ...any) (any, error) {
	sep := ","
	if s := arg(args, 0); !isNullish(s) {
		sep = toString(s)
	}
	var parts []string
	ok, err := iterate(v, false, func(_, e any) error {
		parts = append(parts, toString(e))
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return toString(v), nil
	}
	return strings.Join(parts, sep), nil
}
