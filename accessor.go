package brutaltpl

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

// ----------------------------- Member access --------------------------------

type fieldCacheKey struct {
	typ  reflect.Type
	name string
}

type fieldInfo struct {
	index []int
	found bool
}

// fieldCache remembers how a property name resolves on a struct type, so a
// template rendered in a loop pays the reflection walk once per type.
type fieldCache struct {
	mu    sync.RWMutex
	cache map[fieldCacheKey]fieldInfo
}

var structFields = &fieldCache{cache: make(map[fieldCacheKey]fieldInfo)}

func (fc *fieldCache) lookup(t reflect.Type, name string) fieldInfo {
	key := fieldCacheKey{typ: t, name: name}
	fc.mu.RLock()
	fi, ok := fc.cache[key]
	fc.mu.RUnlock()
	if ok {
		return fi
	}
	fi = resolveField(t, name)
	fc.mu.Lock()
	fc.cache[key] = fi
	fc.mu.Unlock()
	return fi
}

// resolveField finds an exported field by exact name first, then
// case-insensitively.
func resolveField(t reflect.Type, name string) fieldInfo {
	if f, ok := t.FieldByName(name); ok && f.IsExported() {
		return fieldInfo{index: f.Index, found: true}
	}
	for _, f := range reflect.VisibleFields(t) {
		if f.IsExported() && !f.Anonymous && strings.EqualFold(f.Name, name) {
			return fieldInfo{index: f.Index, found: true}
		}
	}
	return fieldInfo{}
}

// property resolves obj.name. The second result is false when obj has no such
// member; callers turn that into Undefined.
func property(obj any, name string) (any, bool) {
	switch x := obj.(type) {
	case nil, UndefinedType:
		return nil, false
	case map[string]any:
		if v, ok := x[name]; ok {
			return v, true
		}
		if name == "length" {
			return float64(len(x)), true
		}
		return nil, false
	case *Map:
		if v, ok := x.Get(name); ok {
			return v, true
		}
		if name == "length" {
			return float64(x.Len()), true
		}
		return nil, false
	}

	rv := reflect.ValueOf(obj)
	ev := indirect(rv)
	switch ev.Kind() {
	case reflect.Struct:
		if fi := structFields.lookup(ev.Type(), name); fi.found {
			fv, err := ev.FieldByIndexErr(fi.index)
			if err != nil {
				return nil, false
			}
			return fv.Interface(), true
		}
	case reflect.Map:
		kt := ev.Type().Key()
		if kt.Kind() == reflect.String {
			if mv := ev.MapIndex(reflect.ValueOf(name).Convert(kt)); mv.IsValid() {
				return mv.Interface(), true
			}
		}
	}
	if m := methodByName(rv, name); m.IsValid() {
		return m.Interface(), true
	}
	if name == "length" {
		if n, ok := lengthOf(obj); ok {
			return float64(n), true
		}
	}
	return nil, false
}

// methodByName looks up an exported method, also trying the name with its
// first letter upper-cased so templates can write user.fullName().
func methodByName(rv reflect.Value, name string) reflect.Value {
	if !rv.IsValid() || name == "" {
		return reflect.Value{}
	}
	if m := rv.MethodByName(name); m.IsValid() {
		return m
	}
	r, size := utf8.DecodeRuneInString(name)
	if !unicode.IsLower(r) {
		return reflect.Value{}
	}
	return rv.MethodByName(string(unicode.ToUpper(r)) + name[size:])
}

// index resolves obj[key]. Numeric keys index sequences and strings; every
// other key is treated as a property name.
func index(obj, key any) (any, bool) {
	if isNullish(obj) {
		return nil, false
	}
	f, numeric := asFloat(key)
	if !numeric {
		return property(obj, toString(key))
	}
	switch x := obj.(type) {
	case []any:
		i, ok := intIndex(f, len(x))
		if !ok {
			return nil, false
		}
		return x[i], true
	case string:
		return runeAt(x, f)
	case SafeHTML:
		return runeAt(string(x), f)
	}
	ev := indirect(reflect.ValueOf(obj))
	switch ev.Kind() {
	case reflect.Slice, reflect.Array:
		i, ok := intIndex(f, ev.Len())
		if !ok {
			return nil, false
		}
		return ev.Index(i).Interface(), true
	case reflect.String:
		return runeAt(ev.String(), f)
	case reflect.Map:
		kt := ev.Type().Key()
		kv := reflect.ValueOf(f)
		switch kt.Kind() {
		case reflect.String:
			kv = reflect.ValueOf(formatNumber(f))
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if f != math.Trunc(f) || math.IsInf(f, 0) {
				return nil, false
			}
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
			if f != math.Trunc(f) || f < 0 || math.IsInf(f, 0) {
				return nil, false
			}
		}
		if !kv.CanConvert(kt) {
			return nil, false
		}
		if mv := ev.MapIndex(kv.Convert(kt)); mv.IsValid() {
			return mv.Interface(), true
		}
		return nil, false
	}
	return property(obj, formatNumber(f))
}

func intIndex(f float64, n int) (int, bool) {
	if f != math.Trunc(f) || f < 0 || f >= float64(n) {
		return 0, false
	}
	return int(f), true
}

func runeAt(s string, f float64) (any, bool) {
	i, ok := intIndex(f, utf8.RuneCountInString(s))
	if !ok {
		return nil, false
	}
	for _, r := range s {
		if i == 0 {
			return string(r), true
		}
		i--
	}
	return nil, false
}

// ----------------------------- Calls ----------------------------------------

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// call invokes fn with args converted to its parameter types. Missing
// arguments are passed as zero values. A trailing error result is returned as
// the error; a function without results yields Undefined.
func call(fn any, args []any) (result any, err error) {
	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func || rv.IsNil() {
		return nil, fmt.Errorf("%w: %s", ErrNotAFunction, describe(fn))
	}
	t := rv.Type()
	numIn := t.NumIn()
	if !t.IsVariadic() && len(args) > numIn {
		return nil, fmt.Errorf("too many arguments: want %d, got %d", numIn, len(args))
	}

	n := len(args)
	if n < numIn && !t.IsVariadic() {
		n = numIn
	}
	in := make([]reflect.Value, 0, n)
	for i := 0; i < n; i++ {
		pt := paramType(t, i)
		if i >= len(args) {
			in = append(in, reflect.Zero(pt))
			continue
		}
		v, err := convertArg(args[i], pt)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		in = append(in, v)
	}
	if t.IsVariadic() && len(in) < numIn-1 {
		for i := len(in); i < numIn-1; i++ {
			in = append(in, reflect.Zero(t.In(i)))
		}
	}

	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("call panicked: %v", r)
		}
	}()
	out := rv.Call(in)

	if len(out) > 0 && t.Out(len(out)-1) == errorType {
		if e := out[len(out)-1]; !e.IsNil() {
			return nil, e.Interface().(error)
		}
		out = out[:len(out)-1]
	}
	if len(out) == 0 {
		return Undefined, nil
	}
	return out[0].Interface(), nil
}

func paramType(t reflect.Type, i int) reflect.Type {
	if t.IsVariadic() && i >= t.NumIn()-1 {
		return t.In(t.NumIn() - 1).Elem()
	}
	return t.In(i)
}

// convertArg applies the coercion rules to fit a template value into a Go
// parameter.
func convertArg(a any, t reflect.Type) (reflect.Value, error) {
	if isNullish(a) {
		return reflect.Zero(t), nil
	}
	av := reflect.ValueOf(a)
	if av.Type().AssignableTo(t) {
		return av, nil
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		f := toNumber(a)
		if math.IsNaN(f) {
			return reflect.Value{}, fmt.Errorf("cannot use %s as %s", describe(a), t)
		}
		return reflect.ValueOf(f).Convert(t), nil
	case reflect.String:
		return reflect.ValueOf(toString(a)).Convert(t), nil
	case reflect.Bool:
		return reflect.ValueOf(truthy(a)).Convert(t), nil
	}
	if av.CanConvert(t) {
		return av.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %s as %s", describe(a), t)
}

func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case UndefinedType:
		return "undefined"
	}
	return fmt.Sprintf("%T", v)
}
