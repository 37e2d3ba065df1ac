package brutaltpl

import (
	"math"
	"reflect"
	"sort"
	"strconv"
	"unicode/utf8"
)

// ----------------------------- Values & coercion ----------------------------

// UndefinedType is the type of Undefined.
type UndefinedType struct{}

func (UndefinedType) String() string { return "undefined" }

// Undefined is the result of looking up a name or property that does not
// exist. It is distinct from nil (null) but compares loosely equal to it.
var Undefined = UndefinedType{}

// SafeHTML is a string that is written without HTML escaping.
type SafeHTML string

func isNullish(v any) bool { return v == nil || v == Undefined }

// asFloat reports the numeric value of Go number kinds. Strings and bools are
// not numbers here; see toNumber for the coercing variant.
func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case float32:
		return float64(x), true
	case int32:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint64:
		return float64(x), true
	case nil, string, bool:
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

func asString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case SafeHTML:
		return string(x), true
	}
	return "", false
}

// toNumber coerces v for arithmetic: nil is 0, Undefined is NaN, bools are 0
// or 1 and strings are parsed (blank is 0, garbage is NaN).
func toNumber(v any) float64 {
	if f, ok := asFloat(v); ok {
		return f
	}
	switch x := v.(type) {
	case nil:
		return 0
	case bool:
		if x {
			return 1
		}
		return 0
	}
	if s, ok := asString(v); ok {
		s = fastTrim(s)
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	}
	return math.NaN()
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}
	if math.Abs(f) >= 1e21 {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func isPrimitive(v any) bool {
	switch v.(type) {
	case string, SafeHTML, bool:
		return true
	}
	_, ok := asFloat(v)
	return ok
}

// looseEqual implements == : null and undefined equal each other only, and
// mixed primitives compare numerically.
func looseEqual(a, b any) bool {
	if isNullish(a) || isNullish(b) {
		return isNullish(a) && isNullish(b)
	}
	as, aStr := asString(a)
	bs, bStr := asString(b)
	if aStr && bStr {
		return as == bs
	}
	if isPrimitive(a) && isPrimitive(b) {
		return toNumber(a) == toNumber(b)
	}
	return strictEqual(a, b)
}

// strictEqual implements === : same value class and same value. Maps, slices
// and funcs compare by identity.
func strictEqual(a, b any) bool {
	if a == nil || b == nil || a == Undefined || b == Undefined {
		return a == b
	}
	if af, ok := asFloat(a); ok {
		bf, ok := asFloat(b)
		return ok && af == bf
	}
	if as, ok := asString(a); ok {
		bs, ok := asString(b)
		return ok && as == bs
	}
	if ab, ok := a.(bool); ok {
		bb, ok := b.(bool)
		return ok && ab == bb
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	switch ta.Kind() {
	case reflect.Map, reflect.Func, reflect.Pointer, reflect.Chan, reflect.UnsafePointer:
		return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
	case reflect.Slice:
		ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
		return ra.Pointer() == rb.Pointer() && ra.Len() == rb.Len()
	}
	// a comparable struct can still hold an uncomparable value in an interface field
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if ra.Comparable() && rb.Comparable() {
		return a == b
	}
	return false
}

// compare implements the relational operators. Two strings compare
// lexically; anything else is compared as numbers, where NaN is unordered.
func compare(op string, a, b any) (bool, error) {
	as, aStr := asString(a)
	bs, bStr := asString(b)
	if aStr && bStr {
		switch op {
		case "<":
			return as < bs, nil
		case ">":
			return as > bs, nil
		case "<=":
			return as <= bs, nil
		case ">=":
			return as >= bs, nil
		}
	} else {
		x, y := toNumber(a), toNumber(b)
		switch op {
		case "<":
			return x < y, nil
		case ">":
			return x > y, nil
		case "<=":
			return x <= y, nil
		case ">=":
			return x >= y, nil
		}
	}
	return false, ErrUnknownOperator
}

// arith implements + - * / %. Plus concatenates when either side is a
// string.
func arith(op string, a, b any) (any, error) {
	if op == "+" {
		_, aStr := asString(a)
		_, bStr := asString(b)
		if aStr || bStr {
			return toString(a) + toString(b), nil
		}
	}
	x, y := toNumber(a), toNumber(b)
	switch op {
	case "+":
		return x + y, nil
	case "-":
		return x - y, nil
	case "*":
		return x * y, nil
	case "/":
		return x / y, nil
	case "%":
		return math.Mod(x, y), nil
	}
	return nil, ErrUnknownOperator
}

// lengthOf reports the length of strings (in runes), sequences and mappings.
func lengthOf(v any) (int, bool) {
	switch x := v.(type) {
	case string:
		return utf8.RuneCountInString(x), true
	case SafeHTML:
		return utf8.RuneCountInString(string(x)), true
	case *Map:
		return x.Len(), true
	case []any:
		return len(x), true
	}
	rv := indirect(reflect.ValueOf(v))
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len(), true
	case reflect.String:
		return utf8.RuneCountInString(rv.String()), true
	}
	return 0, false
}

func indirect(rv reflect.Value) reflect.Value {
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return reflect.Value{}
		}
		rv = rv.Elem()
	}
	return rv
}

// ----------------------------- Iteration ------------------------------------

// iterFunc receives one element of a collection. Sequence keys are float64
// indexes, mapping keys are the map keys and struct keys are field names.
type iterFunc func(key, value any) error

// iterate walks v in its defined order: sequences by index, strings by rune,
// *Map by insertion, Go maps by sorted key and, when structs is set, exported
// struct fields by declaration. It reports false when v is not iterable.
func iterate(v any, structs bool, fn iterFunc) (bool, error) {
	switch x := v.(type) {
	case nil, UndefinedType:
		return false, nil
	case []any:
		for i, e := range x {
			if err := fn(float64(i), e); err != nil {
				return true, err
			}
		}
		return true, nil
	case *Map:
		if x == nil {
			return false, nil
		}
		for _, k := range x.Keys() {
			e, _ := x.Get(k)
			if err := fn(k, e); err != nil {
				return true, err
			}
		}
		return true, nil
	case string:
		return true, iterateString(x, fn)
	case SafeHTML:
		return true, iterateString(string(x), fn)
	}

	rv := indirect(reflect.ValueOf(v))
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if err := fn(float64(i), rv.Index(i).Interface()); err != nil {
				return true, err
			}
		}
		return true, nil
	case reflect.Map:
		for _, k := range sortedKeys(rv) {
			if err := fn(k.Interface(), rv.MapIndex(k).Interface()); err != nil {
				return true, err
			}
		}
		return true, nil
	case reflect.String:
		return true, iterateString(rv.String(), fn)
	case reflect.Struct:
		if !structs {
			return false, nil
		}
		t := rv.Type()
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			if err := fn(f.Name, rv.Field(i).Interface()); err != nil {
				return true, err
			}
		}
		return true, nil
	}
	return false, nil
}

func iterateString(s string, fn iterFunc) error {
	i := 0
	for _, r := range s {
		if err := fn(float64(i), string(r)); err != nil {
			return err
		}
		i++
	}
	return nil
}

// sortedKeys orders map keys numerically when both are numbers and by their
// string form otherwise.
func sortedKeys(rv reflect.Value) []reflect.Value {
	keys := rv.MapKeys()
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i].Interface(), keys[j].Interface()
		af, aNum := asFloat(a)
		bf, bNum := asFloat(b)
		if aNum && bNum {
			return af < bf
		}
		return toString(a) < toString(b)
	})
	return keys
}
