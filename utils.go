package brutaltpl

import (
	"fmt"
	"math"
	"reflect"
	"strings"
)

func fastTrim(s string) string {
	if len(s) == 0 {
		return s
	}

	start := 0
	end := len(s)

	for start < end && isSpace(s[start]) {
		start++
	}
	for end > start && isSpace(s[end-1]) {
		end--
	}

	// Return slice if no allocation needed
	if start == 0 && end == len(s) {
		return s
	}
	return s[start:end]
}

// htmlEscapeFast escapes & < > " and ' and returns s itself when nothing
// needs escaping.
func htmlEscapeFast(s string) string {
	needsEscape := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '&' || c == '<' || c == '>' || c == '"' || c == '\'' {
			needsEscape = true
			break
		}
	}
	if !needsEscape {
		return s
	}

	sb := stringBuilderPool.Get().(*strings.Builder)
	sb.Reset()
	defer stringBuilderPool.Put(sb)

	sb.Grow(len(s) + len(s)/4)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '&':
			sb.WriteString("&amp;")
		case '<':
			sb.WriteString("&lt;")
		case '>':
			sb.WriteString("&gt;")
		case '"':
			sb.WriteString("&quot;")
		case '\'':
			sb.WriteString("&#39;")
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// toString renders a value as output text. nil and Undefined render as the
// empty string, numbers without a trailing ".0", sequences joined by commas.
func toString(v any) string {
	switch x := v.(type) {
	case nil, UndefinedType:
		return ""
	case string:
		return x
	case SafeHTML:
		return string(x)
	case []byte:
		return string(x)
	case float64:
		return formatNumber(x)
	case int:
		return formatNumber(float64(x))
	case bool:
		if x {
			return "true"
		}
		return "false"
	case error:
		return x.Error()
	case fmt.Stringer:
		return x.String()
	case *Map:
		return "[object Object]"
	}
	if f, ok := asFloat(v); ok {
		return formatNumber(f)
	}
	rv := indirect(reflect.ValueOf(v))
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		parts := make([]string, rv.Len())
		for i := range parts {
			parts[i] = toString(rv.Index(i).Interface())
		}
		return strings.Join(parts, ",")
	case reflect.Map, reflect.Struct:
		return "[object Object]"
	case reflect.Func:
		return "[function]"
	case reflect.Invalid:
		return ""
	}
	return fmt.Sprint(v)
}

// truthy reports whether v selects the then-branch of an #if. false, 0, NaN,
// "", nil, Undefined and empty collections are falsy.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil, UndefinedType:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case SafeHTML:
		return x != ""
	case float64:
		return x != 0 && !math.IsNaN(x)
	case int:
		return x != 0
	case *Map:
		return x.Len() > 0
	case []any:
		return len(x) > 0
	}
	if f, ok := asFloat(v); ok {
		return f != 0 && !math.IsNaN(f)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface, reflect.Func, reflect.Chan:
		return !rv.IsNil()
	}
	return true
}
