package rlm

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/dop251/goja"
)

// bindBuiltins installs the fixed helper surface snippets may use: length and
// type conversions, sequence construction and iteration helpers, aggregates,
// the `re` pattern-matching object, and `recursive_lm`. Structured-data
// (de)serialization rides on the interpreter's native JSON object.
func (s *Sandbox) bindBuiltins() {
	vm := s.vm

	vm.Set("len", func(call goja.FunctionCall) goja.Value {
		v := call.Argument(0).Export()
		switch t := v.(type) {
		case string:
			return vm.ToValue(len([]rune(t)))
		}
		if items, ok := toSlice(v); ok {
			return vm.ToValue(len(items))
		}
		if entries, ok := toMap(v); ok {
			return vm.ToValue(len(entries))
		}
		s.throw(fmt.Sprintf("len: unsupported value of type %T", v))
		return nil
	})

	vm.Set("str", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(valueString(call.Argument(0).Export()))
	})

	vm.Set("int", func(call goja.FunctionCall) goja.Value {
		v := call.Argument(0).Export()
		switch t := v.(type) {
		case int64:
			return vm.ToValue(t)
		case float64:
			return vm.ToValue(int64(t))
		case bool:
			if t {
				return vm.ToValue(int64(1))
			}
			return vm.ToValue(int64(0))
		case string:
			n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
			if err != nil {
				s.throw(fmt.Sprintf("int: cannot convert %q", t))
			}
			return vm.ToValue(n)
		}
		s.throw(fmt.Sprintf("int: unsupported value of type %T", v))
		return nil
	})

	vm.Set("float", func(call goja.FunctionCall) goja.Value {
		v := call.Argument(0).Export()
		switch t := v.(type) {
		case int64:
			return vm.ToValue(float64(t))
		case float64:
			return vm.ToValue(t)
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
			if err != nil {
				s.throw(fmt.Sprintf("float: cannot convert %q", t))
			}
			return vm.ToValue(f)
		}
		s.throw(fmt.Sprintf("float: unsupported value of type %T", v))
		return nil
	})

	vm.Set("list", func(call goja.FunctionCall) goja.Value {
		v := call.Argument(0).Export()
		if v == nil {
			return vm.ToValue([]any{})
		}
		switch t := v.(type) {
		case string:
			chars := make([]any, 0, len(t))
			for _, r := range t {
				chars = append(chars, string(r))
			}
			return vm.ToValue(chars)
		}
		if items, ok := toSlice(v); ok {
			return vm.ToValue(items)
		}
		if entries, ok := toMap(v); ok {
			keys := make([]string, 0, len(entries))
			for k := range entries {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			out := make([]any, len(keys))
			for i, k := range keys {
				out[i] = k
			}
			return vm.ToValue(out)
		}
		s.throw(fmt.Sprintf("list: unsupported value of type %T", v))
		return nil
	})

	vm.Set("dict", func(call goja.FunctionCall) goja.Value {
		v := call.Argument(0).Export()
		if v == nil {
			return vm.ToValue(map[string]any{})
		}
		if entries, ok := toMap(v); ok {
			out := make(map[string]any, len(entries))
			for k, val := range entries {
				out[k] = val
			}
			return vm.ToValue(out)
		}
		if pairs, ok := toSlice(v); ok {
			out := make(map[string]any, len(pairs))
			for _, p := range pairs {
				pair, ok := toSlice(p)
				if !ok || len(pair) != 2 {
					s.throw("dict: expected an array of [key, value] pairs")
				}
				out[valueString(pair[0])] = pair[1]
			}
			return vm.ToValue(out)
		}
		s.throw(fmt.Sprintf("dict: unsupported value of type %T", v))
		return nil
	})

	vm.Set("range", func(call goja.FunctionCall) goja.Value {
		start, stop, step := int64(0), int64(0), int64(1)
		switch len(call.Arguments) {
		case 1:
			stop = s.intArg(call, 0, "range")
		case 2:
			start = s.intArg(call, 0, "range")
			stop = s.intArg(call, 1, "range")
		case 3:
			start = s.intArg(call, 0, "range")
			stop = s.intArg(call, 1, "range")
			step = s.intArg(call, 2, "range")
		default:
			s.throw("range: expected 1 to 3 arguments")
		}
		if step == 0 {
			s.throw("range: step must not be zero")
		}
		var out []int64
		if step > 0 {
			for i := start; i < stop; i += step {
				out = append(out, i)
			}
		} else {
			for i := start; i > stop; i += step {
				out = append(out, i)
			}
		}
		return vm.ToValue(out)
	})

	vm.Set("enumerate", func(call goja.FunctionCall) goja.Value {
		items := s.iterableArg(call, 0, "enumerate")
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = []any{int64(i), item}
		}
		return vm.ToValue(out)
	})

	vm.Set("zip", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return vm.ToValue([]any{})
		}
		columns := make([][]any, len(call.Arguments))
		shortest := -1
		for i := range call.Arguments {
			columns[i] = s.iterableArg(call, i, "zip")
			if shortest < 0 || len(columns[i]) < shortest {
				shortest = len(columns[i])
			}
		}
		out := make([]any, shortest)
		for row := 0; row < shortest; row++ {
			tuple := make([]any, len(columns))
			for col := range columns {
				tuple[col] = columns[col][row]
			}
			out[row] = tuple
		}
		return vm.ToValue(out)
	})

	vm.Set("sum", func(call goja.FunctionCall) goja.Value {
		items := s.iterableArg(call, 0, "sum")
		var asFloat float64
		var asInt int64
		allInt := true
		for _, item := range items {
			switch n := item.(type) {
			case int64:
				asInt += n
				asFloat += float64(n)
			case float64:
				allInt = false
				asFloat += n
			default:
				s.throw(fmt.Sprintf("sum: non-numeric element %v", item))
			}
		}
		if allInt {
			return vm.ToValue(asInt)
		}
		return vm.ToValue(asFloat)
	})

	vm.Set("min", func(call goja.FunctionCall) goja.Value {
		return s.extremum(call, false, "min")
	})
	vm.Set("max", func(call goja.FunctionCall) goja.Value {
		return s.extremum(call, true, "max")
	})

	vm.Set("sorted", func(call goja.FunctionCall) goja.Value {
		items := s.iterableArg(call, 0, "sorted")
		out := make([]any, len(items))
		copy(out, items)
		sort.SliceStable(out, func(i, j int) bool {
			return lessValues(out[i], out[j])
		})
		return vm.ToValue(out)
	})

	s.bindRegex()
	s.bindRecursiveLM()
}

// bindRegex exposes pattern matching under a single `re` helper object. All
// functions take the pattern first, mirroring the search(pattern, text) shape
// the system prompt documents.
func (s *Sandbox) bindRegex() {
	vm := s.vm
	re := vm.NewObject()

	re.Set("test", func(call goja.FunctionCall) goja.Value {
		pattern := s.compileRegex(s.stringArg(call, 0, "re.test"))
		return vm.ToValue(pattern.MatchString(s.stringArg(call, 1, "re.test")))
	})

	re.Set("search", func(call goja.FunctionCall) goja.Value {
		pattern := s.compileRegex(s.stringArg(call, 0, "re.search"))
		match := pattern.FindStringSubmatch(s.stringArg(call, 1, "re.search"))
		if match == nil {
			return goja.Null()
		}
		if len(match) > 1 {
			return vm.ToValue(match[1])
		}
		return vm.ToValue(match[0])
	})

	re.Set("findall", func(call goja.FunctionCall) goja.Value {
		pattern := s.compileRegex(s.stringArg(call, 0, "re.findall"))
		matches := pattern.FindAllStringSubmatch(s.stringArg(call, 1, "re.findall"), -1)
		out := make([]string, 0, len(matches))
		for _, match := range matches {
			if len(match) > 1 {
				out = append(out, match[1])
			} else {
				out = append(out, match[0])
			}
		}
		return vm.ToValue(out)
	})

	re.Set("sub", func(call goja.FunctionCall) goja.Value {
		pattern := s.compileRegex(s.stringArg(call, 0, "re.sub"))
		repl := s.stringArg(call, 1, "re.sub")
		text := s.stringArg(call, 2, "re.sub")
		return vm.ToValue(pattern.ReplaceAllString(text, repl))
	})

	re.Set("split", func(call goja.FunctionCall) goja.Value {
		pattern := s.compileRegex(s.stringArg(call, 0, "re.split"))
		return vm.ToValue(pattern.Split(s.stringArg(call, 1, "re.split"), -1))
	})

	vm.Set("re", re)
}

// bindRecursiveLM exposes the depth-bounded sub-query capability. A dispatch
// failure is a transport-level fault and must abort the whole completion, so
// it is parked on fatalErr before unwinding the snippet.
func (s *Sandbox) bindRecursiveLM() {
	vm := s.vm
	vm.Set("recursive_lm", func(call goja.FunctionCall) goja.Value {
		if s.dispatch == nil {
			s.throw("recursive_lm is not available")
		}
		query := s.stringArg(call, 0, "recursive_lm")
		subset := ""
		if second := call.Argument(1); !goja.IsUndefined(second) && !goja.IsNull(second) {
			subset = second.String()
		}

		ctx := s.execCtx
		if ctx == nil {
			ctx = context.Background()
		}
		answer, err := s.dispatch(ctx, query, subset, s.depth)
		if err != nil {
			s.fatalErr = err
			s.throw(err.Error())
		}
		return vm.ToValue(answer)
	})
}

func (s *Sandbox) extremum(call goja.FunctionCall, wantMax bool, name string) goja.Value {
	var items []any
	if len(call.Arguments) == 1 {
		if sl, ok := toSlice(call.Argument(0).Export()); ok {
			items = sl
		} else {
			items = []any{call.Argument(0).Export()}
		}
	} else {
		for i := range call.Arguments {
			items = append(items, call.Argument(i).Export())
		}
	}
	if len(items) == 0 {
		s.throw(name + ": empty sequence")
	}
	best := items[0]
	for _, item := range items[1:] {
		if wantMax {
			if lessValues(best, item) {
				best = item
			}
		} else if lessValues(item, best) {
			best = item
		}
	}
	return s.vm.ToValue(best)
}

// throw raises a JS exception from inside a built-in.
func (s *Sandbox) throw(msg string) {
	panic(s.vm.ToValue(msg))
}

func (s *Sandbox) stringArg(call goja.FunctionCall, i int, name string) string {
	v := call.Argument(i)
	if goja.IsUndefined(v) {
		s.throw(name + ": missing argument")
	}
	return v.String()
}

func (s *Sandbox) intArg(call goja.FunctionCall, i int, name string) int64 {
	v := call.Argument(i).Export()
	switch t := v.(type) {
	case int64:
		return t
	case float64:
		return int64(t)
	}
	s.throw(fmt.Sprintf("%s: expected an integer, got %T", name, v))
	return 0
}

func (s *Sandbox) iterableArg(call goja.FunctionCall, i int, name string) []any {
	v := call.Argument(i).Export()
	if text, ok := v.(string); ok {
		out := make([]any, 0, len(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}
	if items, ok := toSlice(v); ok {
		return items
	}
	s.throw(name + ": expected an array or string")
	return nil
}

func (s *Sandbox) compileRegex(pattern string) *regexp.Regexp {
	if re, ok := s.regexCache[pattern]; ok {
		return re
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		s.throw(fmt.Sprintf("invalid pattern %q: %v", pattern, err))
	}
	s.regexCache[pattern] = re
	return re
}

func toSlice(v any) ([]any, bool) {
	if items, ok := v.([]any); ok {
		return items, true
	}
	switch v.(type) {
	case nil, string:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func toMap(v any) (map[string]any, bool) {
	if entries, ok := v.(map[string]any); ok {
		return entries, true
	}
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	for _, key := range rv.MapKeys() {
		out[fmt.Sprintf("%v", key.Interface())] = rv.MapIndex(key).Interface()
	}
	return out, true
}

// lessValues orders two stored values: numerically when both are numbers,
// otherwise by their string forms.
func lessValues(a, b any) bool {
	af, aNum := toFloat(a)
	bf, bNum := toFloat(b)
	if aNum && bNum {
		return af < bf
	}
	return valueString(a) < valueString(b)
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int64:
		return float64(t), true
	case float64:
		return t, true
	case int:
		return float64(t), true
	}
	return 0, false
}
