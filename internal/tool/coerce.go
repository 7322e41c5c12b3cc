package tool

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/newsdesk-io/newsdesk/pkg/protocol"
)

// maxExactFloat is the largest integer a float64 holds without rounding.
const maxExactFloat = 1 << 53

// ValidateArgs coerces the call's arguments to the declared parameter kinds
// and validates the result against the descriptor's schema. The input call
// is left untouched; the returned call owns a fresh arguments map.
func ValidateArgs(d Descriptor, call protocol.ToolCall) (protocol.ToolCall, error) {
	out := call.Clone()
	if out.Arguments == nil {
		out.Arguments = map[string]any{}
	}

	names := make([]string, 0, len(out.Arguments))
	for name := range out.Arguments {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		p, ok := d.Param(name)
		if !ok {
			return call, clientErrorf(ErrUnknownArgument, "tool %q has no argument %q", d.Name, name)
		}
		v, err := coerceParam(p, out.Arguments[name])
		if err != nil {
			return call, &ClientError{Reason: fmt.Sprintf("argument %q: %v", name, err), Err: ErrCoercion}
		}
		out.Arguments[name] = v
	}

	if err := validateSchema(d, out.Arguments); err != nil {
		return call, err
	}
	return out, nil
}

func validateSchema(d Descriptor, args map[string]any) error {
	compiled := d.compiled
	if compiled == nil {
		var err error
		if compiled, err = compileSchema(d.Name, d.JSONSchema()); err != nil {
			return &SystemError{Tool: d.Name, Err: err}
		}
	}
	inst, err := toJSONValue(args)
	if err != nil {
		return &ClientError{Reason: err.Error(), Err: ErrValidation}
	}
	if err := compiled.Validate(inst); err != nil {
		return &ClientError{Reason: err.Error(), Err: ErrValidation}
	}
	return nil
}

func coerceParam(p Param, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if p.kind != KindArray {
		return coerceScalar(p.kind, v)
	}

	var elems []any
	switch x := v.(type) {
	case []any:
		elems = x
	case []string:
		elems = make([]any, len(x))
		for i, s := range x {
			elems[i] = s
		}
	default:
		elems = []any{x}
	}

	out := make([]any, len(elems))
	for i, e := range elems {
		switch {
		case p.Items == nil:
			out[i] = e
		case len(p.Items.Enum) > 0:
			s, err := toString(e)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			out[i] = s
		default:
			c, err := coerceScalar(p.Items.kind, e)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			out[i] = c
		}
	}
	return out, nil
}

func coerceScalar(k Kind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch k {
	case KindString:
		return toString(v)
	case KindInteger:
		return toInt(v)
	case KindNumber:
		return toFloat(v)
	case KindBoolean:
		return toBool(v)
	}
	return v, nil
}

func toString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case bool:
		return strconv.FormatBool(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < maxExactFloat {
			return strconv.FormatInt(int64(x), 10), nil
		}
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case json.Number:
		return x.String(), nil
	}
	return "", fmt.Errorf("%w: cannot convert %T to string", ErrCoercion, v)
}

func toInt(v any) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case float64:
		if x != math.Trunc(x) || math.Abs(x) >= maxExactFloat {
			return 0, fmt.Errorf("%w: %v is not an integer", ErrCoercion, x)
		}
		return int(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case string, json.Number:
		s := strings.TrimSpace(fmt.Sprint(x))
		if n, err := strconv.Atoi(s); err == nil {
			return n, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not an integer", ErrCoercion, s)
		}
		return toInt(f)
	}
	return 0, fmt.Errorf("%w: cannot convert %T to integer", ErrCoercion, v)
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case string, json.Number:
		s := strings.TrimSpace(fmt.Sprint(x))
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a number", ErrCoercion, s)
		}
		return f, nil
	}
	return 0, fmt.Errorf("%w: cannot convert %T to number", ErrCoercion, v)
}

func toBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case float64:
		return x != 0, nil
	case int:
		return x != 0, nil
	case int64:
		return x != 0, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		if err != nil {
			return false, fmt.Errorf("%w: %q is not a boolean", ErrCoercion, x)
		}
		return b, nil
	}
	return false, fmt.Errorf("%w: cannot convert %T to boolean", ErrCoercion, v)
}

// Args are the coerced arguments handed to a tool handler.
type Args map[string]any

// Has reports whether name is present with a non-nil value.
func (a Args) Has(name string) bool {
	v, ok := a[name]
	return ok && v != nil
}

// String returns the named string argument, or def when absent.
func (a Args) String(name, def string) string {
	if s, ok := a[name].(string); ok {
		return s
	}
	return def
}

// Int returns the named integer argument, or def when absent.
func (a Args) Int(name string, def int) int {
	if n, ok := a[name].(int); ok {
		return n
	}
	return def
}

// Float returns the named number argument, or def when absent.
func (a Args) Float(name string, def float64) float64 {
	if f, ok := a[name].(float64); ok {
		return f
	}
	return def
}

// Bool returns the named boolean argument, or def when absent.
func (a Args) Bool(name string, def bool) bool {
	if b, ok := a[name].(bool); ok {
		return b
	}
	return def
}

// Strings returns the named array argument as strings. Non-string elements
// are skipped.
func (a Args) Strings(name string) []string {
	items, ok := a[name].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
