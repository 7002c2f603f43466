package dispatch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	apperrors "github.com/louisbranch/mathmcp/internal/platform/errors"
	"github.com/louisbranch/mathmcp/internal/services/rpc/registry"
)

// Validate checks args against the entry's declared parameters and returns
// the coerced arguments. Every declared parameter must be present and
// coercible to its type; unknown arguments are ignored.
func Validate(entry registry.Entry, args map[string]any) (registry.Args, *apperrors.Error) {
	validated := make(registry.Args, len(entry.Params))
	for _, param := range entry.Params {
		raw, ok := args[param.Name]
		if !ok {
			return nil, invalidParam(param.Name, fmt.Sprintf("missing required argument %q", param.Name))
		}
		value, err := coerce(param.Type, raw)
		if err != nil {
			return nil, invalidParam(param.Name, fmt.Sprintf("argument %q: %v", param.Name, err))
		}
		validated[param.Name] = value
	}
	return validated, nil
}

func invalidParam(name, message string) *apperrors.Error {
	return apperrors.WithMetadata(apperrors.CodeInvalidParams, message, map[string]string{"param": name})
}

func coerce(kind registry.ParamType, raw any) (any, error) {
	switch kind {
	case registry.TypeInteger:
		return coerceInteger(raw)
	case registry.TypeString:
		return coerceString(raw)
	default:
		return nil, fmt.Errorf("unsupported parameter type %q", kind)
	}
}

// coerceInteger accepts JSON integers, integral floats and decimal strings.
func coerceInteger(raw any) (int64, error) {
	switch v := raw.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, nil
		}
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("%s is not an integer", v.String())
		}
		return integralFloat(f)
	case float64:
		return integralFloat(v)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not an integer", v)
		}
		return n, nil
	case nil:
		return 0, fmt.Errorf("null is not an integer")
	default:
		return 0, fmt.Errorf("%T is not an integer", raw)
	}
}

func integralFloat(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("%v is not an integer", f)
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("%v is out of range", f)
	}
	return int64(f), nil
}

func coerceString(raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case int64, int, float64:
		return fmt.Sprint(v), nil
	default:
		return "", fmt.Errorf("%T is not a string", raw)
	}
}

// DecodeArgs decodes a JSON argument object, keeping numbers as json.Number
// so large integers survive untouched. Empty input and null decode to an
// empty mapping; anything other than an object is an invalid params error.
func DecodeArgs(raw json.RawMessage) (map[string]any, *apperrors.Error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return map[string]any{}, nil
	}
	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()
	var args map[string]any
	if err := decoder.Decode(&args); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidParams, "arguments must be a JSON object", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// StringArgs converts string-valued arguments, such as HTTP path parameters
// or MCP prompt arguments, into a dispatch argument mapping.
func StringArgs(values map[string]string) map[string]any {
	args := make(map[string]any, len(values))
	for key, value := range values {
		args[key] = value
	}
	return args
}
