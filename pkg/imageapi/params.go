package imageapi

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Params holds query parameters for a request. Values may be strings, integers,
// booleans or nil. Nil values, empty strings and blank keys are never sent.
type Params map[string]any

// Values encodes p into url.Values, omitting absent entries.
func (p Params) Values() (url.Values, error) {
	if len(p) == 0 {
		return nil, nil
	}
	out := make(url.Values, len(p))
	for key, raw := range p {
		key = strings.TrimSpace(key)
		if key == "" || raw == nil {
			continue
		}
		val, err := formatParam(raw)
		if err != nil {
			return nil, invalidArgument("query parameter %q: %v", key, err)
		}
		if val == "" {
			continue
		}
		out.Set(key, val)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func formatParam(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case *string:
		if val == nil {
			return "", nil
		}
		return *val, nil
	case int:
		return strconv.Itoa(val), nil
	case int32:
		return strconv.FormatInt(int64(val), 10), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case uint:
		return strconv.FormatUint(uint64(val), 10), nil
	case uint64:
		return strconv.FormatUint(val, 10), nil
	case bool:
		return strconv.FormatBool(val), nil
	case fmt.Stringer:
		return val.String(), nil
	default:
		return "", fmt.Errorf("unsupported type %T", v)
	}
}
