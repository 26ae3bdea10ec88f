package coalesce

import (
	"fmt"
	"slices"
	"strings"

	"github.com/go-faster/jx"
)

// Signature serializes a request shape into a deterministic key. Map keys are
// sorted at every level and nil values are dropped, so parameter sets that
// differ only in key order or in explicitly-nil fields map to the same key.
func Signature(endpoint string, params map[string]any) string {
	var e jx.Encoder
	writeValue(&e, params)

	var b strings.Builder
	b.Grow(len(endpoint) + 1 + len(e.Bytes()))
	b.WriteString(endpoint)
	b.WriteByte('?')
	b.Write(e.Bytes())
	return b.String()
}

func writeValue(e *jx.Encoder, v any) {
	switch v := v.(type) {
	case nil:
		e.Null()
	case string:
		e.Str(v)
	case bool:
		e.Bool(v)
	case int:
		e.Int(v)
	case int32:
		e.Int32(v)
	case int64:
		e.Int64(v)
	case uint:
		e.UInt(v)
	case uint64:
		e.UInt64(v)
	case float64:
		e.Float64(v)
	case []string:
		e.ArrStart()
		for _, s := range v {
			e.Str(s)
		}
		e.ArrEnd()
	case []any:
		e.ArrStart()
		for _, x := range v {
			writeValue(e, x)
		}
		e.ArrEnd()
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k, x := range v {
			if x == nil {
				continue
			}
			keys = append(keys, k)
		}
		slices.Sort(keys)

		e.ObjStart()
		for _, k := range keys {
			e.FieldStart(k)
			writeValue(e, v[k])
		}
		e.ObjEnd()
	case fmt.Stringer:
		e.Str(v.String())
	default:
		e.Str(fmt.Sprint(v))
	}
}
