package database

import (
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"
)

// TimeLayout is used when an engine hands back a parsed time value of a type
// with no layout of its own.
const TimeLayout = "2006-01-02 15:04:05.999999999Z07:00"

// timeLayouts renders time values the way the engine prints each type.
var timeLayouts = map[string]string{
	"DATE":         "2006-01-02",
	"TIME":         "15:04:05.999999",
	"TIMETZ":       "15:04:05.999999-07",
	"TIMESTAMP":    "2006-01-02 15:04:05.999999",
	"TIMESTAMP_S":  "2006-01-02 15:04:05",
	"TIMESTAMP_MS": "2006-01-02 15:04:05.999",
	"TIMESTAMP_NS": "2006-01-02 15:04:05.999999999",
	"TIMESTAMPTZ":  "2006-01-02 15:04:05.999999-07",
}

// FormatTime renders t as a value of the named column type. Unknown types
// use TimeLayout.
func FormatTime(typeName string, t time.Time) string {
	if layout, ok := timeLayouts[strings.ToUpper(typeName)]; ok {
		return t.Format(layout)
	}
	return t.Format(TimeLayout)
}

// CellFromColumn is CellFromValue for a value read from a column of the
// named type. Time values are rendered in the type's own layout.
func CellFromColumn(typeName string, v any) (cell CellValue, ok bool) {
	if t, isTime := v.(time.Time); isTime {
		return Text(FormatTime(typeName, t)), true
	}
	return CellFromValue(v)
}

// CellFromValue maps a value produced by a database/sql driver onto a typed
// cell. ok is false when the value had no direct
// variant and was rendered as text instead.
func CellFromValue(v any) (cell CellValue, ok bool) {
	switch v := v.(type) {
	case nil:
		return Null(), true
	case int64:
		return Int64(v), true
	case float64:
		return Float64(v), true
	case string:
		return Text(v), true
	case []byte:
		return Blob(v), true
	case int:
		return Int64(int64(v)), true
	case int8:
		return Int64(int64(v)), true
	case int16:
		return Int64(int64(v)), true
	case int32:
		return Int64(int64(v)), true
	case uint8:
		return Int64(int64(v)), true
	case uint16:
		return Int64(int64(v)), true
	case uint32:
		return Int64(int64(v)), true
	case uint64:
		if v > math.MaxInt64 {
			return Text(fmt.Sprint(v)), true
		}
		return Int64(int64(v)), true
	case float32:
		return Float64(float64(v)), true
	case bool:
		if v {
			return Int64(1), true
		}
		return Int64(0), true
	case time.Time:
		return Text(v.Format(TimeLayout)), true
	case *big.Int:
		if v == nil {
			return Null(), true
		}
		if v.IsInt64() {
			return Int64(v.Int64()), true
		}
		return Text(v.String()), true
	case fmt.Stringer:
		return Text(v.String()), false
	default:
		return Text(fmt.Sprint(v)), false
	}
}
