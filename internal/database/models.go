package database

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// CellKind identifies which variant a CellValue holds.
type CellKind uint8

const (
	CellNull CellKind = iota
	CellText
	CellInt64
	CellFloat64
	CellBlob
)

func (k CellKind) String() string {
	switch k {
	case CellNull:
		return "null"
	case CellText:
		return "text"
	case CellInt64:
		return "int64"
	case CellFloat64:
		return "float64"
	case CellBlob:
		return "blob"
	default:
		return "unknown"
	}
}

// CellValue is a single normalized value of a result row.
// The zero value is Null.
type CellValue struct {
	kind CellKind
	text string
	i    int64
	f    float64
	blob []byte
}

// Null returns a NULL cell.
func Null() CellValue {
	return CellValue{}
}

// Text returns a text cell.
func Text(s string) CellValue {
	return CellValue{kind: CellText, text: s}
}

// Int64 returns an integer cell.
func Int64(i int64) CellValue {
	return CellValue{kind: CellInt64, i: i}
}

// Float64 returns a floating point cell.
func Float64(f float64) CellValue {
	return CellValue{kind: CellFloat64, f: f}
}

// Blob returns a binary cell. The bytes are copied.
func Blob(b []byte) CellValue {
	cp := make([]byte, len(b))
	copy(cp, b)
	return CellValue{kind: CellBlob, blob: cp}
}

// Kind reports the variant held by the cell.
func (c CellValue) Kind() CellKind {
	return c.kind
}

// IsNull reports whether the cell is NULL.
func (c CellValue) IsNull() bool {
	return c.kind == CellNull
}

// AsText returns the text payload and whether the cell is a text cell.
func (c CellValue) AsText() (string, bool) {
	return c.text, c.kind == CellText
}

// AsInt64 returns the integer payload and whether the cell is an integer cell.
func (c CellValue) AsInt64() (int64, bool) {
	return c.i, c.kind == CellInt64
}

// AsFloat64 returns the float payload and whether the cell is a float cell.
func (c CellValue) AsFloat64() (float64, bool) {
	return c.f, c.kind == CellFloat64
}

// AsBlob returns the binary payload and whether the cell is a blob cell.
func (c CellValue) AsBlob() ([]byte, bool) {
	return c.blob, c.kind == CellBlob
}

// String renders the cell for display.
func (c CellValue) String() string {
	switch c.kind {
	case CellText:
		return c.text
	case CellInt64:
		return strconv.FormatInt(c.i, 10)
	case CellFloat64:
		return strconv.FormatFloat(c.f, 'g', -1, 64)
	case CellBlob:
		return "x'" + hex.EncodeToString(c.blob) + "'"
	default:
		return "NULL"
	}
}

// MarshalJSON encodes the cell untagged: null, string, number, or an array
// of byte values for blobs.
func (c CellValue) MarshalJSON() ([]byte, error) {
	switch c.kind {
	case CellText:
		return json.Marshal(c.text)
	case CellInt64:
		return []byte(strconv.FormatInt(c.i, 10)), nil
	case CellFloat64:
		if math.IsNaN(c.f) || math.IsInf(c.f, 0) {
			// JSON has no representation for these.
			return json.Marshal(strconv.FormatFloat(c.f, 'g', -1, 64))
		}
		return json.Marshal(c.f)
	case CellBlob:
		ints := make([]int, len(c.blob))
		for i, b := range c.blob {
			ints[i] = int(b)
		}
		return json.Marshal(ints)
	default:
		return []byte("null"), nil
	}
}

// Column describes one result column. TypeID is the engine's own type OID,
// copied verbatim; TypeName is the declared type where the engine has one.
type Column struct {
	Name     string  `json:"name"`
	TypeID   *uint32 `json:"dataTypeID"`
	TypeName *string `json:"dataTypeName,omitempty"`
}

// QueryResult holds the normalized result of a SQL statement.
type QueryResult struct {
	Columns []Column      `json:"columns"`
	Rows    [][]CellValue `json:"rows"`
}

// NewQueryResult returns an empty result for the given columns.
func NewQueryResult(columns []Column) *QueryResult {
	if columns == nil {
		columns = []Column{}
	}
	return &QueryResult{
		Columns: columns,
		Rows:    [][]CellValue{},
	}
}

// NullRow returns a row of width NULL cells.
func NullRow(width int) []CellValue {
	return make([]CellValue, width)
}

// Validate reports the first row whose width differs from the column count.
func (r *QueryResult) Validate() error {
	for i, row := range r.Rows {
		if len(row) != len(r.Columns) {
			return fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(r.Columns))
		}
	}
	return nil
}

// ColumnNames returns the column names in order.
func (r *QueryResult) ColumnNames() []string {
	names := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		names[i] = c.Name
	}
	return names
}

// StringRows renders every cell for display.
func (r *QueryResult) StringRows() [][]string {
	out := make([][]string, len(r.Rows))
	for i, row := range r.Rows {
		cells := make([]string, len(row))
		for j, c := range row {
			cells[j] = c.String()
		}
		out[i] = cells
	}
	return out
}

// TypeLabel returns the best available type description for display.
func (c Column) TypeLabel() string {
	if c.TypeName != nil && *c.TypeName != "" {
		return *c.TypeName
	}
	if c.TypeID != nil && *c.TypeID != 0 {
		return "oid " + strconv.FormatUint(uint64(*c.TypeID), 10)
	}
	return ""
}
