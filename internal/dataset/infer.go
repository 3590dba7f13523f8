package dataset

// ColumnType is the inferred category of a column.
type ColumnType string

const (
	TypeNumeric ColumnType = "numeric"
	TypeDate    ColumnType = "date"
	TypeText    ColumnType = "text"
)

// ColumnTypeMap maps column name to its inferred type.
type ColumnTypeMap map[string]ColumnType

// Infer classifies every column from its first non-blank value in row order.
// Only that one sample is inspected; columns without one default to text.
func Infer(d *Dataset) ColumnTypeMap {
	out := make(ColumnTypeMap)
	if d == nil {
		return out
	}
	for _, col := range d.Columns {
		sample, ok := firstSample(d.Rows, col)
		if !ok {
			out[col] = TypeText
			continue
		}
		out[col] = Classify(sample)
	}
	return out
}

// Classify returns the column type a single sample value implies.
func Classify(v Value) ColumnType {
	switch v.Kind() {
	case KindNumber:
		return TypeNumeric
	case KindString:
		if _, ok := ParseNumber(v.Str()); ok {
			return TypeNumeric
		}
		if _, ok := ParseDate(v.Str()); ok {
			return TypeDate
		}
		return TypeText
	default:
		return TypeText
	}
}

func firstSample(rows []Row, col string) (Value, bool) {
	for _, r := range rows {
		v, ok := r[col]
		if !ok || v.Blank() {
			continue
		}
		return v, true
	}
	return Value{}, false
}
