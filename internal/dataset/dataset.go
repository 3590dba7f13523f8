package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Row maps a column name to its cell. Missing keys mean the cell was absent.
type Row map[string]Value

// Dataset is an ordered sequence of rows with an ordered, duplicate-free column list.
type Dataset struct {
	Columns []string
	Rows    []Row
}

// Len returns the number of rows; a nil dataset has none.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

// Empty reports whether there is nothing to analyze.
func (d *Dataset) Empty() bool { return d.Len() == 0 }

// Column returns the values of one column in row order, Null for absent cells.
func (d *Dataset) Column(name string) []Value {
	if d == nil {
		return nil
	}
	out := make([]Value, len(d.Rows))
	for i, r := range d.Rows {
		out[i] = r[name]
	}
	return out
}

// Builder collects headers and records into a Dataset, resolving blank and
// duplicate header names.
type Builder struct {
	columns []string
	keys    []string // per source position
	seen    map[string]bool
	rows    []Row
}

// NewBuilder prepares a builder for the given raw header cells.
func NewBuilder(header []string) *Builder {
	b := &Builder{seen: make(map[string]bool, len(header))}
	empties := 0
	for _, h := range header {
		name := h
		if name == "" {
			name = "__EMPTY"
			if empties > 0 {
				name = fmt.Sprintf("__EMPTY_%d", empties)
			}
			empties++
		}
		b.keys = append(b.keys, name)
		if !b.seen[name] {
			b.seen[name] = true
			b.columns = append(b.columns, name)
		}
	}
	return b
}

// Width is the number of source positions in the header.
func (b *Builder) Width() int { return len(b.keys) }

// Add appends one record. Missing trailing cells become Null; cells past the
// header width are ignored. For duplicate headers the last position wins.
func (b *Builder) Add(cells []Value) {
	r := make(Row, len(b.columns))
	for i, k := range b.keys {
		if i < len(cells) {
			r[k] = cells[i]
		} else {
			r[k] = Null()
		}
	}
	b.rows = append(b.rows, r)
}

// Dataset returns the built dataset.
func (b *Builder) Dataset() *Dataset {
	cols := make([]string, len(b.columns))
	copy(cols, b.columns)
	rows := b.rows
	if rows == nil {
		rows = []Row{}
	}
	return &Dataset{Columns: cols, Rows: rows}
}

// EncodeRows writes rows as a JSON array of objects whose keys follow columns.
// Keys absent from a row are omitted.
func EncodeRows(w io.Writer, columns []string, rows []Row) error {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, r := range rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeRow(&buf, columns, r); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	_, err := w.Write(buf.Bytes())
	return err
}

func encodeRow(buf *bytes.Buffer, columns []string, r Row) error {
	buf.WriteByte('{')
	first := true
	for _, c := range columns {
		v, ok := r[c]
		if !ok {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		k, err := json.Marshal(c)
		if err != nil {
			return err
		}
		buf.Write(k)
		buf.WriteByte(':')
		vb, err := v.MarshalJSON()
		if err != nil {
			return err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return nil
}

// RowsJSON is EncodeRows into a string.
func RowsJSON(columns []string, rows []Row) (string, error) {
	var buf bytes.Buffer
	if err := EncodeRows(&buf, columns, rows); err != nil {
		return "", err
	}
	return buf.String(), nil
}
