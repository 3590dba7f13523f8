package dataset

import (
	"bytes"
	"encoding/json"
)

// SampleSize is the number of leading rows carried in a Summary.
const SampleSize = 5

// Summary is an immutable structural snapshot of a dataset, built per analysis.
type Summary struct {
	FileName string
	RowCount int
	Columns  []string
	Sample   []Row
	Types    ColumnTypeMap
}

// Summarize builds a Summary from the first SampleSize rows and the inferred
// column types. The input dataset is not modified.
func Summarize(fileName string, d *Dataset) Summary {
	s := Summary{FileName: fileName, Types: Infer(d)}
	if d == nil {
		s.Columns = []string{}
		s.Sample = []Row{}
		return s
	}
	s.RowCount = len(d.Rows)
	s.Columns = append([]string(nil), d.Columns...)
	n := len(d.Rows)
	if n > SampleSize {
		n = SampleSize
	}
	s.Sample = make([]Row, n)
	for i := 0; i < n; i++ {
		cp := make(Row, len(d.Rows[i]))
		for k, v := range d.Rows[i] {
			cp[k] = v
		}
		s.Sample[i] = cp
	}
	return s
}

// MarshalJSON keeps column order in both the sample rows and the type map.
func (s Summary) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"fileName":`)
	name, err := json.Marshal(s.FileName)
	if err != nil {
		return nil, err
	}
	buf.Write(name)
	buf.WriteString(`,"rowCount":`)
	rc, _ := json.Marshal(s.RowCount)
	buf.Write(rc)
	buf.WriteString(`,"columns":`)
	cols := s.Columns
	if cols == nil {
		cols = []string{}
	}
	cb, err := json.Marshal(cols)
	if err != nil {
		return nil, err
	}
	buf.Write(cb)
	buf.WriteString(`,"sampleData":`)
	if err := EncodeRows(&buf, cols, s.Sample); err != nil {
		return nil, err
	}
	buf.WriteString(`,"columnTypes":{`)
	for i, c := range cols {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(c)
		buf.Write(k)
		buf.WriteByte(':')
		t := s.Types[c]
		if t == "" {
			t = TypeText
		}
		tb, _ := json.Marshal(string(t))
		buf.Write(tb)
	}
	buf.WriteString("}}")
	return buf.Bytes(), nil
}

// JSON returns the indented summary serialization used in prompts.
func (s Summary) JSON() (string, error) {
	raw, err := s.MarshalJSON()
	if err != nil {
		return "", err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return "", err
	}
	return out.String(), nil
}
