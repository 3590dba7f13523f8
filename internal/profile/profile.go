// Package profile computes display-only per-column statistics for a dataset.
// Nothing here feeds the generation request.
package profile

import (
	"github.com/montanaflynn/stats"

	"github.com/KaramelBytes/datalens-cli/internal/dataset"
)

// Numeric holds summary statistics for a numeric column.
type Numeric struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"stdDev"`
}

// Column describes one column of the dataset.
type Column struct {
	Name     string             `json:"name"`
	Type     dataset.ColumnType `json:"type"`
	NonNull  int                `json:"nonNull"`
	Missing  int                `json:"missing"`
	Distinct int                `json:"distinct"`
	Numeric  *Numeric           `json:"numeric,omitempty"`
}

// Build profiles every column in dataset order.
func Build(d *dataset.Dataset) ([]Column, error) {
	if d == nil {
		return nil, nil
	}
	types := dataset.Infer(d)
	out := make([]Column, 0, len(d.Columns))
	for _, name := range d.Columns {
		col := Column{Name: name, Type: types[name]}
		seen := make(map[string]struct{})
		var nums []float64
		for _, v := range d.Column(name) {
			if v.Blank() {
				col.Missing++
				continue
			}
			col.NonNull++
			seen[v.Kind().String()+":"+v.Text()] = struct{}{}
			if f, ok := numeric(v); ok {
				nums = append(nums, f)
			}
		}
		col.Distinct = len(seen)
		if col.Type == dataset.TypeNumeric && len(nums) > 0 {
			n, err := describe(nums)
			if err != nil {
				return nil, err
			}
			col.Numeric = n
		}
		out = append(out, col)
	}
	return out, nil
}

func numeric(v dataset.Value) (float64, bool) {
	switch v.Kind() {
	case dataset.KindNumber:
		return v.Num(), true
	case dataset.KindString:
		return dataset.ParseNumber(v.Str())
	}
	return 0, false
}

func describe(data []float64) (*Numeric, error) {
	min, err := stats.Min(data)
	if err != nil {
		return nil, err
	}
	max, err := stats.Max(data)
	if err != nil {
		return nil, err
	}
	mean, err := stats.Mean(data)
	if err != nil {
		return nil, err
	}
	median, err := stats.Median(data)
	if err != nil {
		return nil, err
	}
	stdDev, err := stats.StandardDeviation(data)
	if err != nil {
		return nil, err
	}
	return &Numeric{Min: min, Max: max, Mean: mean, Median: median, StdDev: stdDev}, nil
}
