package ingest

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/KaramelBytes/datalens-cli/internal/dataset"
	"github.com/xuri/excelize/v2"
)

type xlsxParser struct{}

func (xlsxParser) CanParse(filename string) bool {
	return hasExt(filename, ".xlsx", ".xls")
}

// Parse reads the first sheet; its first row holds the headers.
func (xlsxParser) Parse(content []byte) (*dataset.Dataset, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	sheet := sheets[0]
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return &dataset.Dataset{Columns: []string{}, Rows: []dataset.Row{}}, nil
	}
	b := dataset.NewBuilder(rows[0])
	for i := 1; i < len(rows); i++ {
		raw := rows[i]
		if len(raw) == 0 {
			continue
		}
		cells := make([]dataset.Value, b.Width())
		for j := range cells {
			if j >= len(raw) || raw[j] == "" {
				cells[j] = dataset.Null()
				continue
			}
			cells[j] = cellValue(f, sheet, j+1, i+1, raw[j])
		}
		b.Add(cells)
	}
	return b.Dataset(), nil
}

// cellValue types a raw cell using the stored cell type.
func cellValue(f *excelize.File, sheet string, col, row int, raw string) dataset.Value {
	ref, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return dataset.String(raw)
	}
	ct, err := f.GetCellType(sheet, ref)
	if err != nil {
		return dataset.String(raw)
	}
	switch ct {
	case excelize.CellTypeBool:
		return dataset.Boolean(raw == "1" || raw == "TRUE" || raw == "true")
	case excelize.CellTypeUnset, excelize.CellTypeNumber, excelize.CellTypeFormula:
		if n, ok := dataset.ParseNumber(raw); ok {
			return dataset.Number(n)
		}
		return dataset.String(raw)
	default:
		return dataset.String(raw)
	}
}
