package ingest

import (
	"testing"

	"github.com/KaramelBytes/datalens-cli/internal/apperr"
	"github.com/KaramelBytes/datalens-cli/internal/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func workbook(t *testing.T, sheets map[string][][]any, order []string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	for i, name := range order {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", name))
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for r, row := range sheets[name] {
			for c, v := range row {
				if v == nil {
					continue
				}
				ref, err := excelize.CoordinatesToCellName(c+1, r+1)
				require.NoError(t, err)
				require.NoError(t, f.SetCellValue(name, ref, v))
			}
		}
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestLoadXLSXFirstSheetOnly(t *testing.T) {
	content := workbook(t, map[string][][]any{
		"Sales": {
			{"region", "units", "active", "note"},
			{"north", 12, true, "ok"},
			{"south", 7.5, false, nil},
			{"east", nil, nil, nil},
		},
		"Other": {
			{"ignored"},
			{"x"},
		},
	}, []string{"Sales", "Other"})

	ds, err := Load("report.xlsx", content)
	require.NoError(t, err)
	assert.Equal(t, []string{"region", "units", "active", "note"}, ds.Columns)
	require.Len(t, ds.Rows, 3)

	assert.Equal(t, dataset.String("north"), ds.Rows[0]["region"])
	assert.Equal(t, dataset.Number(12), ds.Rows[0]["units"])
	assert.Equal(t, dataset.Boolean(true), ds.Rows[0]["active"])
	assert.Equal(t, dataset.Number(7.5), ds.Rows[1]["units"])

	note, ok := ds.Rows[1]["note"]
	assert.True(t, ok, "empty cells are present as null, not omitted")
	assert.True(t, note.IsNull())
	for _, col := range []string{"units", "active", "note"} {
		v, ok := ds.Rows[2][col]
		assert.True(t, ok && v.IsNull(), "column %s", col)
	}
}

func TestLoadXLSXCorruptContainer(t *testing.T) {
	_, err := Load("broken.xlsx", []byte("definitely not a zip"))
	require.Error(t, err)
	assert.Equal(t, apperr.KindParse, apperr.KindOf(err))

	_, err = Load("legacy.xls", []byte("legacy biff payload"))
	assert.Equal(t, apperr.KindParse, apperr.KindOf(err))
}
