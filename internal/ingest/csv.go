package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/KaramelBytes/datalens-cli/internal/dataset"
	"github.com/KaramelBytes/datalens-cli/internal/logger"
)

type csvParser struct{}

func (csvParser) CanParse(filename string) bool {
	return hasExt(filename, ".csv")
}

func (csvParser) Parse(content []byte) (*dataset.Dataset, error) {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
	r := csv.NewReader(bytes.NewReader(content))
	r.FieldsPerRecord = -1
	r.Comma = sniffDelimiter(content)

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return &dataset.Dataset{Columns: []string{}, Rows: []dataset.Row{}}, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	b := dataset.NewBuilder(header)
	line := 1
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", line+1, err)
		}
		line++
		if blankRecord(rec) {
			continue
		}
		if len(rec) > b.Width() {
			logger.L().Debug("csv row wider than header", "row", line, "fields", len(rec), "header", b.Width())
		}
		cells := make([]dataset.Value, len(rec))
		for i, raw := range rec {
			cells[i] = dataset.Coerce(raw)
		}
		b.Add(cells)
	}
	return b.Dataset(), nil
}

// blankRecord catches lines made only of delimiters or whitespace, which
// encoding/csv returns as records.
func blankRecord(rec []string) bool {
	if len(rec) != 1 {
		return false
	}
	return len(bytes.TrimSpace([]byte(rec[0]))) == 0
}

// sniffDelimiter picks the most frequent of ',', ';' and tab on the header line.
func sniffDelimiter(content []byte) rune {
	line := content
	if i := bytes.IndexByte(content, '\n'); i >= 0 {
		line = content[:i]
	}
	best, bestN := ',', 0
	for _, d := range []rune{',', ';', '\t'} {
		if n := bytes.Count(line, []byte(string(d))); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}
