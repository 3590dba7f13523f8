package ingest

import (
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/datalens-cli/internal/apperr"
	"github.com/KaramelBytes/datalens-cli/internal/dataset"
)

// Parser decodes one tabular file format into a Dataset.
type Parser interface {
	CanParse(filename string) bool
	Parse(content []byte) (*dataset.Dataset, error)
}

var registry []Parser

// Register adds a parser implementation to the registry.
func Register(p Parser) {
	registry = append(registry, p)
}

func init() {
	Register(csvParser{})
	Register(xlsxParser{})
}

// Load selects a parser by file extension and decodes content.
// Unknown extensions fail with KindUnsupportedFormat, decoding failures with KindParse.
func Load(name string, content []byte) (*dataset.Dataset, error) {
	for _, p := range registry {
		if !p.CanParse(name) {
			continue
		}
		ds, err := p.Parse(content)
		if err != nil {
			if apperr.KindOf(err) != apperr.KindUnknown {
				return nil, err
			}
			return nil, apperr.Wrap(apperr.KindParse, err, "parse "+filepath.Base(name))
		}
		return ds, nil
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if ext == "" {
		return nil, apperr.Newf(apperr.KindUnsupportedFormat, "unsupported file format: %s has no extension (use .csv, .xlsx or .xls)", filepath.Base(name))
	}
	return nil, apperr.Newf(apperr.KindUnsupportedFormat, "unsupported file format: .%s (use .csv, .xlsx or .xls)", ext)
}

func hasExt(filename string, exts ...string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}
