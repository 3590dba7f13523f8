// Package export produces standalone report documents for printing and sharing.
package export

import (
	"github.com/KaramelBytes/datalens-cli/internal/apperr"
	"github.com/KaramelBytes/datalens-cli/internal/render"
	"github.com/KaramelBytes/datalens-cli/internal/utils"
)

// HTML renders report into a standalone document titled after fileName.
func HTML(fileName, report string) []byte {
	return []byte(render.Report(fileName, report))
}

// WriteHTML renders report and writes it atomically to path.
func WriteHTML(path, fileName, report string) error {
	if err := utils.SafeWriteFile(path, HTML(fileName, report)); err != nil {
		return apperr.Wrap(apperr.KindExportUnavailable, err, "write html export")
	}
	return nil
}
