package render

import (
	"html"
	"path/filepath"
	"strings"
)

const stylesheet = `body { font-family: -apple-system, "Segoe UI", Helvetica, Arial, sans-serif; max-width: 820px; margin: 40px auto; padding: 0 20px; line-height: 1.6; color: #1f2933; }
h1 { font-size: 1.9em; border-bottom: 2px solid #3b82f6; padding-bottom: 6px; margin-top: 1.4em; }
h2 { font-size: 1.45em; color: #1e3a8a; margin-top: 1.3em; }
h3 { font-size: 1.2em; color: #334155; margin-top: 1.1em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
th, td { border: 1px solid #cbd5e1; padding: 6px 10px; text-align: left; }
th { background: #f1f5f9; }
code, pre { font-family: "SFMono-Regular", Consolas, monospace; background: #f8fafc; border-radius: 4px; }
pre { padding: 12px; overflow-x: auto; }
@media print { body { margin: 0; max-width: none; } h1, h2, h3 { page-break-after: avoid; } }`

// Title derives the document title from the uploaded file name.
func Title(fileName string) string {
	base := filepath.Base(strings.TrimSpace(fileName))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "Data Analysis Report"
	}
	return "Data Analysis Report - " + base
}

// Document wraps a rendered body fragment in a standalone HTML page.
func Document(title, body string) string {
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>")
	sb.WriteString(html.EscapeString(title))
	sb.WriteString("</title>\n<style>\n")
	sb.WriteString(stylesheet)
	sb.WriteString("\n</style>\n</head>\n<body>\n")
	sb.WriteString(body)
	sb.WriteString("\n</body>\n</html>\n")
	return sb.String()
}

// Report renders report text for fileName into a complete HTML document.
func Report(fileName, report string) string {
	return Document(Title(fileName), Markup(report))
}
