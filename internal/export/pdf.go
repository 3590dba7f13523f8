package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/KaramelBytes/datalens-cli/internal/apperr"
	"github.com/KaramelBytes/datalens-cli/internal/logger"
	"github.com/KaramelBytes/datalens-cli/internal/utils"
)

// ErrNoBrowser is returned when no Chrome or Chromium binary can be located.
var ErrNoBrowser = errors.New("no Chrome or Chromium binary found (set chrome_path or CHROME_BIN)")

// Printer prints HTML documents to PDF through a headless Chrome.
type Printer struct {
	// ExecPath overrides browser discovery.
	ExecPath string
	// Timeout bounds one print job; zero means 60s.
	Timeout time.Duration
}

// PDF renders report and prints it. Any failure to start or drive the
// browser is reported as KindExportUnavailable.
func (p Printer) PDF(ctx context.Context, fileName, report string) ([]byte, error) {
	return p.Print(ctx, string(HTML(fileName, report)))
}

// Print loads doc into a blank page and returns the printed PDF bytes.
func (p Printer) Print(ctx context.Context, doc string) ([]byte, error) {
	bin := p.ExecPath
	if bin == "" {
		bin = FindChrome()
	}
	if bin == "" {
		return nil, apperr.Wrap(apperr.KindExportUnavailable, ErrNoBrowser, "pdf export unavailable")
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(bin),
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelBrowser()
	runCtx, cancelRun := context.WithTimeout(browserCtx, timeout)
	defer cancelRun()

	start := time.Now()
	var pdf []byte
	err := chromedp.Run(runCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return fmt.Errorf("frame tree: %w", err)
			}
			return page.SetDocumentContent(tree.Frame.ID, doc).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPreferCSSPageSize(true).
				Do(ctx)
			if err != nil {
				return fmt.Errorf("print to pdf: %w", err)
			}
			pdf = buf
			return nil
		}),
	)
	if err != nil {
		logger.L().Warn("pdf export failed", "browser", bin, "error", err.Error())
		return nil, apperr.Wrap(apperr.KindExportUnavailable, err, "pdf export unavailable")
	}
	logger.L().Debug("pdf exported", "bytes", len(pdf), "duration", time.Since(start).String())
	return pdf, nil
}

// WritePDF prints report and writes the PDF atomically to path.
func (p Printer) WritePDF(ctx context.Context, path, fileName, report string) error {
	pdf, err := p.PDF(ctx, fileName, report)
	if err != nil {
		return err
	}
	if err := utils.SafeWriteFile(path, pdf); err != nil {
		return apperr.Wrap(apperr.KindExportUnavailable, err, "write pdf export")
	}
	return nil
}

// FindChrome locates a Chrome or Chromium binary from CHROME_BIN, PATH, or
// common install locations. It returns "" when none is found.
func FindChrome() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}
	for _, name := range []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	for _, p := range []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
