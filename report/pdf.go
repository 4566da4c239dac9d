package report

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"house-finder/config"
	"house-finder/models"
	"house-finder/utils"
)

var (
	// ErrNoBrowser is returned when no Chrome or Chromium binary is found.
	ErrNoBrowser = errors.New("report: no chrome binary found")

	ErrNothingToBundle = errors.New("report: no listing PDFs to bundle")
)

// PDFRenderer prints pages to PDF with headless Chrome.
type PDFRenderer struct {
	chromeBin string
	logger    *utils.Logger
	retry     *utils.RetryConfig
	workers   int
	rateMs    int
}

// NewPDFRenderer locates a browser binary, preferring cfg.ChromeBin.
func NewPDFRenderer(cfg *config.Config, logger *utils.Logger) (*PDFRenderer, error) {
	bin := findChromeBinary(cfg.ChromeBin)
	if bin == "" {
		return nil, ErrNoBrowser
	}
	if logger == nil {
		logger = utils.NopLogger()
	}
	logger.Info("[report] Using browser binary: %s", bin)
	return &PDFRenderer{
		chromeBin: bin,
		logger:    logger,
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
		workers: cfg.MaxConcurrency,
		rateMs:  cfg.RateLimitMs,
	}, nil
}

func (p *PDFRenderer) allocate(ctx context.Context) (context.Context, context.CancelFunc) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.ExecPath(p.chromeBin),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)

	// Suppress chromedp log noise
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	return browserCtx, func() {
		cancelBrowser()
		cancelAlloc()
	}
}

// printURL loads target in a new tab and returns it printed as PDF. A
// non-empty footer is an HTML template printed at the foot of every page.
func (p *PDFRenderer) printURL(browserCtx context.Context, target, footer string) ([]byte, error) {
	ctx, cancel := chromedp.NewContext(browserCtx)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, 60*time.Second)
	defer cancelTimeout()

	var buf []byte
	err := chromedp.Run(ctx,
		chromedp.Navigate(target),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			params := cdppage.PrintToPDF().WithPrintBackground(true)
			if footer != "" {
				params = params.
					WithDisplayHeaderFooter(true).
					WithHeaderTemplate("<span></span>").
					WithFooterTemplate(footer).
					WithMarginBottom(0.6)
			}
			var err error
			buf, _, err = params.Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("chromedp print %s: %w", target, err)
	}
	return buf, nil
}

// RenderReport prints the HTML report at htmlPath to pdfPath.
func (p *PDFRenderer) RenderReport(ctx context.Context, htmlPath, pdfPath string) error {
	abs, err := filepath.Abs(htmlPath)
	if err != nil {
		return fmt.Errorf("report: resolve %s: %w", htmlPath, err)
	}

	browserCtx, cancel := p.allocate(ctx)
	defer cancel()

	var buf []byte
	err = p.retry.Do(ctx, "print report", func() error {
		b, err := p.printURL(browserCtx, "file://"+abs, "")
		if err != nil {
			return err
		}
		buf = b
		return nil
	})
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	if err := os.WriteFile(pdfPath, buf, 0o644); err != nil {
		return fmt.Errorf("report: write %s: %w", pdfPath, err)
	}
	p.logger.Info("[report] Wrote %s", pdfPath)
	return nil
}

// RenderListings prints each listing's print page to dir/{id}.pdf, footed
// with the listing's clean URL. Files that already exist are left alone. Individual failures are logged and
// counted; the returned error reports how many listings failed.
func (p *PDFRenderer) RenderListings(ctx context.Context, listings []*models.EvaluatedListing, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("report: create dir: %w", err)
	}

	var todo []*models.Listing
	for _, ev := range listings {
		l := ev.Listing
		if l.PrintURL == "" {
			continue
		}
		if _, err := os.Stat(listingPDFPath(dir, l)); err == nil {
			p.logger.Debug("[report] %s already printed", l.ID)
			continue
		}
		todo = append(todo, l)
	}
	if len(todo) == 0 {
		return nil
	}

	browserCtx, cancel := p.allocate(ctx)
	defer cancel()

	pool := utils.NewWorkerPool(p.workers, p.rateMs)
	failed := utils.NewIDSet()
	for _, l := range todo {
		pool.Submit(func() {
			var buf []byte
			err := p.retry.Do(ctx, "print listing "+l.ID, func() error {
				b, err := p.printURL(browserCtx, l.PrintURL, footerTemplate(l))
				if err != nil {
					return err
				}
				buf = b
				return nil
			})
			if err == nil {
				err = os.WriteFile(listingPDFPath(dir, l), buf, 0o644)
			}
			if err != nil {
				failed.Add(l.ID)
				p.logger.Warn("[report] Listing %s not printed: %v", l.ID, err)
			}
		})
	}
	pool.Wait()

	p.logger.Info("[report] Printed %d of %d listings to %s", len(todo)-failed.Size(), len(todo), dir)
	if n := failed.Size(); n > 0 {
		return fmt.Errorf("report: %d of %d listings could not be printed", n, len(todo))
	}
	return nil
}

// Bundle merges the printed listings found in dir into one PDF at outPath,
// in the order given. Listings without a PDF are left out.
func (p *PDFRenderer) Bundle(listings []*models.EvaluatedListing, dir, outPath string) error {
	inputs := bundleInputs(listings, dir)
	if len(inputs) == 0 {
		return ErrNothingToBundle
	}
	if err := api.MergeCreateFile(inputs, outPath, false, nil); err != nil {
		return fmt.Errorf("report: merge %d listing PDFs: %w", len(inputs), err)
	}
	p.logger.Info("[report] Bundled %d of %d listings into %s", len(inputs), len(listings), outPath)
	return nil
}

func bundleInputs(listings []*models.EvaluatedListing, dir string) []string {
	seen := utils.NewIDSet()
	var inputs []string
	for _, ev := range listings {
		l := ev.Listing
		if !seen.Add(l.ID) {
			continue
		}
		path := listingPDFPath(dir, l)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		inputs = append(inputs, path)
	}
	return inputs
}

func listingPDFPath(dir string, l *models.Listing) string {
	return filepath.Join(dir, l.ID+".pdf")
}

// footerTemplate prints the listing's clean URL, falling back to the print
// page when the listing has no URL of its own.
func footerTemplate(l *models.Listing) string {
	link := cleanURL(l.URL)
	if link == "" {
		link = cleanURL(l.PrintURL)
	}
	if link == "" {
		return ""
	}
	return fmt.Sprintf(`<div style="font-size:8px;width:100%%;text-align:center;">%s</div>`, html.EscapeString(link))
}

// cleanURL keeps scheme, host and path.
func cleanURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	clean := url.URL{Scheme: u.Scheme, Host: u.Host, Path: u.Path}
	return clean.String()
}

// findChromeBinary locates Chrome/Chromium binary.
func findChromeBinary(configured string) string {
	if configured != "" {
		return configured
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
