package rendering

import (
	"context"
	"encoding/base64"
	"os"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/turtacn/IPFiling-Assistant/internal/application/session"
	"github.com/turtacn/IPFiling-Assistant/internal/config"
	"github.com/turtacn/IPFiling-Assistant/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/IPFiling-Assistant/pkg/errors"
)

const footerTemplate = `<div style="width:100%;text-align:center;font-size:9px;color:#666;">` +
	`Page <span class="pageNumber"></span> of <span class="totalPages"></span></div>`

// PDFRenderer prints the HTML rendition through headless Chromium.
type PDFRenderer struct {
	html       *HTMLRenderer
	chromePath string
	timeout    time.Duration
	logger     logging.Logger
}

func NewPDFRenderer(cfg config.RendererConfig, log logging.Logger) *PDFRenderer {
	r := &PDFRenderer{
		html:       NewHTMLRenderer(),
		chromePath: cfg.ChromePath,
		timeout:    cfg.Timeout,
		logger:     log.Named("renderer"),
	}
	if r.chromePath == "" {
		r.chromePath = DetectChromePath()
	}
	if r.timeout <= 0 {
		r.timeout = config.DefaultRendererTimeout
	}
	return r
}

func (r *PDFRenderer) Render(ctx context.Context, content string) (*session.RenderedDocument, error) {
	doc, err := r.html.page(ctx, content)
	if err != nil {
		return nil, err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
	}
	if r.chromePath != "" {
		opts = append(opts, chromedp.ExecPath(r.chromePath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(timeoutCtx, append(chromedp.DefaultExecAllocatorOptions[:], opts...)...)
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	start := time.Now()
	var pdf []byte
	dataURL := "data:text/html;base64," + base64.StdEncoding.EncodeToString(doc)
	if err := chromedp.Run(taskCtx,
		chromedp.Navigate(dataURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			out, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithDisplayHeaderFooter(true).
				WithHeaderTemplate(`<div></div>`).
				WithFooterTemplate(footerTemplate).
				WithPaperWidth(8.27).
				WithPaperHeight(11.69).
				WithMarginTop(0.6).
				WithMarginBottom(0.75).
				WithMarginLeft(0.6).
				WithMarginRight(0.6).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = out
			return nil
		}),
	); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExternalService, "print to pdf")
	}

	r.logger.Debug("PDF rendered",
		logging.Int("bytes", len(pdf)),
		logging.Duration("latency", time.Since(start)))
	return &session.RenderedDocument{Data: pdf, MediaType: MediaTypePDF, Extension: "pdf"}, nil
}

// DetectChromePath returns the first Chromium binary found on the usual
// paths, or "" to let chromedp search $PATH.
func DetectChromePath() string {
	candidates := []string{
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/usr/bin/google-chrome",
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var _ session.DocumentRenderer = (*PDFRenderer)(nil)

//Personal.AI order the ending
