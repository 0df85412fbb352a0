// Package rendering converts generated filing documents from markdown into
// downloadable HTML or PDF.
package rendering

import (
	"bytes"
	"context"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/turtacn/IPFiling-Assistant/internal/application/session"
	"github.com/turtacn/IPFiling-Assistant/internal/config"
	"github.com/turtacn/IPFiling-Assistant/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/IPFiling-Assistant/pkg/errors"
)

const (
	MediaTypeHTML = "text/html; charset=utf-8"
	MediaTypePDF  = "application/pdf"
)

const pageStyle = `body{font-family:"Times New Roman",serif;font-size:12pt;line-height:1.5;margin:0 auto;max-width:800px;padding:1rem;color:#111;}` +
	`h1,h2,h3{font-family:Helvetica,Arial,sans-serif;}h1{font-size:16pt;text-align:center;}h2{font-size:13pt;margin-top:1.5em;}` +
	`table{border-collapse:collapse;width:100%;}th,td{border:1px solid #999;padding:0.3rem 0.45rem;text-align:left;vertical-align:top;}` +
	`@media print{@page{size:A4;margin:20mm;}body{max-width:none;padding:0;}}`

// HTMLRenderer renders GFM markdown into a standalone HTML page.
type HTMLRenderer struct {
	md goldmark.Markdown
}

func NewHTMLRenderer() *HTMLRenderer {
	return &HTMLRenderer{md: goldmark.New(goldmark.WithExtensions(extension.GFM))}
}

func (r *HTMLRenderer) Render(ctx context.Context, content string) (*session.RenderedDocument, error) {
	page, err := r.page(ctx, content)
	if err != nil {
		return nil, err
	}
	return &session.RenderedDocument{Data: page, MediaType: MediaTypeHTML, Extension: "html"}, nil
}

// page converts content and wraps it in the print stylesheet. The first
// level-one heading doubles as the document title.
func (r *HTMLRenderer) page(ctx context.Context, content string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var body bytes.Buffer
	if err := r.md.Convert([]byte(content), &body); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "markdown convert")
	}

	var out bytes.Buffer
	out.WriteString("<!doctype html><html><head><meta charset='utf-8'><title>")
	out.WriteString(html.EscapeString(documentTitle(content)))
	out.WriteString("</title><style>")
	out.WriteString(pageStyle)
	out.WriteString("</style></head><body>")
	out.Write(body.Bytes())
	out.WriteString("</body></html>")
	return out.Bytes(), nil
}

func documentTitle(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "# "))
		}
	}
	return "Filing Document"
}

// New selects the renderer named by cfg.Format.
func New(cfg config.RendererConfig, log logging.Logger) (session.DocumentRenderer, error) {
	switch cfg.Format {
	case "", config.DefaultRendererFormat:
		return NewHTMLRenderer(), nil
	case "pdf":
		return NewPDFRenderer(cfg, log), nil
	default:
		return nil, errors.New(errors.ErrCodeInvalidConfig, "unsupported renderer format").WithDetail(cfg.Format)
	}
}

var _ session.DocumentRenderer = (*HTMLRenderer)(nil)

//Personal.AI order the ending
