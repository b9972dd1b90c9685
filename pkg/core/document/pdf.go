package document

import (
	"bytes"
	"context"
	"image"
	_ "image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// PDFExtractor reads text with ledongthuc/pdf and renders pages with the
// poppler pdftoppm CLI.
type PDFExtractor struct {
	binPath string
	dpi     int
}

// NewPDFExtractor creates a PDFExtractor. Empty binPath means "pdftoppm" on PATH.
func NewPDFExtractor(binPath string, dpi int) *PDFExtractor {
	if binPath == "" {
		binPath = "pdftoppm"
	}
	if dpi <= 0 {
		dpi = 150
	}
	return &PDFExtractor{binPath: binPath, dpi: dpi}
}

// PageCount returns the number of pages in the PDF.
func (e *PDFExtractor) PageCount(_ context.Context, path string) (int, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return 0, eris.Wrapf(err, "document: open pdf %s", filepath.Base(path))
	}
	defer f.Close()
	return r.NumPage(), nil
}

// ExtractText returns the plain text of each requested page, in request order.
// Pages whose text cannot be decoded come back empty rather than failing the run.
func (e *PDFExtractor) ExtractText(ctx context.Context, path string, pages []int) ([]PageText, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "document: open pdf %s", filepath.Base(path))
	}
	defer f.Close()

	total := r.NumPage()
	out := make([]PageText, 0, len(pages))
	for _, n := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if n < 1 || n > total {
			return nil, eris.Errorf("document: page %d outside 1..%d", n, total)
		}

		pt := PageText{Page: n}
		p := r.Page(n)
		if !p.V.IsNull() {
			text, err := p.GetPlainText(nil)
			if err != nil {
				zap.L().Warn("pdf page text unreadable",
					zap.String("file", filepath.Base(path)),
					zap.Int("page", n),
					zap.Error(err),
				)
			} else {
				pt.Text = strings.TrimSpace(text)
			}
		}
		out = append(out, pt)
	}
	return out, nil
}

// RenderPage rasterises one page to PNG.
func (e *PDFExtractor) RenderPage(ctx context.Context, path string, page int) (*PageImage, error) {
	dir, err := os.MkdirTemp("", "finx-render-*")
	if err != nil {
		return nil, eris.Wrap(err, "document: create render dir")
	}
	defer os.RemoveAll(dir)

	root := filepath.Join(dir, "page")
	num := strconv.Itoa(page)
	cmd := exec.CommandContext(ctx, e.binPath,
		"-png", "-singlefile",
		"-r", strconv.Itoa(e.dpi),
		"-f", num, "-l", num,
		path, root,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, eris.Wrapf(err, "document: pdftoppm page %d: %s", page, strings.TrimSpace(stderr.String()))
	}

	data, err := os.ReadFile(root + ".png")
	if err != nil {
		return nil, eris.Wrapf(err, "document: read rendered page %d", page)
	}
	return newPageImage(page, data)
}

func newPageImage(page int, data []byte) (*PageImage, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, eris.Wrapf(err, "document: decode page %d", page)
	}
	return &PageImage{
		Page:     page,
		MIMEType: "image/png",
		Data:     data,
		Width:    cfg.Width,
		Height:   cfg.Height,
	}, nil
}
