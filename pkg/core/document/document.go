// Package document reads page text and page rasters out of uploaded documents.
// It wraps third-party renderers; nothing here interprets financial content.
package document

import (
	"context"

	"github.com/rotisserie/eris"

	"financial_extractor/pkg/core/validate"
)

// PageText is the plain text of one page (1-indexed).
type PageText struct {
	Page int
	Text string
}

// PageImage is one rendered page.
type PageImage struct {
	Page     int
	MIMEType string
	Data     []byte
	Width    int
	Height   int
}

// Extractor returns page counts and per-page text.
type Extractor interface {
	PageCount(ctx context.Context, path string) (int, error)
	ExtractText(ctx context.Context, path string, pages []int) ([]PageText, error)
}

// Renderer rasterises single pages. Only PDFs can be rendered.
type Renderer interface {
	RenderPage(ctx context.Context, path string, page int) (*PageImage, error)
}

// Set bundles one extractor per document kind plus the page renderer.
type Set struct {
	PDF      *PDFExtractor
	HTML     *HTMLExtractor
	Renderer Renderer
}

// NewSet wires the default extractors. pdftoppmPath and dpi configure page rendering.
func NewSet(pdftoppmPath string, dpi int) *Set {
	pdfx := NewPDFExtractor(pdftoppmPath, dpi)
	return &Set{
		PDF:      pdfx,
		HTML:     NewHTMLExtractor(),
		Renderer: pdfx,
	}
}

// For returns the extractor for kind.
func (s *Set) For(kind validate.DocumentKind) (Extractor, error) {
	switch kind {
	case validate.KindPDF:
		return s.PDF, nil
	case validate.KindHTML:
		return s.HTML, nil
	}
	return nil, eris.Errorf("document: no extractor for %q", kind)
}

// RendererFor returns the page renderer for kind, or a ValidationError when the
// kind cannot be rasterised.
func (s *Set) RendererFor(kind validate.DocumentKind, fileName string) (Renderer, error) {
	if kind != validate.KindPDF || s.Renderer == nil {
		return nil, validate.New("file", fileName, validate.ReasonFileType,
			"chart extraction needs a PDF document")
	}
	return s.Renderer, nil
}
