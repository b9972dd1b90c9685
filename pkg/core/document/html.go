package document

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

// pageMarker is spliced into the DOM at page breaks before text is read.
const pageMarker = "[[FINX_PAGE_BREAK]]"

var (
	pageBreakStyle = regexp.MustCompile(`(?i)page-break-(before|after)\s*:\s*always|break-(before|after)\s*:\s*page`)
	blankRuns      = regexp.MustCompile(`[ \t\x{00a0}]+`)
	blankLines     = regexp.MustCompile(`\n{3,}`)
)

// HTMLExtractor reads HTML filings. Pages are delimited by CSS page breaks,
// the convention used by EDGAR-style financial reports; a document without
// breaks is a single page.
type HTMLExtractor struct{}

// NewHTMLExtractor creates an HTMLExtractor.
func NewHTMLExtractor() *HTMLExtractor {
	return &HTMLExtractor{}
}

// PageCount returns the number of page-break delimited sections.
func (e *HTMLExtractor) PageCount(_ context.Context, path string) (int, error) {
	pages, err := e.split(path)
	if err != nil {
		return 0, err
	}
	return len(pages), nil
}

// ExtractText returns the text of each requested section.
func (e *HTMLExtractor) ExtractText(_ context.Context, path string, pages []int) ([]PageText, error) {
	all, err := e.split(path)
	if err != nil {
		return nil, err
	}
	out := make([]PageText, 0, len(pages))
	for _, n := range pages {
		if n < 1 || n > len(all) {
			return nil, eris.Errorf("document: page %d outside 1..%d", n, len(all))
		}
		out = append(out, PageText{Page: n, Text: all[n-1]})
	}
	return out, nil
}

func (e *HTMLExtractor) split(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "document: open html %s", filepath.Base(path))
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return nil, eris.Wrapf(err, "document: parse html %s", filepath.Base(path))
	}
	return splitPages(doc), nil
}

func splitPages(doc *goquery.Document) []string {
	doc.Find("script, style, noscript, head").Remove()

	// Block elements end with a newline so paragraphs don't run together.
	doc.Find("p, div, tr, br, li, h1, h2, h3, h4, h5, h6").Each(func(_ int, sel *goquery.Selection) {
		sel.AppendHtml("\n")
	})
	doc.Find("td, th").Each(func(_ int, sel *goquery.Selection) {
		sel.AppendHtml(" ")
	})

	doc.Find("[style]").Each(func(_ int, sel *goquery.Selection) {
		style, _ := sel.Attr("style")
		m := pageBreakStyle.FindStringSubmatch(style)
		if m == nil {
			return
		}
		if strings.EqualFold(m[1], "before") || strings.EqualFold(m[2], "before") {
			sel.BeforeHtml(pageMarker)
		} else {
			sel.AfterHtml(pageMarker)
		}
	})

	body := doc.Find("body")
	text := body.Text()
	if body.Length() == 0 {
		text = doc.Text()
	}

	var pages []string
	for _, chunk := range strings.Split(text, pageMarker) {
		clean := normalizeWhitespace(chunk)
		if clean == "" {
			continue
		}
		pages = append(pages, clean)
	}
	if len(pages) == 0 {
		pages = []string{""}
	}
	return pages
}

func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(blankRuns.ReplaceAllString(l, " "))
	}
	out := strings.Join(lines, "\n")
	out = blankLines.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}
