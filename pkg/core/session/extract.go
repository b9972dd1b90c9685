package session

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"financial_extractor/pkg/core/document"
	"financial_extractor/pkg/core/llm"
	"financial_extractor/pkg/core/normalize"
	"financial_extractor/pkg/core/pagerange"
	"financial_extractor/pkg/core/prompt"
	"financial_extractor/pkg/core/validate"
	"financial_extractor/pkg/models"
)

// Document is an uploaded file on local disk. FileName is the name the user
// uploaded it under; it names the resulting source and fills record files.
type Document struct {
	Path     string
	FileName string
}

// ExtractResult describes one extraction run.
type ExtractResult struct {
	Source       *models.DataSource `json:"source"`
	Pages        []int              `json:"pages"`
	SkippedPages []int              `json:"skippedPages,omitempty"`
	Truncated    bool               `json:"truncated"`
	StopReason   string             `json:"stopReason,omitempty"`
}

// ExtractNumeric runs document analysis over the selected pages and adds the
// resulting numerical source to the registry. On any error the registry is
// left unchanged.
func (c *Controller) ExtractNumeric(ctx context.Context, doc Document, rawPages string) (*ExtractResult, error) {
	provider, err := c.provider()
	if err != nil {
		return nil, err
	}
	kind, extractor, pages, err := c.open(ctx, doc, rawPages)
	if err != nil {
		return nil, err
	}

	texts, err := extractor.ExtractText(ctx, doc.Path, pages)
	if err != nil {
		return nil, eris.Wrapf(err, "extract text from %s", doc.FileName)
	}

	pt, err := c.prompts.GetPrompt(prompt.PromptIDs.ExtractionNumeric)
	if err != nil {
		return nil, err
	}
	p, err := prompt.BuildTextPrompt(pt, doc.FileName, texts)
	if err != nil {
		return nil, err
	}

	resp, err := call(ctx, provider, p.Request(), provider.GenerateText)
	if err != nil {
		return nil, err
	}

	records, err := c.normalizer.Numeric(resp.Text, resp.StopReason, doc.FileName)
	if err != nil {
		return nil, err
	}
	records = normalize.CoerceValues(records)

	src := models.NewNumericSource(sourceName(doc.FileName), models.OriginExtracted, records)
	c.registry.Add(src)

	zap.L().Info("numeric extraction complete",
		zap.String("file", doc.FileName),
		zap.String("kind", string(kind)),
		zap.String("pages", pagerange.Format(pages)),
		zap.Int("records", len(records)),
		zap.Bool("truncated", p.Truncated),
	)
	return &ExtractResult{
		Source:     src,
		Pages:      pages,
		Truncated:  p.Truncated,
		StopReason: resp.StopReason,
	}, nil
}

// ExtractCharts renders each selected page and asks the model for the charts
// on it, one page at a time. Pages that fail to render are skipped; a failed
// model call or unparsable answer aborts the run.
func (c *Controller) ExtractCharts(ctx context.Context, doc Document, rawPages string) (*ExtractResult, error) {
	provider, err := c.provider()
	if err != nil {
		return nil, err
	}
	mm, err := llm.RequireMultimodal(provider)
	if err != nil {
		return nil, err
	}

	kind, _, pages, err := c.open(ctx, doc, rawPages)
	if err != nil {
		return nil, err
	}
	renderer, err := c.docs.RendererFor(kind, doc.FileName)
	if err != nil {
		return nil, err
	}
	pt, err := c.prompts.GetPrompt(prompt.PromptIDs.ExtractionChart)
	if err != nil {
		return nil, err
	}

	result := &ExtractResult{Pages: pages}
	charts := []models.ChartRecord{}
	for _, page := range pages {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "chart extraction cancelled")
		}

		img, err := renderer.RenderPage(ctx, doc.Path, page)
		if err != nil {
			zap.L().Warn("page render failed, skipping",
				zap.String("file", doc.FileName),
				zap.Int("page", page),
				zap.Error(err),
			)
			result.SkippedPages = append(result.SkippedPages, page)
			continue
		}

		p, err := prompt.BuildChartPrompt(pt, doc.FileName, img)
		if err != nil {
			return nil, err
		}
		resp, err := call(ctx, mm, p.Request(), mm.GenerateMultimodal)
		if err != nil {
			return nil, err
		}
		found, err := c.normalizer.Charts(resp.Text, resp.StopReason, doc.FileName, page)
		if err != nil {
			return nil, err
		}
		for _, chart := range found {
			charts = append(charts, attachImage(chart, img))
		}
		result.StopReason = resp.StopReason
	}

	src := models.NewChartSource(sourceName(doc.FileName)+" (Charts)", models.OriginExtracted, charts)
	c.registry.Add(src)
	result.Source = src

	zap.L().Info("chart extraction complete",
		zap.String("file", doc.FileName),
		zap.String("pages", pagerange.Format(pages)),
		zap.Ints("skipped", result.SkippedPages),
		zap.Int("charts", len(charts)),
	)
	return result, nil
}

// open detects the document kind, counts pages and resolves the page selection.
func (c *Controller) open(ctx context.Context, doc Document, rawPages string) (validate.DocumentKind, document.Extractor, []int, error) {
	head, err := readHead(doc.Path)
	if err != nil {
		return "", nil, nil, err
	}
	kind, err := validate.DetectDocument(doc.FileName, head)
	if err != nil {
		return "", nil, nil, err
	}
	extractor, err := c.docs.For(kind)
	if err != nil {
		return "", nil, nil, err
	}
	count, err := extractor.PageCount(ctx, doc.Path)
	if err != nil {
		return "", nil, nil, eris.Wrapf(err, "count pages of %s", doc.FileName)
	}
	pages, err := pagerange.Parse(rawPages, count)
	if err != nil {
		return "", nil, nil, err
	}
	return kind, extractor, pages, nil
}

func readHead(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, eris.Wrapf(err, "read %s", path)
	}
	return head[:n], nil
}

// call submits one request and logs its outcome.
func call(ctx context.Context, p llm.Provider, req llm.Request, fn func(context.Context, llm.Request) (*llm.Response, error)) (*llm.Response, error) {
	start := time.Now()
	resp, err := fn(ctx, req)
	if err != nil {
		zap.L().Warn("provider call failed",
			zap.String("provider", p.Name()),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return nil, err
	}
	zap.L().Info("provider call complete",
		zap.String("provider", p.Name()),
		zap.Duration("elapsed", time.Since(start)),
		zap.String("stop_reason", resp.StopReason),
		zap.Int("chars", len(resp.Text)),
	)
	return resp, nil
}

// attachImage stores the chart raster: the reported box cropped out of the
// page when possible, the whole page otherwise.
func attachImage(chart models.ChartRecord, page *document.PageImage) models.ChartRecord {
	data, mimeType := page.Data, page.MIMEType
	if chart.BoundingBox != nil {
		if cropped, err := document.Crop(page, *chart.BoundingBox); err == nil {
			data, mimeType = cropped, "image/png"
		} else {
			zap.L().Debug("chart crop failed, keeping full page", zap.Int("page", page.Page), zap.Error(err))
		}
	}
	chart.ImageData = document.DataURL(mimeType, data)
	return chart
}

func sourceName(fileName string) string {
	base := filepath.Base(fileName)
	if stem := strings.TrimSuffix(base, filepath.Ext(base)); stem != "" {
		return stem
	}
	return base
}
