// Package export serializes data sources into the canonical envelope and
// bundles several of them into a ZIP archive or an XLSX workbook.
package export

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"financial_extractor/pkg/models"
)

// Options tune a single-source export.
type Options struct {
	// MetadataOnly drops chart image payloads.
	MetadataOnly bool
	// PageSuffix appends _p<min>-<max> for the pages present in the data.
	PageSuffix bool
}

// File is one exported file.
type File struct {
	Name    string
	Content []byte
}

// Envelope is the canonical import/export format.
type Envelope struct {
	Name     string          `json:"name"`
	DataType models.DataType `json:"dataType"`
	Data     any             `json:"data"`
}

// Source exports one source as canonical-envelope JSON.
func Source(src *models.DataSource, opts Options) (File, error) {
	content, err := marshalEnvelope(src, opts)
	if err != nil {
		return File{}, err
	}
	return File{Name: stem(src, opts) + ".json", Content: content}, nil
}

// Archive exports every source and zips the results. Nothing is skipped:
// empty sources become files with an empty data array.
func Archive(sources []*models.DataSource, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	used := make(Names, len(sources))

	for _, src := range sources {
		content, err := marshalEnvelope(src, opts)
		if err != nil {
			return nil, err
		}
		name := unique(used, stem(src, opts)+"_"+kindSuffix(src.DataType), ".json")

		w, err := zw.Create(name)
		if err != nil {
			return nil, eris.Wrapf(err, "create archive entry %s", name)
		}
		if _, err := w.Write(content); err != nil {
			return nil, eris.Wrapf(err, "write archive entry %s", name)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, eris.Wrap(err, "close archive")
	}

	zap.L().Info("archive exported", zap.Int("sources", len(sources)), zap.Int("bytes", buf.Len()))
	return buf.Bytes(), nil
}

func marshalEnvelope(src *models.DataSource, opts Options) ([]byte, error) {
	env := Envelope{Name: src.Name, DataType: src.DataType}
	if src.DataType == models.DataTypeChart {
		charts := make([]models.ChartRecord, 0, len(src.Charts))
		for _, c := range src.Charts {
			if opts.MetadataOnly {
				c = c.WithoutImage()
			}
			charts = append(charts, c)
		}
		env.Data = charts
	} else {
		numeric := src.Numeric
		if numeric == nil {
			numeric = []models.NumericRecord{}
		}
		env.Data = numeric
	}

	out, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return nil, eris.Wrapf(err, "serialize source %s", src.Name)
	}
	return out, nil
}

func kindSuffix(dt models.DataType) string {
	if dt == models.DataTypeChart {
		return "charts"
	}
	return "numerical"
}

func stem(src *models.DataSource, opts Options) string {
	name := SanitizeFileName(src.Name)
	if opts.PageSuffix {
		if lo, hi, ok := PageSpan(src); ok {
			name += fmt.Sprintf("_p%d-%d", lo, hi)
		}
	}
	return name
}

// PageSpan returns the lowest and highest page referenced by the records.
// Records without a page (0) are ignored.
func PageSpan(src *models.DataSource) (lo, hi int, ok bool) {
	visit := func(p int) {
		if p < 1 {
			return
		}
		if !ok || p < lo {
			lo = p
		}
		if !ok || p > hi {
			hi = p
		}
		ok = true
	}
	if src.DataType == models.DataTypeChart {
		for _, c := range src.Charts {
			visit(c.PageNumber)
		}
	} else {
		for _, r := range src.Numeric {
			visit(r.Page)
		}
	}
	return lo, hi, ok
}

var (
	unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)
	underscores = regexp.MustCompile(`_{2,}`)
)

const fallbackName = "data_source"

// SanitizeFileName folds accents ("Société" -> "Societe") and replaces every
// character outside [A-Za-z0-9_-] with an underscore.
func SanitizeFileName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	s := unsafeChars.ReplaceAllString(folded, "_")
	s = underscores.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return fallbackName
	}
	return s
}

// Names hands out file names that are unique within one export run.
type Names map[string]bool

// Claim returns name, or name with _2, _3, ... before the extension when
// name was already handed out.
func (n Names) Claim(name string) string {
	ext := filepath.Ext(name)
	return unique(n, strings.TrimSuffix(name, ext), ext)
}

// unique returns base+ext, or base_2+ext, base_3+ext, ... when taken.
func unique(used Names, base, ext string) string {
	name := base + ext
	for n := 2; used[name]; n++ {
		name = fmt.Sprintf("%s_%d%s", base, n, ext)
	}
	used[name] = true
	return name
}
