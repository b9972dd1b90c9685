package normalize

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"financial_extractor/pkg/models"
)

// CoerceNumeric maps one loosely-typed object onto a NumericRecord.
func CoerceNumeric(m map[string]any, fileName string) models.NumericRecord {
	return models.NumericRecord{
		Name:         orDefault(stringField(m, "name"), models.NotAvailable),
		Subcategory:  stringField(m, "subcategory"),
		Value:        rawValue(m["value"]),
		Unit:         stringField(m, "unit"),
		Year:         intLike(m["year"]),
		Period:       orDefault(stringField(m, "period"), models.NotAvailable),
		Page:         max(intLike(m["page"]), 0),
		Source:       truncateRunes(orDefault(stringField(m, "source"), models.NotAvailable), models.MaxSourceSnippet),
		File:         orDefault(stringField(m, "file"), fileName),
		BankName:     stringField(m, "bankName"),
		DocumentType: stringField(m, "documentType"),
	}
}

// CoerceChart maps one object onto a ChartRecord. ok is false when the title
// is empty or blank; model output drops such entries, imports keep them.
// page, when positive, is the page the model was shown and wins over any page
// the model reports.
func CoerceChart(m map[string]any, fileName string, page int) (rec models.ChartRecord, ok bool) {
	title := strings.TrimSpace(stringField(m, "title"))

	pageNumber := page
	if pageNumber < 1 {
		pageNumber = intLike(m["pageNumber"])
		if pageNumber < 1 {
			pageNumber = intLike(m["page"])
		}
		if pageNumber < 1 {
			pageNumber = 1
		}
	}

	rec = models.ChartRecord{
		ID:         orDefault(stringField(m, "id"), uuid.New().String()),
		PageNumber: pageNumber,
		Title:      title,
		File:       orDefault(stringField(m, "file"), fileName),
		ImageData:  stringField(m, "imageData"),
	}

	box, _ := m["boundingBox"].(map[string]any)
	if box == nil {
		box, _ = m["bbox"].(map[string]any)
	}
	if box != nil {
		b := models.BoundingBox{
			X:      intLike(box["x"]),
			Y:      intLike(box["y"]),
			Width:  intLike(box["width"]),
			Height: intLike(box["height"]),
		}
		if !b.Empty() {
			rec.BoundingBox = &b
		}
	}
	return rec, title != ""
}

func coerceTemplateValue(m map[string]any) models.TemplateValue {
	tv := models.TemplateValue{
		Placeholder: stringField(m, "placeholder"),
		Value:       orDefault(stringField(m, "value"), models.NotAvailable),
	}
	if src, ok := m["source"].(map[string]any); ok {
		tv.Source = models.TemplateSource{
			Name:       stringField(src, "name"),
			File:       stringField(src, "file"),
			Page:       max(intLike(src["page"]), 0),
			Period:     stringField(src, "period"),
			SourceText: truncateRunes(stringField(src, "sourceText"), models.MaxSourceSnippet),
		}
	}
	return tv
}

// =============================================================================
// VALUE POST-PROCESSING
// =============================================================================

var (
	nonNumeric  = regexp.MustCompile(`[^0-9.\-]`)
	floatPrefix = regexp.MustCompile(`^-?(\d+\.?\d*|\.\d+)`)
)

// ParseValue strips everything but digits, '.' and '-' and parses the longest
// leading float. Unparsable text yields "N/A".
func ParseValue(raw string) models.Value {
	cleaned := nonNumeric.ReplaceAllString(raw, "")
	m := floatPrefix.FindString(cleaned)
	if m == "" {
		return models.NAValue()
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return models.NAValue()
	}
	return models.NumberValue(f)
}

// CoerceValues rewrites every string value as a number, or "N/A" when no
// number can be read from it. The input slice is modified in place and returned.
func CoerceValues(records []models.NumericRecord) []models.NumericRecord {
	for i := range records {
		if !records[i].Value.IsNumeric() {
			records[i].Value = ParseValue(records[i].Value.Raw)
		}
	}
	return records
}

// =============================================================================
// FIELD HELPERS
// =============================================================================

func rawValue(v any) models.Value {
	switch t := v.(type) {
	case nil:
		return models.NAValue()
	case json.Number:
		f, err := t.Float64()
		if err != nil || math.IsInf(f, 0) {
			return models.TextValue(t.String())
		}
		return models.NumberValue(f)
	case float64:
		return models.NumberValue(t)
	case string:
		if strings.TrimSpace(t) == "" {
			return models.NAValue()
		}
		return models.TextValue(t)
	}
	return models.NAValue()
}

// stringField reads m[key] as text. Numbers are rendered, anything else is "".
func stringField(m map[string]any, key string) string {
	switch t := m[key].(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

// intLike reads integers the way a lenient UI would: numbers are truncated,
// strings are read up to the first non-digit after an optional sign, and
// anything unreadable is 0.
func intLike(v any) int {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return int(i)
		}
		f, err := t.Float64()
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0
		}
		return int(math.Trunc(f))
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0
		}
		return int(math.Trunc(t))
	case string:
		return parseIntPrefix(t)
	}
	return 0
}

func parseIntPrefix(s string) int {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digitsStart := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digitsStart {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
