// Package normalize turns raw model output into the canonical record schema.
//
// Parsing is strict by default: text that is not JSON fails with ParseError and
// a top level of the wrong shape fails with ShapeError. Once the shape is right,
// per-field coercion never fails; every field has a deterministic default.
package normalize

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"financial_extractor/pkg/core/utils"
	"financial_extractor/pkg/models"
)

// Normalizer parses model output. Lenient enables json-repair and Hjson
// recovery when the strict parse fails.
type Normalizer struct {
	Lenient bool
}

// New creates a Normalizer.
func New(lenient bool) *Normalizer {
	return &Normalizer{Lenient: lenient}
}

var fencePattern = regexp.MustCompile("(?s)^```[A-Za-z0-9_-]*[ \t]*\r?\n?(.*?)\r?\n?```$")

// StripFence removes one enclosing fenced code block (```json ... ``` or
// ``` ... ```). Text without an enclosing fence is returned unchanged apart
// from surrounding whitespace.
func StripFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if m := fencePattern.FindStringSubmatch(trimmed); m != nil {
		return strings.TrimSpace(m[1])
	}
	return trimmed
}

// decode strips the fence and parses JSON.
func (n *Normalizer) decode(raw, stopReason string) (any, error) {
	body := StripFence(raw)

	v, err := utils.DecodeStrict(body)
	if err == nil {
		return v, nil
	}
	if !n.Lenient {
		return nil, &ParseError{Sample: sample(body), StopReason: stopReason, Cause: err}
	}

	v, strategy, lerr := utils.SmartParse(body)
	if lerr != nil {
		return nil, &ParseError{Sample: sample(body), StopReason: stopReason, Cause: err}
	}
	zap.L().Warn("model output needed lenient parsing",
		zap.String("strategy", strategy),
		zap.String("stop_reason", stopReason),
		zap.Error(err),
	)
	return v, nil
}

// Numeric parses a document-analysis answer: a JSON array of record objects.
// Backends in JSON-object mode cannot answer with a bare array, so an object
// whose only field is an array ({"records": [...]}) stands in for it.
// fileName fills records that do not name their file. Values are left as the
// model produced them; run CoerceValues afterwards for numeric values.
func (n *Normalizer) Numeric(raw, stopReason, fileName string) ([]models.NumericRecord, error) {
	v, err := n.decode(raw, stopReason)
	if err != nil {
		return nil, err
	}
	v = unwrapSingleArray(v)
	if err := numericShape.check(v); err != nil {
		return nil, err
	}

	items := v.([]any)
	out := make([]models.NumericRecord, 0, len(items))
	skipped := 0
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			skipped++
			continue
		}
		out = append(out, CoerceNumeric(m, fileName))
	}
	if skipped > 0 {
		zap.L().Warn("skipped non-object records",
			zap.String("file", fileName),
			zap.Int("skipped", skipped),
		)
	}
	return out, nil
}

// unwrapSingleArray returns the array held by a one-field object, or v as is.
func unwrapSingleArray(v any) any {
	obj, ok := v.(map[string]any)
	if !ok || len(obj) != 1 {
		return v
	}
	for _, field := range obj {
		if arr, ok := field.([]any); ok {
			return arr
		}
	}
	return v
}

// Charts parses a chart-analysis answer ({"charts": [...]}) for one page.
// Entries without a usable title are dropped.
func (n *Normalizer) Charts(raw, stopReason, fileName string, page int) ([]models.ChartRecord, error) {
	v, err := n.decode(raw, stopReason)
	if err != nil {
		return nil, err
	}
	if err := chartShape.check(v); err != nil {
		return nil, err
	}

	items := v.(map[string]any)["charts"].([]any)
	out := make([]models.ChartRecord, 0, len(items))
	dropped := 0
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			dropped++
			continue
		}
		rec, ok := CoerceChart(m, fileName, page)
		if !ok {
			dropped++
			continue
		}
		out = append(out, rec)
	}
	if dropped > 0 {
		zap.L().Debug("dropped untitled or malformed charts",
			zap.String("file", fileName),
			zap.Int("page", page),
			zap.Int("dropped", dropped),
		)
	}
	return out, nil
}

// Template parses a template-fill answer.
func (n *Normalizer) Template(raw, stopReason string) (*models.StructuredTemplateResponse, error) {
	v, err := n.decode(raw, stopReason)
	if err != nil {
		return nil, err
	}
	if err := templateShape.check(v); err != nil {
		return nil, err
	}

	obj := v.(map[string]any)
	resp := &models.StructuredTemplateResponse{
		FilledTemplate: stringField(obj, "filledTemplate"),
		Values:         []models.TemplateValue{},
	}
	if items, ok := obj["values"].([]any); ok {
		for _, item := range items {
			resp.Values = append(resp.Values, coerceTemplateValue(item.(map[string]any)))
		}
	}
	return resp, nil
}
