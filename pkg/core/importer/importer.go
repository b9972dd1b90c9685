// Package importer turns uploaded JSON files into data sources.
//
// Two families of files are accepted: the canonical envelope
// {"name", "dataType", "data"} written by the exporter, and the legacy bare
// arrays older tools produced. Classification looks at the top level and the
// first array element only; later elements are converted without validation.
package importer

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"financial_extractor/pkg/core/normalize"
	"financial_extractor/pkg/core/utils"
	"financial_extractor/pkg/core/validate"
	"financial_extractor/pkg/models"
)

// Shape is the classification of an uploaded JSON value.
type Shape int

const (
	Unrecognized Shape = iota
	Canonical
	Empty
	LegacyNumeric
	LegacyChart
)

func (s Shape) String() string {
	switch s {
	case Canonical:
		return "canonical"
	case Empty:
		return "empty"
	case LegacyNumeric:
		return "legacy-numeric"
	case LegacyChart:
		return "legacy-chart"
	}
	return "unrecognized"
}

// expectedShapes is reported back when nothing matches.
const expectedShapes = `an object with "name", "dataType" ("numerical" or "chart") and a "data" array, ` +
	`or an array whose first element has "value" and "year" (numeric) or "title" and "pageNumber"/"page" (charts)`

// UnrecognizedFormatError means the JSON parsed but matched no known shape.
type UnrecognizedFormatError struct {
	File     string
	Expected string
}

func (e *UnrecognizedFormatError) Error() string {
	return fmt.Sprintf("unrecognized data format in %s: expected %s", e.File, e.Expected)
}

// =============================================================================
// CLASSIFICATION
// =============================================================================

type matcher struct {
	shape Shape
	match func(v any) bool
}

// Evaluated in order; the first match wins.
var matchers = []matcher{
	{Canonical, isCanonical},
	{Empty, isEmptyArray},
	{LegacyNumeric, firstElementHas([]string{"value"}, []string{"year"})},
	{LegacyChart, firstElementHas([]string{"title"}, []string{"pageNumber", "page"})},
}

// Classify returns the shape of a decoded JSON value.
func Classify(v any) Shape {
	for _, m := range matchers {
		if m.match(v) {
			return m.shape
		}
	}
	return Unrecognized
}

func isCanonical(v any) bool {
	obj, ok := v.(map[string]any)
	if !ok {
		return false
	}
	if _, ok := obj["name"].(string); !ok {
		return false
	}
	dt, ok := obj["dataType"].(string)
	if !ok {
		return false
	}
	if _, ok := models.ParseDataType(dt); !ok {
		return false
	}
	_, ok = obj["data"].([]any)
	return ok
}

func isEmptyArray(v any) bool {
	arr, ok := v.([]any)
	return ok && len(arr) == 0
}

// firstElementHas matches a non-empty array whose first element is an object
// holding at least one key from every group.
func firstElementHas(groups ...[]string) func(any) bool {
	return func(v any) bool {
		arr, ok := v.([]any)
		if !ok || len(arr) == 0 {
			return false
		}
		first, ok := arr[0].(map[string]any)
		if !ok {
			return false
		}
		for _, keys := range groups {
			if !hasAny(first, keys) {
				return false
			}
		}
		return true
	}
}

func hasAny(m map[string]any, keys []string) bool {
	for _, k := range keys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}

// =============================================================================
// IMPORT
// =============================================================================

// Import decodes data and converts it into a new imported DataSource.
// Bytes that are not JSON fail with a *validate.ValidationError.
func Import(data []byte, fileName string) (*models.DataSource, error) {
	v, err := utils.DecodeStrict(string(data))
	if err != nil {
		return nil, validate.New("file", fileName, validate.ReasonMalformed, "file is not valid JSON: %v", err)
	}
	return ImportValue(v, fileName)
}

// ImportValue converts an already decoded JSON value.
func ImportValue(v any, fileName string) (*models.DataSource, error) {
	fileName = filepath.Base(fileName)
	shape := Classify(v)

	var src *models.DataSource
	switch shape {
	case Canonical:
		src = fromEnvelope(v.(map[string]any), fileName)
	case Empty:
		src = models.NewNumericSource(baseName(fileName), models.OriginImported, nil)
	case LegacyNumeric:
		src = models.NewNumericSource(baseName(fileName), models.OriginImported, numericRecords(v.([]any), fileName))
	case LegacyChart:
		src = models.NewChartSource(baseName(fileName)+" (Charts)", models.OriginImported, chartRecords(v.([]any), fileName))
	default:
		zap.L().Info("import rejected", zap.String("file", fileName))
		return nil, &UnrecognizedFormatError{File: fileName, Expected: expectedShapes}
	}

	zap.L().Info("import classified",
		zap.String("file", fileName),
		zap.Stringer("shape", shape),
		zap.String("data_type", string(src.DataType)),
		zap.Int("records", src.Len()),
	)
	return src, nil
}

func fromEnvelope(obj map[string]any, fileName string) *models.DataSource {
	name := strings.TrimSpace(obj["name"].(string))
	if name == "" {
		name = baseName(fileName)
	}
	dt, _ := models.ParseDataType(obj["dataType"].(string))
	items := obj["data"].([]any)

	if dt == models.DataTypeChart {
		return models.NewChartSource(name, models.OriginImported, chartRecords(items, fileName))
	}
	return models.NewNumericSource(name, models.OriginImported, numericRecords(items, fileName))
}

func numericRecords(items []any, fileName string) []models.NumericRecord {
	out := make([]models.NumericRecord, 0, len(items))
	for _, item := range items {
		out = append(out, normalize.CoerceNumeric(asObject(item), fileName))
	}
	return out
}

func chartRecords(items []any, fileName string) []models.ChartRecord {
	out := make([]models.ChartRecord, 0, len(items))
	for _, item := range items {
		rec, _ := normalize.CoerceChart(asObject(item), fileName, 0)
		out = append(out, rec)
	}
	return out
}

// asObject treats anything that is not an object as an empty one, so the
// element still comes through with default fields.
func asObject(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

// baseName strips directory and extension: "reports/q1.json" -> "q1".
func baseName(fileName string) string {
	base := filepath.Base(fileName)
	if stem := strings.TrimSuffix(base, filepath.Ext(base)); stem != "" {
		return stem
	}
	return base
}
