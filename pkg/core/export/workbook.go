package export

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"financial_extractor/pkg/models"
)

const maxSheetName = 31

var (
	numericHeaders = []string{"Name", "Subcategory", "Value", "Unit", "Year", "Period", "Page", "Source", "File", "Bank", "Document Type"}
	chartHeaders   = []string{"ID", "Page", "Title", "File", "Bounding Box"}
)

// Workbook writes one sheet per source. Numeric values go in as numbers,
// "N/A" stays text. Chart sheets list metadata only.
func Workbook(sources []*models.DataSource) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const overview = "Sources"
	if err := f.SetSheetName("Sheet1", overview); err != nil {
		return nil, eris.Wrap(err, "rename default sheet")
	}
	writeRow(f, overview, 1, []any{"Sheet", "Name", "Data Type", "Origin", "Records"})

	used := map[string]bool{strings.ToLower(overview): true}
	for i, src := range sources {
		sheet := sheetName(used, src.Name)
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, eris.Wrapf(err, "create sheet %s", sheet)
		}
		writeRow(f, overview, i+2, []any{sheet, src.Name, string(src.DataType), string(src.Type), src.Len()})

		if src.DataType == models.DataTypeChart {
			writeCharts(f, sheet, src.Charts)
		} else {
			writeNumeric(f, sheet, src.Numeric)
		}
	}

	_ = f.SetColWidth(overview, "A", "B", 32)
	_ = f.SetColWidth(overview, "C", "E", 12)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, eris.Wrap(err, "xlsx write")
	}
	zap.L().Info("workbook exported", zap.Int("sources", len(sources)), zap.Int("bytes", buf.Len()))
	return buf.Bytes(), nil
}

func writeNumeric(f *excelize.File, sheet string, records []models.NumericRecord) {
	writeRow(f, sheet, 1, toAny(numericHeaders))
	for i, r := range records {
		var value any = r.Value.String()
		if v, ok := r.Value.Float(); ok {
			value = v
		}
		writeRow(f, sheet, i+2, []any{
			r.Name, r.Subcategory, value, r.Unit, r.Year, r.Period, r.Page, r.Source, r.File, r.BankName, r.DocumentType,
		})
	}
	_ = f.SetColWidth(sheet, "A", "B", 28)
	_ = f.SetColWidth(sheet, "H", "H", 60)
}

func writeCharts(f *excelize.File, sheet string, charts []models.ChartRecord) {
	writeRow(f, sheet, 1, toAny(chartHeaders))
	for i, c := range charts {
		box := ""
		if c.BoundingBox != nil {
			b := c.BoundingBox
			box = fmt.Sprintf("%d,%d %dx%d", b.X, b.Y, b.Width, b.Height)
		}
		writeRow(f, sheet, i+2, []any{c.ID, c.PageNumber, c.Title, c.File, box})
	}
	_ = f.SetColWidth(sheet, "A", "A", 38)
	_ = f.SetColWidth(sheet, "C", "C", 48)
}

func writeRow(f *excelize.File, sheet string, row int, values []any) {
	for col, v := range values {
		cell, _ := excelize.CoordinatesToCellName(col+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// sheetName derives a unique, Excel-legal sheet name (case-insensitive,
// at most 31 characters).
func sheetName(used map[string]bool, name string) string {
	base := SanitizeFileName(name)
	if len(base) > maxSheetName {
		base = base[:maxSheetName]
	}
	candidate := base
	for n := 2; used[strings.ToLower(candidate)]; n++ {
		suffix := fmt.Sprintf("_%d", n)
		candidate = base[:min(len(base), maxSheetName-len(suffix))] + suffix
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}
