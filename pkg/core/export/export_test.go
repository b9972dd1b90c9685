package export

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"financial_extractor/pkg/core/importer"
	"financial_extractor/pkg/models"
)

func numericSource() *models.DataSource {
	return models.NewNumericSource("Société Générale Q1", models.OriginExtracted, []models.NumericRecord{
		{Name: "Revenue", Subcategory: "Retail", Value: models.NumberValue(1200.5), Unit: "EUR m", Year: 2023, Period: "Q1 2023", Page: 7, Source: "Revenue 1,200.5", File: "sg.pdf", BankName: "SG", DocumentType: "earnings release"},
		{Name: "CET1 ratio", Value: models.NAValue(), Year: 0, Period: "N/A", Page: 3, Source: "N/A", File: "sg.pdf"},
	})
}

func chartSource() *models.DataSource {
	return models.NewChartSource("Deck (Charts)", models.OriginExtracted, []models.ChartRecord{
		{ID: "c1", PageNumber: 4, Title: "Revenue trend", File: "deck.pdf", ImageData: "data:image/png;base64,AAAA", BoundingBox: &models.BoundingBox{X: 1, Y: 2, Width: 30, Height: 40}},
		{ID: "c2", PageNumber: 9, Title: "Cost split", File: "deck.pdf"},
	})
}

func TestSanitizeFileName(t *testing.T) {
	cases := map[string]string{
		"Société Générale Q1": "Societe_Generale_Q1",
		"Deck (Charts)":       "Deck_Charts",
		"a/b\\c:d":            "a_b_c_d",
		"  ":                  fallbackName,
		"年报":                  fallbackName,
		"keep-this_name":      "keep-this_name",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizeFileName(in), in)
	}
}

func TestSourceEnvelope(t *testing.T) {
	f, err := Source(numericSource(), Options{})
	require.NoError(t, err)
	assert.Equal(t, "Societe_Generale_Q1.json", f.Name)

	var env struct {
		Name     string            `json:"name"`
		DataType string            `json:"dataType"`
		Data     []json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(f.Content, &env))
	assert.Equal(t, "Société Générale Q1", env.Name)
	assert.Equal(t, "numerical", env.DataType)
	assert.Len(t, env.Data, 2)
	assert.Contains(t, string(env.Data[1]), `"value": "N/A"`)
}

func TestSourcePageSuffix(t *testing.T) {
	f, err := Source(chartSource(), Options{PageSuffix: true})
	require.NoError(t, err)
	assert.Equal(t, "Deck_Charts_p4-9.json", f.Name)

	empty := models.NewNumericSource("Empty", models.OriginImported, nil)
	f, err = Source(empty, Options{PageSuffix: true})
	require.NoError(t, err)
	assert.Equal(t, "Empty.json", f.Name)
	assert.Contains(t, string(f.Content), `"data": []`)
}

func TestSourceMetadataOnly(t *testing.T) {
	src := chartSource()
	full, err := Source(src, Options{})
	require.NoError(t, err)
	assert.Contains(t, string(full.Content), "base64")

	meta, err := Source(src, Options{MetadataOnly: true})
	require.NoError(t, err)
	assert.NotContains(t, string(meta.Content), "imageData")
	assert.Contains(t, string(meta.Content), "boundingBox")

	// the source itself is untouched
	assert.NotEmpty(t, src.Charts[0].ImageData)
}

func TestRoundTrip(t *testing.T) {
	for _, src := range []*models.DataSource{numericSource(), chartSource()} {
		f, err := Source(src, Options{})
		require.NoError(t, err)

		back, err := importer.Import(f.Content, f.Name)
		require.NoError(t, err)

		assert.NotEqual(t, src.ID, back.ID)
		assert.Equal(t, src.Name, back.Name)
		assert.Equal(t, src.DataType, back.DataType)
		assert.Equal(t, src.Records(), back.Records())
	}
}

func TestArchive(t *testing.T) {
	dup := models.NewNumericSource("Société Générale Q1", models.OriginImported, nil)
	data, err := Archive([]*models.DataSource{numericSource(), chartSource(), dup}, Options{MetadataOnly: true})
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	var entries []string
	contents := map[string]string{}
	for _, f := range zr.File {
		entries = append(entries, f.Name)
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		contents[f.Name] = string(b)
	}

	assert.Equal(t, []string{
		"Societe_Generale_Q1_numerical.json",
		"Deck_Charts_charts.json",
		"Societe_Generale_Q1_numerical_2.json",
	}, entries)
	assert.Contains(t, contents["Societe_Generale_Q1_numerical_2.json"], `"data": []`)
	assert.NotContains(t, contents["Deck_Charts_charts.json"], "imageData")
}

func TestWorkbook(t *testing.T) {
	data, err := Workbook([]*models.DataSource{numericSource(), chartSource()})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Sources", "Societe_Generale_Q1", "Deck_Charts"}, f.GetSheetList())

	name, err := f.GetCellValue("Societe_Generale_Q1", "A2")
	require.NoError(t, err)
	assert.Equal(t, "Revenue", name)

	value, err := f.GetCellValue("Societe_Generale_Q1", "C2")
	require.NoError(t, err)
	assert.Equal(t, "1200.5", value)

	na, err := f.GetCellValue("Societe_Generale_Q1", "C3")
	require.NoError(t, err)
	assert.Equal(t, "N/A", na)

	title, err := f.GetCellValue("Deck_Charts", "C3")
	require.NoError(t, err)
	assert.Equal(t, "Cost split", title)

	records, err := f.GetCellValue("Sources", "E2")
	require.NoError(t, err)
	assert.Equal(t, "2", records)
}

func TestSheetNameIsUniqueAndShort(t *testing.T) {
	used := map[string]bool{}
	long := "A very long data source name that exceeds the limit"
	first := sheetName(used, long)
	second := sheetName(used, long)

	assert.LessOrEqual(t, len(first), maxSheetName)
	assert.LessOrEqual(t, len(second), maxSheetName)
	assert.NotEqual(t, first, second)
	assert.True(t, len(second) > 2 && second[len(second)-2:] == "_2")
}

func TestNamesClaim(t *testing.T) {
	names := Names{}
	assert.Equal(t, "Q3.json", names.Claim("Q3.json"))
	assert.Equal(t, "Q3_2.json", names.Claim("Q3.json"))
	assert.Equal(t, "Q3_3.json", names.Claim("Q3.json"))
	assert.Equal(t, "notes", names.Claim("notes"))
	assert.Equal(t, "notes_2", names.Claim("notes"))
}
