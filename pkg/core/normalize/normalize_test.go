package normalize

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"financial_extractor/pkg/models"
)

func TestStripFence(t *testing.T) {
	assert.Equal(t, `[1]`, StripFence("```json\n[1]\n```"))
	assert.Equal(t, `[1]`, StripFence("```\n[1]\n```"))
	assert.Equal(t, `[1]`, StripFence("  [1]  "))
	assert.Equal(t, `{"a":1}`, StripFence("```json {\"a\":1}```"))
}

func TestNumericFencedAndUnfencedAgree(t *testing.T) {
	body := `[{"name":"Revenue","value":1200.5,"unit":"USD m","year":2023,"period":"FY2023","page":4,"source":"Revenue was 1,200.5"}]`
	n := New(false)

	plain, err := n.Numeric(body, "STOP", "annual.pdf")
	require.NoError(t, err)
	fenced, err := n.Numeric("```json\n"+body+"\n```", "STOP", "annual.pdf")
	require.NoError(t, err)

	assert.Equal(t, plain, fenced)
	require.Len(t, plain, 1)
	assert.Equal(t, "Revenue", plain[0].Name)
	assert.Equal(t, models.NumberValue(1200.5), plain[0].Value)
	assert.Equal(t, 2023, plain[0].Year)
	assert.Equal(t, 4, plain[0].Page)
	assert.Equal(t, "annual.pdf", plain[0].File)
}

func TestNumericDefaults(t *testing.T) {
	recs, err := New(false).Numeric("```json\n[{\"name\":\"X\"}]\n```", "", "q3.pdf")
	require.NoError(t, err)
	require.Len(t, recs, 1)

	r := recs[0]
	assert.Equal(t, "X", r.Name)
	assert.Equal(t, models.NAValue(), r.Value)
	assert.Equal(t, 0, r.Year)
	assert.Equal(t, 0, r.Page)
	assert.Equal(t, models.NotAvailable, r.Period)
	assert.Equal(t, models.NotAvailable, r.Source)
	assert.Equal(t, "", r.Unit)
	assert.Equal(t, "q3.pdf", r.File)
}

func TestCoerceNumericLooseFields(t *testing.T) {
	long := strings.Repeat("é", 400)
	r := CoerceNumeric(map[string]any{
		"name":   "",
		"value":  "1,234",
		"year":   "2022 restated",
		"page":   "-3",
		"source": long,
		"file":   "other.pdf",
	}, "caller.pdf")

	assert.Equal(t, models.NotAvailable, r.Name)
	assert.Equal(t, models.TextValue("1,234"), r.Value)
	assert.Equal(t, 2022, r.Year)
	assert.Equal(t, 0, r.Page)
	assert.Equal(t, models.MaxSourceSnippet, len([]rune(r.Source)))
	assert.Equal(t, "other.pdf", r.File)
}

func TestNumericParseError(t *testing.T) {
	raw := "Sorry, I could not find any figures. " + strings.Repeat("x", 600)
	_, err := New(false).Numeric(raw, "length", "a.pdf")

	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "length", perr.StopReason)
	assert.Len(t, []rune(perr.Sample), maxSample)
	assert.True(t, strings.HasPrefix(perr.Sample, "Sorry"))
	assert.Contains(t, err.Error(), "stop reason length")
}

func TestNumericShapeError(t *testing.T) {
	_, err := New(false).Numeric(`{"name":"Revenue"}`, "", "a.pdf")

	var serr *ShapeError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "an object", serr.Got)

	_, err = New(false).Numeric(`{"records":[{"name":"A"}],"note":"two fields"}`, "", "a.pdf")
	assert.True(t, errors.As(err, &serr))
}

func TestNumericUnwrapsSingleArrayObject(t *testing.T) {
	recs, err := New(false).Numeric(`{"records":[{"name":"Revenue","value":10,"year":2024}]}`, "stop", "a.pdf")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Revenue", recs[0].Name)
	assert.Equal(t, models.NumberValue(10), recs[0].Value)
	assert.Equal(t, "a.pdf", recs[0].File)
}

func TestNumericSkipsNonObjectElements(t *testing.T) {
	recs, err := New(false).Numeric(`[1, "Revenue", {"name":"EBIT","value":"5"}, null]`, "", "a.pdf")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "EBIT", recs[0].Name)

	recs, err = New(false).Numeric(`[1, 2]`, "", "a.pdf")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestLenientRecoversTrailingComma(t *testing.T) {
	raw := `[{"name": "Net income", "value": 10,}]`

	_, err := New(false).Numeric(raw, "", "a.pdf")
	var perr *ParseError
	require.True(t, errors.As(err, &perr))

	recs, err := New(true).Numeric(raw, "", "a.pdf")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Net income", recs[0].Name)
	assert.True(t, recs[0].Value.IsNumeric())
}

func TestCharts(t *testing.T) {
	raw := `{"charts":[
		{"title":"Revenue by segment","pageNumber":9,"boundingBox":{"x":10,"y":20,"width":300,"height":200}},
		{"title":"   "},
		{"description":"no title"},
		{"id":"keep-me","title":"Headcount"}
	]}`
	charts, err := New(false).Charts(raw, "STOP", "deck.pdf", 3)
	require.NoError(t, err)
	require.Len(t, charts, 2)

	assert.Equal(t, "Revenue by segment", charts[0].Title)
	assert.Equal(t, 3, charts[0].PageNumber)
	assert.Equal(t, "deck.pdf", charts[0].File)
	assert.NotEmpty(t, charts[0].ID)
	require.NotNil(t, charts[0].BoundingBox)
	assert.Equal(t, models.BoundingBox{X: 10, Y: 20, Width: 300, Height: 200}, *charts[0].BoundingBox)

	assert.Equal(t, "keep-me", charts[1].ID)
	assert.Nil(t, charts[1].BoundingBox)
}

func TestChartsPageFallback(t *testing.T) {
	rec, ok := CoerceChart(map[string]any{"title": "Margin", "page": "7"}, "a.pdf", 0)
	require.True(t, ok)
	assert.Equal(t, 7, rec.PageNumber)

	rec, ok = CoerceChart(map[string]any{"title": "Margin"}, "a.pdf", 0)
	require.True(t, ok)
	assert.Equal(t, 1, rec.PageNumber)
}

func TestChartsSkipsNonObjectElements(t *testing.T) {
	charts, err := New(false).Charts(`{"charts":["Revenue", {"title":"Mix"}]}`, "", "a.pdf", 2)
	require.NoError(t, err)
	require.Len(t, charts, 1)
	assert.Equal(t, "Mix", charts[0].Title)
}

func TestChartsShapeError(t *testing.T) {
	_, err := New(false).Charts(`[{"title":"x"}]`, "", "a.pdf", 1)
	var serr *ShapeError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "an array", serr.Got)
}

func TestTemplate(t *testing.T) {
	raw := "```json\n" + `{
		"filledTemplate": "Revenue was {{1}} in {{2}}.",
		"values": [
			{"placeholder": "{{1}}", "value": "1,200", "source": {"name": "Revenue", "file": "a.pdf", "page": 4, "period": "FY2023", "sourceText": "Revenue 1,200"}},
			{"placeholder": "{{2}}", "value": null}
		]
	}` + "\n```"
	resp, err := New(false).Template(raw, "")
	require.NoError(t, err)

	assert.Equal(t, "Revenue was {{1}} in {{2}}.", resp.FilledTemplate)
	require.Len(t, resp.Values, 2)
	assert.Equal(t, "1,200", resp.Values[0].Value)
	assert.Equal(t, 4, resp.Values[0].Source.Page)
	assert.Equal(t, "a.pdf", resp.Values[0].Source.File)
	assert.Equal(t, models.NotAvailable, resp.Values[1].Value)
}

func TestTemplateShapeError(t *testing.T) {
	_, err := New(false).Template(`{"values": []}`, "")
	var serr *ShapeError
	assert.True(t, errors.As(err, &serr))
}

func TestParseValue(t *testing.T) {
	cases := []struct {
		raw  string
		want models.Value
	}{
		{"1,234.5", models.NumberValue(1234.5)},
		{"$ -12.0m", models.NumberValue(-12)},
		{"(3.2%)", models.NumberValue(3.2)},
		{"12.5.3", models.NumberValue(12.5)},
		{".75", models.NumberValue(0.75)},
		{"N/A", models.NAValue()},
		{"--", models.NAValue()},
		{"", models.NAValue()},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseValue(tc.raw))
		})
	}
}

func TestCoerceValues(t *testing.T) {
	recs := []models.NumericRecord{
		{Name: "a", Value: models.NumberValue(5)},
		{Name: "b", Value: models.TextValue("USD 1,000")},
		{Name: "c", Value: models.TextValue("not disclosed")},
	}
	out := CoerceValues(recs)

	assert.Equal(t, models.NumberValue(5), out[0].Value)
	assert.Equal(t, models.NumberValue(1000), out[1].Value)
	assert.Equal(t, models.NAValue(), out[2].Value)
}
