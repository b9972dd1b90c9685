package query

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"financial_extractor/pkg/core/prompt"
	"financial_extractor/pkg/models"
)

func fixtureSources() []*models.DataSource {
	q1 := models.NewNumericSource("Q1", models.OriginExtracted, []models.NumericRecord{
		{Name: "Revenue", Value: models.NumberValue(100), Unit: "USD m", Year: 2023, Period: "Q1", Page: 2, Source: "Revenue 100", File: "q1.pdf"},
	})
	deck := models.NewChartSource("Deck", models.OriginExtracted, []models.ChartRecord{
		{ID: "c1", PageNumber: 3, Title: "Revenue trend", File: "deck.pdf", ImageData: "data:image/png;base64,AAAA"},
	})
	q1again := models.NewNumericSource("Q1", models.OriginImported, []models.NumericRecord{
		{Name: "Net income", Value: models.NAValue(), Period: "N/A", Source: "N/A", File: "q1b.pdf"},
	})
	return []*models.DataSource{q1, deck, q1again}
}

func TestBuildQA(t *testing.T) {
	ctx, err := Build(Input{Mode: ModeQA, Sources: fixtureSources(), Question: "What was revenue?"})
	require.NoError(t, err)

	assert.False(t, ctx.Truncated)
	assert.Equal(t, 3, ctx.SourceCount)
	assert.Equal(t, "- Q1 (1 items)\n- Deck (1 items)\n- Q1 (2) (1 items)", ctx.SourceSummary)
	assert.NotContains(t, ctx.DataJSON, "base64")

	var bag struct {
		Numeric map[string][]models.NumericRecord `json:"numeric"`
		Charts  map[string][]models.ChartRecord   `json:"charts"`
	}
	require.NoError(t, json.Unmarshal([]byte(ctx.DataJSON), &bag))
	assert.Len(t, bag.Numeric, 2)
	assert.Equal(t, "Net income", bag.Numeric["Q1 (2)"][0].Name)
	assert.Equal(t, "Revenue trend", bag.Charts["Deck"][0].Title)

	// insertion order is kept in the serialized text
	assert.Less(t, strings.Index(ctx.DataJSON, `"Q1"`), strings.Index(ctx.DataJSON, `"Q1 (2)"`))
	assert.Equal(t, prompt.PromptIDs.ChatQA, ctx.PromptID())
}

func TestBuildTemplateSkipsCharts(t *testing.T) {
	ctx, err := Build(Input{Mode: ModeTemplate, Sources: fixtureSources(), Question: "Revenue was {{1}}."})
	require.NoError(t, err)

	assert.NotContains(t, ctx.DataJSON, "charts")
	assert.NotContains(t, ctx.SourceSummary, "Deck")
	assert.Equal(t, 2, ctx.SourceCount)
	assert.Equal(t, prompt.PromptIDs.ChatTemplate, ctx.PromptID())
}

func TestBuildEmpty(t *testing.T) {
	ctx, err := Build(Input{Mode: ModeQA, Question: "anything?"})
	require.NoError(t, err)

	assert.Equal(t, `{"numeric":{},"charts":{}}`, ctx.DataJSON)
	assert.Equal(t, "(no data sources loaded)", ctx.SourceSummary)
}

func TestBuildTruncates(t *testing.T) {
	records := make([]models.NumericRecord, 0, 2000)
	for i := range 2000 {
		records = append(records, models.NumericRecord{
			Name: fmt.Sprintf("Metric %d", i), Value: models.NumberValue(float64(i)), Year: 2023,
			Period: "FY2023", Source: strings.Repeat("s", 100), File: "big.pdf",
		})
	}
	src := models.NewNumericSource("Big", models.OriginExtracted, records)

	ctx, err := Build(Input{Mode: ModeQA, Sources: []*models.DataSource{src}, Question: "q"})
	require.NoError(t, err)

	assert.True(t, ctx.Truncated)
	assert.True(t, strings.HasSuffix(ctx.DataJSON, DataTruncatedMarker))
	assert.Equal(t, MaxDataChars+len(DataTruncatedMarker), len(ctx.DataJSON))
	assert.True(t, strings.HasPrefix(ctx.DataJSON, `{"numeric":{"Big":[`))

	out, err := prompt.RenderUserPrompt(mustPrompt(t, ctx.PromptID()), ctx.Variables())
	require.NoError(t, err)
	assert.Contains(t, out, "truncated")
}

func mustPrompt(t *testing.T, id string) *prompt.PromptTemplate {
	t.Helper()
	pt, err := prompt.Get().GetPrompt(id)
	require.NoError(t, err)
	return pt
}

func TestFormatHistory(t *testing.T) {
	var history []models.ChatMessage
	for i := range 12 {
		history = append(history,
			models.NewChatMessage(models.SenderUser, fmt.Sprintf("q%d", i)),
			models.NewChatMessage(models.SenderAssistant, fmt.Sprintf("a%d", i)),
		)
	}
	history = append(history, models.NewChatMessage(models.SenderUser, "current"))

	out := FormatHistory(history, "current")
	lines := strings.Split(out, "\n")
	require.Len(t, lines, MaxHistoryTurns)
	assert.Equal(t, "User: q7", lines[0])
	assert.Equal(t, "Assistant: a11", lines[len(lines)-1])
	assert.NotContains(t, out, "current")

	assert.Equal(t, "", FormatHistory(nil, "q"))
	assert.Equal(t, "User: earlier", FormatHistory([]models.ChatMessage{models.NewChatMessage(models.SenderUser, "earlier")}, "now"))
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModeTemplate, ParseMode(" Template "))
	assert.Equal(t, ModeQA, ParseMode("qa"))
	assert.Equal(t, ModeQA, ParseMode(""))
}
