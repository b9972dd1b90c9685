// Package query builds the model-facing context for chat questions from the
// registry contents and the recent conversation.
package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"financial_extractor/pkg/core/prompt"
	"financial_extractor/pkg/models"
)

// Mode selects what the question wants back.
type Mode string

const (
	// ModeQA is an open question answered in prose.
	ModeQA Mode = "qa"
	// ModeTemplate fills {{N}} placeholders with numeric facts.
	ModeTemplate Mode = "template"
)

// ParseMode maps user input to a Mode; anything unknown is open Q&A.
func ParseMode(s string) Mode {
	if strings.EqualFold(strings.TrimSpace(s), string(ModeTemplate)) {
		return ModeTemplate
	}
	return ModeQA
}

const (
	// MaxDataChars caps the serialized data bag.
	MaxDataChars = 150000
	// DataTruncatedMarker is appended when the bag is cut.
	DataTruncatedMarker = "\n...[data truncated]"
	// MaxHistoryTurns is how many prior messages are replayed.
	MaxHistoryTurns = 10
)

// Input is everything the builder looks at.
type Input struct {
	Mode     Mode
	Sources  []*models.DataSource
	Question string
	History  []models.ChatMessage
}

// Context is the rendered context for one question.
type Context struct {
	Mode          Mode
	Question      string
	DataJSON      string
	Truncated     bool
	SourceSummary string
	History       string
	SourceCount   int
}

// PromptID is the chat prompt matching the mode.
func (c Context) PromptID() string {
	if c.Mode == ModeTemplate {
		return prompt.PromptIDs.ChatTemplate
	}
	return prompt.PromptIDs.ChatQA
}

// Variables exposes the context to the chat prompt templates.
func (c Context) Variables() *prompt.PromptExecutionContext {
	return prompt.NewContext().
		Set("Sources", c.SourceSummary).
		Set("Data", c.DataJSON).
		Set("Truncated", c.Truncated).
		Set("History", c.History).
		Set("Question", c.Question)
}

// Build assembles the context. Template mode only sees numerical sources;
// Q&A sees numeric facts and charts in separate buckets. Chart image payloads
// are never sent.
func Build(in Input) (Context, error) {
	numeric := newBag()
	charts := newBag()
	var summary strings.Builder

	for _, src := range in.Sources {
		if src.DataType == models.DataTypeChart && in.Mode == ModeTemplate {
			continue
		}

		var key string
		var err error
		if src.DataType == models.DataTypeChart {
			stripped := make([]models.ChartRecord, len(src.Charts))
			for i, c := range src.Charts {
				stripped[i] = c.WithoutImage()
			}
			key, err = charts.add(src.Name, stripped)
		} else {
			key, err = numeric.add(src.Name, src.Numeric)
		}
		if err != nil {
			return Context{}, err
		}
		fmt.Fprintf(&summary, "- %s (%d items)\n", key, src.Len())
	}

	var data bytes.Buffer
	if in.Mode == ModeTemplate {
		data.WriteString(`{"numeric":`)
		numeric.writeTo(&data)
		data.WriteString(`}`)
	} else {
		data.WriteString(`{"numeric":`)
		numeric.writeTo(&data)
		data.WriteString(`,"charts":`)
		charts.writeTo(&data)
		data.WriteString(`}`)
	}

	dataJSON, truncated := prompt.Truncate(data.String(), MaxDataChars, DataTruncatedMarker)

	listing := strings.TrimRight(summary.String(), "\n")
	if listing == "" {
		listing = "(no data sources loaded)"
	}

	return Context{
		Mode:          in.Mode,
		Question:      in.Question,
		DataJSON:      dataJSON,
		Truncated:     truncated,
		SourceSummary: listing,
		History:       FormatHistory(in.History, in.Question),
		SourceCount:   numeric.len() + charts.len(),
	}, nil
}

// FormatHistory renders the last MaxHistoryTurns messages as speaker-labelled
// lines. A trailing user message equal to question is the question being
// asked and is left out.
func FormatHistory(history []models.ChatMessage, question string) string {
	if n := len(history); n > 0 {
		last := history[n-1]
		if last.Sender == models.SenderUser && last.Text == question {
			history = history[:n-1]
		}
	}
	if len(history) > MaxHistoryTurns {
		history = history[len(history)-MaxHistoryTurns:]
	}

	lines := make([]string, 0, len(history))
	for _, m := range history {
		speaker := "User"
		if m.Sender == models.SenderAssistant {
			speaker = "Assistant"
		}
		lines = append(lines, speaker+": "+m.Text)
	}
	return strings.Join(lines, "\n")
}

// =============================================================================
// ORDERED BAG
// =============================================================================

// bag is a JSON object that keeps insertion order and never drops a key:
// repeated names get " (2)", " (3)" suffixes.
type bag struct {
	keys   []string
	values []json.RawMessage
	seen   map[string]int
}

func newBag() *bag {
	return &bag{seen: make(map[string]int)}
}

func (b *bag) add(name string, records any) (string, error) {
	key := name
	for n := 2; b.has(key); n++ {
		key = fmt.Sprintf("%s (%d)", name, n)
	}
	raw, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("serialize %s: %w", name, err)
	}
	b.seen[key] = len(b.keys)
	b.keys = append(b.keys, key)
	b.values = append(b.values, raw)
	return key, nil
}

func (b *bag) has(key string) bool {
	_, ok := b.seen[key]
	return ok
}

func (b *bag) len() int {
	return len(b.keys)
}

func (b *bag) writeTo(buf *bytes.Buffer) {
	buf.WriteByte('{')
	for i, k := range b.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(k)
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(b.values[i])
	}
	buf.WriteByte('}')
}
