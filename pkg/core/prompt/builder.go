package prompt

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"financial_extractor/pkg/core/document"
	"financial_extractor/pkg/core/llm"
	"financial_extractor/pkg/core/pagerange"
)

// Size ceilings, in characters.
const (
	MaxPageChars   = 15000
	MaxPromptChars = 100000

	PageTruncatedMarker    = "\n...[page truncated]"
	ContentTruncatedMarker = "\n...[content truncated]"
)

// BuildTextPrompt assembles a text-only extraction prompt from page text.
// Each page is cut at MaxPageChars; the joined content is then cut so that
// instruction, rendered user header and content stay within MaxPromptChars.
// The instruction is never cut.
func BuildTextPrompt(pt *PromptTemplate, fileName string, pages []document.PageText) (Prompt, error) {
	var b strings.Builder
	truncated := false
	numbers := make([]int, 0, len(pages))
	for i, p := range pages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		text, cut := Truncate(p.Text, MaxPageChars, PageTruncatedMarker)
		truncated = truncated || cut
		fmt.Fprintf(&b, "--- Page %d ---\n%s", p.Page, text)
		numbers = append(numbers, p.Page)
	}

	vars := NewContext().
		Set("FileName", fileName).
		Set("Pages", pagerange.Format(numbers))
	header, err := RenderUserPrompt(pt, vars.Set("Content", ""))
	if err != nil {
		return Prompt{}, err
	}

	// The marker counts against the budget since Truncate appends it past the limit.
	budget := max(MaxPromptChars-
		utf8.RuneCountInString(pt.SystemPrompt)-
		utf8.RuneCountInString(header)-
		utf8.RuneCountInString(ContentTruncatedMarker), 0)
	content, cut := Truncate(b.String(), budget, ContentTruncatedMarker)
	truncated = truncated || cut

	user, err := RenderUserPrompt(pt, vars.Set("Content", content))
	if err != nil {
		return Prompt{}, err
	}

	return Prompt{
		System:    pt.SystemPrompt,
		User:      user,
		JSON:      pt.JSON,
		Truncated: truncated,
	}, nil
}

// BuildChartPrompt assembles a multimodal prompt: the chart instruction plus
// exactly one page image.
func BuildChartPrompt(pt *PromptTemplate, fileName string, page *document.PageImage) (Prompt, error) {
	user, err := RenderUserPrompt(pt, NewContext().
		Set("FileName", fileName).
		Set("Page", page.Page))
	if err != nil {
		return Prompt{}, err
	}

	return Prompt{
		System: pt.SystemPrompt,
		User:   user,
		Images: []llm.Image{{MIMEType: page.MIMEType, Data: page.Data}},
		JSON:   pt.JSON,
	}, nil
}

// Truncate keeps the first limit characters of s and appends marker when
// anything was cut. The cut never splits a multi-byte character.
func Truncate(s string, limit int, marker string) (string, bool) {
	if len(s) <= limit {
		return s, false
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i] + marker, true
		}
		n++
	}
	return s, false
}
