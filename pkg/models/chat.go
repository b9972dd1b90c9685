package models

import (
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Sender identifies who wrote a chat message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// ChatMessage is one immutable entry of the session chat log.
type ChatMessage struct {
	ID         string                      `json:"id"`
	Sender     Sender                      `json:"sender"`
	Text       string                      `json:"text"`
	HTML       string                      `json:"html,omitempty"` // rendered Markdown of assistant answers
	Structured *StructuredTemplateResponse `json:"structured,omitempty"`
	IsError    bool                        `json:"isError,omitempty"`
	Timestamp  time.Time                   `json:"timestamp"`
}

// NewChatMessage stamps a message with a fresh id and the current time.
func NewChatMessage(sender Sender, text string) ChatMessage {
	return ChatMessage{
		ID:        uuid.New().String(),
		Sender:    sender,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}
}

// TemplateSource is the provenance of one filled template value.
type TemplateSource struct {
	Name       string `json:"name"`
	File       string `json:"file"`
	Page       int    `json:"page"`
	Period     string `json:"period"`
	SourceText string `json:"sourceText"`
}

// TemplateValue fills one placeholder.
type TemplateValue struct {
	Placeholder string         `json:"placeholder"`
	Value       string         `json:"value"`
	Source      TemplateSource `json:"source"`
}

// StructuredTemplateResponse is the template-fill answer of the model.
type StructuredTemplateResponse struct {
	FilledTemplate string          `json:"filledTemplate"`
	Values         []TemplateValue `json:"values"`
}

// placeholderPattern matches positional tokens such as {{1}}.
var placeholderPattern = regexp.MustCompile(`\{\{\s*(\d+)\s*\}\}`)

// PlaceholderToken renders the canonical token for position n.
func PlaceholderToken(n int) string {
	return "{{" + strconv.Itoa(n) + "}}"
}

// ResolvedPlaceholder pairs a token found in the filled template with its value.
type ResolvedPlaceholder struct {
	Token string
	Value *TemplateValue // nil when not found
}

// Found reports whether exactly one value backs the token.
func (r ResolvedPlaceholder) Found() bool {
	return r.Value != nil
}

// Placeholders lists the tokens of FilledTemplate in order of first appearance.
func (s *StructuredTemplateResponse) Placeholders() []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range placeholderPattern.FindAllStringSubmatch(s.FilledTemplate, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		tok := PlaceholderToken(n)
		if !seen[tok] {
			seen[tok] = true
			out = append(out, tok)
		}
	}
	return out
}

// Resolve pairs every token with its value. A token with zero or several
// matching entries in Values resolves as not found.
func (s *StructuredTemplateResponse) Resolve() []ResolvedPlaceholder {
	counts := make(map[string]int)
	index := make(map[string]int)
	for i, v := range s.Values {
		tok := canonicalToken(v.Placeholder)
		counts[tok]++
		index[tok] = i
	}
	tokens := s.Placeholders()
	out := make([]ResolvedPlaceholder, 0, len(tokens))
	for _, tok := range tokens {
		rp := ResolvedPlaceholder{Token: tok}
		if counts[tok] == 1 {
			v := s.Values[index[tok]]
			rp.Value = &v
		}
		out = append(out, rp)
	}
	return out
}

// Fill substitutes every resolved token in FilledTemplate with its value.
// Unresolved tokens are left in place so the reader can see what is missing.
func (s *StructuredTemplateResponse) Fill() string {
	values := make(map[string]string)
	for _, rp := range s.Resolve() {
		if rp.Found() {
			values[rp.Token] = rp.Value.Value
		}
	}
	return placeholderPattern.ReplaceAllStringFunc(s.FilledTemplate, func(tok string) string {
		if v, ok := values[canonicalToken(tok)]; ok {
			return v
		}
		return tok
	})
}

// canonicalToken maps "{{ 3 }}", "{{3}}" and "3" to "{{3}}".
func canonicalToken(p string) string {
	if m := placeholderPattern.FindStringSubmatch(p); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return PlaceholderToken(n)
		}
	}
	if n, err := strconv.Atoi(p); err == nil {
		return PlaceholderToken(n)
	}
	return p
}
