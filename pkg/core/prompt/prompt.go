// Package prompt provides the prompt library for extraction and chat calls.
// Templates are YAML files embedded in the binary; a directory of YAML files
// can override them at runtime without a rebuild.
package prompt

import "financial_extractor/pkg/core/llm"

// PromptTemplate represents a reusable prompt with metadata
type PromptTemplate struct {
	ID             string           `yaml:"id"`                   // Unique identifier (e.g., "extraction.numeric")
	Name           string           `yaml:"name"`                 // Human-readable name
	Category       string           `yaml:"category"`             // extraction or chat
	Description    string           `yaml:"description"`          // Description of prompt purpose
	SystemPrompt   string           `yaml:"system_prompt"`        // The instruction section, never truncated
	UserPromptTmpl string           `yaml:"user_prompt_template"` // Go template for user prompt
	JSON           bool             `yaml:"json"`                 // Ask the provider for a JSON-only answer
	Variables      []PromptVariable `yaml:"variables"`            // Variables used in template
	Version        string           `yaml:"version"`              // Version for tracking changes
}

// PromptVariable defines a variable used in a prompt template
type PromptVariable struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Required    bool   `yaml:"required"`
}

// PromptExecutionContext holds runtime values for prompt execution
type PromptExecutionContext struct {
	Variables map[string]any
}

// NewContext creates a new execution context
func NewContext() *PromptExecutionContext {
	return &PromptExecutionContext{
		Variables: make(map[string]any),
	}
}

// Set adds a variable to the context
func (c *PromptExecutionContext) Set(key string, value any) *PromptExecutionContext {
	c.Variables[key] = value
	return c
}

// Prompt is a fully assembled provider request body.
type Prompt struct {
	System    string
	User      string
	Images    []llm.Image
	JSON      bool
	Truncated bool
}

// Request converts the prompt into a provider request.
func (p Prompt) Request() llm.Request {
	return llm.Request{
		System: p.System,
		Prompt: p.User,
		Images: p.Images,
		JSON:   p.JSON,
	}
}

// PromptIDs contains all known prompt identifiers
var PromptIDs = struct {
	ExtractionNumeric string
	ExtractionChart   string
	ChatQA            string
	ChatTemplate      string
}{
	ExtractionNumeric: "extraction.numeric",
	ExtractionChart:   "extraction.chart",
	ChatQA:            "chat.qa",
	ChatTemplate:      "chat.template",
}
