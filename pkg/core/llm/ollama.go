package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// OllamaProvider calls an unauthenticated local Ollama server. It is text-only,
// so it deliberately does not implement MultimodalProvider.
type OllamaProvider struct {
	BaseURL    string // default http://localhost:11434
	Model      string
	HTTPClient *http.Client
}

// Ensure interface compliance
var _ Provider = (*OllamaProvider)(nil)

const ollamaName = "ollama"

func (p *OllamaProvider) Name() string { return ollamaName }

type ollamaRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  bool           `json:"stream"`
	Format  string         `json:"format,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaResponse struct {
	Response   string `json:"response"`
	Done       bool   `json:"done"`
	DoneReason string `json:"done_reason"`
	Error      string `json:"error"`
}

func (p *OllamaProvider) GenerateText(ctx context.Context, req Request) (*Response, error) {
	base := p.BaseURL
	if base == "" {
		base = "http://localhost:11434"
	}
	model := p.Model
	if model == "" {
		model = "llama3.1"
	}

	body := ollamaRequest{
		Model:   model,
		Prompt:  req.Prompt,
		System:  req.System,
		Stream:  false,
		Options: map[string]any{"temperature": 0.1},
	}
	if req.JSON {
		body.Format = "json"
	}

	jsonBytes, err := json.Marshal(body)
	if err != nil {
		return nil, &TransportError{Provider: ollamaName, Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(base, "/")+"/api/generate", bytes.NewReader(jsonBytes))
	if err != nil {
		return nil, &TransportError{Provider: ollamaName, Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := p.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	start := time.Now()
	res, err := client.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Provider: ollamaName, Cause: err}
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &TransportError{Provider: ollamaName, Status: res.StatusCode, Cause: err}
	}
	if res.StatusCode != http.StatusOK {
		// A local server has no credentials, so every failure is a transport failure.
		return nil, &TransportError{Provider: ollamaName, Status: res.StatusCode, Body: truncateBody(raw)}
	}

	var parsed ollamaResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &TransportError{Provider: ollamaName, Status: res.StatusCode, Body: truncateBody(raw), Cause: err}
	}
	if parsed.Error != "" {
		return nil, &TransportError{Provider: ollamaName, Status: res.StatusCode, Body: parsed.Error}
	}

	zap.L().Debug("ollama generation complete",
		zap.String("model", model),
		zap.Duration("elapsed", time.Since(start)),
		zap.String("stop_reason", parsed.DoneReason),
	)

	if strings.TrimSpace(parsed.Response) == "" {
		return nil, &EmptyResponseError{Provider: ollamaName, StopReason: parsed.DoneReason}
	}
	return &Response{Text: parsed.Response, StopReason: parsed.DoneReason}, nil
}
