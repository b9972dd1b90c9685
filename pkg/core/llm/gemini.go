package llm

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// GeminiProvider implements the Provider interface for Google's Gemini models
// (key-authenticated cloud endpoint).
type GeminiProvider struct {
	APIKey string
	Model  string // e.g. "gemini-2.0-flash"
	// BaseURL overrides the API host; used against fake servers in tests.
	BaseURL    string
	HTTPClient *http.Client

	once      sync.Once
	client    *genai.Client
	clientErr error
}

// Ensure interface compliance
var _ MultimodalProvider = (*GeminiProvider)(nil)

const geminiName = "gemini"

func (p *GeminiProvider) Name() string { return geminiName }

// GenerateText sends a text-only generateContent request.
func (p *GeminiProvider) GenerateText(ctx context.Context, req Request) (*Response, error) {
	req.Images = nil
	return p.generate(ctx, req)
}

// GenerateMultimodal sends the prompt followed by every image as inline data.
func (p *GeminiProvider) GenerateMultimodal(ctx context.Context, req Request) (*Response, error) {
	return p.generate(ctx, req)
}

func (p *GeminiProvider) generate(ctx context.Context, req Request) (*Response, error) {
	if p.APIKey == "" {
		return nil, &AuthError{Provider: geminiName}
	}

	model := p.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := p.sdk(ctx)
	if err != nil {
		return nil, &TransportError{Provider: geminiName, Cause: err}
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(0.1)),
	}
	if req.JSON {
		config.ResponseMIMEType = "application/json"
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	for _, img := range req.Images {
		parts = append(parts, genai.NewPartFromBytes(img.Data, img.MIMEType))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	start := time.Now()
	result, err := client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, geminiError(err)
	}

	resp := &Response{Text: result.Text()}
	if len(result.Candidates) > 0 {
		resp.StopReason = string(result.Candidates[0].FinishReason)
	}

	zap.L().Debug("gemini generation complete",
		zap.String("model", model),
		zap.Int("images", len(req.Images)),
		zap.Duration("elapsed", time.Since(start)),
		zap.String("stop_reason", resp.StopReason),
	)

	if resp.Text == "" {
		return nil, &EmptyResponseError{Provider: geminiName, StopReason: resp.StopReason}
	}
	return resp, nil
}

// sdk builds the genai client on first use and reuses it afterwards.
func (p *GeminiProvider) sdk(ctx context.Context) (*genai.Client, error) {
	p.once.Do(func() {
		cc := &genai.ClientConfig{
			APIKey:     p.APIKey,
			Backend:    genai.BackendGeminiAPI,
			HTTPClient: p.HTTPClient,
		}
		if p.BaseURL != "" {
			cc.HTTPOptions = genai.HTTPOptions{BaseURL: p.BaseURL}
		}
		p.client, p.clientErr = genai.NewClient(ctx, cc)
	})
	return p.client, p.clientErr
}

func geminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return statusError(geminiName, apiErr.Code, []byte(apiErr.Message))
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return statusError(geminiName, apiErrPtr.Code, []byte(apiErrPtr.Message))
	}
	return &TransportError{Provider: geminiName, Cause: err}
}
