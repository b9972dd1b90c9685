package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/azure"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"go.uber.org/zap"
)

// AzureOpenAIProvider talks to an OpenAI-compatible deployment behind a
// key-authenticated proxy (Azure OpenAI style): the deployment id is part of
// the URL and the key travels in the api-key header.
type AzureOpenAIProvider struct {
	APIKey     string
	Endpoint   string // e.g. https://my-resource.openai.azure.com
	Deployment string
	APIVersion string
	MaxTokens  int
	HTTPClient *http.Client

	once   sync.Once
	client openai.Client
}

// Ensure interface compliance
var _ MultimodalProvider = (*AzureOpenAIProvider)(nil)

const (
	azureName       = "azure"
	azureAPIVersion = "2024-06-01"
)

func (p *AzureOpenAIProvider) Name() string { return azureName }

func (p *AzureOpenAIProvider) GenerateText(ctx context.Context, req Request) (*Response, error) {
	req.Images = nil
	return p.complete(ctx, req)
}

func (p *AzureOpenAIProvider) GenerateMultimodal(ctx context.Context, req Request) (*Response, error) {
	return p.complete(ctx, req)
}

// sdk builds the chat client on first use and reuses it afterwards.
func (p *AzureOpenAIProvider) sdk() *openai.Client {
	p.once.Do(func() {
		version := p.APIVersion
		if version == "" {
			version = azureAPIVersion
		}
		opts := []option.RequestOption{
			azure.WithEndpoint(p.Endpoint, version),
			azure.WithAPIKey(p.APIKey),
			option.WithMaxRetries(0),
		}
		if p.HTTPClient != nil {
			opts = append(opts, option.WithHTTPClient(p.HTTPClient))
		}
		p.client = openai.NewClient(opts...)
	})
	return &p.client
}

func (p *AzureOpenAIProvider) complete(ctx context.Context, req Request) (*Response, error) {
	if p.APIKey == "" {
		return nil, &AuthError{Provider: azureName}
	}
	if p.Endpoint == "" || p.Deployment == "" {
		return nil, &TransportError{Provider: azureName, Cause: errMissingDeployment}
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	if len(req.Images) == 0 {
		messages = append(messages, openai.UserMessage(req.Prompt))
	} else {
		parts := []openai.ChatCompletionContentPartUnionParam{openai.TextContentPart(req.Prompt)}
		for _, img := range req.Images {
			parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL:    "data:" + img.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(img.Data),
				Detail: "high",
			}))
		}
		messages = append(messages, openai.UserMessage(parts))
	}

	maxTokens := p.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}
	params := openai.ChatCompletionNewParams{
		Model:       p.Deployment,
		Messages:    messages,
		MaxTokens:   openai.Int(int64(maxTokens)),
		Temperature: openai.Float(0.1),
	}
	if req.JSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	start := time.Now()
	completion, err := p.sdk().Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, azureError(err)
	}
	if len(completion.Choices) == 0 {
		return nil, &EmptyResponseError{Provider: azureName}
	}

	out := &Response{
		Text:       completion.Choices[0].Message.Content,
		StopReason: string(completion.Choices[0].FinishReason),
	}
	zap.L().Debug("azure completion complete",
		zap.String("deployment", p.Deployment),
		zap.Int("images", len(req.Images)),
		zap.Duration("elapsed", time.Since(start)),
		zap.String("stop_reason", out.StopReason),
	)
	if strings.TrimSpace(out.Text) == "" {
		return nil, &EmptyResponseError{Provider: azureName, StopReason: out.StopReason}
	}
	return out, nil
}

func azureError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		body := apiErr.Message
		if body == "" {
			body = http.StatusText(apiErr.StatusCode)
		}
		return statusError(azureName, apiErr.StatusCode, []byte(body))
	}
	return &TransportError{Provider: azureName, Cause: err}
}

func truncateBody(b []byte) string {
	if len(b) > maxErrorBody {
		return string(b[:maxErrorBody]) + "..."
	}
	return string(b)
}
