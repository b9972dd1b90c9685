package llm

import (
	"context"
)

// Image is one inline image attached to a multimodal request.
type Image struct {
	MIMEType string
	Data     []byte
}

// Request is a single prompt submission. Images are only honoured by
// GenerateMultimodal.
type Request struct {
	System string
	Prompt string
	Images []Image
	// JSON asks the backend for JSON output when it supports a response format switch.
	JSON bool
}

// Response is the raw text the model produced plus its stop reason, if reported.
type Response struct {
	Text       string
	StopReason string
}

// Provider is the interface for all LLM backends.
type Provider interface {
	Name() string
	GenerateText(ctx context.Context, req Request) (*Response, error)
}

// MultimodalProvider is a Provider that also accepts images.
type MultimodalProvider interface {
	Provider
	GenerateMultimodal(ctx context.Context, req Request) (*Response, error)
}

// RequireMultimodal returns p's multimodal capability or a CapabilityError.
// Callers check this before starting work that needs images.
func RequireMultimodal(p Provider) (MultimodalProvider, error) {
	if mp, ok := p.(MultimodalProvider); ok {
		return mp, nil
	}
	return nil, &CapabilityError{Provider: p.Name(), Capability: "multimodal"}
}
