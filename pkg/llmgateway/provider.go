package llmgateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// ProviderRequest is the SDK-agnostic shape Gateway hands to a Provider.
type ProviderRequest struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
	Model       string
}

// ProviderResult is what a Provider returns on success. TokensIn/TokensOut
// are zero when the provider does not report real usage, in which case
// Gateway falls back to its word-count/len-4 estimate.
type ProviderResult struct {
	Content   string
	TokensIn  int
	TokensOut int
}

// Provider is the single point of variation the Gateway depends on,
// letting tests substitute FakeProvider for the real Anthropic-backed one.
type Provider interface {
	Complete(ctx context.Context, req ProviderRequest) (ProviderResult, error)
}

// AnthropicProvider calls the Claude Messages API via anthropic-sdk-go,
// grounded on _examples/ShayCichocki-Alphie/internal/api's
// Client/Runner.RunWithSystem call shape.
type AnthropicProvider struct {
	client anthropic.Client
}

// NewAnthropicProvider builds a Provider authenticated with apiKey.
func NewAnthropicProvider(apiKey string) *AnthropicProvider {
	return &AnthropicProvider{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
	}
}

// Complete issues one Messages.New call and extracts the concatenated
// text content, mirroring Runner.RunWithSystem's AsAny() extraction loop.
func (p *AnthropicProvider) Complete(ctx context.Context, req ProviderRequest) (ProviderResult, error) {
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 8192
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return ProviderResult{}, fmt.Errorf("anthropic messages.new: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(variant.Text)
		}
	}

	return ProviderResult{
		Content:   text.String(),
		TokensIn:  int(resp.Usage.InputTokens),
		TokensOut: int(resp.Usage.OutputTokens),
	}, nil
}

// FakeProvider returns deterministic canned text, for tests that exercise
// the Gateway/Designer/CodeUnit pipeline without a live API key.
type FakeProvider struct {
	// Content is returned verbatim by every Complete call. If Fn is set,
	// it takes precedence.
	Content string
	// Fn, when non-nil, computes Content per-request.
	Fn func(req ProviderRequest) (string, error)
}

// Complete returns Fn(req) or Content, simulating real token usage via the
// word-count estimator so Gateway's fallback path is also exercised.
func (p *FakeProvider) Complete(_ context.Context, req ProviderRequest) (ProviderResult, error) {
	content := p.Content
	if p.Fn != nil {
		c, err := p.Fn(req)
		if err != nil {
			return ProviderResult{}, err
		}
		content = c
	}
	return ProviderResult{Content: content}, nil
}
