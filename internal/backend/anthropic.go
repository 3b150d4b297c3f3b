package backend

import (
	"context"
	"encoding/base64"
	"errors"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/smartdeal/dealextract/internal/domain"
)

// AnthropicClient wraps the Anthropic SDK for multimodal extraction.
type AnthropicClient struct {
	base
	client anthropic.Client
}

// NewAnthropicClient creates an Anthropic backend client. Retries are
// handled by our own policy, so the SDK's are disabled.
func NewAnthropicClient(cfg domain.ModelConfig, policy Policy) *AnthropicClient {
	opts := []option.RequestOption{
		option.WithMaxRetries(0),
	}
	if cfg.APIKeyEnv != "" {
		if key := os.Getenv(cfg.APIKeyEnv); key != "" {
			opts = append(opts, option.WithAPIKey(key))
		}
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicClient{
		base:   newBase(cfg, policy),
		client: anthropic.NewClient(opts...),
	}
}

// Call sends the document and prompt to the Anthropic Messages API.
func (c *AnthropicClient) Call(ctx context.Context, req Request) (Result, error) {
	return c.call(ctx, func(ctx context.Context) (Result, *Error) {
		return c.callOnce(ctx, req)
	})
}

func (c *AnthropicClient) callOnce(ctx context.Context, req Request) (Result, *Error) {
	mediaType := req.MediaType
	if mediaType == "" {
		mediaType = "image/jpeg"
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.cfg.ID),
		MaxTokens: 4096,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64(mediaType, base64.StdEncoding.EncodeToString(req.Document)),
				anthropic.NewTextBlock(req.Prompt),
			),
		},
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return Result{}, statusError(apiErr.StatusCode, apiErr.Error())
		}
		return Result{}, transportError(err)
	}

	var content string
	for _, block := range resp.Content {
		if b, ok := block.AsAny().(anthropic.TextBlock); ok {
			content = b.Text
		}
	}

	return Result{
		Text:       content,
		TokensUsed: int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
	}, nil
}
