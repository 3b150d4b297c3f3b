package backend

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/smartdeal/dealextract/internal/domain"
)

// OpenAIClient wraps the OpenAI SDK. With a custom BaseURL it also serves
// OpenAI-compatible hosts (e.g. SiliconFlow).
type OpenAIClient struct {
	base
	client openai.Client
}

// NewOpenAIClient creates an OpenAI backend client. Retries are handled
// by our own policy, so the SDK's are disabled.
func NewOpenAIClient(cfg domain.ModelConfig, policy Policy) *OpenAIClient {
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

	return &OpenAIClient{
		base:   newBase(cfg, policy),
		client: openai.NewClient(opts...),
	}
}

// Call sends the document and prompt as a vision chat completion.
func (c *OpenAIClient) Call(ctx context.Context, req Request) (Result, error) {
	return c.call(ctx, func(ctx context.Context) (Result, *Error) {
		return c.callOnce(ctx, req)
	})
}

func (c *OpenAIClient) callOnce(ctx context.Context, req Request) (Result, *Error) {
	mediaType := req.MediaType
	if mediaType == "" {
		mediaType = "image/jpeg"
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", mediaType, base64.StdEncoding.EncodeToString(req.Document))

	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(req.Prompt),
		openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.cfg.ID),
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(parts)},
		MaxTokens:   openai.Int(4096),
		Temperature: openai.Float(0.1),
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return Result{}, statusError(apiErr.StatusCode, apiErr.Error())
		}
		return Result{}, transportError(err)
	}

	if len(resp.Choices) == 0 {
		return Result{}, &Error{Kind: FailureTransient, Message: "no choices in response"}
	}

	return Result{
		Text:       resp.Choices[0].Message.Content,
		TokensUsed: int(resp.Usage.TotalTokens),
	}, nil
}
