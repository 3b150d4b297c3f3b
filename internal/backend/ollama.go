package backend

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/smartdeal/dealextract/internal/domain"
)

// OllamaClient communicates with a locally-hosted Ollama instance running
// a vision-capable model.
type OllamaClient struct {
	base
	baseURL string
	client  *http.Client
}

// NewOllamaClient creates an Ollama backend client.
func NewOllamaClient(cfg domain.ModelConfig, policy Policy) *OllamaClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	return &OllamaClient{
		base:    newBase(cfg, policy),
		baseURL: baseURL,
		client:  &http.Client{},
	}
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  ollamaOptions   `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumCtx      int     `json:"num_ctx,omitempty"`
}

type ollamaResponse struct {
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
}

// Call sends the document and prompt to Ollama's chat endpoint.
func (c *OllamaClient) Call(ctx context.Context, req Request) (Result, error) {
	return c.call(ctx, func(ctx context.Context) (Result, *Error) {
		return c.callOnce(ctx, req)
	})
}

func (c *OllamaClient) callOnce(ctx context.Context, req Request) (Result, *Error) {
	body, err := json.Marshal(ollamaRequest{
		Model: c.cfg.ID,
		Messages: []ollamaMessage{{
			Role:    "user",
			Content: req.Prompt,
			Images:  []string{base64.StdEncoding.EncodeToString(req.Document)},
		}},
		Stream: false,
		Options: ollamaOptions{
			Temperature: 0.1,
			NumCtx:      4096,
		},
	})
	if err != nil {
		return Result{}, &Error{Kind: FailureFatal, Message: fmt.Sprintf("marshal request: %v", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return Result{}, &Error{Kind: FailureFatal, Message: err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return Result{}, transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return Result{}, statusError(resp.StatusCode, string(respBody))
	}

	var parsed ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Result{}, &Error{Kind: FailureFatal, Message: fmt.Sprintf("decode response: %v", err)}
	}

	return Result{
		Text:       parsed.Message.Content,
		TokensUsed: parsed.PromptEvalCount + parsed.EvalCount,
	}, nil
}
