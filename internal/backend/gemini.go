package backend

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/smartdeal/dealextract/internal/domain"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"

// GeminiClient calls the Gemini generateContent REST API.
type GeminiClient struct {
	base
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewGeminiClient creates a Gemini backend client.
func NewGeminiClient(cfg domain.ModelConfig, policy Policy) *GeminiClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}

	apiKey := ""
	if cfg.APIKeyEnv != "" {
		apiKey = os.Getenv(cfg.APIKeyEnv)
	}

	return &GeminiClient{
		base:    newBase(cfg, policy),
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{},
	}
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"response_mime_type,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		TotalTokenCount int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// Call sends the document and prompt to Gemini.
func (c *GeminiClient) Call(ctx context.Context, req Request) (Result, error) {
	return c.call(ctx, func(ctx context.Context) (Result, *Error) {
		return c.callOnce(ctx, req)
	})
}

func (c *GeminiClient) callOnce(ctx context.Context, req Request) (Result, *Error) {
	mimeType := req.MediaType
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{
				{Text: req.Prompt},
				{InlineData: &geminiInlineData{
					MimeType: mimeType,
					Data:     base64.StdEncoding.EncodeToString(req.Document),
				}},
			},
		}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:      0.1,
			ResponseMimeType: "application/json",
		},
	})
	if err != nil {
		return Result{}, &Error{Kind: FailureFatal, Message: fmt.Sprintf("marshal request: %v", err)}
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", c.baseURL, c.cfg.ID, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Result{}, &Error{Kind: FailureFatal, Message: err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return Result{}, transportError(err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return Result{}, statusError(resp.StatusCode, string(respBody))
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Result{}, &Error{Kind: FailureFatal, Message: fmt.Sprintf("decode response: %v", err)}
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return Result{}, &Error{Kind: FailureTransient, Message: "no candidates in response"}
	}

	return Result{
		Text:       parsed.Candidates[0].Content.Parts[0].Text,
		TokensUsed: parsed.UsageMetadata.TotalTokenCount,
	}, nil
}
