package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartdeal/dealextract/internal/domain"
)

func fastPolicy() Policy {
	return Policy{
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		sleep:      func(ctx context.Context, d time.Duration) error { return nil },
	}
}

func geminiCfg(baseURL string) domain.ModelConfig {
	return domain.ModelConfig{
		ID:                   "gemini-2.5-flash-lite",
		Kind:                 domain.KindCloudAPI,
		MaxRequestsPerMinute: 6000,
		DefaultTimeout:       5 * time.Second,
		BaseURL:              baseURL,
	}
}

func TestGeminiCallSuccess(t *testing.T) {
	var gotPath atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath.Store(r.URL.Path)

		var req geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		require.Len(t, req.Contents[0].Parts, 2)
		assert.NotEmpty(t, req.Contents[0].Parts[1].InlineData.Data)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"parts": []map[string]any{{"text": `[{"product_name":"Nutella","price":"1.99"}]`}},
				},
			}},
			"usageMetadata": map[string]any{"totalTokenCount": 321},
		})
	}))
	defer srv.Close()

	c := NewGeminiClient(geminiCfg(srv.URL), fastPolicy())
	res, err := c.Call(context.Background(), Request{
		Document:  []byte("fake image"),
		MediaType: "image/jpeg",
		Prompt:    "extract deals",
	})
	require.NoError(t, err)
	assert.Contains(t, res.Text, "Nutella")
	assert.Equal(t, 321, res.TokensUsed)
	assert.Equal(t, "/gemini-2.5-flash-lite:generateContent", gotPath.Load())
}

func TestGeminiRetriesOn429(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{"parts": []map[string]any{{"text": "[]"}}},
			}},
		})
	}))
	defer srv.Close()

	c := NewGeminiClient(geminiCfg(srv.URL), fastPolicy())
	res, err := c.Call(context.Background(), Request{Document: []byte("x"), Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "[]", res.Text)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGeminiFatalOn400(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewGeminiClient(geminiCfg(srv.URL), fastPolicy())
	_, err := c.Call(context.Background(), Request{Document: []byte("x"), Prompt: "p"})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "fatal errors must not be retried")
}

func TestGeminiExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewGeminiClient(geminiCfg(srv.URL), fastPolicy())
	_, err := c.Call(context.Background(), Request{Document: []byte("x"), Prompt: "p"})
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)
	assert.Equal(t, int32(3), calls.Load(), "maxRetries+1 attempts")
}

func TestOllamaCallSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var req ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llava:7b", req.Model)
		require.Len(t, req.Messages, 1)
		assert.Len(t, req.Messages[0].Images, 1)
		assert.False(t, req.Stream)

		_ = json.NewEncoder(w).Encode(ollamaResponse{
			Message:         ollamaMessage{Role: "assistant", Content: "[]"},
			Done:            true,
			PromptEvalCount: 100,
			EvalCount:       20,
		})
	}))
	defer srv.Close()

	cfg := domain.ModelConfig{
		ID:                   "llava:7b",
		Kind:                 domain.KindLocalInference,
		MaxRequestsPerMinute: 6000,
		BaseURL:              srv.URL,
	}
	c := NewOllamaClient(cfg, fastPolicy())
	res, err := c.Call(context.Background(), Request{Document: []byte("img"), Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "[]", res.Text)
	assert.Equal(t, 120, res.TokensUsed)
}

func TestCallAppliesDefaultTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	cfg := geminiCfg(srv.URL)
	cfg.DefaultTimeout = 20 * time.Millisecond
	c := NewGeminiClient(cfg, fastPolicy())

	start := time.Now()
	_, err := c.Call(context.Background(), Request{Document: []byte("x"), Prompt: "p"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCancelled)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestNewClientFactory(t *testing.T) {
	policy := DefaultPolicy()

	tests := []struct {
		id   string
		kind domain.BackendKind
		want any
	}{
		{"gemini-2.5-flash", domain.KindCloudAPI, &GeminiClient{}},
		{"claude-sonnet-4-20250514", domain.KindCloudAPI, &AnthropicClient{}},
		{"gpt-4o", domain.KindCloudAPI, &OpenAIClient{}},
		{"llava:7b", domain.KindLocalInference, &OllamaClient{}},
		{"ocr-tesseract", domain.KindOCRPipeline, &OCRClient{}},
	}
	for _, tt := range tests {
		c, err := NewClient(domain.ModelConfig{ID: tt.id, Kind: tt.kind}, policy)
		require.NoError(t, err, tt.id)
		assert.IsType(t, tt.want, c, tt.id)
		assert.Equal(t, tt.id, c.ModelID())
		assert.Equal(t, tt.kind, c.Kind())
	}

	_, err := NewClient(domain.ModelConfig{ID: "x", Kind: "mystery"}, policy)
	assert.Error(t, err)
}

func TestRateLimiterSpacing(t *testing.T) {
	// 120 rpm = one token every 500ms with burst 1, so the second call
	// must wait roughly half a second.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{"parts": []map[string]any{{"text": "[]"}}},
			}},
		})
	}))
	defer srv.Close()

	cfg := geminiCfg(srv.URL)
	cfg.MaxRequestsPerMinute = 120
	c := NewGeminiClient(cfg, fastPolicy())

	ctx := context.Background()
	_, err := c.Call(ctx, Request{Document: []byte("x"), Prompt: "p"})
	require.NoError(t, err)

	start := time.Now()
	_, err = c.Call(ctx, Request{Document: []byte("x"), Prompt: "p"})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)
}
