package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartdeal/dealextract/internal/domain"
	"github.com/smartdeal/dealextract/internal/registry"
)

type stubExtractor struct {
	resp *domain.ExtractionResponse
	err  error
	last domain.ExtractionRequest
}

func (s *stubExtractor) Extract(ctx context.Context, req domain.ExtractionRequest) (*domain.ExtractionResponse, error) {
	s.last = req
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

func testRouter(stub *stubExtractor) http.Handler {
	reg := registry.New(
		[]domain.ModelConfig{
			{ID: "gpt-4o", Kind: domain.KindCloudAPI, DefaultTimeout: time.Minute},
			{ID: "llava:7b", Kind: domain.KindLocalInference, DefaultTimeout: time.Minute},
		},
		[]domain.FeatureConfig{{
			Name:            "brochure_extraction",
			DefaultModelID:  "gpt-4o",
			AllowedModelIDs: []string{"gpt-4o"},
		}},
	)
	return SetupRouter(NewHandler(stub, reg), false)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	rec := doJSON(t, testRouter(&stubExtractor{}), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestExtractEndpoint(t *testing.T) {
	stub := &stubExtractor{resp: &domain.ExtractionResponse{
		Deals:     []domain.Deal{{ProductName: "Nutella", Price: domain.StrPtr("1.99")}},
		ModelUsed: "gpt-4o",
		ParseOK:   true,
	}}
	router := testRouter(stub)

	rec := doJSON(t, router, http.MethodPost, "/api/extract", map[string]any{
		"feature":    "brochure_extraction",
		"document":   base64.StdEncoding.EncodeToString([]byte("image bytes")),
		"media_type": "image/jpeg",
		"width":      1000,
		"height":     2000,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp domain.ExtractionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Deals, 1)
	assert.Equal(t, "Nutella", resp.Deals[0].ProductName)

	assert.Equal(t, "brochure_extraction", stub.last.Feature)
	assert.Equal(t, []byte("image bytes"), stub.last.Document)
	assert.Equal(t, 1000, stub.last.Width)
	assert.True(t, stub.last.Store, "caching is on unless no_cache is set")
}

func TestExtractEndpointMultipart(t *testing.T) {
	stub := &stubExtractor{resp: &domain.ExtractionResponse{ParseOK: true}}
	router := testRouter(stub)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("document", "page1.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte("image bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("feature", "brochure_extraction"))
	require.NoError(t, mw.WriteField("media_type", "image/jpeg"))
	require.NoError(t, mw.WriteField("width", "1000"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/extract", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "brochure_extraction", stub.last.Feature)
	assert.Equal(t, []byte("image bytes"), stub.last.Document)
	assert.Equal(t, "image/jpeg", stub.last.MediaType)
	assert.Equal(t, 1000, stub.last.Width)
}

func TestExtractEndpointMultipartMissingFeature(t *testing.T) {
	router := testRouter(&stubExtractor{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("document", "page1.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte("image bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/extract", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExtractEndpointNoCache(t *testing.T) {
	stub := &stubExtractor{resp: &domain.ExtractionResponse{ParseOK: true}}
	router := testRouter(stub)

	rec := doJSON(t, router, http.MethodPost, "/api/extract", map[string]any{
		"feature":    "brochure_extraction",
		"document":   base64.StdEncoding.EncodeToString([]byte("x")),
		"media_type": "image/jpeg",
		"no_cache":   true,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, stub.last.Store)
}

func TestExtractEndpointValidation(t *testing.T) {
	router := testRouter(&stubExtractor{})

	// Missing required fields.
	rec := doJSON(t, router, http.MethodPost, "/api/extract", map[string]any{"feature": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Invalid base64.
	rec = doJSON(t, router, http.MethodPost, "/api/extract", map[string]any{
		"feature":    "brochure_extraction",
		"document":   "not base64!!!",
		"media_type": "image/jpeg",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExtractEndpointErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrUnknownFeature, http.StatusNotFound},
		{domain.ErrModelNotAllowed, http.StatusUnprocessableEntity},
		{domain.ErrBackendUnavailable, http.StatusBadGateway},
		{domain.ErrCancelled, http.StatusRequestTimeout},
	}

	for _, tt := range tests {
		router := testRouter(&stubExtractor{err: tt.err})
		rec := doJSON(t, router, http.MethodPost, "/api/extract", map[string]any{
			"feature":    "brochure_extraction",
			"document":   base64.StdEncoding.EncodeToString([]byte("x")),
			"media_type": "image/jpeg",
		})
		assert.Equal(t, tt.want, rec.Code, "error %v", tt.err)
	}
}

func TestListModels(t *testing.T) {
	rec := doJSON(t, testRouter(&stubExtractor{}), http.MethodGet, "/api/models", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Models []domain.ModelConfig `json:"models"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Models, 2)
}

func TestListFeatures(t *testing.T) {
	rec := doJSON(t, testRouter(&stubExtractor{}), http.MethodGet, "/api/features", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "brochure_extraction")
}

func TestSetDefaultModel(t *testing.T) {
	router := testRouter(&stubExtractor{})

	rec := doJSON(t, router, http.MethodPost, "/api/features/brochure_extraction/default",
		map[string]any{"model": "llava:7b"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var f domain.FeatureConfig
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &f))
	assert.Equal(t, "llava:7b", f.DefaultModelID)
}

func TestSetDefaultModelErrors(t *testing.T) {
	router := testRouter(&stubExtractor{})

	rec := doJSON(t, router, http.MethodPost, "/api/features/nope/default",
		map[string]any{"model": "gpt-4o"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/features/brochure_extraction/default",
		map[string]any{"model": "missing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/features/brochure_extraction/default",
		map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
