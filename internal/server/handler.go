// Package server exposes the extraction dispatcher over HTTP.
package server

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/smartdeal/dealextract/internal/domain"
	"github.com/smartdeal/dealextract/internal/registry"
	"github.com/smartdeal/dealextract/internal/version"
)

// Extractor is the slice of the dispatcher the API needs.
type Extractor interface {
	Extract(ctx context.Context, req domain.ExtractionRequest) (*domain.ExtractionResponse, error)
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	dispatcher Extractor
	registry   *registry.Registry
}

// NewHandler creates a new HTTP handler.
func NewHandler(d Extractor, r *registry.Registry) *Handler {
	return &Handler{dispatcher: d, registry: r}
}

// HealthCheck returns the health status of the API.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "dealextract",
		"version": version.Version,
	})
}

type extractRequest struct {
	Feature   string `json:"feature" binding:"required"`
	Document  string `json:"document" binding:"required"`
	MediaType string `json:"media_type" binding:"required"`
	Model     string `json:"model"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	NoCache   bool   `json:"no_cache"`
}

// Extract runs one extraction request. The document either travels
// base64 encoded in a JSON body or as a multipart file upload with the
// remaining fields as form values.
func (h *Handler) Extract(c *gin.Context) {
	var req extractRequest
	var doc []byte

	if mediaType := c.ContentType(); mediaType == "multipart/form-data" {
		file, err := c.FormFile("document")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing document upload"})
			return
		}
		f, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		defer f.Close()
		doc, err = io.ReadAll(f)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		req.Feature = c.PostForm("feature")
		req.MediaType = file.Header.Get("Content-Type")
		if mt := c.PostForm("media_type"); mt != "" {
			req.MediaType = mt
		}
		req.Model = c.PostForm("model")
		req.Width, _ = strconv.Atoi(c.PostForm("width"))
		req.Height, _ = strconv.Atoi(c.PostForm("height"))
		req.NoCache = c.PostForm("no_cache") == "true"
		if req.Feature == "" || req.MediaType == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "feature and media_type are required"})
			return
		}
	} else {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		var err error
		doc, err = base64.StdEncoding.DecodeString(req.Document)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "document is not valid base64"})
			return
		}
	}

	resp, err := h.dispatcher.Extract(c.Request.Context(), domain.ExtractionRequest{
		Feature:         req.Feature,
		Document:        doc,
		MediaType:       req.MediaType,
		Width:           req.Width,
		Height:          req.Height,
		OverrideModelID: req.Model,
		Store:           !req.NoCache,
	})
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListModels returns the model catalog.
func (h *Handler) ListModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"models": h.registry.List()})
}

// ListFeatures returns the feature routing table.
func (h *Handler) ListFeatures(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"features": h.registry.Features()})
}

type setDefaultRequest struct {
	Model string `json:"model" binding:"required"`
}

// SetDefaultModel repoints a feature at a different default model.
func (h *Handler) SetDefaultModel(c *gin.Context) {
	var req setDefaultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	feature := c.Param("name")
	if err := h.registry.SetDefaultModel(feature, req.Model); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	f, err := h.registry.Feature(feature)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, f)
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnknownFeature), errors.Is(err, domain.ErrModelNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrModelNotAllowed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrCancelled):
		return http.StatusRequestTimeout
	case errors.Is(err, domain.ErrBackendUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
