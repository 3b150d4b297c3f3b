// Package dispatch routes extraction requests to backend clients and
// wraps the call with caching, routing, and response parsing.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/smartdeal/dealextract/internal/backend"
	"github.com/smartdeal/dealextract/internal/cache"
	"github.com/smartdeal/dealextract/internal/domain"
	"github.com/smartdeal/dealextract/internal/logger"
	"github.com/smartdeal/dealextract/internal/parser"
	"github.com/smartdeal/dealextract/internal/registry"
)

// Dispatcher executes extraction requests end to end: resolve the
// model, check the cache, call the backend, parse, store.
type Dispatcher struct {
	registry *registry.Registry
	router   *registry.Router
	cache    *cache.Cache
	policy   backend.Policy

	mu      sync.Mutex
	clients map[string]backend.Client
	// calls serializes requests per model. Local inference backends
	// share a GPU and degrade badly under concurrent load; the same
	// serialization is harmless for cloud APIs already rate limited
	// per model.
	calls map[string]*sync.Mutex

	// newClient is swappable in tests.
	newClient func(domain.ModelConfig, backend.Policy) (backend.Client, error)
}

// New builds a dispatcher over the given registry and cache.
func New(reg *registry.Registry, c *cache.Cache, policy backend.Policy) *Dispatcher {
	return &Dispatcher{
		registry:  reg,
		router:    registry.NewRouter(reg),
		cache:     c,
		policy:    policy,
		clients:   make(map[string]backend.Client),
		calls:     make(map[string]*sync.Mutex),
		newClient: backend.NewClient,
	}
}

// Extract runs one extraction request. Identical (model, prompt,
// document) triples are answered from the cache when the request allows
// storage; only successfully parsed responses are ever cached.
func (d *Dispatcher) Extract(ctx context.Context, req domain.ExtractionRequest) (*domain.ExtractionResponse, error) {
	cfg, err := d.router.Resolve(req.Feature, req.OverrideModelID)
	if err != nil {
		return nil, err
	}

	fp := cache.Fingerprint(cfg.ID, extractionPrompt, req.Document)
	if req.Store {
		if entry, ok := d.cache.Get(fp); ok {
			logger.Debug("cache hit", "model", cfg.ID, "feature", req.Feature)
			return &domain.ExtractionResponse{
				Deals:      entry.Deals,
				ModelUsed:  cfg.ID,
				Cached:     true,
				ParseOK:    true,
				TokensUsed: entry.TokensUsed,
				Raw:        entry.Raw,
			}, nil
		}
	}

	client, err := d.client(cfg)
	if err != nil {
		return nil, err
	}

	lock := d.callLock(cfg.ID)
	lock.Lock()
	result, err := client.Call(ctx, backend.Request{
		Document:  req.Document,
		MediaType: req.MediaType,
		Prompt:    extractionPrompt,
	})
	lock.Unlock()
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", cfg.ID, err)
	}

	resp := &domain.ExtractionResponse{
		ModelUsed:  cfg.ID,
		LatencyMs:  result.LatencyMs,
		TokensUsed: result.TokensUsed,
		Raw:        result.Text,
	}

	deals, perr := parser.Parse(result.Text, parser.Options{Width: req.Width, Height: req.Height})
	if perr != nil {
		if !errors.Is(perr, domain.ErrParseFailed) {
			return nil, perr
		}
		logger.Warn("response parse failed", "model", cfg.ID, "error", perr)
		d.logUsage(cfg.ID, req.Feature, resp)
		return resp, nil
	}

	resp.Deals = deals
	resp.ParseOK = true
	if req.Store {
		ttl := d.featureTTL(req.Feature)
		d.cache.Set(fp, cache.Entry{Deals: deals, Raw: result.Text, TokensUsed: result.TokensUsed}, ttl)
	}
	d.logUsage(cfg.ID, req.Feature, resp)
	return resp, nil
}

func (d *Dispatcher) logUsage(modelID, feature string, resp *domain.ExtractionResponse) {
	logger.Info("extraction complete",
		"model", modelID,
		"feature", feature,
		"latency_ms", resp.LatencyMs,
		"tokens", resp.TokensUsed,
		"deals", len(resp.Deals),
		"success", resp.ParseOK,
	)
}

func (d *Dispatcher) client(cfg domain.ModelConfig) (backend.Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.clients[cfg.ID]; ok {
		return c, nil
	}
	c, err := d.newClient(cfg, d.policy)
	if err != nil {
		return nil, err
	}
	d.clients[cfg.ID] = c
	return c, nil
}

func (d *Dispatcher) callLock(modelID string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.calls[modelID]
	if !ok {
		l = &sync.Mutex{}
		d.calls[modelID] = l
	}
	return l
}

func (d *Dispatcher) featureTTL(feature string) time.Duration {
	f, err := d.registry.Feature(feature)
	if err != nil {
		return 0
	}
	return f.CacheTTL
}
