// Package registry holds the model catalog and the feature-to-model map.
//
// The registry is constructed once at process start and passed explicitly
// to the router and dispatcher. Lookups are read-locked; the only writes
// are the administrative Register/Remove/SetDefaultModel operations.
package registry

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/smartdeal/dealextract/internal/domain"
	"github.com/smartdeal/dealextract/internal/logger"
)

// Registry is the catalog of extraction backends plus the feature map.
type Registry struct {
	mu       sync.RWMutex
	models   map[string]domain.ModelConfig
	features map[string]domain.FeatureConfig

	// featurePath, when non-empty, is where feature-map updates are
	// persisted. Write failures are logged, not fatal.
	featurePath string
}

// New builds a registry from the startup catalog and feature map.
func New(models []domain.ModelConfig, features []domain.FeatureConfig) *Registry {
	r := &Registry{
		models:   make(map[string]domain.ModelConfig, len(models)),
		features: make(map[string]domain.FeatureConfig, len(features)),
	}
	for _, m := range models {
		r.models[m.ID] = m
	}
	for _, f := range features {
		r.features[f.Name] = f
	}
	return r
}

// SetFeaturePath enables persistence of administrative feature updates.
func (r *Registry) SetFeaturePath(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.featurePath = path
}

// Get looks up a model by ID.
func (r *Registry) Get(modelID string) (domain.ModelConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.models[modelID]
	if !ok {
		return domain.ModelConfig{}, fmt.Errorf("%w: %s", domain.ErrModelNotFound, modelID)
	}
	return m, nil
}

// List returns all models sorted by ID.
func (r *Registry) List() []domain.ModelConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.ModelConfig, 0, len(r.models))
	for _, m := range r.models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Register adds or replaces a model. Administrative operation.
func (r *Registry) Register(cfg domain.ModelConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[cfg.ID] = cfg
}

// Remove deletes a model from the catalog. Administrative operation.
func (r *Registry) Remove(modelID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.models, modelID)
}

// Feature looks up a feature configuration by name.
func (r *Registry) Feature(name string) (domain.FeatureConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.features[name]
	if !ok {
		return domain.FeatureConfig{}, fmt.Errorf("%w: %s", domain.ErrUnknownFeature, name)
	}
	return f, nil
}

// Features returns all configured features sorted by name.
func (r *Registry) Features() []domain.FeatureConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.FeatureConfig, 0, len(r.features))
	for _, f := range r.features {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SetDefaultModel sets the default model for a feature. The operation is
// idempotent and last-write-wins; the model must exist in the catalog. A
// model not yet in the allow-list is added to it, mirroring the behavior
// of the admin surface this replaces.
func (r *Registry) SetDefaultModel(feature, modelID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.features[feature]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownFeature, feature)
	}
	if _, ok := r.models[modelID]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrModelNotFound, modelID)
	}

	if !f.Allows(modelID) {
		f.AllowedModelIDs = append(f.AllowedModelIDs, modelID)
	}
	f.DefaultModelID = modelID
	r.features[feature] = f

	r.persistFeaturesLocked()
	return nil
}

// persistFeaturesLocked writes the feature map to the configured path.
// Best effort: the in-memory update stands even if the write fails.
func (r *Registry) persistFeaturesLocked() {
	if r.featurePath == "" {
		return
	}

	features := make([]domain.FeatureConfig, 0, len(r.features))
	for _, f := range r.features {
		features = append(features, f)
	}
	sort.Slice(features, func(i, j int) bool { return features[i].Name < features[j].Name })

	data, err := yaml.Marshal(map[string]any{"features": features})
	if err != nil {
		logger.Error("failed to marshal feature map", "error", err)
		return
	}
	if err := os.WriteFile(r.featurePath, data, 0o644); err != nil {
		logger.Error("failed to persist feature map", "path", r.featurePath, "error", err)
	}
}
