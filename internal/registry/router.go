package registry

import (
	"fmt"

	"github.com/smartdeal/dealextract/internal/domain"
)

// Router resolves a feature name to a concrete model configuration.
type Router struct {
	registry *Registry
}

// NewRouter creates a feature router backed by the given registry.
func NewRouter(r *Registry) *Router {
	return &Router{registry: r}
}

// Resolve returns the model serving the feature. An override must be in
// the feature's allow-list; this is a safety rail against routing traffic
// to an untested model by accident.
func (rt *Router) Resolve(feature, override string) (domain.ModelConfig, error) {
	f, err := rt.registry.Feature(feature)
	if err != nil {
		return domain.ModelConfig{}, err
	}

	modelID := f.DefaultModelID
	if override != "" {
		if !f.Allows(override) {
			return domain.ModelConfig{}, fmt.Errorf("%w: %s for feature %s", domain.ErrModelNotAllowed, override, feature)
		}
		modelID = override
	}

	return rt.registry.Get(modelID)
}
