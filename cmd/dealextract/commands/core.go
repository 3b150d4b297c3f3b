package commands

import (
	"github.com/spf13/viper"

	"github.com/smartdeal/dealextract/internal/backend"
	"github.com/smartdeal/dealextract/internal/cache"
	"github.com/smartdeal/dealextract/internal/config"
	"github.com/smartdeal/dealextract/internal/dispatch"
	"github.com/smartdeal/dealextract/internal/logger"
	"github.com/smartdeal/dealextract/internal/matching"
	"github.com/smartdeal/dealextract/internal/registry"
)

// core bundles the wired-up dispatch pipeline shared by the extract,
// bench, and serve commands.
type core struct {
	cfg        *config.Config
	registry   *registry.Registry
	cache      *cache.Cache
	dispatcher *dispatch.Dispatcher
	engine     *matching.Engine
}

// buildCore loads configuration and wires the dispatch pipeline.
func buildCore() (*core, error) {
	logger.Init(logger.Options{
		Debug: viper.GetBool("debug"),
		Quiet: viper.GetBool("quiet"),
	})

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	reg := registry.New(cfg.Models, cfg.Features)
	if cfg.FeatureMapPath != "" {
		reg.SetFeaturePath(cfg.FeatureMapPath)
	}

	c := cache.New(cfg.Cache.TTL, cfg.Cache.SweepInterval)

	policy := backend.DefaultPolicy()
	policy.MaxRetries = cfg.Retry.MaxRetries
	policy.BaseDelay = cfg.Retry.BaseDelay
	policy.MaxDelay = cfg.Retry.MaxDelay

	return &core{
		cfg:        cfg,
		registry:   reg,
		cache:      c,
		dispatcher: dispatch.New(reg, c, policy),
		engine:     matching.NewEngine(matching.Mode(cfg.Matching.Mode)),
	}, nil
}
