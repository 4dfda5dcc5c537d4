package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"github.com/construo/construo-server/internal/cache"
	"github.com/construo/construo-server/internal/config"
	"github.com/construo/construo-server/internal/gateway"
	"github.com/construo/construo-server/internal/syncer"
)

// runtimeDeps holds the wired service instances shared by the commands.
type runtimeDeps struct {
	cfg     *config.Config
	cache   *cache.Store
	gateway *gateway.Client
	syncer  *syncer.Controller
}

// buildDeps loads configuration and constructs the cache, gateway and
// synchronization controller. The gateway ready-wait is bounded; an
// unreachable store leaves the service running on cached data.
func buildDeps(ctx context.Context) (*runtimeDeps, error) {
	configPath := viper.GetString("config")
	cfg, err := config.NewConfigLoader().LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Secrets come from the environment so config files stay committable.
	env := viper.New()
	env.SetEnvPrefix(config.EnvPrefix)
	env.AutomaticEnv()
	env.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if key := env.GetString("STORE_APIKEY"); key != "" {
		cfg.Store.APIKey = key
	}

	slog.Info("Loaded configuration", "path", configPath, "store", cfg.Store.URL)

	store := cache.New(cfg.Cache.Dir, slog.Default())

	gw := gateway.New(cfg.Store.URL, cfg.Store.APIKey, gateway.WithLogger(slog.Default()))
	if err := gw.WaitReady(ctx); err != nil {
		slog.Warn("Store not ready, continuing on cached data", "error", err)
	}

	ctrl := syncer.New(gw, store,
		syncer.WithCooldown(cfg.CooldownOrDefault(syncer.DefaultCooldown)),
		syncer.WithLogger(slog.Default()),
	)

	return &runtimeDeps{cfg: cfg, cache: store, gateway: gw, syncer: ctrl}, nil
}
