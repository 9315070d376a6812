package cli

import (
	"context"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/gelm-lang/gelm/internal/frontend"
	"github.com/gelm-lang/gelm/pkg/cache"
	"github.com/gelm-lang/gelm/pkg/config"
	"github.com/gelm-lang/gelm/pkg/details"
)

// buildEnv assembles the engine environment from the home configuration:
// filesystem, response-cache backend, registry location, and the bundled
// frontend as the module compiler.
func buildEnv(ctx context.Context) (*details.Env, error) {
	fs := afero.NewOsFs()

	home, err := config.Home()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(fs, home)
	if err != nil {
		return nil, err
	}

	backend, err := cacheBackend(ctx, fs, home, cfg)
	if err != nil {
		return nil, err
	}

	return &details.Env{
		Fs:           fs,
		Home:         home,
		RegistryBase: cfg.Registry,
		Cache:        backend,
		CacheTTL:     cfg.CacheTTL(),
		Offline:      cfg.Offline,
		Compiler:     frontend.New(),
		Logger:       loggerFromContext(ctx),
	}, nil
}

// cacheBackend picks the response-cache backend: Redis when configured,
// otherwise files under `<home>/http-cache`.
func cacheBackend(ctx context.Context, fs afero.Fs, home string, cfg *config.Config) (cache.Cache, error) {
	if cfg.RedisAddr != "" {
		redis, err := cache.NewRedisCache(ctx, cfg.RedisAddr)
		if err == nil {
			return redis, nil
		}
		// A dead Redis should not block builds; fall back to files.
		loggerFromContext(ctx).Warn("redis cache unreachable, using file cache", "addr", cfg.RedisAddr, "err", err)
	}
	return cache.NewFileCache(fs, httpCacheDir(home))
}

func httpCacheDir(home string) string {
	return filepath.Join(home, "http-cache")
}
