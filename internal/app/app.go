// ABOUTME: Boot sequence shared by the CLI and the MCP server.
// ABOUTME: Opens the store, seeds it once, restores the session and wires services.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/harperreed/forma/internal/auth"
	"github.com/harperreed/forma/internal/config"
	"github.com/harperreed/forma/internal/domain"
	"github.com/harperreed/forma/internal/seed"
	"github.com/harperreed/forma/internal/storage"
)

// Options configures Open.
type Options struct {
	Config *config.Config
	Logger *zap.Logger
	// Sessions overrides the session store. Defaults to a FileSessionStore
	// in the configured session directory.
	Sessions auth.SessionStore
	// SkipSeed disables the demo seed regardless of configuration.
	SkipSeed bool
}

// App holds the initialized components.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Store    *storage.Store
	Auth     *auth.Manager
	Services *domain.Services
	Seeded   seed.Result
}

// Open runs the boot sequence: store, seed, session restore.
func Open(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = &config.Config{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	storeOpts, err := cfg.StoreOptions(logger.Named("storage"))
	if err != nil {
		return nil, err
	}
	store := storage.NewStore(storeOpts)
	if err := store.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	a := &App{Config: cfg, Logger: logger, Store: store}
	if err := a.boot(ctx, opts); err != nil {
		_ = store.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) boot(ctx context.Context, opts Options) error {
	hasher := auth.NewHasher(a.Config.Security.BcryptCost)

	if !opts.SkipSeed && !a.Config.Seed.Disabled {
		res, err := a.Seeder(hasher).SeedIfNeeded(ctx)
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		a.Seeded = res
	}

	sessions := opts.Sessions
	if sessions == nil {
		secret, err := a.Config.SessionSecret()
		if err != nil {
			return err
		}
		fs, err := auth.NewFileSessionStore(a.Config.GetSessionDir(), secret, a.Config.Session.TTL)
		if err != nil {
			return err
		}
		sessions = fs
	}

	a.Auth = auth.NewManager(a.Store, sessions, hasher, a.Logger.Named("auth"))
	if _, err := a.Auth.Restore(ctx); err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	a.Services = domain.New(a.Store, a.Logger.Named("domain"))
	return nil
}

// Seeder returns the seed loader configured for this app.
func (a *App) Seeder(hasher *auth.Hasher) *seed.Seeder {
	var src seed.Source = seed.EmbeddedSource{}
	if dir := a.Config.GetSeedDir(); dir != "" {
		src = seed.DirSource{Dir: dir}
	}
	return &seed.Seeder{
		Store:        a.Store,
		Source:       src,
		Hasher:       hasher,
		DemoPassword: a.Config.Seed.DemoPassword,
		Logger:       a.Logger.Named("seed"),
	}
}

// Charm returns the Charm engine when it is the active backend.
func (a *App) Charm() (*storage.CharmEngine, bool) {
	engine, err := a.Store.Backend()
	if err != nil {
		return nil, false
	}
	ce, ok := engine.(*storage.CharmEngine)
	return ce, ok
}

// Close releases the store.
func (a *App) Close() error {
	return a.Store.Close()
}
