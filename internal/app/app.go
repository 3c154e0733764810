package app

import (
	"github.com/weezy20/zv/internal/config"
	"github.com/weezy20/zv/internal/fetch"
	"github.com/weezy20/zv/internal/index"
	"github.com/weezy20/zv/internal/logger"
	"github.com/weezy20/zv/internal/mirrors"
	"github.com/weezy20/zv/internal/platform"
	"github.com/weezy20/zv/internal/resolver"
	"github.com/weezy20/zv/internal/service"
	"github.com/weezy20/zv/internal/store"
)

// App wires the collaborators every command shares. Nothing here is global:
// the whole graph hangs off the settings snapshot, so tests can stand up a
// fully isolated instance against a temp dir.
type App struct {
	Settings *config.Settings
	Plat     platform.Descriptor
	Client   *service.DefaultHTTPClient
	Store    *store.Store
	Cache    *index.Cache
	Registry *mirrors.Registry
	Resolver *resolver.Resolver
}

// New loads settings, configures logging, and opens the store.
func New() (*App, error) {
	settings, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger.Configure(logger.Options{Level: settings.LogLevel, Color: !settings.NoColor})

	plat := platform.Detect()
	st, err := store.Open(settings.ZVDir, plat)
	if err != nil {
		return nil, err
	}

	client := service.NewHTTPClient(settings.FetchTimeout)
	cache := index.NewCache(settings.ZVDir, client, settings.IndexTTL)
	reg, err := mirrors.Load(settings.ZVDir)
	if err != nil {
		return nil, err
	}

	a := &App{
		Settings: settings,
		Plat:     plat,
		Client:   client,
		Store:    st,
		Cache:    cache,
		Registry: reg,
	}
	dl := fetch.NewDownloader(client, reg, st, plat)
	dl.MirrorsTTL = settings.MirrorsTTL
	a.Resolver = &resolver.Resolver{
		Store:       st,
		Cache:       cache,
		Downloader:  dl,
		Plat:        plat,
		ForceOrigin: settings.ForceZiglang,
	}
	return a, nil
}
