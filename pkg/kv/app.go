package kv

import (
	"context"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/beam-cloud/airkv/pkg/common"
	"github.com/beam-cloud/airkv/pkg/local"
	"github.com/beam-cloud/airkv/pkg/registry"
	"github.com/beam-cloud/airkv/pkg/remote"
	"github.com/beam-cloud/airkv/pkg/repository"
	"github.com/beam-cloud/airkv/pkg/types"
)

// App wires the settings database, registry and backends together for one process.
type App struct {
	Config   types.AppConfig
	Settings repository.SettingsRepository
	Registry *registry.Registry
	Gateway  *Gateway
}

type AppOption func(*appOptions)

type appOptions struct {
	settings      repository.SettingsRepository
	remoteOptions []remote.Option
}

// WithSettings uses an already open settings repository instead of the one in the data directory
func WithSettings(s repository.SettingsRepository) AppOption {
	return func(o *appOptions) { o.settings = s }
}

// WithRemoteOptions passes options through to the remote client
func WithRemoteOptions(opts ...remote.Option) AppOption {
	return func(o *appOptions) { o.remoteOptions = append(o.remoteOptions, opts...) }
}

func NewApp(ctx context.Context, cfg types.AppConfig, opts ...AppOption) (*App, error) {
	var o appOptions
	for _, opt := range opts {
		opt(&o)
	}

	settings := o.settings
	if settings == nil {
		dataDir := common.ExpandHome(cfg.DataDir)
		if dataDir == "" {
			dataDir = common.DefaultDataDir()
		}
		store, err := repository.NewSQLiteSettingsStore(ctx, filepath.Join(dataDir, repository.SettingsDBFile))
		if err != nil {
			return nil, err
		}
		settings = store
	}

	reg, err := registry.New(ctx, settings, settings)
	if err != nil {
		settings.Close()
		return nil, err
	}

	gateway := NewGateway(
		local.NewStore(local.LayoutFromConfig(cfg.Local)),
		remote.NewClient(cfg.Remote, o.remoteOptions...),
		reg,
	)

	return &App{
		Config:   cfg,
		Settings: settings,
		Registry: reg,
		Gateway:  gateway,
	}, nil
}

func (a *App) Close() error {
	if err := a.Settings.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close settings store")
		return err
	}
	return nil
}
