package cmd

import (
	"context"
	"fmt"

	"github.com/kitsune-cli/kitsune/bookmark"
	"github.com/kitsune-cli/kitsune/config"
	"github.com/kitsune-cli/kitsune/engine"
	"github.com/kitsune-cli/kitsune/history"
	"github.com/kitsune-cli/kitsune/key"
	"github.com/kitsune-cli/kitsune/progress"
	"github.com/kitsune-cli/kitsune/store/mongo"
	"github.com/kitsune-cli/kitsune/store/sqlite"
	"github.com/kitsune-cli/kitsune/where"
	"github.com/spf13/viper"
)

// Progress backends selectable with progress.backend.
const (
	backendFile   = "file"
	backendSQLite = "sqlite"
	backendMongo  = "mongo"
)

var backends = []string{backendFile, backendSQLite, backendMongo}

// backend is what every progress store offers.
type backend interface {
	progress.Store
	progress.Lister
	bookmark.Service
	bookmark.Lister
	Remove(ctx context.Context, key progress.Key) error
}

func engineConfig() engine.Config {
	cfg := engine.DefaultConfig()

	cfg.MaxBufferLength = config.Seconds(key.EngineMaxBufferLength)
	cfg.MaxMaxBufferLength = config.Seconds(key.EngineMaxMaxBufferLength)
	cfg.MaxBufferSize = int64(viper.GetInt(key.EngineMaxBufferSize))
	cfg.BackBufferLength = config.Seconds(key.EngineBackBufferLength)
	cfg.MaxConsecutiveErrors = viper.GetInt(key.EngineMaxConsecutiveErrors)

	policy := func(k string) engine.RetryPolicy {
		return engine.RetryPolicy{
			MaxRetry:      viper.GetInt(k),
			RetryDelay:    config.Millis(key.EngineRetryDelay),
			MaxRetryDelay: config.Millis(key.EngineMaxRetryTimeout),
		}
	}
	cfg.Manifest = policy(key.EngineManifestMaxRetry)
	cfg.Level = policy(key.EngineLevelMaxRetry)
	cfg.Fragment = policy(key.EngineFragmentMaxRetry)

	return cfg
}

func progressOptions() progress.Options {
	opts := progress.DefaultOptions()
	opts.Interval = config.Seconds(key.ProgressInterval)
	opts.MinWatch = float64(viper.GetInt(key.ProgressMinWatch))
	opts.Timeout = config.Millis(key.ProgressOperationTimeout)
	return opts
}

// openBackend opens the configured progress store. The returned function releases it.
func openBackend(ctx context.Context) (backend, func() error, error) {
	switch name := viper.GetString(key.ProgressBackend); name {
	case backendFile, "":
		return history.New(where.Progress(), where.Bookmarks()), func() error { return nil }, nil
	case backendSQLite:
		store, err := sqlite.Open(where.Database())
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case backendMongo:
		ctx, cancel := context.WithTimeout(ctx, config.Millis(key.ProgressOperationTimeout))
		defer cancel()

		store, err := mongo.Connect(ctx, viper.GetString(key.ProgressMongoURI), viper.GetString(key.ProgressMongoDatabase))
		if err != nil {
			return nil, nil, err
		}
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = store.Close(ctx)
			return nil, nil, err
		}
		return store, func() error {
			ctx, cancel := context.WithTimeout(context.Background(), config.Millis(key.ProgressOperationTimeout))
			defer cancel()
			return store.Close(ctx)
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown progress backend %q, expected one of %v", name, backends)
	}
}
