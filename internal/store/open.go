package store

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/vendor-match/internal/config"
	"github.com/sells-group/vendor-match/internal/resilience"
)

// Open connects to the store selected by cfg.Driver, retrying transient
// connection failures. The returned store has been pinged but not migrated.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	st, err := resilience.Retry(ctx, resilience.ForStore(cfg), func(ctx context.Context) (Store, error) {
		switch cfg.Driver {
		case "postgres":
			return NewPostgres(ctx, cfg.DatabaseURL, &PoolConfig{
				MaxConns: cfg.MaxConns,
				MinConns: cfg.MinConns,
			})
		case "sqlite", "":
			s, err := NewSQLite(cfg.DatabaseURL)
			if err != nil {
				return nil, err
			}
			if err := s.Ping(ctx); err != nil {
				s.Close() //nolint:errcheck
				return nil, err
			}
			return s, nil
		default:
			return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
		}
	})
	if err != nil {
		return nil, eris.Wrap(err, "store: open")
	}

	zap.L().Debug("store opened", zap.String("driver", cfg.Driver))
	return st, nil
}
