package store

import (
	"context"
	"fmt"

	"countdown/internal/clock"
	appLog "countdown/internal/log"
)

const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Options selects and configures a backend.
type Options struct {
	Driver     string
	SQLitePath string
	Redis      RedisOptions
}

// Open returns the backend named by opts.Driver.
func Open(ctx context.Context, opts Options, c clock.Clock) (Store, error) {
	switch opts.Driver {
	case DriverSQLite, "":
		appLog.Info("opening countdown store", "driver", DriverSQLite, "path", opts.SQLitePath)
		return OpenSQLite(ctx, opts.SQLitePath, c)
	case DriverRedis:
		appLog.Info("opening countdown store", "driver", DriverRedis, "addr", opts.Redis.Addr, "db", opts.Redis.DB)
		return OpenRedis(ctx, opts.Redis, c)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
	}
}
