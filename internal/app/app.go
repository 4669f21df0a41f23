// Package app assembles the dependency graph shared by the binaries.
package app

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Rogue-Bear-Innovations/jobboard-back/internal/auth"
	"github.com/Rogue-Bear-Innovations/jobboard-back/internal/config"
	"github.com/Rogue-Bear-Innovations/jobboard-back/internal/db"
	"github.com/Rogue-Bear-Innovations/jobboard-back/internal/events"
	"github.com/Rogue-Bear-Innovations/jobboard-back/internal/metrics"
	"github.com/Rogue-Bear-Innovations/jobboard-back/internal/service"
)

var (
	Core = fx.Options(
		fx.Provide(
			config.NewConfig,
			NewLogger,
			db.NewGormClient,
			db.NewRedisClient,
			metrics.New,
			auth.NewJWTManagerFromConfig,
			auth.NewDenylist,
			events.NewPublisher,
		),
		service.Module,
		fx.WithLogger(func(l *zap.SugaredLogger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l.Desugar().Named("fx")}
		}),
		fx.Invoke(closeOnStop),
	)
)

func NewLogger(cfg *config.Config) (*zap.SugaredLogger, error) {
	var (
		l   *zap.Logger
		err error
	)
	if cfg.LogDevelopment {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}

func closeOnStop(lc fx.Lifecycle, gdb *gorm.DB, rdb *redis.Client, l *zap.SugaredLogger) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			if rdb != nil {
				if err := rdb.Close(); err != nil {
					l.Warnw("close redis", "err", err)
				}
			}
			sqlDB, err := gdb.DB()
			if err != nil {
				return err
			}
			_ = l.Sync()
			return sqlDB.Close()
		},
	})
}
