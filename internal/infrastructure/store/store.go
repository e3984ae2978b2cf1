package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hijjiri/todo-app/internal/config"
	domain_todo "github.com/hijjiri/todo-app/internal/domain/todo"
	"github.com/hijjiri/todo-app/internal/infrastructure/memory"
	"github.com/hijjiri/todo-app/internal/infrastructure/mongodb"
	"github.com/hijjiri/todo-app/internal/infrastructure/retry"
	"github.com/hijjiri/todo-app/internal/infrastructure/sqlstore"
)

// Backend はリポジトリ兼ヘルスチェック対象。
type Backend interface {
	domain_todo.Repository
	domain_todo.Pinger
}

// Store は開いたバックエンドと後始末。
type Store struct {
	Backend Backend
	Driver  string

	closeFn   func(ctx context.Context) error
	migrateFn func(ctx context.Context) error
}

func (s *Store) Close(ctx context.Context) error {
	if s == nil || s.closeFn == nil {
		return nil
	}
	return s.closeFn(ctx)
}

// Open は STORE_DRIVER に応じたバックエンドを作る。
// 疎通確認はしないので、起動時は PingWithRetry を呼ぶこと。
func Open(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	readRetry := retry.ReadPolicy(cfg.ReadRetryAttempts)

	switch cfg.Driver {
	case config.DriverMemory:
		logger.Warn("using in-memory store; data is lost on restart")
		return &Store{Backend: memory.NewTodoRepository(), Driver: cfg.Driver}, nil

	case config.DriverMongo:
		client, coll, err := mongodb.Connect(ctx, mongodb.Config{
			URI:        cfg.Mongo.URI,
			Database:   cfg.Mongo.Database,
			Collection: cfg.Mongo.Collection,
		}, logger)
		if err != nil {
			return nil, err
		}
		return &Store{
			Backend: mongodb.NewTodoRepository(coll, logger, mongodb.WithReadRetry(readRetry)),
			Driver:  cfg.Driver,
			closeFn: client.Disconnect,
		}, nil

	case config.DriverMySQL:
		dsn := sqlstore.BuildMySQLDSN(sqlstore.MySQLConfig{
			Host:     cfg.MySQL.Host,
			Port:     cfg.MySQL.Port,
			User:     cfg.MySQL.User,
			Password: cfg.MySQL.Password,
			Name:     cfg.MySQL.Name,
		})
		return openSQL(sqlstore.DialectMySQL, dsn, cfg.Driver, readRetry, logger)

	case config.DriverSQLite:
		return openSQL(sqlstore.DialectSQLite, sqlstore.BuildSQLiteDSN(cfg.SQLitePath), cfg.Driver, readRetry, logger)

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func openSQL(dialect sqlstore.Dialect, dsn, driver string, readRetry retry.Policy, logger *zap.Logger) (*Store, error) {
	db, err := sqlstore.Open(dialect, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	return &Store{
		Backend: sqlstore.NewTodoRepository(db, logger, readRetry),
		Driver:  driver,
		closeFn: func(context.Context) error { return db.Close() },
		migrateFn: func(ctx context.Context) error {
			return sqlstore.Migrate(ctx, db, dialect)
		},
	}, nil
}

// Migrate は SQL バックエンドならテーブルを作る。それ以外は何もしない。
// 疎通確認のあとに呼ぶ。
func (s *Store) Migrate(ctx context.Context) error {
	if s == nil || s.migrateFn == nil {
		return nil
	}
	return s.migrateFn(ctx)
}

// PingWithRetry は疎通できるまで interval 間隔で maxAttempts 回まで試す。
func PingWithRetry(ctx context.Context, p domain_todo.Pinger, logger *zap.Logger, maxAttempts int, interval time.Duration) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	for i := 1; i <= maxAttempts; i++ {
		err := p.Ping(ctx)
		if err == nil {
			return nil
		}
		logger.Warn("failed to ping store",
			zap.Int("attempt", i),
			zap.Int("maxAttempts", maxAttempts),
			zap.Error(err),
		)
		if i == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
	return fmt.Errorf("failed to ping store after %d attempts", maxAttempts)
}
