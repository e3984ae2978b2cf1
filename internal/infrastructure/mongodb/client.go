package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Config は接続文字列・DB 名・コレクション名。
type Config struct {
	URI        string
	Database   string
	Collection string
}

// Connect はクライアントを作ってコレクションのハンドルを返す。
// 実際の接続は遅延されるので、疎通確認は呼び出し側で Ping すること。
func Connect(ctx context.Context, cfg Config, logger *zap.Logger) (*mongo.Client, *mongo.Collection, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}

	logger.Info("mongo client created",
		zap.String("database", cfg.Database),
		zap.String("collection", cfg.Collection),
	)

	coll := client.Database(cfg.Database).Collection(cfg.Collection)
	return client, coll, nil
}
