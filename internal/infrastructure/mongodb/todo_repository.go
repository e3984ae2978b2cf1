package mongodb

import (
	"context"
	"errors"
	"fmt"

	domain_todo "github.com/hijjiri/todo-app/internal/domain/todo"
	"github.com/hijjiri/todo-app/internal/infrastructure/retry"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// document はコレクションに保存する形。
// フィールド名は既存の ToDoItems コレクション（Title / IsCompleted）に合わせる。
type document struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Title       string             `bson:"Title"`
	IsCompleted bool               `bson:"IsCompleted"`
}

func (d document) toDomain() *domain_todo.Item {
	return &domain_todo.Item{
		ID:          d.ID.Hex(),
		Title:       d.Title,
		IsCompleted: d.IsCompleted,
	}
}

// TodoRepository は 1 つのコレクションに対する domain_todo.Repository 実装。
// リクエスト間でキャッシュは持たない。
type TodoRepository struct {
	coll      *mongo.Collection
	logger    *zap.Logger
	readRetry retry.Policy
}

// Option は TodoRepository の設定を変える。
type Option func(*TodoRepository)

// WithReadRetry は List / Get に使う再試行ポリシーを設定する。
func WithReadRetry(p retry.Policy) Option {
	return func(r *TodoRepository) {
		r.readRetry = p
	}
}

func NewTodoRepository(coll *mongo.Collection, logger *zap.Logger, opts ...Option) *TodoRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &TodoRepository{
		coll:      coll,
		logger:    logger,
		readRetry: retry.Once,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// List はコレクションを全件取得する（並びはストア任せ）。
func (r *TodoRepository) List(ctx context.Context) ([]*domain_todo.Item, error) {
	var docs []document
	err := retry.Do(ctx, r.readRetry, isRetryable, func() error {
		cur, err := r.coll.Find(ctx, bson.M{})
		if err != nil {
			return err
		}
		docs = docs[:0]
		return cur.All(ctx, &docs)
	})
	if err != nil {
		return nil, fmt.Errorf("mongo find: %w", err)
	}

	items := make([]*domain_todo.Item, 0, len(docs))
	for _, d := range docs {
		items = append(items, d.toDomain())
	}
	return items, nil
}

// Get は _id 完全一致で 1 件取得する。
func (r *TodoRepository) Get(ctx context.Context, id string) (*domain_todo.Item, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		// ObjectID として読めない ID はどのドキュメントにも一致しない
		return nil, domain_todo.ErrNotFound
	}

	var doc document
	err = retry.Do(ctx, r.readRetry, isRetryable, func() error {
		return r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain_todo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo find one: %w", err)
	}
	return doc.toDomain(), nil
}

// Create は新しい ObjectID を振って INSERT し、ID 付きで返す。
func (r *TodoRepository) Create(ctx context.Context, it *domain_todo.Item) (*domain_todo.Item, error) {
	doc := document{
		ID:          primitive.NewObjectID(),
		Title:       it.Title,
		IsCompleted: it.IsCompleted,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("mongo insert: %w", err)
	}
	return doc.toDomain(), nil
}

// Update は Title と IsCompleted を $set で置き換える。
// MatchedCount > 0 なら true（値が同じで変更なしでも一致扱い）。
func (r *TodoRepository) Update(ctx context.Context, it *domain_todo.Item) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(it.ID)
	if err != nil {
		return false, nil
	}

	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{
			"Title":       it.Title,
			"IsCompleted": it.IsCompleted,
		}},
	)
	if err != nil {
		return false, fmt.Errorf("mongo update: %w", err)
	}
	return res.MatchedCount > 0, nil
}

// Delete は削除件数 > 0 なら true を返す
func (r *TodoRepository) Delete(ctx context.Context, id string) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, nil
	}

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return false, fmt.Errorf("mongo delete: %w", err)
	}
	return res.DeletedCount > 0, nil
}

// Ping はコレクションの属するクライアントで primary に疎通確認する。
func (r *TodoRepository) Ping(ctx context.Context) error {
	return r.coll.Database().Client().Ping(ctx, readpref.Primary())
}

func isRetryable(err error) bool {
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return true
	}
	return retry.IsTransient(err)
}
