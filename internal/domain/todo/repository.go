package todo

import "context"

// Repository は Item の永続化を抽象化するポート。
// Update / Delete の bool は「一致したドキュメントがあったか」を表す。
// 事前の読み取りではなく、更新・削除の結果件数から判定すること。
type Repository interface {
	List(ctx context.Context) ([]*Item, error)
	Get(ctx context.Context, id string) (*Item, error)
	Create(ctx context.Context, item *Item) (*Item, error)
	Update(ctx context.Context, item *Item) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// Pinger はストアの疎通確認ができる実装が満たす。
type Pinger interface {
	Ping(ctx context.Context) error
}
