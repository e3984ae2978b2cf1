package todo

import (
	"errors"
	"strings"
)

// Item は Todo 集約のルートエンティティ。
// ID はストアが採番し、作成後は変わらない。
type Item struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	IsCompleted bool   `json:"isCompleted"`
}

// ---- ドメインエラー（sentinel error） ----

var (
	// 該当 ID の Item が存在しないときに使う共通エラー。
	ErrNotFound = errors.New("todo not found")

	// タイトル必須ポリシーが有効で、タイトルが空のときに使う。
	ErrEmptyTitle = errors.New("todo title must not be empty")

	// ID が空など、どのストアでも一致しえない値のときに使う。
	ErrInvalidID = errors.New("todo id is invalid")
)

// ---- ファクトリ / バリデーション ----

// NewItem は「新規作成用」のコンストラクタ。
// 作成時は常に未完了（IsCompleted=false）で始まる。クライアントの指定は無視する。
func NewItem(title string) *Item {
	return &Item{
		Title:       title,
		IsCompleted: false,
	}
}

// Toggled は完了フラグだけを反転したコピーを返す。
func (i Item) Toggled() Item {
	i.IsCompleted = !i.IsCompleted
	return i
}

// TitlePolicy はタイトルの検証ルール。
// 既定値（ゼロ値）は何も検証しない。
type TitlePolicy struct {
	RequireNonEmpty bool
}

// Validate は policy に従ってタイトルを検証する。
func (p TitlePolicy) Validate(title string) error {
	if p.RequireNonEmpty && strings.TrimSpace(title) == "" {
		return ErrEmptyTitle
	}
	return nil
}

// ValidateID は ID まわりの共通バリデーション。
func ValidateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrInvalidID
	}
	return nil
}
