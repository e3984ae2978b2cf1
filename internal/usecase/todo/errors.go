package todo_usecase

import "errors"

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsNotFound は Handler 側から使う判定ヘルパ。
// ErrInvalidID もどの Item にも一致しないので NotFound として扱う。
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidID)
}
