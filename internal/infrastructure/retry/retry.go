package retry

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"strings"
	"time"
)

// Policy は「何回・どのくらい待つか」をまとめた設定。
type Policy struct {
	MaxAttempts int           // 例: 3（合計3回試す）
	BaseBackoff time.Duration // 例: 50ms
	MaxBackoff  time.Duration // 例: 500ms
}

// Once は再試行しない（1回だけ実行する）ポリシー。既定値。
var Once = Policy{MaxAttempts: 1}

// DefaultRead は「読み取り（List / Get）」向けの安全寄りデフォルト。
// 書き込みには使わないこと（二重書き込みになりうる）。
var DefaultRead = Policy{
	MaxAttempts: 3,
	BaseBackoff: 50 * time.Millisecond,
	MaxBackoff:  500 * time.Millisecond,
}

// ReadPolicy は試行回数だけを指定して DefaultRead のバックオフを使う。
func ReadPolicy(attempts int) Policy {
	if attempts <= 1 {
		return Once
	}
	p := DefaultRead
	p.MaxAttempts = attempts
	return p
}

// Classifier はエラーが一時的（retryable）かどうかを判定する。
type Classifier func(err error) bool

// Do は、retryable なエラーのみをバックオフ付きで再実行する。
// - ctx の deadline/cancel を尊重して即中断する
func Do(ctx context.Context, policy Policy, retryable Classifier, fn func() error) error {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if policy.BaseBackoff <= 0 {
		policy.BaseBackoff = 10 * time.Millisecond
	}
	if policy.MaxBackoff <= 0 {
		policy.MaxBackoff = 200 * time.Millisecond
	}
	if retryable == nil {
		retryable = IsTransient
	}

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		// ctx が終了していれば即返す
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		// retry 対象外なら即返す
		if !retryable(err) {
			return err
		}

		// 最終試行なら返す
		if attempt == policy.MaxAttempts {
			return err
		}

		sleep := Backoff(policy.BaseBackoff, policy.MaxBackoff, attempt)
		if err := sleepWithContext(ctx, sleep); err != nil {
			return err
		}
	}

	return lastErr
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Backoff は指数バックオフ（ジッタ無し）
// attempt: 1,2,3...
func Backoff(base, max time.Duration, attempt int) time.Duration {
	// base * 2^(attempt-1)
	b := base
	for i := 1; i < attempt; i++ {
		b *= 2
		if b >= max {
			return max
		}
	}
	if b > max {
		return max
	}
	return b
}

// IsTransient は “一時的に起きがちな” DB/ネットワーク系だけ true。
// ストア固有の判定は各 repository 側で足す。
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	// ctx 系は retry しない（上位に返す）
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// database/sql が「接続としてはダメ」と判断するケース
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}

	// 文字列ベースの保険
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "deadlock"):
		return true
	case strings.Contains(msg, "lock wait timeout"):
		return true
	case strings.Contains(msg, "connection reset"):
		return true
	case strings.Contains(msg, "broken pipe"):
		return true
	case strings.Contains(msg, "database is locked"):
		return true
	default:
		return false
	}
}
