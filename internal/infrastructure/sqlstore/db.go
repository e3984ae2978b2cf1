package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// Dialect は対応している RDB の種類。
type Dialect string

const (
	DialectMySQL  Dialect = "mysql"
	DialectSQLite Dialect = "sqlite"
)

// MySQLConfig は MySQL 接続情報。
type MySQLConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

// BuildMySQLDSN は driver の Config から DSN を組み立てる。
// ClientFoundRows を有効にして、値が変わらない UPDATE も一致件数に数える。
func BuildMySQLDSN(cfg MySQLConfig) string {
	c := mysql.NewConfig()
	c.User = cfg.User
	c.Passwd = cfg.Password
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(cfg.Host, cfg.Port)
	c.DBName = cfg.Name
	c.ParseTime = true
	c.ClientFoundRows = true
	c.Timeout = 5 * time.Second
	c.Params = map[string]string{"charset": "utf8mb4"}
	return c.FormatDSN()
}

// BuildSQLiteDSN はファイルパスに busy_timeout を付ける。
func BuildSQLiteDSN(path string) string {
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
}

// Open は dialect に応じたドライバで *sql.DB を開く。
func Open(dialect Dialect, dsn string) (*sql.DB, error) {
	switch dialect {
	case DialectMySQL:
		return sql.Open("mysql", dsn)
	case DialectSQLite:
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, err
		}
		// SQLite は書き込みが単一なので接続も 1 本に絞る
		db.SetMaxOpenConns(1)
		return db, nil
	default:
		return nil, fmt.Errorf("unknown sql dialect %q", dialect)
	}
}

var schemas = map[Dialect]string{
	DialectMySQL: `CREATE TABLE IF NOT EXISTS todos (
	seq BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
	id CHAR(24) NOT NULL UNIQUE,
	title TEXT NOT NULL,
	is_completed BOOLEAN NOT NULL DEFAULT FALSE
)`,
	DialectSQLite: `CREATE TABLE IF NOT EXISTS todos (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL,
	is_completed INTEGER NOT NULL DEFAULT 0
)`,
}

// Migrate は todos テーブルが無ければ作る。
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	ddl, ok := schemas[dialect]
	if !ok {
		return fmt.Errorf("unknown sql dialect %q", dialect)
	}
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("migrate todos: %w", err)
	}
	return nil
}
