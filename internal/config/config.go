package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ストアの種類
const (
	DriverMongo  = "mongo"
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

//----------------------
// Config struct
//----------------------

type MongoConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

type StoreConfig struct {
	Driver            string      `yaml:"driver"`
	ReadRetryAttempts int         `yaml:"read_retry_attempts"`
	Mongo             MongoConfig `yaml:"mongo"`
	MySQL             MySQLConfig `yaml:"mysql"`
	SQLitePath        string      `yaml:"sqlite_path"`
}

type Config struct {
	HTTPAddr       string      `yaml:"http_addr"`
	MetricsAddr    string      `yaml:"metrics_addr"`
	GRPCHealthAddr string      `yaml:"grpc_health_addr"`
	Store          StoreConfig `yaml:"store"`

	// 0 なら付与しない（ランタイムの既定のまま）
	HTTPRequestTimeout time.Duration `yaml:"http_request_timeout"`

	// タイトル必須にするか。既定 false（空タイトルも受け付ける）
	RequireTitle bool `yaml:"require_title"`

	CORSAllowOrigin  string `yaml:"cors_allow_origin"`
	OTELTracesStdout bool   `yaml:"otel_traces_stdout"`
	LogLevel         string `yaml:"log_level"`
}

// Default は何も設定されていないときの値。
func Default() Config {
	return Config{
		HTTPAddr:       ":5000",
		MetricsAddr:    ":9464",
		GRPCHealthAddr: ":50051",
		Store: StoreConfig{
			Driver:            DriverMongo,
			ReadRetryAttempts: 1,
			Mongo: MongoConfig{
				URI:        "mongodb://localhost:27017",
				Database:   "ToDoAppDb",
				Collection: "ToDoItems",
			},
			MySQL: MySQLConfig{
				Host:     "127.0.0.1",
				Port:     "3306",
				User:     "root",
				Password: "root",
				Name:     "todoapp",
			},
			SQLitePath: "todos.db",
		},
		CORSAllowOrigin: "*",
		LogLevel:        "info",
	}
}

// Load は「既定値 → CONFIG_FILE (YAML) → 環境変数」の順に重ねて読む。
// 値の形式が不正な env は起動失敗にせず、warn して手前の値を使う。
func Load(logger *zap.Logger) (Config, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
		logger.Info("loaded config file", zap.String("path", path))
	}

	cfg.applyEnvOverrides(logger)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvOverrides(logger *zap.Logger) {
	setString(&c.HTTPAddr, "HTTP_ADDR")
	setString(&c.MetricsAddr, "METRICS_ADDR")
	setString(&c.GRPCHealthAddr, "GRPC_HEALTH_ADDR")

	setString(&c.Store.Driver, "STORE_DRIVER")
	setInt(logger, &c.Store.ReadRetryAttempts, "STORE_READ_RETRY_ATTEMPTS")
	setString(&c.Store.Mongo.URI, "MONGO_URI")
	setString(&c.Store.Mongo.Database, "MONGO_DATABASE")
	setString(&c.Store.Mongo.Collection, "MONGO_COLLECTION")
	setString(&c.Store.MySQL.Host, "DB_HOST")
	setString(&c.Store.MySQL.Port, "DB_PORT")
	setString(&c.Store.MySQL.User, "DB_USER")
	setString(&c.Store.MySQL.Password, "DB_PASSWORD")
	setString(&c.Store.MySQL.Name, "DB_NAME")
	setString(&c.Store.SQLitePath, "SQLITE_PATH")

	setDuration(logger, &c.HTTPRequestTimeout, "HTTP_REQUEST_TIMEOUT")
	setBool(logger, &c.RequireTitle, "REQUIRE_TITLE")
	setString(&c.CORSAllowOrigin, "CORS_ALLOW_ORIGIN")
	setBool(logger, &c.OTELTracesStdout, "OTEL_TRACES_STDOUT")
	setString(&c.LogLevel, "LOG_LEVEL")
}

// Validate は起動前に直せない設定ミスだけを弾く。
func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverMongo, DriverMySQL, DriverSQLite, DriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q (want mongo|mysql|sqlite|memory)", c.Store.Driver)
	}
	if c.HTTPRequestTimeout < 0 {
		return fmt.Errorf("HTTP_REQUEST_TIMEOUT must not be negative: %s", c.HTTPRequestTimeout)
	}
	return nil
}

// ClientConfig は cmd/todo（API クライアント側）の設定。
type ClientConfig struct {
	APIURL  string
	LogFile string
}

// LoadClient は TODO_API_URL / TODO_LOG_FILE を読む。
func LoadClient() ClientConfig {
	return ClientConfig{
		APIURL:  getenv("TODO_API_URL", "http://localhost:5000"),
		LogFile: getenv("TODO_LOG_FILE", ""),
	}
}

//----------------------
// 共通: getenv ヘルパ
//----------------------

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func setString(dst *string, key string) {
	*dst = getenv(key, *dst)
}

func setInt(logger *zap.Logger, dst *int, key string) {
	raw := os.Getenv(key)
	if raw == "" {
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		logger.Warn("invalid int env, keep current value",
			zap.String("key", key), zap.String("raw", raw), zap.Int("current", *dst), zap.Error(err))
		return
	}
	*dst = n
}

func setBool(logger *zap.Logger, dst *bool, key string) {
	raw := os.Getenv(key)
	if raw == "" {
		return
	}
	b, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		logger.Warn("invalid bool env, keep current value",
			zap.String("key", key), zap.String("raw", raw), zap.Bool("current", *dst), zap.Error(err))
		return
	}
	*dst = b
}

func setDuration(logger *zap.Logger, dst *time.Duration, key string) {
	raw := os.Getenv(key)
	if raw == "" {
		return
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		logger.Warn("invalid duration env, keep current value",
			zap.String("key", key), zap.String("raw", raw), zap.Duration("current", *dst), zap.Error(err))
		return
	}
	*dst = d
}
