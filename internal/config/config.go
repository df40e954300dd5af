package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "MEMOREASE"

type Config struct {
	HTTPConfig   HTTPConfig
	RemoteConfig RemoteConfig
	SyncConfig   SyncConfig
	LogConfig    LogConfig
	ServerConfig ServerConfig
}

type HTTPConfig struct {
	Timeout         time.Duration
	MaxIdleConns    int
	MaxConnsPerHost int
	UserAgent       string
	IdleConnTimeout time.Duration
	RetryAttempts   int
	RetryDelay      time.Duration
}

type RemoteConfig struct {
	// Kind selects the remote data source: http, sqlserver or fixture.
	Kind        string
	BaseURL     string
	Token       *string
	PageSize    int
	MaxPages    int
	FixturePath string
	SQLServer   SQLServerConfig
}

type SQLServerConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

type SyncConfig struct {
	FetchTimeout time.Duration
	// PurgeStale removes local rows missing from the remote snapshot.
	PurgeStale bool
}

type LogConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

type DbConfig struct {
	Path         string
	BusyTimeout  time.Duration
	MaxOpenConns int
}

// Load builds a viper instance from defaults, an optional config file and
// MEMOREASE_* environment variables, in increasing order of precedence.
func Load(path string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}
	return v, nil
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("http.timeout", 30*time.Second)
	v.SetDefault("http.max_idle_conns", 10)
	v.SetDefault("http.max_conns_per_host", 4)
	v.SetDefault("http.user_agent", "memorease/1.0")
	v.SetDefault("http.idle_conn_timeout", 30*time.Second)
	v.SetDefault("http.retry_attempts", 1)
	v.SetDefault("http.retry_delay", 2*time.Second)

	v.SetDefault("remote.kind", "http")
	v.SetDefault("remote.base_url", "http://localhost:8000/api")
	v.SetDefault("remote.token", "")
	v.SetDefault("remote.page_size", 0)
	v.SetDefault("remote.max_pages", 500)
	v.SetDefault("remote.fixture_path", "")
	v.SetDefault("remote.sqlserver.host", "localhost")
	v.SetDefault("remote.sqlserver.port", 1433)
	v.SetDefault("remote.sqlserver.user", "")
	v.SetDefault("remote.sqlserver.password", "")
	v.SetDefault("remote.sqlserver.dbname", "memorease")

	v.SetDefault("sync.fetch_timeout", 60*time.Second)
	v.SetDefault("sync.purge_stale", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)

	v.SetDefault("server.addr", "127.0.0.1:8787")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("db.path", "data/memorease.db")
	v.SetDefault("db.busy_timeout", 5*time.Second)
	v.SetDefault("db.max_open_conns", 4)
}

func NewConfig(v *viper.Viper) *Config {
	return &Config{
		HTTPConfig: HTTPConfig{
			Timeout:         v.GetDuration("http.timeout"),
			MaxIdleConns:    v.GetInt("http.max_idle_conns"),
			MaxConnsPerHost: v.GetInt("http.max_conns_per_host"),
			UserAgent:       v.GetString("http.user_agent"),
			IdleConnTimeout: v.GetDuration("http.idle_conn_timeout"),
			RetryAttempts:   v.GetInt("http.retry_attempts"),
			RetryDelay:      v.GetDuration("http.retry_delay"),
		},
		RemoteConfig: RemoteConfig{
			Kind:        strings.ToLower(v.GetString("remote.kind")),
			BaseURL:     strings.TrimRight(v.GetString("remote.base_url"), "/"),
			Token:       LoadOptionalString(v, "remote.token"),
			PageSize:    v.GetInt("remote.page_size"),
			MaxPages:    v.GetInt("remote.max_pages"),
			FixturePath: v.GetString("remote.fixture_path"),
			SQLServer: SQLServerConfig{
				Host:     v.GetString("remote.sqlserver.host"),
				Port:     v.GetInt("remote.sqlserver.port"),
				User:     v.GetString("remote.sqlserver.user"),
				Password: v.GetString("remote.sqlserver.password"),
				DBName:   v.GetString("remote.sqlserver.dbname"),
			},
		},
		SyncConfig: SyncConfig{
			FetchTimeout: v.GetDuration("sync.fetch_timeout"),
			PurgeStale:   v.GetBool("sync.purge_stale"),
		},
		LogConfig: LogConfig{
			Level:      v.GetString("log.level"),
			Pretty:     v.GetBool("log.pretty"),
			File:       v.GetString("log.file"),
			MaxSizeMB:  v.GetInt("log.max_size_mb"),
			MaxBackups: v.GetInt("log.max_backups"),
			MaxAgeDays: v.GetInt("log.max_age_days"),
		},
		ServerConfig: ServerConfig{
			Addr:            v.GetString("server.addr"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
	}
}

func NewDbConfig(v *viper.Viper) *DbConfig {
	return &DbConfig{
		Path:         v.GetString("db.path"),
		BusyTimeout:  v.GetDuration("db.busy_timeout"),
		MaxOpenConns: v.GetInt("db.max_open_conns"),
	}
}

func (c *Config) Validate() error {
	switch c.RemoteConfig.Kind {
	case "http":
		if c.RemoteConfig.BaseURL == "" {
			return fmt.Errorf("remote.base_url is required for the http source")
		}
	case "sqlserver":
		if c.RemoteConfig.SQLServer.Host == "" || c.RemoteConfig.SQLServer.DBName == "" {
			return fmt.Errorf("remote.sqlserver.host and remote.sqlserver.dbname are required for the sqlserver source")
		}
	case "fixture":
		if c.RemoteConfig.FixturePath == "" {
			return fmt.Errorf("remote.fixture_path is required for the fixture source")
		}
	default:
		return fmt.Errorf("unknown remote.kind %q", c.RemoteConfig.Kind)
	}
	if c.HTTPConfig.RetryAttempts < 0 {
		return fmt.Errorf("http.retry_attempts must not be negative")
	}
	return nil
}

func LoadOptionalString(v *viper.Viper, key string) *string {
	value := v.GetString(key)
	if value == "" {
		return nil
	}
	return &value
}
