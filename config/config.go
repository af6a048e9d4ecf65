package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Cache    CacheConfig    `yaml:"cache"`
	Fetch    FetchConfig    `yaml:"fetch"`
	Refresh  RefreshConfig  `yaml:"refresh"`
	Cron     CronConfig     `yaml:"cron"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type CacheConfig struct {
	Backend  string        `yaml:"backend"` // redis, memory
	RedisURL string        `yaml:"redis_url"`
	TTL      time.Duration `yaml:"ttl"`
}

type FetchConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	UserAgent    string        `yaml:"user_agent"`
	HostInterval time.Duration `yaml:"host_interval"` // 同一主机两次请求的最小间隔, 0 表示不限速
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
}

type RefreshConfig struct {
	Workers       int           `yaml:"workers"`     // 并发抓取的订阅源数量
	MaxFeeds      int           `yaml:"max_feeds"`   // 单个用户一次刷新的订阅源上限
	ArticleTTL    time.Duration `yaml:"article_ttl"` // 文章保留时长
	StaleAfter    time.Duration `yaml:"stale_after"` // 超过该时长未抓取则提示客户端刷新
	ReapBatchSize int           `yaml:"reap_batch_size"`
}

type CronConfig struct {
	RefreshInterval string `yaml:"refresh_interval"` // 定时刷新, 为空则不启用
	ReapInterval    string `yaml:"reap_interval"`    // 过期文章清理, 为空则不启用
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
}

// Default 默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "3000",
			Mode: "release",
		},
		Database: DatabaseConfig{
			Path: "data/feeds.db",
		},
		Cache: CacheConfig{
			Backend:  "memory",
			RedisURL: "redis://localhost:6379/0",
			TTL:      time.Hour,
		},
		Fetch: FetchConfig{
			Timeout:      10 * time.Second,
			UserAgent:    "go-feeds/1.0 (RSS Reader)",
			HostInterval: 500 * time.Millisecond,
			MaxBodyBytes: 5 << 20,
		},
		Refresh: RefreshConfig{
			Workers:       5,
			MaxFeeds:      100,
			ArticleTTL:    7 * 24 * time.Hour,
			StaleAfter:    6 * time.Hour,
			ReapBatchSize: 500,
		},
		Cron: CronConfig{
			RefreshInterval: "0 */6 * * *",
			ReapInterval:    "@hourly",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load 加载配置文件
// 顺序: 默认配置 -> 配置文件(存在时) -> 环境变量覆盖
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", configPath, err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Port = port
	}
	if mode := os.Getenv("GIN_MODE"); mode != "" {
		cfg.Server.Mode = mode
	}
	if dbPath := os.Getenv("DB_PATH"); dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if backend := os.Getenv("CACHE_BACKEND"); backend != "" {
		cfg.Cache.Backend = backend
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cfg.Cache.RedisURL = redisURL
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if file := os.Getenv("LOG_FILE"); file != "" {
		cfg.Log.File = file
	}
	if workers := os.Getenv("REFRESH_WORKERS"); workers != "" {
		n, err := strconv.Atoi(workers)
		if err != nil {
			return fmt.Errorf("REFRESH_WORKERS: %w", err)
		}
		cfg.Refresh.Workers = n
	}
	return nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case "redis", "memory":
	default:
		return fmt.Errorf("unsupported cache backend %q", c.Cache.Backend)
	}
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be positive")
	}
	if c.Refresh.Workers <= 0 {
		return fmt.Errorf("refresh.workers must be > 0")
	}
	if c.Refresh.MaxFeeds <= 0 {
		return fmt.Errorf("refresh.max_feeds must be > 0")
	}
	if c.Refresh.ArticleTTL <= 0 {
		return fmt.Errorf("refresh.article_ttl must be positive")
	}
	return nil
}

// GetServerAddress 获取服务器监听地址
func (c *Config) GetServerAddress() string {
	// 如果端口是纯数字,加上冒号前缀
	if _, err := strconv.Atoi(c.Server.Port); err == nil {
		return ":" + c.Server.Port
	}
	return c.Server.Port
}
