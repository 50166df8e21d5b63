package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

const EnvPrefix = "TASKBOARD"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Events   EventsConfig   `mapstructure:"events"`
	Assist   AssistConfig   `mapstructure:"assist"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RateLimit       int           `mapstructure:"rate_limit"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// StorageConfig описывает слот с задачами
type StorageConfig struct {
	Type       string        `mapstructure:"type"` // memory, file, sqlite, redis, postgres
	Key        string        `mapstructure:"key"`
	Dir        string        `mapstructure:"dir"`
	SQLitePath string        `mapstructure:"sqlite_path"`
	Latency    time.Duration `mapstructure:"latency"`
}

type DatabaseConfig struct {
	URL            string        `mapstructure:"url"`
	MaxConnections int32         `mapstructure:"max_connections"`
	MinConnections int32         `mapstructure:"min_connections"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	Migrate        bool          `mapstructure:"migrate"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

type WorkerConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type EventsConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Brokers []string      `mapstructure:"brokers"`
	Topic   string        `mapstructure:"topic"`
	Buffer  int           `mapstructure:"buffer"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type AssistConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

var storageTypes = []string{"memory", "file", "sqlite", "redis", "postgres"}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.rate_limit", 100)
	v.SetDefault("server.cors_origins", []string{"http://localhost:5173"})

	v.SetDefault("storage.type", "file")
	v.SetDefault("storage.key", "tasks_db")
	v.SetDefault("storage.dir", "data")
	v.SetDefault("storage.sqlite_path", "data/tasks.db")
	v.SetDefault("storage.latency", 600*time.Millisecond)

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.min_connections", 1)
	v.SetDefault("database.idle_timeout", 5*time.Minute)
	v.SetDefault("database.migrate", true)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "taskboard:")

	v.SetDefault("logging.development", false)

	v.SetDefault("worker.interval", time.Minute)

	v.SetDefault("events.enabled", false)
	v.SetDefault("events.brokers", []string{"localhost:9092"})
	v.SetDefault("events.topic", "task-outcomes")
	v.SetDefault("events.buffer", 256)
	v.SetDefault("events.timeout", 5*time.Second)

	v.SetDefault("assist.api_key", "")
	v.SetDefault("assist.model", "gemini-2.5-flash")
}

// Load читает config.yml и переменные окружения TASKBOARD_*.
// Отсутствующий файл не ошибка: берутся значения по умолчанию.
func Load(path string) (*Config, error) {
	return LoadFs(afero.NewOsFs(), path)
}

func LoadFs(fs afero.Fs, path string) (*Config, error) {
	v := viper.New()
	v.SetFs(fs)
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = "config.yml"
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("ошибка чтения %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("ошибка разбора конфигурации: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	valid := false
	for _, t := range storageTypes {
		if c.Storage.Type == t {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("неизвестный тип хранилища %q, допустимы: %s", c.Storage.Type, strings.Join(storageTypes, ", "))
	}
	if c.Storage.Type == "postgres" && c.Database.URL == "" {
		return errors.New("для postgres нужен database.url")
	}
	if strings.TrimSpace(c.Storage.Key) == "" {
		return errors.New("storage.key не может быть пустым")
	}
	if c.Events.Enabled && (len(c.Events.Brokers) == 0 || c.Events.Topic == "") {
		return errors.New("для событий нужны events.brokers и events.topic")
	}
	if c.Storage.Latency < 0 {
		return errors.New("storage.latency не может быть отрицательной")
	}
	return nil
}

func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}
