package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Qdrant   QdrantConfig   `mapstructure:"qdrant"`
	Vector   VectorConfig   `mapstructure:"vector"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Model    ModelConfig    `mapstructure:"model"`
	Download DownloadConfig `mapstructure:"download"`
	Embed    EmbedConfig    `mapstructure:"embed"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Spotify  SpotifyConfig  `mapstructure:"spotify"`
	Search   SearchConfig   `mapstructure:"search"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

// DatabaseConfig selects the relational store. Driver is sqlite or postgres.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Path     string `mapstructure:"path"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`

	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the connection string for the configured driver.
func (c DatabaseConfig) DSN() string {
	if c.Driver != "postgres" {
		return c.Path
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type QdrantConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Collection string `mapstructure:"collection"`
	APIKey     string `mapstructure:"api_key"`
	UseTLS     bool   `mapstructure:"use_tls"`
}

// VectorConfig picks the index implementation: qdrant or memory.
type VectorConfig struct {
	Backend string `mapstructure:"backend"`
}

// StorageConfig configures the optional audio archive.
type StorageConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Type      string `mapstructure:"type"` // s3, r2, minio
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Prefix    string `mapstructure:"prefix"`
}

type DownloadConfig struct {
	AudioDir      string        `mapstructure:"audio_dir"`
	MaxConcurrent int           `mapstructure:"max_concurrent"`
	Timeout       time.Duration `mapstructure:"timeout"`
	Binary        string        `mapstructure:"binary"`
}

type EmbedConfig struct {
	ItemTimeout time.Duration `mapstructure:"item_timeout"`
}

type SyncConfig struct {
	PageSize  int           `mapstructure:"page_size"`
	PageDelay time.Duration `mapstructure:"page_delay"`
}

type SpotifyConfig struct {
	AccessToken string `mapstructure:"access_token"`
	BaseURL     string `mapstructure:"base_url"`
}

type SearchConfig struct {
	DefaultResults int `mapstructure:"default_results"`
	MaxResults     int `mapstructure:"max_results"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets and deployment endpoints
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("qdrant.host", "QDRANT_HOST")
	v.BindEnv("qdrant.port", "QDRANT_PORT")
	v.BindEnv("qdrant.api_key", "QDRANT_API_KEY")
	v.BindEnv("storage.endpoint", "STORAGE_ENDPOINT")
	v.BindEnv("storage.access_key", "STORAGE_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "STORAGE_SECRET_KEY")
	v.BindEnv("model.base_url", "MODEL_BASE_URL")
	v.BindEnv("model.api_key", "MODEL_API_KEY")
	v.BindEnv("spotify.access_token", "SPOTIFY_ACCESS_TOKEN")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Model.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/vibesearch.db")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("qdrant.host", "localhost")
	v.SetDefault("qdrant.port", 6334)
	v.SetDefault("qdrant.collection", "tracks")

	v.SetDefault("vector.backend", "qdrant")

	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.type", "minio")
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.bucket", "vibesearch")
	v.SetDefault("storage.region", "us-east-1")

	v.SetDefault("model.base_url", "http://localhost:8500")
	v.SetDefault("model.name", "laion/larger_clap_music_and_speech")
	v.SetDefault("model.dimensions", 512)
	v.SetDefault("model.timeout", 5*time.Minute)

	v.SetDefault("download.audio_dir", "./data/audio")
	v.SetDefault("download.max_concurrent", 4)
	v.SetDefault("download.timeout", 120*time.Second)
	v.SetDefault("download.binary", "yt-dlp")

	v.SetDefault("embed.item_timeout", 2*time.Minute)

	v.SetDefault("sync.page_size", 50)
	v.SetDefault("sync.page_delay", 100*time.Millisecond)

	v.SetDefault("spotify.base_url", "https://api.spotify.com/v1")

	v.SetDefault("search.default_results", 20)
	v.SetDefault("search.max_results", 100)
}
