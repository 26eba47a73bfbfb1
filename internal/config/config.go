// Package config loads and exposes application configuration (TOML).
package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Default configuration values used when a field is missing in TOML.
const (
	DefaultConfigPath     = "config.toml"
	DefaultHTTPAddr       = ":8080"
	DefaultJWTExpiresIn   = "24h"
	DefaultPGHost         = "127.0.0.1"
	DefaultPGPort         = 5432
	DefaultPGUser         = "postgres"
	DefaultPGDatabase     = "stagehand"
	DefaultPGSSLMode      = "disable"
	DefaultMinioEndpoint  = "127.0.0.1:9000"
	DefaultMinioBucket    = "stagehand-media"
	DefaultStorageRoot    = "artists"
	DefaultFFmpegPath     = "ffmpeg"
	DefaultFFprobePath    = "ffprobe"
	DefaultReapInterval   = "10m"
	DefaultProbeTimeout   = 10 * time.Second
	DefaultURLExpiry      = "24h"
	DefaultQuotaBytes     = 3 << 30 // 3 GiB across tracks and videos
	DefaultMaxAssetBytes  = 1 << 30 // single file ceiling
	DefaultDebounceMillis = 800
)

// Config is the root application configuration loaded from TOML.
type Config struct {
	Log       LogConfig       `toml:"log"`
	Server    ServerConfig    `toml:"server"`
	Auth      AuthConfig      `toml:"auth"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Minio     MinioConfig     `toml:"minio"`
	Media     MediaConfig     `toml:"media"`
	Thumbnail ThumbnailConfig `toml:"thumbnail"`
}

// LogConfig holds logging level and format (e.g. level=info, format=text).
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ServerConfig holds the HTTP server listen address.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// AuthConfig holds JWT secret and token expiry (e.g. 24h).
type AuthConfig struct {
	JWTSecret    string `toml:"jwt_secret"`
	JWTExpiresIn string `toml:"jwt_expires_in"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

// MinioConfig holds object storage connection parameters and the bucket
// that receives all profile media.
type MinioConfig struct {
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	UseSSL    bool   `toml:"use_ssl"`
	Bucket    string `toml:"bucket"`
	Region    string `toml:"region"`
	URLExpiry string `toml:"url_expiry"`
}

// MediaConfig holds media engine limits and paths. QuotaBytes is the soft
// storage ceiling across all track and video assets of one profile;
// MaxAssetBytes bounds a single spooled file. StorageRoot is the first
// segment of every object storage path. ReapInterval is the cron period for
// retrying failed orphan deletions.
type MediaConfig struct {
	QuotaBytes     int64  `toml:"quota_bytes"`
	MaxAssetBytes  int64  `toml:"max_asset_bytes"`
	StorageRoot    string `toml:"storage_root"`
	SpoolDir       string `toml:"spool_dir"`
	ReapInterval   string `toml:"reap_interval"`
	DebounceMillis int    `toml:"debounce_millis"`
}

// ThumbnailConfig holds the ffmpeg/ffprobe binaries used for video
// thumbnail extraction. Generation is skipped when Enabled is false.
type ThumbnailConfig struct {
	Enabled     bool   `toml:"enabled"`
	FFmpegPath  string `toml:"ffmpeg_path"`
	FFprobePath string `toml:"ffprobe_path"`
}

// Load reads and parses the TOML config file at path and applies default values for missing fields.
func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Auth: AuthConfig{
			JWTExpiresIn: DefaultJWTExpiresIn,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		Minio: MinioConfig{
			Endpoint:  DefaultMinioEndpoint,
			Bucket:    DefaultMinioBucket,
			URLExpiry: DefaultURLExpiry,
		},
		Media: MediaConfig{
			QuotaBytes:     DefaultQuotaBytes,
			MaxAssetBytes:  DefaultMaxAssetBytes,
			StorageRoot:    DefaultStorageRoot,
			ReapInterval:   DefaultReapInterval,
			DebounceMillis: DefaultDebounceMillis,
		},
		Thumbnail: ThumbnailConfig{
			Enabled:     true,
			FFmpegPath:  DefaultFFmpegPath,
			FFprobePath: DefaultFFprobePath,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}
