// Package config loads WACCANDA server settings.
//
// Values are layered: built-in defaults, then an optional TOML file named by
// WACCANDA_CONFIG, then WACCANDA_* environment variables. The merged result is
// validated once so startup fails with every problem listed at the same time.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Storage backends.
const (
	StorageFS    = "fs"
	StorageMinio = "minio"
)

// DB holds the relational store connection settings.
type DB struct {
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	User    string `toml:"user"`
	Pass    string `toml:"pass"`
	Name    string `toml:"name"`
	SSLMode string `toml:"sslmode"` // disable, require (no cert check) or verify-full
	Migrate bool   `toml:"migrate"`
}

// S3 holds the object storage settings used when Storage is "minio".
type S3 struct {
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Bucket    string `toml:"bucket"`
}

// Config is the complete server configuration.
type Config struct {
	Addr           string `toml:"addr"`
	UploadDir      string `toml:"upload_dir"`
	PackageRoot    string `toml:"package_root"`
	Storage        string `toml:"storage"`
	MaxUploadBytes int64  `toml:"max_upload_bytes"` // 0 means no limit
	RateLimit      int    `toml:"rate_limit"`       // POST requests per minute per IP, 0 disables
	LogLevel       string `toml:"log_level"`
	LogFormat      string `toml:"log_format"`

	DB DB `toml:"db"`
	S3 S3 `toml:"s3"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Addr:        ":3000",
		UploadDir:   os.TempDir(),
		PackageRoot: ".",
		Storage:     StorageFS,
		RateLimit:   60,
		LogLevel:    "info",
		LogFormat:   "text",
		DB: DB{
			Host:    "localhost",
			Port:    5432,
			User:    "postgres",
			Name:    "waccanda",
			SSLMode: "require",
		},
	}
}

// Load builds the configuration from defaults, the optional file and the
// environment, then validates it.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("WACCANDA_CONFIG"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}

	v := NewValidator()
	cfg.mergeEnv(v)
	cfg.validate(v)
	if err := v.Err(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) mergeEnv(v *Validator) {
	if port := os.Getenv("PORT"); port != "" {
		c.Addr = ":" + port
	}
	setString(&c.Addr, "WACCANDA_ADDR")
	setString(&c.UploadDir, "WACCANDA_UPLOAD_DIR")
	setString(&c.PackageRoot, "WACCANDA_PACKAGE_ROOT")
	setString(&c.Storage, "WACCANDA_STORAGE")
	setString(&c.LogLevel, "WACCANDA_LOG_LEVEL")
	setString(&c.LogFormat, "WACCANDA_LOG_FORMAT")
	setInt64(v, &c.MaxUploadBytes, "WACCANDA_MAX_UPLOAD_BYTES")
	setInt(v, &c.RateLimit, "WACCANDA_RATE_LIMIT")

	setString(&c.DB.Host, "WACCANDA_DB_HOST")
	setInt(v, &c.DB.Port, "WACCANDA_DB_PORT")
	setString(&c.DB.User, "WACCANDA_DB_USER")
	setString(&c.DB.Pass, "WACCANDA_DB_PASS")
	setString(&c.DB.Name, "WACCANDA_DB_NAME")
	setString(&c.DB.SSLMode, "WACCANDA_DB_SSLMODE")
	setBool(v, &c.DB.Migrate, "WACCANDA_DB_MIGRATE")

	setString(&c.S3.Endpoint, "WACCANDA_S3_ENDPOINT")
	setString(&c.S3.AccessKey, "WACCANDA_S3_ACCESS_KEY")
	setString(&c.S3.SecretKey, "WACCANDA_S3_SECRET_KEY")
	setString(&c.S3.Bucket, "WACCANDA_S3_BUCKET")
}

func (c *Config) validate(v *Validator) {
	v.ValidatePort("addr", c.Addr)
	v.ValidateRequired("upload_dir", c.UploadDir)
	v.ValidateRequired("package_root", c.PackageRoot)
	v.ValidateEnum("storage", c.Storage, []string{StorageFS, StorageMinio})
	v.ValidateEnum("log_level", c.LogLevel, []string{"debug", "info", "warn", "error"})
	v.ValidateEnum("log_format", c.LogFormat, []string{"json", "text"})
	v.ValidateNonNegative("max_upload_bytes", c.MaxUploadBytes)
	v.ValidateNonNegative("rate_limit", int64(c.RateLimit))

	v.ValidateRequired("db.host", c.DB.Host)
	v.ValidatePort("db.port", strconv.Itoa(c.DB.Port))
	v.ValidateRequired("db.user", c.DB.User)
	v.ValidateRequired("db.name", c.DB.Name)
	v.ValidateEnum("db.sslmode", c.DB.SSLMode, []string{"disable", "require", "verify-full"})

	if c.Storage == StorageMinio {
		v.ValidateRequired("s3.endpoint", c.S3.Endpoint)
		v.ValidateRequired("s3.access_key", c.S3.AccessKey)
		v.ValidateRequired("s3.secret_key", c.S3.SecretKey)
		v.ValidateRequired("s3.bucket", c.S3.Bucket)
	}
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(v *Validator, dst *int, key string) {
	raw := os.Getenv(key)
	if raw == "" {
		return
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		v.AddError(key, "must be a valid integer")
		return
	}
	*dst = n
}

func setInt64(v *Validator, dst *int64, key string) {
	raw := os.Getenv(key)
	if raw == "" {
		return
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		v.AddError(key, "must be a valid integer")
		return
	}
	*dst = n
}

func setBool(v *Validator, dst *bool, key string) {
	raw := os.Getenv(key)
	if raw == "" {
		return
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		v.AddError(key, "must be true or false")
		return
	}
	*dst = b
}
