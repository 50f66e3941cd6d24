package config

import (
	"errors"
	"strings"

	"pkgsync/internal/env"

	"github.com/spf13/viper"
)

/**
 * Server configuration parameters of the blob mirror
 * @property {string} address - Server listening address (e.g. ":8080")
 * @property {string} mode - gin mode (debug/release/test)
 * @property {string} socket - Optional unix socket path served next to address
 * @property {string} root - Directory served as the blob store
 * @property {string} token_secret - HMAC secret for upload tokens, empty leaves PUT open
 */
type ServerConfig struct {
	Address string `mapstructure:"address"`
	Mode    string `mapstructure:"mode"`
	Socket  string `mapstructure:"socket"`
	Root    string `mapstructure:"root"`

	TokenSecret string `mapstructure:"token_secret"`
}

/**
 * Logging configuration
 * @property {string} level - Log level (debug/info/warn/error)
 * @property {string} path - Log file path, empty or "console" for stderr
 */
type LogConfig struct {
	Level string `mapstructure:"level"`
	Path  string `mapstructure:"path"`
}

/**
 * Metrics configuration
 * @property {string} pushgateway - Pushgateway address, empty disables pushing
 * @property {string} job - Job name used when pushing
 */
type MetricsConfig struct {
	Pushgateway string `mapstructure:"pushgateway"`
	Job         string `mapstructure:"job"`
}

/**
 * Remote blob store configuration
 * @property {string} type - Backend: http, local, s3 or minio
 * @property {string} base_url - Base URL of the http backend
 * @property {string} socket - Unix socket of a local mirror, the http backend dials it instead of the URL host
 * @property {string} token - Bearer token sent with http uploads
 * @property {string} dir - Root directory of the local backend
 * @property {string} bucket - Bucket of the s3 and minio backends
 * @property {string} region - AWS region of the s3 backend
 * @property {string} endpoint - Custom endpoint (minio host:port, or s3-compatible URL)
 * @property {string} access_key - Static access key
 * @property {string} secret_key - Static secret key
 * @property {bool} use_ssl - Use TLS towards the minio endpoint
 * @property {bool} path_style - Force path-style addressing on s3
 */
type StorageConfig struct {
	Type      string `mapstructure:"type"`
	BaseURL   string `mapstructure:"base_url"`
	Socket    string `mapstructure:"socket"`
	Token     string `mapstructure:"token"`
	Dir       string `mapstructure:"dir"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	PathStyle bool   `mapstructure:"path_style"`
}

// HashConfig selects the archive digest: sha1, sha256 or blake3.
type HashConfig struct {
	Algorithm string `mapstructure:"algorithm"`
}

type AppConfig struct {
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Storage StorageConfig `mapstructure:"storage"`
	Hash    HashConfig    `mapstructure:"hash"`
}

const (
	StorageHTTP  = "http"
	StorageLocal = "local"
	StorageS3    = "s3"
	StorageMinio = "minio"
)

const (
	configName = "pkgsync"
	envPrefix  = "PKGSYNC"
)

var defaults = map[string]any{
	"server.address":      ":8080",
	"server.mode":         "release",
	"server.socket":       "",
	"server.token_secret": "",
	"server.root":         "blobs",
	"log.level":           "info",
	"log.path":            "",
	"metrics.pushgateway": "",
	"metrics.job":         "pkgsync",
	"storage.type":        StorageHTTP,
	"storage.base_url":    "",
	"storage.socket":      "",
	"storage.token":       "",
	"storage.dir":         "",
	"storage.bucket":      "",
	"storage.region":      "",
	"storage.endpoint":    "",
	"storage.access_key":  "",
	"storage.secret_key":  "",
	"storage.use_ssl":     true,
	"storage.path_style":  false,
	"hash.algorithm":      "sha1",
}

/**
 * Load application configuration
 * @param {string} path - Explicit config file, empty to search the default locations
 * @returns {*AppConfig} Loaded configuration with defaults applied
 * @returns {error} Returns error if the file exists but cannot be read or decoded
 * @description
 * - Searches pkgsync.yaml in the working directory and $HOME/.pkgsync
 * - A missing file is not an error unless path names it explicitly
 * - Every key can be overridden by PKGSYNC_<SECTION>_<KEY> environment variables
 */
func Load(path string) (*AppConfig, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if env.PkgsyncDir != "" {
			v.AddConfigPath(env.PkgsyncDir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return collectConfig(&cfg), nil
}

func collectConfig(cfg *AppConfig) *AppConfig {
	cfg.Storage.Type = strings.ToLower(strings.TrimSpace(cfg.Storage.Type))
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = StorageHTTP
	}
	cfg.Storage.BaseURL = strings.TrimRight(cfg.Storage.BaseURL, "/")
	if cfg.Storage.Type == StorageLocal && cfg.Storage.Dir == "" {
		cfg.Storage.Dir = cfg.Server.Root
	}
	if cfg.Metrics.Job == "" {
		cfg.Metrics.Job = configName
	}
	if cfg.Hash.Algorithm == "" {
		cfg.Hash.Algorithm = "sha1"
	}
	return cfg
}
