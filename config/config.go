// Package config loads store configuration from a YAML file and TENF_*
// environment variables.
//
// Every key can be set in the file or through the environment; the
// environment wins. Nested keys are joined with underscores:
//
//	storage.kind            TENF_STORAGE_KIND
//	storage.base_dir        TENF_STORAGE_BASE_DIR
//	storage.s3.bucket       TENF_STORAGE_S3_BUCKET
//	storage.minio.endpoint  TENF_STORAGE_MINIO_ENDPOINT
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Redshadow31/tenf-v2-sub007/codec"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "TENF"

// DefaultBaseDir is the local backend root when none is configured.
const DefaultBaseDir = "./data"

// BackendKind names a storage backend.
type BackendKind string

const (
	// KindAuto picks a backend from whichever service is configured.
	KindAuto     BackendKind = "auto"
	KindLocal    BackendKind = "local"
	KindMemory   BackendKind = "memory"
	KindS3       BackendKind = "s3"
	KindMinIO    BackendKind = "minio"
	KindDynamoDB BackendKind = "dynamodb"
	KindNATS     BackendKind = "nats"
)

// Kinds lists every accepted BackendKind.
func Kinds() []BackendKind {
	return []BackendKind{KindAuto, KindLocal, KindMemory, KindS3, KindMinIO, KindDynamoDB, KindNATS}
}

// ParseBackendKind parses a case-insensitive kind name. The empty string is
// KindAuto.
func ParseBackendKind(s string) (BackendKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return KindAuto, nil
	}
	for _, k := range Kinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown backend kind %q", s)
}

// Config is the full configuration of a store process.
type Config struct {
	Log       Log       `mapstructure:"log" yaml:"log"`
	Storage   Storage   `mapstructure:"storage" yaml:"storage"`
	Telemetry Telemetry `mapstructure:"telemetry" yaml:"telemetry"`
}

// Log configures the process logger.
type Log struct {
	// Level is one of debug, info, warn, error. Default: info.
	Level string `mapstructure:"level" yaml:"level"`
	// Format is text or json. Default: text.
	Format string `mapstructure:"format" yaml:"format"`
}

// SlogLevel returns the parsed level, or slog.LevelInfo when unset.
func (l Log) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if l.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// Telemetry configures OpenTelemetry tracing.
type Telemetry struct {
	// OTLPEndpoint enables the OTLP/HTTP trace exporter (host:port).
	OTLPEndpoint string `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`
	// Insecure disables TLS towards the collector.
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`
	// ServiceName is reported as service.name. Default: tenfstore.
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
}

// Storage selects and configures the backend.
type Storage struct {
	// Kind is the backend to use. Default: auto.
	Kind BackendKind `mapstructure:"kind" yaml:"kind"`
	// BaseDir is the root of the local backend. Default: ./data.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
	// Prefix is prepended to every key on remote backends.
	Prefix string `mapstructure:"prefix" yaml:"prefix"`
	// Codec is the record codec name ("go-json" or "json").
	Codec string `mapstructure:"codec" yaml:"codec"`

	S3       S3       `mapstructure:"s3" yaml:"s3"`
	MinIO    MinIO    `mapstructure:"minio" yaml:"minio"`
	DynamoDB DynamoDB `mapstructure:"dynamodb" yaml:"dynamodb"`
	NATS     NATS     `mapstructure:"nats" yaml:"nats"`
}

// S3 configures the Amazon S3 backend. Credentials fall back to the default
// AWS chain when unset.
type S3 struct {
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	Region          string `mapstructure:"region" yaml:"region"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint"`
	UsePathStyle    bool   `mapstructure:"use_path_style" yaml:"use_path_style"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key"`
	CreateBucket    bool   `mapstructure:"create_bucket" yaml:"create_bucket"`
}

// MinIO configures an S3-compatible MinIO backend.
type MinIO struct {
	Endpoint     string `mapstructure:"endpoint" yaml:"endpoint"`
	Bucket       string `mapstructure:"bucket" yaml:"bucket"`
	AccessKey    string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey    string `mapstructure:"secret_key" yaml:"secret_key"`
	Region       string `mapstructure:"region" yaml:"region"`
	Secure       bool   `mapstructure:"secure" yaml:"secure"`
	CreateBucket bool   `mapstructure:"create_bucket" yaml:"create_bucket"`
}

// DynamoDB configures the DynamoDB table backend.
type DynamoDB struct {
	Table           string `mapstructure:"table" yaml:"table"`
	Region          string `mapstructure:"region" yaml:"region"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key"`
	CreateTable     bool   `mapstructure:"create_table" yaml:"create_table"`
}

// NATS configures the JetStream object-store backend.
type NATS struct {
	URL      string `mapstructure:"url" yaml:"url"`
	Bucket   string `mapstructure:"bucket" yaml:"bucket"`
	Replicas int    `mapstructure:"replicas" yaml:"replicas"`
}

// ResolveKind applies the auto policy: S3 bucket, then MinIO endpoint, then
// DynamoDB table, then NATS URL, else local. Explicit kinds are returned
// unchanged.
func (s Storage) ResolveKind() BackendKind {
	if s.Kind != KindAuto && s.Kind != "" {
		return s.Kind
	}
	switch {
	case s.S3.Bucket != "":
		return KindS3
	case s.MinIO.Endpoint != "":
		return KindMinIO
	case s.DynamoDB.Table != "":
		return KindDynamoDB
	case s.NATS.URL != "":
		return KindNATS
	default:
		return KindLocal
	}
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Log: Log{
			Level:  "info",
			Format: "text",
		},
		Storage: Storage{
			Kind:    KindAuto,
			BaseDir: DefaultBaseDir,
			Codec:   codec.Default.Name(),
			NATS: NATS{
				Bucket:   "tenf-records",
				Replicas: 1,
			},
		},
		Telemetry: Telemetry{
			ServiceName: "tenfstore",
		},
	}
}

// Validate reports every missing or malformed field.
func (c Config) Validate() error {
	var errs []error

	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: want text or json, got %q", c.Log.Format))
	}

	if _, err := ParseBackendKind(string(c.Storage.Kind)); err != nil {
		errs = append(errs, fmt.Errorf("storage.kind: %w", err))
	}
	if _, ok := codec.ByName(c.Storage.Codec); !ok {
		errs = append(errs, fmt.Errorf("storage.codec: want one of %v, got %q", codec.Names(), c.Storage.Codec))
	}

	s := c.Storage
	switch s.ResolveKind() {
	case KindLocal:
		if s.BaseDir == "" {
			errs = append(errs, errors.New("storage.base_dir is required for the local backend"))
		}
	case KindS3:
		if s.S3.Bucket == "" {
			errs = append(errs, errors.New("storage.s3.bucket is required for the s3 backend"))
		}
		if (s.S3.AccessKeyID == "") != (s.S3.SecretAccessKey == "") {
			errs = append(errs, errors.New("storage.s3: access_key_id and secret_access_key must be set together"))
		}
	case KindMinIO:
		if s.MinIO.Endpoint == "" {
			errs = append(errs, errors.New("storage.minio.endpoint is required for the minio backend"))
		}
		if s.MinIO.Bucket == "" {
			errs = append(errs, errors.New("storage.minio.bucket is required for the minio backend"))
		}
	case KindDynamoDB:
		if s.DynamoDB.Table == "" {
			errs = append(errs, errors.New("storage.dynamodb.table is required for the dynamodb backend"))
		}
	case KindNATS:
		if s.NATS.URL == "" {
			errs = append(errs, errors.New("storage.nats.url is required for the nats backend"))
		}
		if s.NATS.Bucket == "" {
			errs = append(errs, errors.New("storage.nats.bucket is required for the nats backend"))
		}
	}

	return errors.Join(errs...)
}

// Load reads configuration into v from file (optional, YAML) and the
// environment, then validates it.
//
// If v is nil a fresh viper instance is used. Callers may bind command-line
// flags on v before calling Load.
func Load(v *viper.Viper, file string) (Config, error) {
	if v == nil {
		v = viper.New()
	}

	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}

	kind, err := ParseBackendKind(string(cfg.Storage.Kind))
	if err != nil {
		return Config{}, fmt.Errorf("config: storage.kind: %w", err)
	}
	cfg.Storage.Kind = kind

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override keys that
// appear in no config file.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetDefault("telemetry.otlp_endpoint", d.Telemetry.OTLPEndpoint)
	v.SetDefault("telemetry.insecure", d.Telemetry.Insecure)
	v.SetDefault("telemetry.service_name", d.Telemetry.ServiceName)

	s := d.Storage
	v.SetDefault("storage.kind", string(s.Kind))
	v.SetDefault("storage.base_dir", s.BaseDir)
	v.SetDefault("storage.prefix", s.Prefix)
	v.SetDefault("storage.codec", s.Codec)

	v.SetDefault("storage.s3.bucket", s.S3.Bucket)
	v.SetDefault("storage.s3.region", s.S3.Region)
	v.SetDefault("storage.s3.endpoint", s.S3.Endpoint)
	v.SetDefault("storage.s3.use_path_style", s.S3.UsePathStyle)
	v.SetDefault("storage.s3.access_key_id", s.S3.AccessKeyID)
	v.SetDefault("storage.s3.secret_access_key", s.S3.SecretAccessKey)
	v.SetDefault("storage.s3.create_bucket", s.S3.CreateBucket)

	v.SetDefault("storage.minio.endpoint", s.MinIO.Endpoint)
	v.SetDefault("storage.minio.bucket", s.MinIO.Bucket)
	v.SetDefault("storage.minio.access_key", s.MinIO.AccessKey)
	v.SetDefault("storage.minio.secret_key", s.MinIO.SecretKey)
	v.SetDefault("storage.minio.region", s.MinIO.Region)
	v.SetDefault("storage.minio.secure", s.MinIO.Secure)
	v.SetDefault("storage.minio.create_bucket", s.MinIO.CreateBucket)

	v.SetDefault("storage.dynamodb.table", s.DynamoDB.Table)
	v.SetDefault("storage.dynamodb.region", s.DynamoDB.Region)
	v.SetDefault("storage.dynamodb.endpoint", s.DynamoDB.Endpoint)
	v.SetDefault("storage.dynamodb.access_key_id", s.DynamoDB.AccessKeyID)
	v.SetDefault("storage.dynamodb.secret_access_key", s.DynamoDB.SecretAccessKey)
	v.SetDefault("storage.dynamodb.create_table", s.DynamoDB.CreateTable)

	v.SetDefault("storage.nats.url", s.NATS.URL)
	v.SetDefault("storage.nats.bucket", s.NATS.Bucket)
	v.SetDefault("storage.nats.replicas", s.NATS.Replicas)
}

const redacted = "<redacted>"

// Marshal renders cfg as YAML with secrets redacted.
func Marshal(cfg Config) ([]byte, error) {
	redact := func(s *string) {
		if *s != "" {
			*s = redacted
		}
	}
	redact(&cfg.Storage.S3.SecretAccessKey)
	redact(&cfg.Storage.MinIO.SecretKey)
	redact(&cfg.Storage.DynamoDB.SecretAccessKey)
	if cfg.Storage.NATS.URL != "" {
		cfg.Storage.NATS.URL = redactURL(cfg.Storage.NATS.URL)
	}

	return yaml.Marshal(cfg)
}

// redactURL hides the credentials of NATS server URLs: the password of
// user:pass userinfo, or the whole userinfo of a token URL. Each entry of a
// comma-separated server list is redacted on its own.
func redactURL(raw string) string {
	servers := strings.Split(raw, ",")
	for i, s := range servers {
		servers[i] = redactServer(strings.TrimSpace(s))
	}
	return strings.Join(servers, ",")
}

func redactServer(s string) string {
	u, err := url.Parse(s)
	if err != nil || u.User == nil {
		if strings.Contains(s, "@") {
			return redacted
		}
		return s
	}

	info := redacted
	if _, ok := u.User.Password(); ok {
		info = u.User.Username() + ":" + redacted
	}
	u.User = nil

	// url.URL.String would percent-encode the placeholder.
	scheme, rest, _ := strings.Cut(u.String(), "://")
	return scheme + "://" + info + "@" + rest
}
