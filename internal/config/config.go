package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ModeInline = "inline"
	ModeQueue  = "queue"

	StorageMongo    = "mongo"
	StoragePostgres = "postgres"
	StorageMemory   = "memory"

	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Sampler  SamplerConfig  `yaml:"sampler"`
	FFmpeg   FFmpegConfig   `yaml:"ffmpeg"`
	Backend  BackendConfig  `yaml:"backend"`
	Storage  StorageConfig  `yaml:"storage"`
	Mongo    MongoConfig    `yaml:"mongo"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	MinIO    MinIOConfig    `yaml:"minio"`
	Worker   WorkerConfig   `yaml:"worker"`
	Janitor  JanitorConfig  `yaml:"janitor"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type AnalysisConfig struct {
	// Mode is "inline" (analyze inside the request) or "queue" (hand off to workers).
	Mode        string        `yaml:"mode"`
	Timeout     time.Duration `yaml:"timeout"`
	TempDir     string        `yaml:"temp_dir"`
	MaxUploadMB int64         `yaml:"max_upload_mb"`
}

// SamplerConfig bounds how much of a video is ever sent to the backend.
// With the defaults only the first MaxFrames*Interval seconds are inspected.
type SamplerConfig struct {
	MaxFrames   int           `yaml:"max_frames"`
	Interval    time.Duration `yaml:"interval"`
	Width       int           `yaml:"width"`
	Height      int           `yaml:"height"`
	JPEGQuality int           `yaml:"jpeg_quality"`
}

type FFmpegConfig struct {
	FFmpegPath  string `yaml:"ffmpeg_path"`
	FFprobePath string `yaml:"ffprobe_path"`
}

type BackendConfig struct {
	Provider  string        `yaml:"provider"`
	APIKey    string        `yaml:"api_key"`
	BaseURL   string        `yaml:"base_url"`
	Model     string        `yaml:"model"`
	MaxTokens int           `yaml:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout"`
}

type StorageConfig struct {
	Backend string `yaml:"backend"`
}

type MongoConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// MigrateURL is the DSN in the form golang-migrate's pgx/v5 driver expects.
func (d DatabaseConfig) MigrateURL() string {
	return fmt.Sprintf("pgx5://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Enabled reports whether an object store is configured at all.
func (m MinIOConfig) Enabled() bool {
	return m.Endpoint != ""
}

// ArchiveEnabled reports whether the API archives uploads. Inline analysis reads
// the local spool file and never touches the object store, even when one is configured.
func (c *Config) ArchiveEnabled() bool {
	return c.Analysis.Mode == ModeQueue && c.MinIO.Enabled()
}

type WorkerConfig struct {
	Concurrency int `yaml:"concurrency"`
	MetricsPort int `yaml:"metrics_port"`
}

type JanitorConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Schedule string        `yaml:"schedule"`
	MaxAge   time.Duration `yaml:"max_age"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from a YAML file and applies environment variable overrides.
// A missing file is not an error: defaults plus environment are enough to run.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings no component can act on.
func (c *Config) Validate() error {
	switch c.Analysis.Mode {
	case ModeInline, ModeQueue:
	default:
		return fmt.Errorf("analysis.mode: unknown mode %q", c.Analysis.Mode)
	}
	switch c.Storage.Backend {
	case StorageMongo, StoragePostgres, StorageMemory:
	default:
		return fmt.Errorf("storage.backend: unknown backend %q", c.Storage.Backend)
	}
	switch c.Backend.Provider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("backend.provider: unknown provider %q", c.Backend.Provider)
	}
	if c.Analysis.Mode == ModeQueue {
		if c.NATS.URL == "" {
			return errors.New("analysis.mode=queue requires nats.url")
		}
		if !c.MinIO.Enabled() {
			return errors.New("analysis.mode=queue requires minio.endpoint")
		}
	}
	// Spool files live for the whole analysis; a shorter max age lets the janitor delete one in use.
	if c.Janitor.Enabled && c.Janitor.MaxAge <= c.Analysis.Timeout {
		return fmt.Errorf("janitor.max_age (%s) must exceed analysis.timeout (%s)", c.Janitor.MaxAge, c.Analysis.Timeout)
	}
	if c.Sampler.MaxFrames < 1 {
		return fmt.Errorf("sampler.max_frames must be positive, got %d", c.Sampler.MaxFrames)
	}
	return nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Analysis.Mode == "" {
		cfg.Analysis.Mode = ModeInline
	}
	if cfg.Analysis.Timeout == 0 {
		cfg.Analysis.Timeout = 2 * time.Minute
	}
	if cfg.Analysis.TempDir == "" {
		cfg.Analysis.TempDir = "temp_videos"
	}
	if cfg.Analysis.MaxUploadMB == 0 {
		cfg.Analysis.MaxUploadMB = 512
	}
	if cfg.Sampler.MaxFrames == 0 {
		cfg.Sampler.MaxFrames = 10
	}
	if cfg.Sampler.Interval == 0 {
		cfg.Sampler.Interval = time.Second
	}
	if cfg.Sampler.Width == 0 {
		cfg.Sampler.Width = 640
	}
	if cfg.Sampler.Height == 0 {
		cfg.Sampler.Height = 480
	}
	if cfg.Sampler.JPEGQuality == 0 {
		cfg.Sampler.JPEGQuality = 85
	}
	if cfg.FFmpeg.FFmpegPath == "" {
		cfg.FFmpeg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFmpeg.FFprobePath == "" {
		cfg.FFmpeg.FFprobePath = "ffprobe"
	}
	if cfg.Backend.Provider == "" {
		cfg.Backend.Provider = ProviderOpenAI
	}
	if cfg.Backend.Model == "" {
		switch cfg.Backend.Provider {
		case ProviderGemini:
			cfg.Backend.Model = "gemini-1.5-flash"
		default:
			cfg.Backend.Model = "gpt-4o"
		}
	}
	if cfg.Backend.MaxTokens == 0 {
		cfg.Backend.MaxTokens = 512
	}
	if cfg.Backend.Timeout == 0 {
		cfg.Backend.Timeout = 90 * time.Second
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = StorageMongo
	}
	if cfg.Mongo.URI == "" {
		cfg.Mongo.URI = "mongodb://localhost:27017"
	}
	if cfg.Mongo.Database == "" {
		cfg.Mongo.Database = "video_analysis_db"
	}
	if cfg.Mongo.Collection == "" {
		cfg.Mongo.Collection = "ai_responses"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = "videoqa"
	}
	if cfg.Worker.Concurrency == 0 {
		cfg.Worker.Concurrency = 2
	}
	if cfg.Worker.MetricsPort == 0 {
		cfg.Worker.MetricsPort = 8082
	}
	if cfg.Janitor.Schedule == "" {
		cfg.Janitor.Schedule = "@every 10m"
	}
	if cfg.Janitor.MaxAge == 0 {
		cfg.Janitor.MaxAge = time.Hour
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VQ_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("VQ_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("VQ_ANALYSIS_MODE"); v != "" {
		cfg.Analysis.Mode = v
	}
	if v := os.Getenv("VQ_TEMP_DIR"); v != "" {
		cfg.Analysis.TempDir = v
	}
	if v := os.Getenv("VQ_SAMPLER_MAX_FRAMES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sampler.MaxFrames = n
		}
	}
	if v := os.Getenv("VQ_SAMPLER_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Sampler.Interval = d
		}
	}

	// OPENAI_API_KEY and MONGO_URI are accepted for existing deployments.
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Backend.APIKey = v
	}
	if v := os.Getenv("VQ_BACKEND_API_KEY"); v != "" {
		cfg.Backend.APIKey = v
	}
	if v := os.Getenv("VQ_BACKEND_PROVIDER"); v != "" {
		cfg.Backend.Provider = v
	}
	if v := os.Getenv("VQ_BACKEND_MODEL"); v != "" {
		cfg.Backend.Model = v
	}
	if v := os.Getenv("VQ_BACKEND_BASE_URL"); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := os.Getenv("VQ_STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("MONGO_URI"); v != "" {
		cfg.Mongo.URI = v
	}
	if v := os.Getenv("VQ_MONGO_URI"); v != "" {
		cfg.Mongo.URI = v
	}
	if v := os.Getenv("VQ_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("VQ_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("VQ_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("VQ_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("VQ_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("VQ_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("VQ_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("VQ_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("VQ_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("VQ_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("VQ_WORKER_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Worker.Concurrency = n
		}
	}
	if v := os.Getenv("VQ_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("VQ_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
