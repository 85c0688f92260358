package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.Server.Port != 8000 {
		t.Errorf("expected port 8000, got %d", cfg.Server.Port)
	}
	if cfg.Sampler.MaxFrames != 10 {
		t.Errorf("expected max_frames 10, got %d", cfg.Sampler.MaxFrames)
	}
	if cfg.Sampler.Interval != time.Second {
		t.Errorf("expected interval 1s, got %v", cfg.Sampler.Interval)
	}
	if cfg.Sampler.Width != 640 || cfg.Sampler.Height != 480 {
		t.Errorf("expected 640x480, got %dx%d", cfg.Sampler.Width, cfg.Sampler.Height)
	}
	if cfg.Mongo.Database != "video_analysis_db" || cfg.Mongo.Collection != "ai_responses" {
		t.Errorf("unexpected mongo names %s/%s", cfg.Mongo.Database, cfg.Mongo.Collection)
	}
	if cfg.Analysis.Mode != ModeInline {
		t.Errorf("expected inline mode, got %s", cfg.Analysis.Mode)
	}
	if cfg.Backend.Model != "gpt-4o" {
		t.Errorf("expected gpt-4o, got %s", cfg.Backend.Model)
	}
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
server:
  port: 9000
sampler:
  max_frames: 4
  interval: 2s
backend:
  provider: gemini
storage:
  backend: memory
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("VQ_SERVER_PORT", "9100")
	t.Setenv("MONGO_URI", "mongodb://db:27017")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.Server.Port != 9100 {
		t.Errorf("env should win over file, got port %d", cfg.Server.Port)
	}
	if cfg.Sampler.MaxFrames != 4 {
		t.Errorf("expected max_frames 4, got %d", cfg.Sampler.MaxFrames)
	}
	if cfg.Sampler.Interval != 2*time.Second {
		t.Errorf("expected interval 2s, got %v", cfg.Sampler.Interval)
	}
	if cfg.Backend.Model != "gemini-1.5-flash" {
		t.Errorf("expected gemini default model, got %s", cfg.Backend.Model)
	}
	if cfg.Mongo.URI != "mongodb://db:27017" {
		t.Errorf("expected MONGO_URI override, got %s", cfg.Mongo.URI)
	}
	if cfg.Backend.APIKey != "sk-test" {
		t.Errorf("expected OPENAI_API_KEY override, got %q", cfg.Backend.APIKey)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "unknown mode", mutate: func(c *Config) { c.Analysis.Mode = "batch" }, wantErr: true},
		{name: "unknown storage", mutate: func(c *Config) { c.Storage.Backend = "redis" }, wantErr: true},
		{name: "unknown provider", mutate: func(c *Config) { c.Backend.Provider = "acme" }, wantErr: true},
		{name: "queue without nats", mutate: func(c *Config) {
			c.Analysis.Mode = ModeQueue
			c.MinIO.Endpoint = "minio:9000"
		}, wantErr: true},
		{name: "queue without minio", mutate: func(c *Config) {
			c.Analysis.Mode = ModeQueue
			c.NATS.URL = "nats://nats:4222"
		}, wantErr: true},
		{name: "queue fully configured", mutate: func(c *Config) {
			c.Analysis.Mode = ModeQueue
			c.NATS.URL = "nats://nats:4222"
			c.MinIO.Endpoint = "minio:9000"
		}},
		{name: "negative cap", mutate: func(c *Config) { c.Sampler.MaxFrames = -1 }, wantErr: true},
		{name: "janitor max age below timeout", mutate: func(c *Config) {
			c.Janitor.Enabled = true
			c.Janitor.MaxAge = time.Minute
			c.Analysis.Timeout = 2 * time.Minute
		}, wantErr: true},
		{name: "janitor max age equal to timeout", mutate: func(c *Config) {
			c.Janitor.Enabled = true
			c.Janitor.MaxAge = 2 * time.Minute
			c.Analysis.Timeout = 2 * time.Minute
		}, wantErr: true},
		{name: "disabled janitor ignores max age", mutate: func(c *Config) {
			c.Janitor.MaxAge = time.Minute
			c.Analysis.Timeout = 2 * time.Minute
		}},
		{name: "janitor enabled with defaults", mutate: func(c *Config) { c.Janitor.Enabled = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			setDefaults(cfg)
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ArchiveEnabled(t *testing.T) {
	tests := []struct {
		name     string
		mode     string
		endpoint string
		want     bool
	}{
		{name: "inline with minio configured", mode: ModeInline, endpoint: "localhost:9000", want: false},
		{name: "inline without minio", mode: ModeInline},
		{name: "queue with minio", mode: ModeQueue, endpoint: "minio:9000", want: true},
		{name: "queue without minio", mode: ModeQueue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Analysis: AnalysisConfig{Mode: tt.mode}, MinIO: MinIOConfig{Endpoint: tt.endpoint}}
			if got := cfg.ArchiveEnabled(); got != tt.want {
				t.Errorf("ArchiveEnabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoad_SampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "config.yaml"))
	if err != nil {
		t.Fatalf("expected sample config to load, got %v", err)
	}
	if cfg.Analysis.Mode != ModeInline {
		t.Errorf("expected inline mode, got %s", cfg.Analysis.Mode)
	}
	if cfg.ArchiveEnabled() {
		t.Error("inline sample config must not archive uploads")
	}
	if !cfg.Janitor.Enabled || cfg.Janitor.MaxAge <= cfg.Analysis.Timeout {
		t.Errorf("unexpected janitor settings %+v", cfg.Janitor)
	}
}

func TestDatabaseConfig_URLs(t *testing.T) {
	d := DatabaseConfig{Host: "pg", Port: 5432, Name: "vq", User: "u", Password: "p"}

	if got, want := d.DSN(), "postgres://u:p@pg:5432/vq?sslmode=disable"; got != want {
		t.Errorf("DSN() = %s, want %s", got, want)
	}
	if got, want := d.MigrateURL(), "pgx5://u:p@pg:5432/vq?sslmode=disable"; got != want {
		t.Errorf("MigrateURL() = %s, want %s", got, want)
	}
}
