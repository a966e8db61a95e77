// 配置加载器与默认配置测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- 默认配置测试 ---

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, 9091, cfg.Server.MetricsPort)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)

	assert.Equal(t, EngineModeCondensePlusContext, cfg.Engine.Mode)
	assert.Equal(t, 2, cfg.Engine.TopK)
	assert.Equal(t, 3000, cfg.Engine.HistoryTokenLimit)

	assert.Equal(t, "memory", cfg.Memory.Backend)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "sqlite", cfg.Database.Driver)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.False(t, cfg.Telemetry.Enabled)

	assert.NoError(t, cfg.Validate())
}

// --- Loader 测试 ---

func TestLoader_LoadFromYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
server:
  http_port: 8888
  read_timeout: 60s

llm:
  provider: echo
  model: "local-model"

engine:
  mode: flow
  top_k: 4
  flow:
    - capability: condense
      when: history
    - capability: retrieve
      inject: system
    - capability: synthesize

memory:
  backend: redis
  ttl: 1h

redis:
  addr: "redis.example.com:6379"
  db: 1
  tls: true

log:
  level: "debug"
  format: "console"
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.Server.HTTPPort)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "echo", cfg.LLM.Provider)
	assert.Equal(t, EngineModeFlow, cfg.Engine.Mode)
	assert.Equal(t, 4, cfg.Engine.TopK)
	require.Len(t, cfg.Engine.Flow, 3)
	assert.Equal(t, "history", cfg.Engine.Flow[0].When)
	assert.Equal(t, "system", cfg.Engine.Flow[1].Inject)
	assert.Equal(t, "redis", cfg.Memory.Backend)
	assert.Equal(t, time.Hour, cfg.Memory.TTL)
	assert.Equal(t, "redis.example.com:6379", cfg.Redis.Addr)
	assert.Equal(t, 1, cfg.Redis.DB)
	assert.True(t, cfg.Redis.TLS)
	assert.Equal(t, "debug", cfg.Log.Level)

	// 未出现在 YAML 中的字段保留默认值
	assert.Equal(t, "text-embedding-3-small", cfg.LLM.EmbeddingModel)
	assert.NoError(t, cfg.Validate())
}

func TestLoader_LoadFromEnv(t *testing.T) {
	t.Setenv("CHATFLOW_SERVER_HTTP_PORT", "7777")
	t.Setenv("CHATFLOW_LLM_MODEL", "gpt-4o")
	t.Setenv("CHATFLOW_LLM_TEMPERATURE", "0.9")
	t.Setenv("CHATFLOW_ENGINE_MODE", "context")
	t.Setenv("CHATFLOW_ENGINE_SIMILARITY_CUTOFF", "0.35")
	t.Setenv("CHATFLOW_MEMORY_TTL", "30m")
	t.Setenv("CHATFLOW_LOG_OUTPUT_PATHS", "stdout, /tmp/chatflow.log")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.HTTPPort)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, 0.9, cfg.LLM.Temperature)
	assert.Equal(t, EngineModeContext, cfg.Engine.Mode)
	assert.Equal(t, 0.35, cfg.Engine.SimilarityCutoff)
	assert.Equal(t, 30*time.Minute, cfg.Memory.TTL)
	assert.Equal(t, []string{"stdout", "/tmp/chatflow.log"}, cfg.Log.OutputPaths)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
server:
  http_port: 8888
llm:
  model: "yaml-model"
  base_url: "http://yaml"
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	t.Setenv("CHATFLOW_SERVER_HTTP_PORT", "9999")
	t.Setenv("CHATFLOW_LLM_MODEL", "env-model")

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.HTTPPort)
	assert.Equal(t, "env-model", cfg.LLM.Model)
	assert.Equal(t, "http://yaml", cfg.LLM.BaseURL)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	t.Setenv("MYAPP_SERVER_HTTP_PORT", "6666")

	cfg, err := NewLoader().WithEnvPrefix("MYAPP").Load()
	require.NoError(t, err)
	assert.Equal(t, 6666, cfg.Server.HTTPPort)
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	t.Setenv("CHATFLOW_SERVER_HTTP_PORT", "not-a-number")

	_, err := NewLoader().Load()
	assert.Error(t, err)
}

func TestLoader_WithValidator(t *testing.T) {
	t.Setenv("CHATFLOW_SERVER_HTTP_PORT", "80")

	_, err := NewLoader().
		WithValidator(func(cfg *Config) error {
			if cfg.Server.HTTPPort < 1024 {
				return assert.AnError
			}
			return nil
		}).
		Load()
	assert.ErrorIs(t, err, assert.AnError)
}

func TestLoader_NonExistentFile(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/non/existent/path/config.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
}

func TestLoader_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := `
server:
  http_port: [invalid
  this is not valid yaml
`
	require.NoError(t, os.WriteFile(configPath, []byte(invalidYAML), 0644))

	_, err := NewLoader().WithConfigPath(configPath).Load()
	assert.Error(t, err)
}

// --- Config 方法测试 ---

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "bad port", mutate: func(c *Config) { c.Server.HTTPPort = 0 }, wantErr: "invalid HTTP port"},
		{name: "negative rps", mutate: func(c *Config) { c.Server.RateLimitRPS = -1 }, wantErr: "rate_limit_rps"},
		{
			name: "rps without burst",
			mutate: func(c *Config) {
				c.Server.RateLimitRPS = 5
				c.Server.RateLimitBurst = 0
			},
			wantErr: "rate_limit_burst",
		},
		{name: "negative retries", mutate: func(c *Config) { c.LLM.MaxRetries = -1 }, wantErr: "max_retries"},
		{name: "bad provider", mutate: func(c *Config) { c.LLM.Provider = "nope" }, wantErr: "unknown llm provider"},
		{name: "bad temperature", mutate: func(c *Config) { c.LLM.Temperature = 3 }, wantErr: "temperature"},
		{name: "bad mode", mutate: func(c *Config) { c.Engine.Mode = "react" }, wantErr: "unknown engine mode"},
		{name: "empty flow", mutate: func(c *Config) { c.Engine.Mode = EngineModeFlow }, wantErr: "engine.flow must not be empty"},
		{
			name: "bad flow step",
			mutate: func(c *Config) {
				c.Engine.Mode = EngineModeFlow
				c.Engine.Flow = []FlowStepConfig{{Capability: "rerank"}}
			},
			wantErr: "engine.flow[0]",
		},
		{name: "zero top_k", mutate: func(c *Config) { c.Engine.TopK = 0 }, wantErr: "top_k"},
		{name: "bad backend", mutate: func(c *Config) { c.Memory.Backend = "mongo" }, wantErr: "unknown memory backend"},
		{
			name: "bad driver",
			mutate: func(c *Config) {
				c.Memory.Backend = "sql"
				c.Database.Driver = "oracle"
			},
			wantErr: "unsupported database driver",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	tests := []struct {
		name     string
		config   DatabaseConfig
		expected string
	}{
		{
			name: "postgres",
			config: DatabaseConfig{
				Driver: "postgres", Host: "localhost", Port: 5432,
				User: "user", Password: "pass", Name: "db", SSLMode: "disable",
			},
			expected: "host=localhost port=5432 user=user password=pass dbname=db sslmode=disable",
		},
		{
			name: "mysql",
			config: DatabaseConfig{
				Driver: "mysql", Host: "localhost", Port: 3306,
				User: "user", Password: "pass", Name: "db",
			},
			expected: "user:pass@tcp(localhost:3306)/db?parseTime=true",
		},
		{
			name:     "sqlite",
			config:   DatabaseConfig{Driver: "sqlite", Name: "/data/chat.db"},
			expected: "/data/chat.db",
		},
		{
			name:     "unknown",
			config:   DatabaseConfig{Driver: "oracle"},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.config.DSN())
		})
	}
}

func TestMustLoad_InvalidFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bad.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server: [oops"), 0644))

	assert.Panics(t, func() { MustLoad(configPath) })
}
