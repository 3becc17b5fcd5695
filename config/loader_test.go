// 配置加载器测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Loader 测试 ---

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, "generated_outputs", cfg.Pipeline.OutputDir)
	assert.Equal(t, "super-user", cfg.Pipeline.DefaultCaller)
	assert.NoError(t, cfg.Validate())
}

func TestLoader_LoadFromYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
server:
  http_port: 8888
  read_timeout: 60s

pipeline:
  output_dir: "/data/out"
  users:
    alice:
      app_ids: ["img-app", "3d-app"]

expander:
  provider: "openai-compat"
  base_url: "http://vllm:8000"
  temperature: 0.5

gateway:
  endpoints:
    img-app: "http://localhost:9000"

database:
  driver: "postgres"
  name: "audit"

log:
  level: "debug"
  format: "console"
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	cfg, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.Server.HTTPPort)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)

	assert.Equal(t, "/data/out", cfg.Pipeline.OutputDir)
	assert.Equal(t, []string{"img-app", "3d-app"}, cfg.Pipeline.Users["alice"].AppIDs)
	// 默认的 super-user 仍然保留
	assert.Contains(t, cfg.Pipeline.Users, "super-user")

	assert.Equal(t, "openai-compat", cfg.Expander.Provider)
	assert.Equal(t, "http://vllm:8000", cfg.Expander.BaseURL)
	assert.Equal(t, 0.5, cfg.Expander.Temperature)
	// 未覆盖的生成参数保留默认值
	assert.Equal(t, 150, cfg.Expander.MaxNewTokens)

	assert.Equal(t, "http://localhost:9000", cfg.Gateway.Endpoints["img-app"])
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoader_LoadFromEnv(t *testing.T) {
	t.Setenv("IMAGINE3D_SERVER_HTTP_PORT", "7777")
	t.Setenv("IMAGINE3D_SERVER_API_KEYS", "k1, k2,")
	t.Setenv("IMAGINE3D_PIPELINE_OUTPUT_DIR", "/tmp/out")
	t.Setenv("IMAGINE3D_EXPANDER_TOP_K", "40")
	t.Setenv("IMAGINE3D_EXPANDER_DO_SAMPLE", "false")
	t.Setenv("IMAGINE3D_GATEWAY_CALL_TIMEOUT", "90s")
	t.Setenv("IMAGINE3D_GATEWAY_FLUX_API_KEY", "flux-key")
	t.Setenv("IMAGINE3D_REDIS_ENABLED", "true")
	t.Setenv("IMAGINE3D_LOG_LEVEL", "warn")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.HTTPPort)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Server.APIKeys)
	assert.Equal(t, "/tmp/out", cfg.Pipeline.OutputDir)
	assert.Equal(t, 40, cfg.Expander.TopK)
	assert.False(t, cfg.Expander.DoSample)
	assert.Equal(t, 90*time.Second, cfg.Gateway.CallTimeout)
	assert.Equal(t, "flux-key", cfg.Gateway.Flux.APIKey)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
server:
  http_port: 8888
expander:
  model: "yaml-model"
  base_url: "http://yaml:8081"
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	t.Setenv("IMAGINE3D_SERVER_HTTP_PORT", "9999")
	t.Setenv("IMAGINE3D_EXPANDER_BASE_URL", "http://env:8081")

	cfg, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.HTTPPort)
	assert.Equal(t, "http://env:8081", cfg.Expander.BaseURL)
	assert.Equal(t, "yaml-model", cfg.Expander.Model)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	t.Setenv("MYAPP_SERVER_HTTP_PORT", "6666")

	cfg, err := NewLoader().
		WithEnvPrefix("MYAPP").
		Load()
	require.NoError(t, err)

	assert.Equal(t, 6666, cfg.Server.HTTPPort)
}

func TestLoader_WithValidator(t *testing.T) {
	t.Setenv("IMAGINE3D_SERVER_HTTP_PORT", "80")

	_, err := NewLoader().
		WithValidator(func(cfg *Config) error {
			if cfg.Server.HTTPPort < 1024 {
				return assert.AnError
			}
			return nil
		}).
		Load()
	assert.Error(t, err)
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	t.Setenv("IMAGINE3D_SERVER_HTTP_PORT", "not-a-number")

	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IMAGINE3D_SERVER_HTTP_PORT")
}

func TestLoader_NonExistentFile(t *testing.T) {
	cfg, err := NewLoader().
		WithConfigPath("/non/existent/path/config.yaml").
		Load()
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

	_, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	assert.Error(t, err)
}

// --- Config 方法测试 ---

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{name: "valid default config", modify: func(c *Config) {}},
		{name: "negative HTTP port", modify: func(c *Config) { c.Server.HTTPPort = -1 }, wantErr: true},
		{name: "HTTP port too large", modify: func(c *Config) { c.Server.HTTPPort = 70000 }, wantErr: true},
		{name: "empty output dir", modify: func(c *Config) { c.Pipeline.OutputDir = "  " }, wantErr: true},
		{name: "missing capability id", modify: func(c *Config) { c.Pipeline.ModelCapability = "" }, wantErr: true},
		{name: "missing default caller", modify: func(c *Config) { c.Pipeline.DefaultCaller = "" }, wantErr: true},
		{name: "unknown expander provider", modify: func(c *Config) { c.Expander.Provider = "bogus" }, wantErr: true},
		{name: "unknown template", modify: func(c *Config) { c.Expander.Template = "llama3" }, wantErr: true},
		{name: "zero max tokens", modify: func(c *Config) { c.Expander.MaxNewTokens = 0 }, wantErr: true},
		{name: "negative temperature", modify: func(c *Config) { c.Expander.Temperature = -0.5 }, wantErr: true},
		{name: "top_p zero", modify: func(c *Config) { c.Expander.TopP = 0 }, wantErr: true},
		{name: "unknown driver", modify: func(c *Config) { c.Database.Driver = "oracle" }, wantErr: true},
		{name: "openai-compat chatml", modify: func(c *Config) {
			c.Expander.Provider = "openai-compat"
			c.Expander.Template = "chatml"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
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
			name: "postgres DSN",
			config: DatabaseConfig{
				Driver: "postgres", Host: "localhost", Port: 5432,
				User: "user", Password: "pass", Name: "dbname", SSLMode: "disable",
			},
			expected: "host=localhost port=5432 user=user password=pass dbname=dbname sslmode=disable",
		},
		{
			name: "mysql DSN",
			config: DatabaseConfig{
				Driver: "mysql", Host: "localhost", Port: 3306,
				User: "user", Password: "pass", Name: "dbname",
			},
			expected: "user:pass@tcp(localhost:3306)/dbname?parseTime=true",
		},
		{
			name:     "sqlite DSN",
			config:   DatabaseConfig{Driver: "sqlite", Name: "generated_outputs/generation_memory.db"},
			expected: "generated_outputs/generation_memory.db",
		},
		{
			name:     "unknown driver",
			config:   DatabaseConfig{Driver: "unknown"},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.config.DSN())
		})
	}
}

func TestMustLoad_PanicsOnBadFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bad.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server: [oops"), 0644))

	assert.Panics(t, func() { MustLoad(configPath) })
}
