package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var sensitiveEnv = []string{
	"EDGARKPI_SEC_USER_AGENT", "EDGARKPI_SEC_EMAIL", "EDGARKPI_CACHE_REDIS_PASSWORD",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, e := range sensitiveEnv {
		t.Setenv(e, "")
	}
}

// ── Load / Defaults ──

func TestLoadReturnsDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	// SEC defaults
	if cfg.SEC.ThrottleMS != 350 {
		t.Errorf("SEC.ThrottleMS: got %d, want 350", cfg.SEC.ThrottleMS)
	}
	if cfg.SEC.TimeoutSec != 30 {
		t.Errorf("SEC.TimeoutSec: got %d, want 30", cfg.SEC.TimeoutSec)
	}
	if cfg.SEC.MaxRetries != 6 {
		t.Errorf("SEC.MaxRetries: got %d, want 6", cfg.SEC.MaxRetries)
	}
	if cfg.SEC.BackoffFactor != 0.7 {
		t.Errorf("SEC.BackoffFactor: got %f, want 0.7", cfg.SEC.BackoffFactor)
	}
	if cfg.SEC.UserAgentString() != "" {
		t.Errorf("expected no User-Agent by default, got %q", cfg.SEC.UserAgentString())
	}

	// Cache defaults
	if cfg.Cache.Backend != "memory" {
		t.Errorf("Cache.Backend: got %q, want memory", cfg.Cache.Backend)
	}
	if cfg.Cache.RedisAddr != "localhost:6379" {
		t.Errorf("Cache.RedisAddr: got %q", cfg.Cache.RedisAddr)
	}
	if TTL(cfg.Cache.TickerTTL) != 24*time.Hour {
		t.Errorf("Cache.TickerTTL: got %d", cfg.Cache.TickerTTL)
	}
	if TTL(cfg.Cache.SubmissionsTTL) != 6*time.Hour || TTL(cfg.Cache.FactsTTL) != 6*time.Hour {
		t.Errorf("Cache submissions/facts TTL: got %d/%d", cfg.Cache.SubmissionsTTL, cfg.Cache.FactsTTL)
	}

	// KPI defaults
	if cfg.KPI.Extended {
		t.Error("KPI.Extended should be false by default")
	}
	if cfg.KPI.FilingsLimit != 25 {
		t.Errorf("KPI.FilingsLimit: got %d, want 25", cfg.KPI.FilingsLimit)
	}
	if cfg.KPI.PanelTail != 12 {
		t.Errorf("KPI.PanelTail: got %d, want 12", cfg.KPI.PanelTail)
	}

	// API defaults
	if cfg.API.Addr() != "0.0.0.0:8080" {
		t.Errorf("API.Addr: got %q", cfg.API.Addr())
	}

	// Logging defaults
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level: got %q, want info", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "console" {
		t.Errorf("Logging.Format: got %q, want console", cfg.Logging.Format)
	}
}

func TestLoadFromFile(t *testing.T) {
	clearEnv(t)
	cfgPath := filepath.Join(t.TempDir(), "test_config.yaml")
	content := []byte(`
sec:
  email: "ops@example.com"
  throttle_ms: 900
  max_retries: 2
cache:
  backend: "redis"
  redis_addr: "redis:6379"
  redis_db: 3
data:
  offline_dir: "/srv/edgar"
kpi:
  extended: true
  panel_tail: 8
api:
  port: 9090
  cors_origins: ["https://kpi.example.com"]
logging:
  level: "debug"
  format: "json"
`)
	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := LoadFromFile(cfgPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error: %v", err)
	}
	if cfg.SEC.UserAgentString() != "edgarkpi KPI Tracker ops@example.com" {
		t.Errorf("UserAgentString: got %q", cfg.SEC.UserAgentString())
	}
	if cfg.SEC.Throttle() != 900*time.Millisecond {
		t.Errorf("Throttle: got %v", cfg.SEC.Throttle())
	}
	if cfg.SEC.MaxRetries != 2 {
		t.Errorf("MaxRetries: got %d", cfg.SEC.MaxRetries)
	}
	if cfg.SEC.Timeout() != 30*time.Second {
		t.Errorf("Timeout should keep its default, got %v", cfg.SEC.Timeout())
	}
	if cfg.Cache.Backend != "redis" || cfg.Cache.RedisAddr != "redis:6379" || cfg.Cache.RedisDB != 3 {
		t.Errorf("unexpected cache config %+v", cfg.Cache)
	}
	if cfg.Data.OfflineDir != "/srv/edgar" {
		t.Errorf("Data.OfflineDir: got %q", cfg.Data.OfflineDir)
	}
	if !cfg.KPI.Extended || cfg.KPI.PanelTail != 8 {
		t.Errorf("unexpected kpi config %+v", cfg.KPI)
	}
	if cfg.API.Port != 9090 || len(cfg.API.CORSOrigins) != 1 {
		t.Errorf("unexpected api config %+v", cfg.API)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("unexpected logging config %+v", cfg.Logging)
	}
}

func TestLoadFromFileNotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("LoadFromFile() with nonexistent path should return error")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("sec:\n  throttle_ms: 900\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("EDGARKPI_SEC_THROTTLE_MS", "1250")
	t.Setenv("EDGARKPI_SEC_USER_AGENT", "Research Bot bot@example.com")

	cfg, err := LoadFromFile(cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SEC.ThrottleMS != 1250 {
		t.Errorf("ThrottleMS: got %d, want 1250", cfg.SEC.ThrottleMS)
	}
	if cfg.SEC.UserAgentString() != "Research Bot bot@example.com" {
		t.Errorf("UserAgentString: got %q", cfg.SEC.UserAgentString())
	}
}

func TestLoadDotEnv(t *testing.T) {
	const key = "EDGARKPI_TEST_DOTENV_MARKER"
	os.Unsetenv(key)
	t.Cleanup(func() { os.Unsetenv(key) })

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(key+"=dotenv\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := loadDotEnv(path); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv(key); got != "dotenv" {
		t.Errorf("expected .env value, got %q", got)
	}
	if err := loadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("missing .env should be ignored, got %v", err)
	}
}

// ── overrideFromEnv ──

func TestOverrideFromEnv(t *testing.T) {
	t.Setenv("EDGARKPI_SEC_USER_AGENT", "Env Agent env@example.com")
	t.Setenv("EDGARKPI_SEC_EMAIL", "env@example.com")
	t.Setenv("EDGARKPI_CACHE_REDIS_PASSWORD", "redis-secret")

	cfg := &Config{}
	overrideFromEnv(cfg)

	if cfg.SEC.UserAgent != "Env Agent env@example.com" {
		t.Errorf("UserAgent: got %q", cfg.SEC.UserAgent)
	}
	if cfg.SEC.Email != "env@example.com" {
		t.Errorf("Email: got %q", cfg.SEC.Email)
	}
	if cfg.Cache.RedisPassword != "redis-secret" {
		t.Errorf("RedisPassword: got %q", cfg.Cache.RedisPassword)
	}
}

func TestOverrideFromEnvNoEnvSet(t *testing.T) {
	clearEnv(t)
	cfg := &Config{SEC: SECConfig{UserAgent: "from-config"}}
	overrideFromEnv(cfg)

	if cfg.SEC.UserAgent != "from-config" {
		t.Errorf("UserAgent should stay as 'from-config' when env is unset, got %q", cfg.SEC.UserAgent)
	}
}

func TestUserAgentString(t *testing.T) {
	tests := []struct {
		name string
		cfg  SECConfig
		want string
	}{
		{"explicit wins", SECConfig{UserAgent: " Acme research@acme.com ", Email: "x@y.z"}, "Acme research@acme.com"},
		{"from email", SECConfig{Email: "me@example.com"}, "edgarkpi KPI Tracker me@example.com"},
		{"unset", SECConfig{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.UserAgentString(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

// ── credentials ──

func TestMask(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", "***"},
		{"short", "***"},
		{"12345678", "***"},
		{"ops@example.com", "ops...com"},
	}
	for _, tt := range tests {
		if got := mask(tt.input); got != tt.want {
			t.Errorf("mask(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestCheckCredentials(t *testing.T) {
	clearEnv(t)
	cfg := &Config{SEC: SECConfig{Email: "ops@example.com"}}
	got := CheckCredentials(cfg)
	if len(got) != 3 {
		t.Fatalf("expected 3 statuses, got %d", len(got))
	}
	if got[0].IsSet || got[0].Source != SourceNone {
		t.Errorf("user agent: %+v", got[0])
	}
	if !got[1].IsSet || got[1].Source != SourceConfig || got[1].Masked != "ops...com" {
		t.Errorf("email: %+v", got[1])
	}
}

func TestCheckCredentialSourceEnv(t *testing.T) {
	t.Setenv("EDGARKPI_CACHE_REDIS_PASSWORD", "from-env-secret")
	cfg := &Config{}
	overrideFromEnv(cfg)
	st := CheckCredentials(cfg)[2]
	if st.Source != SourceEnv {
		t.Errorf("expected env source, got %s", st.Source)
	}
}
