package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TG_ID", "12345")
	t.Setenv("TG_HASH", "hash")
	t.Setenv("TG_MOBILE_NUMBER", "+886900000000")
	t.Setenv("TG_FWD_TO", "777")
	for _, key := range []string{envFileVar, "PBOT_MODULES", "PBOT_SESSION_PATH", "PBOT_RATE_LIMIT", "PBOT_RATE_BURST", "PBOT_LOG_FORMAT", "PBOT_LOG_LEVEL", "PBOT_LOG_ADD_SOURCE"} {
		unsetEnv(t, key)
	}
	t.Chdir(t.TempDir())
}

// unsetEnv removes key for the duration of the test and restores it afterwards.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	_ = os.Unsetenv(key)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PBOT_MODULES", " FWD, getinfo ,fwd,")
	t.Setenv("PBOT_LOG_FORMAT", "json")
	t.Setenv("PBOT_LOG_ADD_SOURCE", "true")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}

	if cfg.Telegram.APIID != 12345 {
		t.Fatalf("telegram.api_id = %d, want 12345", cfg.Telegram.APIID)
	}
	if cfg.Modules.FwdTarget != 777 {
		t.Fatalf("modules.fwd_target = %d, want 777", cfg.Modules.FwdTarget)
	}
	if got := strings.Join(cfg.Modules.Enabled, ","); got != "fwd,getinfo" {
		t.Fatalf("modules.enabled = %q, want %q", got, "fwd,getinfo")
	}
	if cfg.Logging.Format != "json" || !cfg.Logging.AddSource {
		t.Fatalf("logging = %+v, want json with source", cfg.Logging)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}

	if cfg.Telegram.SessionPath != DefaultSessionPath {
		t.Fatalf("session path = %q, want %q", cfg.Telegram.SessionPath, DefaultSessionPath)
	}
	if !cfg.ModuleEnabled(ModuleFwd) {
		t.Fatal("expected fwd module to be enabled by default")
	}
	if cfg.Telegram.RateLimit != 10 || cfg.Telegram.RateBurst != 5 {
		t.Fatalf("rate = %v/%d, want 10/5", cfg.Telegram.RateLimit, cfg.Telegram.RateBurst)
	}
}

func TestLoadConfigMissingRequired(t *testing.T) {
	setRequiredEnv(t)
	unsetEnv(t, "TG_HASH")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for missing TG_HASH")
	}
}

func TestLoadConfigInvalidAPIID(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TG_ID", "not-a-number")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for non-numeric TG_ID")
	}
}

func TestLoadConfigFromEnvFile(t *testing.T) {
	setRequiredEnv(t)
	unsetEnv(t, "TG_HASH")

	path := filepath.Join(t.TempDir(), "pbot.env")
	if err := os.WriteFile(path, []byte("TG_HASH=from-file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv(envFileVar, path)
	t.Cleanup(func() { _ = os.Unsetenv("TG_HASH") })

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Telegram.APIHash != "from-file" {
		t.Fatalf("api hash = %q, want %q", cfg.Telegram.APIHash, "from-file")
	}
}

func TestLoadConfigInvalidEnvFilePath(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv(envFileVar, filepath.Join(t.TempDir(), "missing.env"))

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for missing env file")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Telegram: TelegramConfig{APIID: 1, APIHash: "h", MobileNumber: "+1", SessionPath: "s", RateLimit: 1, RateBurst: 1},
			Modules:  ModulesConfig{Enabled: []string{ModuleFwd}, FwdTarget: 42},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "fwd without target", mutate: func(c *Config) { c.Modules.FwdTarget = 0 }, wantErr: "TG_FWD_TO"},
		{name: "unknown module", mutate: func(c *Config) { c.Modules.Enabled = []string{"nope"} }, wantErr: `unknown module "nope"`},
		{name: "target optional without fwd", mutate: func(c *Config) {
			c.Modules.Enabled = []string{ModuleGetInfo}
			c.Modules.FwdTarget = 0
		}},
		{name: "zero rate", mutate: func(c *Config) { c.Telegram.RateLimit = 0 }, wantErr: "PBOT_RATE_LIMIT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
