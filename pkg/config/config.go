package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	envFileVar = "PBOT_ENV_FILE"

	defaultEnvFile     = ".env"
	DefaultSessionPath = "./.telegram.session.dat"

	ModuleFwd     = "fwd"
	ModuleAddRank = "addrank"
	ModuleGetInfo = "getinfo"
)

// KnownModules lists every module kind that can be enabled through PBOT_MODULES.
var KnownModules = []string{ModuleFwd, ModuleAddRank, ModuleGetInfo}

// Config is the root runtime configuration, populated once at startup.
type Config struct {
	Telegram TelegramConfig
	Modules  ModulesConfig
	Schedule ScheduleConfig
	Status   StatusConfig
	Logging  LoggingConfig
}

// TelegramConfig holds the account credentials and connection pacing.
type TelegramConfig struct {
	APIID        int     `env:"TG_ID,required"`
	APIHash      string  `env:"TG_HASH,required"`
	MobileNumber string  `env:"TG_MOBILE_NUMBER,required"`
	SessionPath  string  `env:"PBOT_SESSION_PATH" envDefault:"./.telegram.session.dat"`
	RateLimit    float64 `env:"PBOT_RATE_LIMIT" envDefault:"10"`
	RateBurst    int     `env:"PBOT_RATE_BURST" envDefault:"5"`
}

// ModulesConfig selects the enabled modules and their per-module settings.
type ModulesConfig struct {
	Enabled    []string `env:"PBOT_MODULES" envSeparator:"," envDefault:"fwd"`
	FwdTarget  int64    `env:"TG_FWD_TO"`
	RecordPath string   `env:"PBOT_RECORD_PATH"`
}

// ScheduleConfig describes cron-driven sends, `<spec>|<chat id>|<text>` separated by `;`.
type ScheduleConfig struct {
	Entries string `env:"PBOT_SCHEDULE"`
}

// StatusConfig configures the optional status HTTP server.
type StatusConfig struct {
	Addr string `env:"PBOT_STATUS_ADDR"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `env:"PBOT_LOG_FORMAT"`
	Level     string `env:"PBOT_LOG_LEVEL"`
	AddSource bool   `env:"PBOT_LOG_ADD_SOURCE"`
}

// LoadConfig loads the optional env file, parses the environment and validates the result.
func LoadConfig() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	cfg.Modules.Enabled = normalizeModules(cfg.Modules.Enabled)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field requirements that struct tags cannot express.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	var errs []error
	if c.Telegram.APIID <= 0 {
		errs = append(errs, errors.New("TG_ID must be a positive integer"))
	}
	if strings.TrimSpace(c.Telegram.APIHash) == "" {
		errs = append(errs, errors.New("TG_HASH is required"))
	}
	if strings.TrimSpace(c.Telegram.MobileNumber) == "" {
		errs = append(errs, errors.New("TG_MOBILE_NUMBER is required"))
	}
	if strings.TrimSpace(c.Telegram.SessionPath) == "" {
		errs = append(errs, errors.New("PBOT_SESSION_PATH must not be empty"))
	}
	if c.Telegram.RateLimit <= 0 {
		errs = append(errs, errors.New("PBOT_RATE_LIMIT must be positive"))
	}
	if c.Telegram.RateBurst <= 0 {
		errs = append(errs, errors.New("PBOT_RATE_BURST must be positive"))
	}

	for _, name := range c.Modules.Enabled {
		if !slices.Contains(KnownModules, name) {
			errs = append(errs, fmt.Errorf("unknown module %q in PBOT_MODULES", name))
		}
	}
	if c.ModuleEnabled(ModuleFwd) && c.Modules.FwdTarget == 0 {
		errs = append(errs, errors.New("TG_FWD_TO is required when the fwd module is enabled"))
	}

	return errors.Join(errs...)
}

// ModuleEnabled reports whether the named module kind is enabled.
func (c *Config) ModuleEnabled(name string) bool {
	return slices.Contains(c.Modules.Enabled, name)
}

// loadEnvFile reads PBOT_ENV_FILE (default .env) into the process environment.
//
// A missing default file is not an error; an explicitly configured one must exist.
func loadEnvFile() error {
	path := strings.TrimSpace(os.Getenv(envFileVar))
	explicit := path != ""
	if !explicit {
		path = defaultEnvFile
	}

	if _, err := os.Stat(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%s does not point to a file: %s", envFileVar, path)
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}

	return nil
}

// normalizeModules lowercases, trims and dedupes module names while keeping order.
func normalizeModules(input []string) []string {
	clean := make([]string, 0, len(input))
	for _, value := range input {
		name := strings.ToLower(strings.TrimSpace(value))
		if name == "" || slices.Contains(clean, name) {
			continue
		}
		clean = append(clean, name)
	}

	return slices.Clip(clean)
}
