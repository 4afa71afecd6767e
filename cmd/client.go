package cmd

import (
	"fmt"
	"log/slog"

	"pbot/pkg/config"
	"pbot/pkg/logger"
	"pbot/pkg/telegram"
	"pbot/pkg/ui/prompt"
)

// setup loads configuration and installs the default logger.
func setup(component string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	appLogger, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	slog.SetDefault(appLogger)

	return cfg, appLogger.With("component", component), nil
}

func newClient(cfg *config.Config, log *slog.Logger) (*telegram.Client, error) {
	protoLog, err := logger.NewZap(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize protocol logger: %w", err)
	}

	authenticator := telegram.NewAuthenticator(cfg.Telegram.MobileNumber, prompt.Terminal{})
	return telegram.NewClient(cfg.Telegram, authenticator, log, protoLog), nil
}
