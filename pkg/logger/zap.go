package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"pbot/pkg/config"
)

// NewZap builds the logger handed to the MTProto client internals.
//
// Protocol chatter stays at warn unless the configured level is debug.
func NewZap(cfg config.LoggingConfig) (*zap.Logger, error) {
	return newZapWithWriter(cfg, os.Stderr)
}

func newZapWithWriter(cfg config.LoggingConfig, writer io.Writer) (*zap.Logger, error) {
	format := strings.ToLower(strings.TrimSpace(cfg.Format))
	if format == "" {
		format = defaultFormat
	}
	if format != "json" && format != "text" {
		return nil, fmt.Errorf("unsupported log format %q", format)
	}

	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	zapLevel := zapcore.WarnLevel
	if level <= slog.LevelDebug {
		zapLevel = zapcore.DebugLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	encoder := zapcore.NewConsoleEncoder(encoderCfg)
	if format == "json" {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(writer)), zapLevel)
	return zap.New(core).Named("mtproto"), nil
}
