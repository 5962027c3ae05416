// Package logging builds the application's zap logger.
package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ZaguanLabs/mathgpt/internal/config"
)

// New builds a logger from cfg. Logs go to cfg.File when set, otherwise to
// stderr. A quiet logger without a file discards everything, so a full-screen
// UI is never drawn over.
func New(cfg config.LoggingConfig, quiet bool) (*zap.Logger, error) {
	file := strings.TrimSpace(cfg.File)
	if quiet && file == "" {
		return zap.NewNop(), nil
	}

	level := zapcore.InfoLevel
	if err := level.Set(strings.ToLower(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	encoding := strings.ToLower(cfg.Encoding)
	if encoding == "" {
		encoding = "console"
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.TimeKey = "time"
	encoderCfg.MessageKey = "msg"
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	if encoding == "console" {
		encoderCfg = zap.NewDevelopmentEncoderConfig()
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	output := "stderr"
	if file != "" {
		output = file
	}

	zapCfg := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Encoding:          encoding,
		EncoderConfig:     encoderCfg,
		OutputPaths:       []string{output},
		ErrorOutputPaths:  []string{output},
		DisableCaller:     level != zapcore.DebugLevel,
		DisableStacktrace: true,
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Named("mathgpt"), nil
}
