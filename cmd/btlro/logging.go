package main

import (
	"fmt"
	"log"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// BackupLogger is used when a logger could not be built from flags.
var BackupLogger = log.Default()

// LoggingOptions collects the logging flags shared by all commands.
type LoggingOptions struct {
	level  string
	format string
}

func (o *LoggingOptions) AddCLIFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.level, "log-level", "info", "Log level: debug, info, warn or error")
	fs.StringVar(&o.format, "log-format", "console", "Log format: console or json")
}

// CreateLogger builds a logger writing to stderr.
func (o *LoggingOptions) CreateLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(o.level)
	if err != nil {
		return nil, err
	}
	var config zap.Config
	switch o.format {
	case "console":
		config = zap.NewDevelopmentConfig()
		config.DisableStacktrace = true
	case "json":
		config = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("unsupported log format %q", o.format)
	}
	config.Level = zap.NewAtomicLevelAt(level)
	config.OutputPaths = []string{"stderr"}
	return config.Build()
}

func (o *LoggingOptions) MustCreateLogger() *zap.SugaredLogger {
	logger, err := o.CreateLogger()
	if err != nil {
		BackupLogger.Fatalf("Failed to create logger: %v", err)
	}
	return logger.Sugar()
}
