// Package options contains the flags and helpers shared by the CLI
// commands.
package options

import (
	"fmt"
	"os"
	"time"

	"github.com/torchat/torchat-go/pkg/config"
	"github.com/urfave/cli"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

// ConfigFile points the command at a YAML configuration; the embedded
// default is used when absent.
var ConfigFile = cli.StringFlag{
	Name:  "config-file, c",
	Usage: "Configuration file to use, the embedded default otherwise",
}

// Debug switches the logging level to debug regardless of the
// configuration.
var Debug = cli.BoolFlag{
	Name:  "debug, d",
	Usage: "Enable debug logging (precedes the config)",
}

// HandleLoggingParams builds a logger from the logging section of the
// configuration. The returned closer flushes the log sink; call it on
// the way out.
func HandleLoggingParams(debug bool, cfg config.Logger) (*zap.Logger, func() error, error) {
	level := zapcore.InfoLevel
	if len(cfg.LogLevel) > 0 {
		var err error
		level, err = zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, nil, fmt.Errorf("log setting: %w", err)
		}
	}
	if debug {
		level = zapcore.DebugLevel
	}

	cc := zap.NewProductionConfig()
	cc.DisableCaller = true
	cc.DisableStacktrace = true
	cc.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	cc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	if term.IsTerminal(int(os.Stdout.Fd())) {
		cc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cc.EncoderConfig.EncodeTime = func(t time.Time, encoder zapcore.PrimitiveArrayEncoder) {}
	}
	cc.Encoding = "console"
	if len(cfg.LogEncoding) > 0 {
		cc.Encoding = cfg.LogEncoding
	}
	cc.Level = zap.NewAtomicLevelAt(level)
	cc.Sampling = nil
	if cfg.LogPath != "" {
		cc.OutputPaths = []string{cfg.LogPath}
	}

	log, err := cc.Build()
	if err != nil {
		return nil, nil, err
	}
	return log, func() error { return log.Sync() }, nil
}
