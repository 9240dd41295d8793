// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"os"
	"strings"

	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const timeLayout = "2006-01-02 15:04:05.999999"

var logger = zap.Must(zap.NewDevelopment())

// Logger returns the process-wide logger.
func Logger() *zap.Logger {
	return logger
}

// Options describes where and how verbosely the pipeline logs.
type Options struct {
	Debug bool
	// rotated log file, stdout only when empty
	Path       string
	MaxSize    int
	MaxAge     int
	MaxBackups int
}

func AddFlags(flagSet *pflag.FlagSet) {
	flagSet.String("log-path", "", "path of log file")
	flagSet.Int("log-max-size", 100, "maximum size in megabytes of the log file")
	flagSet.Int("log-max-age", 0, "maximum number of days to retain old log files")
	flagSet.Int("log-max-backups", 0, "maximum number of old log files to retain")
}

// OptionsFromFlags reads the flags registered by AddFlags.
func OptionsFromFlags(flagSet *pflag.FlagSet, debug bool) Options {
	opts := Options{Debug: debug}
	if flagSet.Changed("log-path") {
		opts.Path, _ = flagSet.GetString("log-path")
	}
	opts.MaxSize, _ = flagSet.GetInt("log-max-size")
	opts.MaxAge, _ = flagSet.GetInt("log-max-age")
	opts.MaxBackups, _ = flagSet.GetInt("log-max-backups")
	return opts
}

// Build creates a console logger in debug mode and a JSON logger otherwise.
func (opts Options) Build() *zap.Logger {
	var encoder zapcore.Encoder
	level := zap.InfoLevel
	if opts.Debug {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout(timeLayout)
		encoder = zapcore.NewConsoleEncoder(cfg)
		level = zap.DebugLevel
	} else {
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout(timeLayout)
		encoder = zapcore.NewJSONEncoder(cfg)
	}
	sinks := []zapcore.WriteSyncer{zapcore.AddSync(os.Stdout)}
	if opts.Path != "" {
		sinks = append(sinks, zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.Path,
			MaxSize:    opts.MaxSize,
			MaxAge:     opts.MaxAge,
			MaxBackups: opts.MaxBackups,
		}))
	}
	return zap.New(zapcore.NewCore(encoder, zap.CombineWriteSyncers(sinks...), level))
}

func SetLogger(flagSet *pflag.FlagSet, debug bool) {
	logger = OptionsFromFlags(flagSet, debug).Build()
}

// CloseLogger flushes buffered entries and falls back to a logger that only reports
// fatal errors.
func CloseLogger() {
	_ = logger.Sync()
	logger = zap.New(zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(os.Stderr),
		zap.FatalLevel))
}

// Redact masks a secret before it reaches the log. Long secrets keep their first and
// last character.
func Redact(secret string) string {
	if len(secret) <= 4 {
		return strings.Repeat("x", len(secret))
	}
	return secret[:1] + strings.Repeat("x", len(secret)-2) + secret[len(secret)-1:]
}

// GetErrorHandler reports OpenTelemetry failures through the logger.
func GetErrorHandler() otel.ErrorHandler {
	return otel.ErrorHandlerFunc(func(err error) {
		Logger().Error("opentelemetry failure", zap.Error(err))
	})
}
