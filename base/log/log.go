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

	"github.com/juju/errors"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger *zap.Logger
	level  = zap.NewAtomicLevelAt(zap.DebugLevel)
)

func init() {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = level
	var err error
	if logger, err = cfg.Build(); err != nil {
		panic(err)
	}
}

// Logger get current logger
func Logger() *zap.Logger {
	return logger
}

// SetLevel changes the minimum level of the current logger.
func SetLevel(l zapcore.Level) {
	level.SetLevel(l)
}

func AddFlags(flagSet *pflag.FlagSet) {
	flagSet.String("log-level", "", "minimum log level: debug, info, warn or error (info by default, debug with --debug)")
	flagSet.String("log-path", "", "path of log file")
	flagSet.Int("log-max-size", 100, "maximum size in megabytes of the log file")
	flagSet.Int("log-max-age", 0, "maximum number of days to retain old log files")
	flagSet.Int("log-max-backups", 0, "maximum number of old log files to retain")
}

// SetLogger replaces the logger according to flags. Debug mode writes console lines,
// otherwise JSON lines are written.
func SetLogger(flagSet *pflag.FlagSet, debug bool) error {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.999999")
	var encoder zapcore.Encoder
	minLevel := zap.InfoLevel
	if debug {
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
		minLevel = zap.DebugLevel
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}
	if flagSet.Changed("log-level") {
		text, _ := flagSet.GetString("log-level")
		parsed, err := zapcore.ParseLevel(text)
		if err != nil {
			return errors.NewNotValid(err, "log level")
		}
		minLevel = parsed
	}
	level.SetLevel(minLevel)
	core := zapcore.NewCore(encoder, zap.CombineWriteSyncers(writeSyncers(flagSet)...), level)
	logger = zap.New(core)
	return nil
}

// writeSyncers returns stdout and, if --log-path is set, a rotated log file.
func writeSyncers(flagSet *pflag.FlagSet) []zapcore.WriteSyncer {
	writers := []zapcore.WriteSyncer{zapcore.AddSync(os.Stdout)}
	if !flagSet.Changed("log-path") {
		return writers
	}
	path, _ := flagSet.GetString("log-path")
	maxSize, _ := flagSet.GetInt("log-max-size")
	maxAge, _ := flagSet.GetInt("log-max-age")
	maxBackups, _ := flagSet.GetInt("log-max-backups")
	return append(writers, zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		MaxAge:     maxAge,
	}))
}
