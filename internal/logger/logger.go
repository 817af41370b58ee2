// Copyright 2023 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logger implements a leveled slog-based logger for dbfs, with a
// TRACE level below DEBUG and a choice of text or JSON output, mirroring
// the logging conventions of the adapter this filesystem is built around.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"log/syslog"
	"os"

	"github.com/pjh/dbfs/cfg"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Severity level names accepted in cfg.Logging.Severity.
const (
	Trace   = "TRACE"
	Debug   = "DEBUG"
	Info    = "INFO"
	Warning = "WARNING"
	Error   = "ERROR"
	Off     = "OFF"
)

// Custom slog levels: slog's built-ins only go down to Debug (-4), so TRACE
// lives one tier below it and OFF lives above Error.
const (
	LevelTrace = slog.Level(-8)
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
	LevelOff   = slog.Level(12)
)

type loggerFactory struct {
	file            *os.File
	sysWriter       io.WriteCloser
	format          string
	level           string
	logRotateConfig cfg.LogRotate
}

var defaultLoggerFactory = &loggerFactory{
	format: "text",
	level:  Info,
}

var defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(os.Stderr, new(slog.LevelVar), ""))

func setLoggingLevel(level string, programLevel *slog.LevelVar) {
	switch level {
	case Trace:
		programLevel.Set(LevelTrace)
	case Debug:
		programLevel.Set(LevelDebug)
	case Info:
		programLevel.Set(LevelInfo)
	case Warning:
		programLevel.Set(LevelWarn)
	case Error:
		programLevel.Set(LevelError)
	case Off:
		programLevel.Set(LevelOff)
	default:
		programLevel.Set(LevelInfo)
	}
}

func severityName(l slog.Level) string {
	switch {
	case l <= LevelTrace:
		return Trace
	case l <= LevelDebug:
		return Debug
	case l <= LevelInfo:
		return Info
	case l <= LevelWarn:
		return Warning
	default:
		return Error
	}
}

func (f *loggerFactory) createJsonOrTextHandler(w io.Writer, level *slog.LevelVar, prefix string) slog.Handler {
	replace := func(groups []string, a slog.Attr) slog.Attr {
		if a.Key == slog.LevelKey {
			lvl := a.Value.Any().(slog.Level)
			a.Key = "severity"
			a.Value = slog.StringValue(severityName(lvl))
		}
		if a.Key == slog.MessageKey && prefix != "" {
			a.Value = slog.StringValue(prefix + a.Value.String())
		}
		return a
	}
	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: replace}
	if f.format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// InitLogFile wires logging output to the configured sink: stderr (default),
// syslog (FilePath == "syslog"), or a rotated file via lumberjack.
func InitLogFile(c cfg.Logging) error {
	defaultLoggerFactory = &loggerFactory{
		format:          c.Format,
		level:           c.Severity,
		logRotateConfig: c.LogRotate,
	}

	var w io.Writer
	switch c.FilePath {
	case "":
		w = os.Stderr
	case "syslog":
		sw, err := syslog.New(syslog.LOG_INFO|syslog.LOG_DAEMON, "dbfs")
		if err != nil {
			return fmt.Errorf("open syslog: %w", err)
		}
		defaultLoggerFactory.sysWriter = sw
		w = sw
	default:
		lj := &lumberjack.Logger{
			Filename:   c.FilePath,
			MaxSize:    c.LogRotate.MaxFileSizeMb,
			MaxBackups: c.LogRotate.BackupFileCount,
			Compress:   c.LogRotate.Compress,
		}
		w = lj
	}

	programLevel := new(slog.LevelVar)
	setLoggingLevel(c.Severity, programLevel)
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(w, programLevel, ""))
	return nil
}

func Tracef(format string, args ...any) {
	defaultLogger.Log(context.Background(), LevelTrace, fmt.Sprintf(format, args...))
}

func Debugf(format string, args ...any) {
	defaultLogger.Debug(fmt.Sprintf(format, args...))
}

func Infof(format string, args ...any) {
	defaultLogger.Info(fmt.Sprintf(format, args...))
}

func Warnf(format string, args ...any) {
	defaultLogger.Warn(fmt.Sprintf(format, args...))
}

func Errorf(format string, args ...any) {
	defaultLogger.Error(fmt.Sprintf(format, args...))
}
