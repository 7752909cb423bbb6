// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logLevel      string
	logFormat     string
	logVerbose    bool
	logFile       string
	logMaxSize    int
	logMaxBackups int
	logMaxAge     int

	// logOutput is where log records go, a rotating file when --log-file is set
	logOutput io.Writer = os.Stdout
)

func addLoggingFlags(flags *pflag.FlagSet) {
	flags.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flags.StringVar(&logFormat, "log-format", "text", "Log format (text, json)")
	flags.BoolVarP(&logVerbose, "verbose", "v", false, "Shorthand for --log-level debug")
	flags.StringVar(&logFile, "log-file", "", "Write logs to a rotating file instead of stdout")
	flags.IntVar(&logMaxSize, "log-max-size", 10, "Log file size in MB before rotation")
	flags.IntVar(&logMaxBackups, "log-max-backups", 5, "Rotated log files to keep")
	flags.IntVar(&logMaxAge, "log-max-age", 28, "Days to keep rotated log files")
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q (use debug, info, warn or error)", s)
}

func newLogHandler(w io.Writer, format string, level slog.Level) (slog.Handler, error) {
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(format) {
	case "text", "":
		return slog.NewTextHandler(w, opts), nil
	case "json":
		return slog.NewJSONHandler(w, opts), nil
	}
	return nil, fmt.Errorf("unknown log format %q (use text or json)", format)
}

// setupLogging installs the default logger from the logging flags
func setupLogging(cmd *cobra.Command, args []string) error {
	level, err := parseLogLevel(logLevel)
	if err != nil {
		return err
	}
	if logVerbose {
		level = slog.LevelDebug
	}

	logOutput = os.Stdout
	if logFile != "" {
		logOutput = &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    logMaxSize,
			MaxBackups: logMaxBackups,
			MaxAge:     logMaxAge,
			Compress:   true,
		}
	}

	handler, err := newLogHandler(logOutput, logFormat, level)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

// closeLogging flushes and closes a log file opened by setupLogging
func closeLogging() {
	if lj, ok := logOutput.(*lumberjack.Logger); ok {
		lj.Close()
	}
}
