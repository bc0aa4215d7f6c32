// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/viper"
	slogctx "github.com/veqryn/slog-context"
)

// setupLogging configures the default logger from the log flags and
// returns a context carrying it, so backend call tracing shows up with
// enough -v.
func setupLogging(ctx context.Context) context.Context {
	verbosity := viper.GetInt("log-level")
	logFormat := viper.GetString("log-format")

	level := new(slog.LevelVar)
	level.Set(slog.LevelError - slog.Level(verbosity*4))

	handlerOpts := &slog.HandlerOptions{Level: level}

	useJSON := logFormat == "json" || (logFormat == "auto" && !isTTY())

	var handler slog.Handler
	if useJSON {
		handler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	if ctx == nil {
		ctx = context.Background()
	}
	return slogctx.NewCtx(ctx, logger)
}

func isTTY() bool {
	fileInfo, _ := os.Stdout.Stat()
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}
