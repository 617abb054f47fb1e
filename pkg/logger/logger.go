// Copyright (c) Voldivh
// SPDX-License-Identifier: Apache-2.0

// Package logger builds the module's structured logger, wiring log/slog the
// way the wider platform's cmd/*/main.go entrypoints construct their
// loggers from a plain level string before anything else is initialized.
package logger

import (
	"io"
	"log/slog"

	"github.com/Voldivh/gz-transport/pkg/errors"
)

// ErrInvalidLevel indicates an unrecognized log level string.
var ErrInvalidLevel = errors.New("unrecognized log level")

// New parses levelText ("debug", "info", "warn", "error") and returns a
// structured logger writing to w.
func New(w io.Writer, levelText string) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(levelText)); err != nil {
		return nil, errors.Wrap(ErrInvalidLevel, err)
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})

	return slog.New(handler), nil
}
