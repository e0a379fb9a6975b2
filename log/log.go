// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package log is the logging facade used across the module. Loggers created by
// WithContext resolve the root handler on every call, so package level loggers
// pick up whatever handler the host installs after init.
package log

import (
	"io"
	"log/slog"

	ethlog "github.com/ethereum/go-ethereum/log"
)

// Logger writes leveled key/value records.
type Logger interface {
	With(ctx ...any) Logger
	Trace(msg string, ctx ...any)
	Debug(msg string, ctx ...any)
	Info(msg string, ctx ...any)
	Warn(msg string, ctx ...any)
	Error(msg string, ctx ...any)
}

type logger struct {
	ctx []any
}

// WithContext returns a logger that prefixes every record with ctx.
func WithContext(ctx ...any) Logger {
	return &logger{ctx: ctx}
}

// Root returns the root logger.
func Root() Logger {
	return &logger{}
}

func (l *logger) resolve() ethlog.Logger {
	if len(l.ctx) == 0 {
		return ethlog.Root()
	}
	return ethlog.Root().With(l.ctx...)
}

func (l *logger) With(ctx ...any) Logger {
	merged := make([]any, 0, len(l.ctx)+len(ctx))
	merged = append(merged, l.ctx...)
	return &logger{ctx: append(merged, ctx...)}
}

func (l *logger) Trace(msg string, ctx ...any) { l.resolve().Trace(msg, ctx...) }
func (l *logger) Debug(msg string, ctx ...any) { l.resolve().Debug(msg, ctx...) }
func (l *logger) Info(msg string, ctx ...any)  { l.resolve().Info(msg, ctx...) }
func (l *logger) Warn(msg string, ctx ...any)  { l.resolve().Warn(msg, ctx...) }
func (l *logger) Error(msg string, ctx ...any) { l.resolve().Error(msg, ctx...) }

// LevelFromVerbosity maps the classic 0 (crit) .. 5 (trace) verbosity scale to a slog level.
func LevelFromVerbosity(verbosity int) slog.Level {
	return ethlog.FromLegacyLevel(verbosity)
}

// NewTerminalHandler returns a human readable handler writing to w.
func NewTerminalHandler(w io.Writer, level slog.Level, useColor bool) slog.Handler {
	return ethlog.NewTerminalHandlerWithLevel(w, level, useColor)
}

// JSONHandler returns a handler emitting one JSON object per record.
func JSONHandler(w io.Writer) slog.Handler {
	return ethlog.JSONHandler(w)
}

// SetDefault installs h as the root handler.
func SetDefault(h slog.Handler) {
	ethlog.SetDefault(ethlog.NewLogger(h))
}

// Discard silences the root logger.
func Discard() {
	SetDefault(ethlog.DiscardHandler())
}
