// Package logging adapts zap to the auth.Logger interface.
package logging

import (
	"go.uber.org/zap"
)

type Config struct {
	Development bool
	Level       string
}

// New builds a sugared zap logger for cfg.
func New(cfg Config) (*zap.SugaredLogger, error) {
	var zcfg zap.Config
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}

	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		zcfg.Level = level
	}

	l, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}

// Adapter satisfies auth.Logger with a sugared zap logger.
type Adapter struct {
	l *zap.SugaredLogger
}

// NewAdapter wraps l. A nil l is replaced by a no-op logger.
func NewAdapter(l *zap.SugaredLogger) *Adapter {
	if l == nil {
		l = zap.NewNop().Sugar()
	}
	return &Adapter{l: l}
}

func (a *Adapter) Debug(msg string, args ...any) { a.l.Debugw(msg, args...) }
func (a *Adapter) Info(msg string, args ...any)  { a.l.Infow(msg, args...) }
func (a *Adapter) Warn(msg string, args ...any)  { a.l.Warnw(msg, args...) }
func (a *Adapter) Error(msg string, args ...any) { a.l.Errorw(msg, args...) }

// Named returns an adapter scoped to a sub-logger.
func (a *Adapter) Named(name string) *Adapter {
	return &Adapter{l: a.l.Named(name)}
}

// Sync flushes buffered entries.
func (a *Adapter) Sync() error {
	return a.l.Sync()
}

// Sugared exposes the wrapped logger.
func (a *Adapter) Sugared() *zap.SugaredLogger {
	return a.l
}
