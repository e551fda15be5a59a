// Package logging centralizes the decred/slog backend used across the
// server: one backend, one logger per subsystem, same debug level for all.
package logging

import (
	"os"

	"github.com/decred/slog"
)

// Subsystem names, used as the slog.Logger tag and therefore as the
// prefix clients see in log lines (e.g. "TABLE", "LOBBY").
const (
	SubsystemTable     = "TABLE"
	SubsystemLobby     = "LOBBY"
	SubsystemTransport = "XPRT"
	SubsystemISMCTS    = "MCTS"
	SubsystemStats     = "STAT"
	SubsystemAI        = "AIEX"
	SubsystemDiag      = "DIAG"
	SubsystemServer    = "SRVR"
)

// Backend wraps a slog.Backend and hands out per-subsystem loggers at a
// shared level, mirroring how the table/game loggers are carved out in
// the session this package is modeled on.
type Backend struct {
	backend slog.Backend
	level   slog.Level
}

// Config controls backend construction.
type Config struct {
	// DebugLevel is one of trace, debug, info, warn, error, critical, off.
	DebugLevel string
}

// NewBackend creates a Backend writing to stdout at the configured level.
func NewBackend(cfg Config) (*Backend, error) {
	lvl, ok := slog.LevelFromString(cfg.DebugLevel)
	if !ok {
		lvl = slog.LevelInfo
	}
	return &Backend{
		backend: slog.NewBackend(os.Stdout),
		level:   lvl,
	}, nil
}

// Logger returns a named logger at the backend's configured level.
func (b *Backend) Logger(subsystem string) slog.Logger {
	l := b.backend.Logger(subsystem)
	l.SetLevel(b.level)
	return l
}
