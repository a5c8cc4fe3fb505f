// Package logging builds the zap logger used by statusfrag commands.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Levels accepted by New.
const (
	LevelNone   = "none"
	LevelNormal = "normal"
	LevelDebug  = "debug"
)

// New returns a console logger writing to w at the given level. A nil w
// means stderr, keeping stdout free for rendered fragments.
func New(level string, w zapcore.WriteSyncer) (*zap.Logger, error) {
	var enabled zapcore.Level
	switch level {
	case LevelNone:
		return zap.NewNop(), nil
	case LevelNormal, "":
		enabled = zapcore.InfoLevel
	case LevelDebug:
		enabled = zapcore.DebugLevel
	default:
		return nil, fmt.Errorf("unknown log level %q (want %s, %s or %s)", level, LevelNone, LevelNormal, LevelDebug)
	}
	if w == nil {
		w = zapcore.Lock(os.Stderr)
	}

	ec := zap.NewDevelopmentEncoderConfig()
	ec.EncodeCaller = nil
	ec.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(ec), w, zap.NewAtomicLevelAt(enabled))
	return zap.New(core).Named("statusfrag"), nil
}
