// Package logger provides the leveled, per-component logger used
// throughout the engine. It is a thin wrapper around zap, grounded on
// uber-kraken's utils/log package, exposing the small surface the rest of
// this codebase calls: Debugln/Debugf, Infoln/Infof, Warningln/Warningf,
// Errorln/Errorf.
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a named, leveled logger.
type Logger struct {
	name string
	z    *zap.SugaredLogger
}

var base *zap.Logger = mustBuild()

func mustBuild() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// Fall back to a no-op logger rather than aborting the whole
		// process over a logging misconfiguration.
		return zap.NewNop()
	}
	return l
}

var (
	curLevel  = zapcore.DebugLevel
	curOutput = []string{"stderr"}
)

// SetLevel adjusts the minimum level emitted by loggers created by New
// after the call, for the daemon's --log-level flag; loggers created
// earlier keep the level they were built with.
func SetLevel(level string) error {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return err
	}
	curLevel = l
	return rebuild()
}

// SetOutputFile redirects the output of loggers created by New after the
// call to path instead of stderr, for the daemon's --log-file flag.
func SetOutputFile(path string) error {
	curOutput = []string{path}
	return rebuild()
}

func rebuild() error {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = zap.NewAtomicLevelAt(curLevel)
	cfg.OutputPaths = curOutput
	nl, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return err
	}
	base = nl
	return nil
}

// New returns a logger tagged with name, e.g. logger.New("session").
func New(name string) Logger {
	return Logger{name: name, z: base.Named(name).Sugar()}
}

func (l Logger) Debugln(args ...any) { l.z.Debug(fmt.Sprintln(args...)) }
func (l Logger) Infoln(args ...any)  { l.z.Info(fmt.Sprintln(args...)) }
func (l Logger) Warningln(args ...any) { l.z.Warn(fmt.Sprintln(args...)) }
func (l Logger) Errorln(args ...any) { l.z.Error(fmt.Sprintln(args...)) }

func (l Logger) Debugf(format string, args ...any)   { l.z.Debugf(format, args...) }
func (l Logger) Infof(format string, args ...any)    { l.z.Infof(format, args...) }
func (l Logger) Warningf(format string, args ...any) { l.z.Warnf(format, args...) }
func (l Logger) Errorf(format string, args ...any)   { l.z.Errorf(format, args...) }

func (l Logger) Info(args ...any)  { l.z.Info(args...) }
func (l Logger) Error(args ...any) { l.z.Error(args...) }

// Sync flushes any buffered log entries; called on shutdown.
func Sync() error {
	return base.Sync()
}
