package logging

import (
	"io"
	"os"
	"sync"

	gologging "github.com/op/go-logging"
)

type Logger interface {
	DebugEnabled() bool
	SetDebug(enabled bool)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

var format = gologging.MustStringFormatter(
	`%{time:15:04:05.000} [%{module}] %{level}: %{message}`,
)

// DefaultLogger writes leveled, module tagged lines through go-logging.
type DefaultLogger struct {
	mu      sync.Mutex
	debug   bool
	module  string
	backend gologging.LeveledBackend
	log     *gologging.Logger
}

func NewDefaultLogger(module string, debug bool) *DefaultLogger {
	return NewDefaultLoggerTo(os.Stderr, module, debug)
}

func NewDefaultLoggerTo(w io.Writer, module string, debug bool) *DefaultLogger {
	backend := gologging.AddModuleLevel(
		gologging.NewBackendFormatter(gologging.NewLogBackend(w, "", 0), format),
	)
	l := gologging.MustGetLogger(module)
	l.SetBackend(backend)

	dl := &DefaultLogger{
		module:  module,
		backend: backend,
		log:     l,
	}
	dl.SetDebug(debug)
	return dl
}

func (l *DefaultLogger) DebugEnabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.debug
}

func (l *DefaultLogger) SetDebug(enabled bool) {
	l.mu.Lock()
	l.debug = enabled
	if enabled {
		l.backend.SetLevel(gologging.DEBUG, l.module)
	} else {
		l.backend.SetLevel(gologging.INFO, l.module)
	}
	l.mu.Unlock()
}

func (l *DefaultLogger) Debugf(format string, args ...any) {
	if !l.DebugEnabled() {
		return
	}
	l.log.Debugf(format, args...)
}

func (l *DefaultLogger) Infof(format string, args ...any) {
	l.log.Infof(format, args...)
}

func (l *DefaultLogger) Warnf(format string, args ...any) {
	l.log.Warningf(format, args...)
}

func (l *DefaultLogger) Errorf(format string, args ...any) {
	l.log.Errorf(format, args...)
}

// Nop logger

type nopLogger struct{}

func NewNopLogger() Logger                              { return &nopLogger{} }
func (n *nopLogger) DebugEnabled() bool                { return false }
func (n *nopLogger) SetDebug(enabled bool)             {}
func (n *nopLogger) Debugf(format string, args ...any) {}
func (n *nopLogger) Infof(format string, args ...any)  {}
func (n *nopLogger) Warnf(format string, args ...any)  {}
func (n *nopLogger) Errorf(format string, args ...any) {}

// OrNop returns l, or a no-op logger when l is nil. Never returns nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return NewNopLogger()
	}
	return l
}
