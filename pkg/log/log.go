// Package log provides structured logging for arbor on top of zerolog.
//
// Components obtain a named Logger and log key/value pairs:
//
//	logger := log.GetLoggerWithName("boost")
//	logger.Debug("residual updated", log.TreeKey, tIdx, "bag_sum", bagSum)
//
// The process-wide provider defaults to Info level on stderr and may be
// replaced with SetupLogger or SetProvider.
package log

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Standard field keys.
const (
	ComponentKey  = "component"
	OperationKey  = "operation"
	SessionKey    = "session"
	TreeKey       = "tree"
	LevelKey      = "level"
	NodeKey       = "node"
	SamplesKey    = "samples"
	FeaturesKey   = "features"
	LossKey       = "loss"
	ScorerKey     = "scorer"
	DurationMsKey = "duration_ms"
	ErrorKey      = "error"
)

// Operation values for OperationKey.
const (
	OperationInit    = "init"
	OperationTrain   = "train"
	OperationGrow    = "grow"
	OperationBoost   = "boost"
	OperationClose   = "close"
	OperationPredict = "predict"
)

// Logger is the structured logger used throughout the module. Arguments
// after msg are alternating keys and values.
type Logger interface {
	Debug(msg string, kv ...interface{})
	Info(msg string, kv ...interface{})
	Warn(msg string, kv ...interface{})
	Error(msg string, kv ...interface{})
	// With returns a child logger carrying the given fields.
	With(kv ...interface{}) Logger
}

// LoggerProvider hands out loggers sharing one sink and level.
type LoggerProvider interface {
	GetLogger() Logger
	GetLoggerWithName(name string) Logger
}

// ToLogLevel parses a level name, defaulting to Info.
func ToLogLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off", "none":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

type zerologProvider struct {
	base zerolog.Logger
}

// NewZerologProvider creates a provider writing to stderr.
func NewZerologProvider(level zerolog.Level) LoggerProvider {
	return NewZerologProviderWithWriter(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}, level)
}

// NewZerologProviderWithWriter creates a provider writing JSON lines to w.
func NewZerologProviderWithWriter(w io.Writer, level zerolog.Level) LoggerProvider {
	return &zerologProvider{base: zerolog.New(w).Level(level).With().Timestamp().Logger()}
}

func (p *zerologProvider) GetLogger() Logger {
	return &zerologLogger{l: p.base}
}

func (p *zerologProvider) GetLoggerWithName(name string) Logger {
	return &zerologLogger{l: p.base.With().Str(ComponentKey, name).Logger()}
}

type zerologLogger struct {
	l zerolog.Logger
}

func (z *zerologLogger) Debug(msg string, kv ...interface{}) { emit(z.l.Debug(), msg, kv) }
func (z *zerologLogger) Info(msg string, kv ...interface{})  { emit(z.l.Info(), msg, kv) }
func (z *zerologLogger) Warn(msg string, kv ...interface{})  { emit(z.l.Warn(), msg, kv) }
func (z *zerologLogger) Error(msg string, kv ...interface{}) { emit(z.l.Error(), msg, kv) }

func (z *zerologLogger) With(kv ...interface{}) Logger {
	ctx := z.l.With()
	for i := 0; i < len(kv); i += 2 {
		key, val := pair(kv, i)
		ctx = ctx.Interface(key, val)
	}
	return &zerologLogger{l: ctx.Logger()}
}

func emit(e *zerolog.Event, msg string, kv []interface{}) {
	if e == nil {
		return
	}
	for i := 0; i < len(kv); i += 2 {
		key, val := pair(kv, i)
		switch v := val.(type) {
		case error:
			e = e.AnErr(key, v)
		case string:
			e = e.Str(key, v)
		case int:
			e = e.Int(key, v)
		case float64:
			e = e.Float64(key, v)
		case bool:
			e = e.Bool(key, v)
		case time.Duration:
			e = e.Dur(key, v)
		default:
			e = e.Interface(key, v)
		}
	}
	e.Msg(msg)
}

func pair(kv []interface{}, i int) (string, interface{}) {
	key, ok := kv[i].(string)
	if !ok {
		key = "!BADKEY"
	}
	if i+1 >= len(kv) {
		return key, nil
	}
	return key, kv[i+1]
}

var (
	mu       sync.RWMutex
	provider LoggerProvider = NewZerologProvider(zerolog.InfoLevel)
)

// SetupLogger replaces the global provider with a stderr provider at level.
func SetupLogger(level string) {
	SetProvider(NewZerologProvider(ToLogLevel(level)))
}

// SetProvider replaces the global provider.
func SetProvider(p LoggerProvider) {
	mu.Lock()
	defer mu.Unlock()
	provider = p
}

// GetLogger returns an unnamed logger from the global provider.
func GetLogger() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return provider.GetLogger()
}

// GetLoggerWithName returns a logger tagged with the component name.
func GetLoggerWithName(name string) Logger {
	mu.RLock()
	defer mu.RUnlock()
	return provider.GetLoggerWithName(name)
}

// LogError logs err at Error level on the global logger.
func LogError(err error, msg string, kv ...interface{}) {
	if err == nil {
		return
	}
	GetLogger().Error(msg, append([]interface{}{ErrorKey, err}, kv...)...)
}
