package log

import (
	"io"
	"os"
	"sync"

	"github.com/op/go-logging"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Level logging.Level

// The levels that can be passed to the SetLevel function.
const (
	Debug Level = iota
	Info
	Notice
	Warning
	Error
)

// The logger format
var format = logging.MustStringFormatter(
	`%{color}[%{time:15:04:05.000}] [%{module}] [%{level}]%{color:reset} %{message}`,
)

// The file format omits the color escape sequences.
var fileFormat = logging.MustStringFormatter(
	`[%{time:2006-01-02 15:04:05.000}] [%{module}] [%{level}] %{message}`,
)

var (
	mu sync.Mutex

	// The internal leveled logger backend
	leveledBackend logging.LeveledBackend

	// Current level and sinks; kept so either can change independently.
	curLevel = logging.NOTICE

	sink     io.Writer
	fileSink io.WriteCloser
)

// The logger interface
type Logger interface {
	Debug(v ...interface{})
	Debugf(format string, v ...interface{})

	Notice(v ...interface{})
	Noticef(format string, v ...interface{})

	Info(v ...interface{})
	Infof(format string, v ...interface{})

	Warning(v ...interface{})
	Warningf(format string, v ...interface{})

	Error(v ...interface{})
	Errorf(format string, v ...interface{})
}

// FileConfig controls the optional rotating log file.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Create a new named logger.
func New(name string) Logger {
	return logging.MustGetLogger(name)
}

// Override the backend output sink.
func SetSink(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	sink = w
	rebuildBackend()
}

// Tee log output to a size-rotated file. Passing a config with an empty path
// closes any previously opened file sink.
func SetFileSink(cfg FileConfig) error {
	mu.Lock()
	defer mu.Unlock()

	if fileSink != nil {
		if err := fileSink.Close(); err != nil {
			return err
		}
		fileSink = nil
	}

	if cfg.Path != "" {
		fileSink = &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
	}

	rebuildBackend()
	return nil
}

// Set logger verbosity.
func SetLevel(level Level) {
	mu.Lock()
	defer mu.Unlock()
	curLevel = toLoggingLevel(level)
	leveledBackend.SetLevel(curLevel, "")
}

// Parse a level name ("debug", "info", "notice", "warning", "error").
func ParseLevel(name string) (Level, error) {
	lvl, err := logging.LogLevel(name)
	if err != nil {
		return Notice, err
	}
	switch lvl {
	case logging.DEBUG:
		return Debug, nil
	case logging.INFO:
		return Info, nil
	case logging.WARNING:
		return Warning, nil
	case logging.ERROR, logging.CRITICAL:
		return Error, nil
	}
	return Notice, nil
}

func toLoggingLevel(level Level) logging.Level {
	switch level {
	case Debug:
		return logging.DEBUG
	case Info:
		return logging.INFO
	case Warning:
		return logging.WARNING
	case Error:
		return logging.ERROR
	}
	return logging.NOTICE
}

func rebuildBackend() {
	console := logging.NewBackendFormatter(logging.NewLogBackend(sink, "", 0), format)
	if fileSink == nil {
		leveledBackend = logging.AddModuleLevel(console)
	} else {
		file := logging.NewBackendFormatter(logging.NewLogBackend(fileSink, "", 0), fileFormat)
		leveledBackend = logging.AddModuleLevel(logging.MultiLogger(console, file))
	}
	leveledBackend.SetLevel(curLevel, "")
	logging.SetBackend(leveledBackend)
}

func init() {
	SetSink(os.Stdout)
	SetLevel(Notice)
}
