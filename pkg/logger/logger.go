package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/natefinch/lumberjack"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

const (
	timestampFormat = "2006-01-02 15:04:05"
	maxLogSizeMB    = 5
	maxLogBackups   = 10
	maxLogAgeDays   = 14
)

/* Public */

// Init configures the standard logger. verbosity follows the -v count:
// 0 info, 1 debug, 2+ trace. An empty logFile disables the file sink.
func Init(verbosity int, logFile string) error {
	logLevel := logrus.InfoLevel
	switch {
	case verbosity == 1:
		logLevel = logrus.DebugLevel
	case verbosity > 1:
		logLevel = logrus.TraceLevel
	}

	logrus.SetLevel(logLevel)
	logrus.SetOutput(os.Stdout)
	logrus.SetFormatter(&prefixed.TextFormatter{
		TimestampFormat:  timestampFormat,
		FullTimestamp:    true,
		ForceFormatting:  true,
		QuoteEmptyFields: true,
	})

	if logFile == "" {
		return nil
	}

	hook, err := newFileHook(&lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    maxLogSizeMB,
		MaxBackups: maxLogBackups,
		MaxAge:     maxLogAgeDays,
		Compress:   true,
	})
	if err != nil {
		return fmt.Errorf("init log file hook: %w", err)
	}

	logrus.AddHook(hook)
	return nil
}

// GetLogger returns a logger entry tagged with the given prefix.
func GetLogger(prefix string) *logrus.Entry {
	return logrus.WithFields(logrus.Fields{"prefix": prefix})
}

/* Private */

// fileHook writes every entry to a rotating log file without colours.
type fileHook struct {
	writer    io.Writer
	formatter logrus.Formatter
}

func newFileHook(w io.Writer) (*fileHook, error) {
	if w == nil {
		return nil, fmt.Errorf("nil writer")
	}

	return &fileHook{
		writer: w,
		formatter: &prefixed.TextFormatter{
			TimestampFormat:  timestampFormat,
			FullTimestamp:    true,
			DisableColors:    true,
			ForceFormatting:  true,
			QuoteEmptyFields: true,
		},
	}, nil
}

func (h *fileHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *fileHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return fmt.Errorf("format entry: %w", err)
	}

	if _, err := h.writer.Write(line); err != nil {
		return fmt.Errorf("write entry: %w", err)
	}

	return nil
}
