package logger

import (
	"io"
	"os"
	"strings"

	"hive_fund/internal/infra/config"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log is the process-wide logger.
var Log = logrus.New()

// Init applies level, format and output from cfg to Log. The returned
// closer flushes the rotating log file when LOG_FILE is set and is a no-op
// otherwise.
func Init(cfg *config.AppConfig) io.Closer {
	out, closer := outputFor(cfg)
	Log.SetOutput(out)
	Log.SetFormatter(formatterFor(cfg))

	level, err := logrus.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		level = logrus.InfoLevel
		Log.WithError(err).Warnf("Unknown log level %q, using info", cfg.LogLevel)
	}
	Log.SetLevel(level)

	Log.WithFields(logrus.Fields{
		"level":       level.String(),
		"environment": cfg.Environment,
		"log_file":    cfg.LogFile,
	}).Info("Logger initialized")
	return closer
}

func outputFor(cfg *config.AppConfig) (io.Writer, io.Closer) {
	if cfg.LogFile == "" {
		return os.Stdout, nopCloser{}
	}
	rotator := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAgeDays,
		Compress:   true,
	}
	return io.MultiWriter(os.Stdout, rotator), rotator
}

// formatterFor picks JSON for deployed environments and text locally.
func formatterFor(cfg *config.AppConfig) logrus.Formatter {
	switch cfg.Environment {
	case "production", "staging":
		return &logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"}
	default:
		return &logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
			ForceColors:     cfg.LogFile == "",
		}
	}
}

// Component returns an entry tagged with the component name.
func Component(name string) *logrus.Entry {
	return Log.WithField("component", name)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
