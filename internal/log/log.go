package log

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	cblog "github.com/charmbracelet/log"
)

var logger = newLogger()

func newLogger() *cblog.Logger {
	l := cblog.NewWithOptions(os.Stderr, cblog.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
		Prefix:          "dquery",
		Level:           cblog.InfoLevel,
	})

	styles := cblog.DefaultStyles()
	styles.Levels[cblog.DebugLevel] = lipgloss.NewStyle().SetString("DEBU").Foreground(lipgloss.Color("63"))
	styles.Levels[cblog.InfoLevel] = lipgloss.NewStyle().SetString("INFO").Foreground(lipgloss.Color("86"))
	styles.Levels[cblog.WarnLevel] = lipgloss.NewStyle().SetString("WARN").Foreground(lipgloss.Color("192"))
	styles.Levels[cblog.ErrorLevel] = lipgloss.NewStyle().SetString("ERRO").Bold(true).Foreground(lipgloss.Color("204"))
	styles.Levels[cblog.FatalLevel] = lipgloss.NewStyle().SetString("FATA").Bold(true).Foreground(lipgloss.Color("134"))
	l.SetStyles(styles)

	return l
}

// Logger returns the shared logger.
func Logger() *cblog.Logger {
	return logger
}

// SetLevel accepts debug, info, warn, error or fatal. Unknown values leave the level unchanged.
func SetLevel(level string) {
	lvl, err := cblog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		logger.Warnf("unknown log level %q", level)
		return
	}
	logger.SetLevel(lvl)
}

func Debug(msg any, keyvals ...any) { logger.Debug(msg, keyvals...) }
func Info(msg any, keyvals ...any)  { logger.Info(msg, keyvals...) }
func Warn(msg any, keyvals ...any)  { logger.Warn(msg, keyvals...) }
func Error(msg any, keyvals ...any) { logger.Error(msg, keyvals...) }

func Debugf(format string, args ...any) { logger.Debugf(format, args...) }
func Infof(format string, args ...any)  { logger.Infof(format, args...) }
func Warnf(format string, args ...any)  { logger.Warnf(format, args...) }
func Errorf(format string, args ...any) { logger.Errorf(format, args...) }
func Fatalf(format string, args ...any) { logger.Fatalf(format, args...) }
