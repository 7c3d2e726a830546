package initializer

import (
	"io"
	"log/slog"

	"github.com/amirasaad/checkoutflow/pkg/config"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

var (
	infoColor  = lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#04B575"}
	warnColor  = lipgloss.AdaptiveColor{Light: "#EE6FF8", Dark: "#EE6FF8"}
	errorColor = lipgloss.AdaptiveColor{Light: "#FF6B6B", Dark: "#FF6B6B"}
	debugColor = lipgloss.AdaptiveColor{Light: "#7E57C2", Dark: "#7E57C2"}
)

// highlighted keys are rendered in color so a session can be followed
// through the log.
var highlighted = map[string]lipgloss.AdaptiveColor{
	"error":      errorColor,
	"session_id": infoColor,
	"state":      warnColor,
	"from":       warnColor,
	"to":         warnColor,
	"attempt":    debugColor,
	"total":      infoColor,
	"prefix":     debugColor,
	"caller":     debugColor,
	"time":       debugColor,
}

var formatters = map[string]log.Formatter{
	"json":   log.JSONFormatter,
	"logfmt": log.LogfmtFormatter,
	"text":   log.TextFormatter,
}

// NewLogger builds the process logger: charmbracelet/log behind slog, with
// emoji level badges. A nil cfg logs text at info level.
func NewLogger(cfg *config.Log, w io.Writer) *slog.Logger {
	if cfg == nil {
		cfg = &config.Log{Format: "text"}
	}

	styles := log.DefaultStyles()
	badge := func(icon string, color lipgloss.AdaptiveColor) lipgloss.Style {
		return lipgloss.NewStyle().SetString(icon).Bold(true).Padding(0, 1).Foreground(color)
	}
	styles.Levels[log.ErrorLevel] = badge("❌", errorColor)
	styles.Levels[log.WarnLevel] = badge("⚠️", warnColor)
	styles.Levels[log.InfoLevel] = badge("ℹ️", infoColor)
	styles.Levels[log.DebugLevel] = badge("🐛", debugColor)
	for key, color := range highlighted {
		styles.Keys[key] = lipgloss.NewStyle().Foreground(color)
		styles.Values[key] = lipgloss.NewStyle().Bold(true)
	}

	formatter, ok := formatters[cfg.Format]
	if !ok {
		formatter = log.TextFormatter
	}

	logger := log.NewWithOptions(w, log.Options{
		ReportCaller:    cfg.Level <= int(log.DebugLevel),
		ReportTimestamp: true,
		TimeFormat:      cfg.TimeFormat,
		Level:           log.Level(cfg.Level),
		Prefix:          cfg.Prefix,
		Formatter:       formatter,
	})
	logger.SetStyles(styles)
	return slog.New(logger)
}
