package logger

import (
	"strings"

	"github.com/samcharles93/llmodel/internal/engine"
)

// EngineCallback adapts l into an engine log sink. Records below error level
// are dropped unless verbose is set.
func EngineCallback(l Logger, verbose bool) engine.LogFunc {
	l = l.With("component", "engine")
	return func(level engine.LogLevel, text string) {
		if !verbose && level < engine.LogError {
			return
		}
		text = strings.TrimRight(text, "\n")
		if text == "" {
			return
		}
		switch level {
		case engine.LogDebug:
			l.Debug(text)
		case engine.LogInfo:
			l.Info(text)
		case engine.LogWarn:
			l.Warn(text)
		default:
			l.Error(text)
		}
	}
}
