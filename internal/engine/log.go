package engine

// LogLevel mirrors the engine's native log levels.
type LogLevel int

const (
	LogDebug LogLevel = iota
	LogInfo
	LogWarn
	LogError
)

func (l LogLevel) String() string {
	switch l {
	case LogDebug:
		return "debug"
	case LogInfo:
		return "info"
	case LogWarn:
		return "warn"
	case LogError:
		return "error"
	default:
		return "unknown"
	}
}

// LogFunc receives engine log output.
type LogFunc func(level LogLevel, text string)

// LogSink is implemented by engines that can redirect their native logging.
type LogSink interface {
	SetLogger(fn LogFunc)
}
