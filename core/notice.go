package core

import (
	"time"

	"go.uber.org/zap"
)

type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	}
	return "info"
}

const (
	ShortNotice   = 1500 * time.Millisecond
	DefaultNotice = 3 * time.Second
	LongNotice    = 5 * time.Second
)

// Notice is a user-facing message. A zero Duration means it stays until dismissed.
type Notice struct {
	Level    Level
	Message  string
	Duration time.Duration
}

type Notifier interface {
	Notify(n Notice)
}

type NotifierFunc func(n Notice)

func (f NotifierFunc) Notify(n Notice) {
	f(n)
}

// MultiNotifier fans a notice out to every notifier in order.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(n Notice) {
	for _, notifier := range m {
		if notifier != nil {
			notifier.Notify(n)
		}
	}
}

// LogNotifier writes notices to a zap logger.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(notice Notice) {
	fields := []zap.Field{zap.String("level", notice.Level.String())}
	switch notice.Level {
	case LevelError:
		n.logger.Error(notice.Message, fields...)
	case LevelWarning:
		n.logger.Warn(notice.Message, fields...)
	default:
		n.logger.Info(notice.Message, fields...)
	}
}

func notify(n Notifier, level Level, message string, d time.Duration) {
	if n == nil {
		return
	}
	n.Notify(Notice{Level: level, Message: message, Duration: d})
}
