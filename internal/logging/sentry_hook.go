package logging

import (
	"fmt"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
)

// SentryHook is a logrus hook that sends errors to Sentry
type SentryHook struct {
	levels []logrus.Level
}

// NewSentryHook creates a new Sentry hook for logrus
func NewSentryHook(levels []logrus.Level) *SentryHook {
	if levels == nil {
		levels = []logrus.Level{
			logrus.PanicLevel,
			logrus.FatalLevel,
			logrus.ErrorLevel,
			logrus.WarnLevel,
		}
	}
	return &SentryHook{
		levels: levels,
	}
}

// Fire is called when a log event is fired.
func (hook *SentryHook) Fire(entry *logrus.Entry) error {
	// Don't send to Sentry if it's not initialized
	if sentry.CurrentHub() == nil {
		return nil
	}

	event := sentry.NewEvent()
	event.Timestamp = entry.Time
	event.Message = entry.Message
	event.Level = logrusLevelToSentryLevel(entry.Level)
	event.Logger = "logrus"

	event.Extra = make(map[string]interface{})
	for k, v := range entry.Data {
		event.Extra[k] = v
	}

	if err, ok := entry.Data["error"].(error); ok {
		event.Exception = []sentry.Exception{{
			Type:  fmt.Sprintf("%T", err),
			Value: err.Error(),
		}}
	}

	event.Tags = make(map[string]string)
	if method, ok := entry.Data["method"].(string); ok {
		event.Tags["http.method"] = method
	}
	if path, ok := entry.Data["path"].(string); ok {
		event.Tags["http.path"] = path
	}
	if status, ok := entry.Data["status"].(int); ok {
		event.Tags["http.status_code"] = fmt.Sprintf("%d", status)
	}
	if bucket, ok := entry.Data["bucket"].(string); ok {
		event.Tags["cdn.bucket"] = bucket
	}
	if userID, ok := entry.Data["user_id"].(int64); ok {
		event.Tags["cdn.user_id"] = fmt.Sprintf("%d", userID)
	}

	hub := sentry.CurrentHub()
	hub.CaptureEvent(event)

	return nil
}

// Levels returns the logging levels for which the hook is fired.
func (hook *SentryHook) Levels() []logrus.Level {
	return hook.levels
}

// logrusLevelToSentryLevel converts logrus log levels to Sentry levels
func logrusLevelToSentryLevel(level logrus.Level) sentry.Level {
	switch level {
	case logrus.PanicLevel, logrus.FatalLevel:
		return sentry.LevelFatal
	case logrus.ErrorLevel:
		return sentry.LevelError
	case logrus.WarnLevel:
		return sentry.LevelWarning
	case logrus.InfoLevel:
		return sentry.LevelInfo
	case logrus.DebugLevel, logrus.TraceLevel:
		return sentry.LevelDebug
	default:
		return sentry.LevelInfo
	}
}
