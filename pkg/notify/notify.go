// Package notify delivers user-facing notifications. The sync layer reports
// outcomes (a rolled-back mutation, a failed checkout) through a Notifier so
// the host surface decides how to render them.
package notify

import (
	"errors"
	"log/slog"

	"github.com/minishop-go/minishop/pkg/api"
)

// Level represents the notification severity.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
)

// Notifier receives user-facing messages. Implementations must be safe for
// concurrent use; the mutation coordinator calls them from its work
// goroutines.
type Notifier interface {
	Notify(level Level, message string)
}

// Success shows a success notification.
//
//	notify.Success(n, "Changes saved!")
func Success(n Notifier, message string) {
	n.Notify(LevelSuccess, message)
}

// Error shows an error notification.
func Error(n Notifier, message string) {
	n.Notify(LevelError, message)
}

// Warning shows a warning notification.
func Warning(n Notifier, message string) {
	n.Notify(LevelWarning, message)
}

// Info shows an info notification.
func Info(n Notifier, message string) {
	n.Notify(LevelInfo, message)
}

// Func adapts a function to the Notifier interface.
type Func func(level Level, message string)

func (f Func) Notify(level Level, message string) { f(level, message) }

// Discard drops every notification. Useful in tests and batch tools.
var Discard Notifier = Func(func(Level, string) {})

// Logger returns a Notifier that writes notifications to log. It is the
// default sink for CLI surfaces that have no notification UI.
func Logger(log *slog.Logger) Notifier {
	return Func(func(level Level, message string) {
		switch level {
		case LevelError:
			log.Error(message)
		case LevelWarning:
			log.Warn(message)
		default:
			log.Info(message)
		}
	})
}

// Failure notifies about a failed backend operation. Server rejections carry
// the server's own message; transport-level failures get a generic one so
// raw dial errors never reach the user.
func Failure(n Notifier, err error) {
	if err == nil {
		return
	}
	n.Notify(LevelError, UserMessage(err))
}

// UserMessage maps err to a message fit for display.
func UserMessage(err error) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Kind {
		case api.KindRemoteRejected:
			return apiErr.Message
		case api.KindUnauthenticated:
			return "Session expired. Please reopen the app."
		case api.KindTimeout:
			return "The server is taking too long to respond. Please try again."
		}
	}
	return "Connection problem. Check your network and try again."
}
