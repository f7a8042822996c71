// Package notify delivers fire-and-forget notifications for events that
// happen outside the real-time room, such as being added to a document.
// Delivery is best-effort: the collaboration flow never waits on or fails
// because of a notification.
package notify

import "log/slog"

// Sink receives notifications addressed to a user about a document.
type Sink interface {
	Notify(userID, docID, message string)
}

// LogSink writes notifications to the structured log. It stands in for a
// real delivery channel (email, push) in development and tests.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink that logs each notification.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}

	return &LogSink{logger: logger}
}

func (s *LogSink) Notify(userID, docID, message string) {
	s.logger.Info("notification", "userId", userID, "docId", docID, "message", message)
}

// Discard drops every notification.
type Discard struct{}

func (Discard) Notify(string, string, string) {}

var (
	_ Sink = (*LogSink)(nil)
	_ Sink = Discard{}
)
