package notifier

import (
	"context"
	"log/slog"
)

// Message is a structured notification handed to the delivery collaborator.
type Message struct {
	To      string
	From    string
	CC      string
	ReplyTo string
	Subject string
	Text    string
	HTML    string
}

// Notifier is the delivery boundary. Implementations must not be relied on
// for transactional correctness: callers log failures and continue.
type Notifier interface {
	Send(ctx context.Context, msg *Message) error
}

// LogNotifier records outgoing notifications on the process logger. It is
// the default sink until a real delivery provider is wired in.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(ctx context.Context, msg *Message) error {
	n.logger.Info("notification sent",
		"to", msg.To,
		"from", msg.From,
		"subject", msg.Subject,
	)
	return nil
}
