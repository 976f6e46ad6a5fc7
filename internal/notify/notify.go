// Package notify carries user-facing failure notices out of the matching
// core. The coordinator fires and forgets; presentation is the consumer's
// problem.
package notify

import "go.uber.org/zap"

// Notifier receives one-shot error notices for terminal job failures.
type Notifier interface {
	Error(title, message string)
}

// ZapNotifier renders notices into the structured log. The CLI uses it in
// place of the toast layer the web client had.
type ZapNotifier struct {
	logger *zap.Logger
}

func NewZapNotifier(logger *zap.Logger) *ZapNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapNotifier{logger: logger}
}

func (n *ZapNotifier) Error(title, message string) {
	n.logger.Error(title, zap.String("notice", message))
}
