package core

// Notifier posts operational messages, e.g. to Slack.
type Notifier interface {
	Info(message string) error
	Error(message string) error
}

type NopNotifier struct{}

func (NopNotifier) Info(string) error  { return nil }
func (NopNotifier) Error(string) error { return nil }
