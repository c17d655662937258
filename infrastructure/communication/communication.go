package communication

import (
	"fmt"

	"github.com/slack-go/slack"
)

type SlackOption struct {
	InfoChannelID  string
	ErrorChannelID string
}

// Slack posts operational messages to one channel per severity. A severity
// without a channel is dropped.
type Slack struct {
	client  *slack.Client
	options SlackOption
}

func NewSlack(token string, options SlackOption, clientOptions ...slack.Option) *Slack {
	return &Slack{client: slack.New(token, clientOptions...), options: options}
}

// Enabled reports whether any message would be posted.
func (s *Slack) Enabled() bool {
	return s.options.InfoChannelID != "" || s.options.ErrorChannelID != ""
}

func (s *Slack) postMessage(channelID, message string) error {
	if channelID == "" {
		return nil
	}
	_, _, err := s.client.PostMessage(
		channelID,
		slack.MsgOptionText(message, false),
		slack.MsgOptionAsUser(true),
	)
	if err != nil {
		return fmt.Errorf("failed to post message to Slack: %w", err)
	}
	return nil
}

func (s *Slack) Info(message string) error {
	return s.postMessage(s.options.InfoChannelID, message)
}

func (s *Slack) Error(message string) error {
	return s.postMessage(s.options.ErrorChannelID, message)
}
