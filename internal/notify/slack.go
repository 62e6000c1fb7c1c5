package notify

import (
	"context"
	"fmt"

	slackapi "github.com/slack-go/slack"
)

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// SlackPusher posts urgent notifications to a Slack channel.
type SlackPusher struct {
	client    slackClient
	channelID string
}

// SlackOpts holds parameters for creating a SlackPusher.
type SlackOpts struct {
	BotToken  string // xoxb-... Slack bot token
	ChannelID string // channel to post to
	// For testing: inject a mock client instead of the real Slack API.
	Client slackClient
}

// NewSlackPusher creates a SlackPusher.
func NewSlackPusher(opts SlackOpts) (*SlackPusher, error) {
	if opts.Client == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("notify: slack bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("notify: slack channel id is required")
	}
	client := opts.Client
	if client == nil {
		client = slackapi.New(opts.BotToken)
	}
	return &SlackPusher{client: client, channelID: opts.ChannelID}, nil
}

// Push sends the notification as an attachment with a warning color.
func (p *SlackPusher) Push(ctx context.Context, title, body string) error {
	attachment := slackapi.Attachment{
		Color: "#e01e5a",
		Title: title,
		Text:  body,
	}
	_, _, err := p.client.PostMessageContext(ctx, p.channelID,
		slackapi.MsgOptionAttachments(attachment))
	if err != nil {
		return fmt.Errorf("notify: slack post: %w", err)
	}
	return nil
}
