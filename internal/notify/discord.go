package notify

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// discordSession abstracts the discordgo methods we use, enabling test mocks.
type discordSession interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordPusher posts urgent notifications to a Discord channel. It uses
// the REST API only; no gateway connection is held open.
type DiscordPusher struct {
	sess      discordSession
	channelID string
}

// DiscordOpts holds parameters for creating a DiscordPusher.
type DiscordOpts struct {
	BotToken  string
	ChannelID string
	// For testing: inject a mock session instead of the real Discord API.
	Session discordSession
}

// NewDiscordPusher creates a DiscordPusher.
func NewDiscordPusher(opts DiscordOpts) (*DiscordPusher, error) {
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("notify: discord bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("notify: discord channel id is required")
	}
	sess := opts.Session
	if sess == nil {
		s, err := discordgo.New("Bot " + opts.BotToken)
		if err != nil {
			return nil, fmt.Errorf("notify: discord session: %w", err)
		}
		sess = s
	}
	return &DiscordPusher{sess: sess, channelID: opts.ChannelID}, nil
}

// Push sends the notification as an embed.
func (p *DiscordPusher) Push(ctx context.Context, title, body string) error {
	embed := &discordgo.MessageEmbed{
		Title:       title,
		Description: body,
		Color:       0xe01e5a,
	}
	if _, err := p.sess.ChannelMessageSendEmbed(p.channelID, embed, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("notify: discord send: %w", err)
	}
	return nil
}
