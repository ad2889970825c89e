package notify

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// discordMaxLen is Discord's per-message content limit.
const discordMaxLen = 2000

// Discord posts messages to a channel as a bot. It uses the REST API only, so
// no gateway connection is opened.
type Discord struct {
	channelID string
	send      func(channelID, content string) error
}

func NewDiscord(token, channelID string) (*Discord, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	return &Discord{
		channelID: channelID,
		send: func(channelID, content string) error {
			_, err := s.ChannelMessageSend(channelID, content)
			return err
		},
	}, nil
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) Send(ctx context.Context, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.send(d.channelID, truncate(message, discordMaxLen)); err != nil {
		return fmt.Errorf("discord send: %w", err)
	}
	return nil
}
