// Package discord implements the ChatClient port using the discordgo library.
package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/danakj/fizz/internal/domain/model"
	"github.com/danakj/fizz/internal/domain/port/driven"
)

// messagePageSize is the most messages Discord returns per list call. The
// deliverer's repeated resync passes cover channels with more history.
const messagePageSize = 100

// Compile-time interface satisfaction check.
var _ driven.ChatClient = (*Client)(nil)

// Client implements the driven.ChatClient port over a discordgo session.
type Client struct {
	session *discordgo.Session
}

// NewClient creates a Client with a bot-token session. The session is not
// connected until Open is called.
func NewClient(token string) (*Client, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	return &Client{session: session}, nil
}

// NewClientWithSession wraps an existing session. Intended for the command
// layer, which owns the session's handlers and lifecycle.
func NewClientWithSession(session *discordgo.Session) *Client {
	return &Client{session: session}
}

// Open connects the underlying gateway session.
func (c *Client) Open() error {
	if err := c.session.Open(); err != nil {
		return fmt.Errorf("connecting to discord: %w", err)
	}
	return nil
}

// Close disconnects the underlying gateway session.
func (c *Client) Close() error {
	return c.session.Close()
}

// CurrentUserID returns the bot's own user id, preferring the session state
// populated at gateway connect over a REST round-trip.
func (c *Client) CurrentUserID(ctx context.Context) (model.UserID, error) {
	if c.session.State != nil && c.session.State.User != nil {
		return model.UserID(c.session.State.User.ID), nil
	}
	user, err := c.session.User("@me", discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("fetching bot identity: %w", err)
	}
	return model.UserID(user.ID), nil
}

// ListChannelMessages returns the channel's most recent messages.
func (c *Client) ListChannelMessages(ctx context.Context, channel model.ChannelID) ([]model.ChannelMessage, error) {
	msgs, err := c.session.ChannelMessages(string(channel), messagePageSize, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("listing messages in channel %s: %w", channel, err)
	}

	out := make([]model.ChannelMessage, 0, len(msgs))
	for _, m := range msgs {
		var authorID model.UserID
		if m.Author != nil {
			authorID = model.UserID(m.Author.ID)
		}
		out = append(out, model.ChannelMessage{
			ID:        m.ID,
			AuthorID:  authorID,
			Content:   m.Content,
			Ephemeral: m.Flags&discordgo.MessageFlagsEphemeral != 0,
		})
	}
	return out, nil
}

// DeleteMessage removes one message from the channel.
func (c *Client) DeleteMessage(ctx context.Context, channel model.ChannelID, messageID string) error {
	if err := c.session.ChannelMessageDelete(string(channel), messageID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("deleting message %s in channel %s: %w", messageID, channel, err)
	}
	return nil
}

// SendMessage posts content to the channel.
func (c *Client) SendMessage(ctx context.Context, channel model.ChannelID, content string) error {
	if _, err := c.session.ChannelMessageSend(string(channel), content, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("sending message to channel %s: %w", channel, err)
	}
	return nil
}
