package driven

import (
	"context"

	"github.com/danakj/fizz/internal/domain/model"
)

// ChatClient defines the driven port for the chat platform. These four verbs
// are everything the deliverer needs; gateway and REST mechanics stay behind
// the adapter.
type ChatClient interface {
	// CurrentUserID returns the bot's own user id, used to recognize its own
	// earlier alert messages during resync.
	CurrentUserID(ctx context.Context) (model.UserID, error)
	// ListChannelMessages returns the channel's most recent messages.
	ListChannelMessages(ctx context.Context, channel model.ChannelID) ([]model.ChannelMessage, error)
	DeleteMessage(ctx context.Context, channel model.ChannelID, messageID string) error
	SendMessage(ctx context.Context, channel model.ChannelID, content string) error
}
