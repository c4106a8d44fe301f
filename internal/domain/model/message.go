package model

// ChannelMessage is the slice of a chat message the deliverer needs to decide
// whether a message is one of its own earlier alerts.
type ChannelMessage struct {
	ID        string
	AuthorID  UserID
	Content   string
	Ephemeral bool
}
