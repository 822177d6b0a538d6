package domain

import "time"

const DefaultChatLimit = 100

type MessageKind string

const (
	MessageKindSystem MessageKind = "system"
	MessageKindUser   MessageKind = "user"
)

type ChatMessage struct {
	Kind      MessageKind `json:"kind"`
	Author    string      `json:"author,omitempty"`
	Body      string      `json:"body"`
	Timestamp int64       `json:"timestamp"`
}

// Chat is a FIFO log that keeps only the most recent limit entries.
type Chat struct {
	list  []ChatMessage
	limit int
}

func NewChat(limit int) *Chat {
	if limit <= 0 {
		limit = DefaultChatLimit
	}

	return &Chat{
		list:  make([]ChatMessage, 0, limit),
		limit: limit,
	}
}

func (c Chat) Length() int {
	return len(c.list)
}

func (c Chat) History() []ChatMessage {
	history := make([]ChatMessage, len(c.list))
	copy(history, c.list)
	return history
}

func (c *Chat) Append(msg ChatMessage) ChatMessage {
	if len(c.list) >= c.limit {
		c.list = append(c.list[:0], c.list[len(c.list)-c.limit+1:]...)
	}

	c.list = append(c.list, msg)
	return msg
}

func (c *Chat) AppendSystem(body string, now time.Time) ChatMessage {
	return c.Append(ChatMessage{
		Kind:      MessageKindSystem,
		Body:      body,
		Timestamp: now.UnixMilli(),
	})
}

func (c *Chat) AppendUser(author, body string, now time.Time) ChatMessage {
	return c.Append(ChatMessage{
		Kind:      MessageKindUser,
		Author:    author,
		Body:      body,
		Timestamp: now.UnixMilli(),
	})
}
