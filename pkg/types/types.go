package types

import (
	"encoding/json"
	"time"
)

// Content is a piece of user-published media as stored by the write path.
type Content struct {
	ID        uint64    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	MediaURL  string    `json:"mediaUrl"`
	Caption   string    `json:"caption,omitempty"`
	Likes     int64     `json:"likes"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewContent carries the caller-supplied fields of a create request
type NewContent struct {
	OwnerID  string `json:"ownerId" yaml:"ownerId"`
	MediaURL string `json:"mediaUrl" yaml:"mediaUrl"`
	Caption  string `json:"caption,omitempty" yaml:"caption,omitempty"`
}

// LikeUpdate is the payload of a content:liked event. Likes is a snapshot of
// the counter after the increment, never a delta.
type LikeUpdate struct {
	ID    uint64 `json:"id"`
	Likes int64  `json:"likes"`
}

// Presence is the payload of presence:online and presence:offline events.
type Presence struct {
	UserID       string `json:"userId"`
	ShardID      string `json:"shardId"`
	ConnectionID string `json:"connectionId"`
}

// MessageType identifies a gateway wire message
type MessageType string

const (
	// Inbound (client -> gateway)
	MessagePing          MessageType = "PING"
	MessageSubscribeUser MessageType = "SUBSCRIBE_USER"

	// Outbound (gateway -> client)
	MessageConnected    MessageType = "CONNECTED"
	MessagePong         MessageType = "PONG"
	MessageSubscribed   MessageType = "SUBSCRIBED"
	MessageNewContent   MessageType = "NEW_CONTENT"
	MessageContentLiked MessageType = "CONTENT_LIKED"
)

// InboundMessage is a message sent by a gateway client.
type InboundMessage struct {
	Type   MessageType `json:"type"`
	UserID string      `json:"userId,omitempty"`
}

// OutboundMessage is a message pushed by a gateway to a client.
type OutboundMessage struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ConnectedData is the data of a CONNECTED message
type ConnectedData struct {
	ConnectionID string `json:"connectionId"`
	ShardID      string `json:"shardId"`
	Message      string `json:"message,omitempty"`
}

// PongData is the data of a PONG message
type PongData struct {
	Timestamp time.Time `json:"timestamp"`
}

// SubscribedData is the data of a SUBSCRIBED message
type SubscribedData struct {
	UserID string `json:"userId"`
}
