package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/coder/websocket"
	"github.com/cuemby/relay/pkg/types"
)

// GatewayConn is a client connection to a gateway shard
type GatewayConn struct {
	conn *websocket.Conn

	// Greeting is the CONNECTED message sent by the shard
	Greeting types.ConnectedData
}

// DialGateway connects to the shard at addr and waits for its greeting.
// userID is optional and associates the connection at accept time.
func DialGateway(ctx context.Context, addr, userID string) (*GatewayConn, error) {
	u := baseURL(addr, "ws")
	u = strings.Replace(u, "http://", "ws://", 1)
	u = strings.Replace(u, "https://", "wss://", 1)
	u += "/ws"
	if userID != "" {
		u += "?userId=" + url.QueryEscape(userID)
	}

	conn, _, err := websocket.Dial(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial gateway: %w", err)
	}

	g := &GatewayConn{conn: conn}
	msg, err := g.Next(ctx)
	if err != nil {
		_ = conn.Close(websocket.StatusProtocolError, "")
		return nil, err
	}
	if msg.Type != types.MessageConnected {
		_ = conn.Close(websocket.StatusProtocolError, "")
		return nil, fmt.Errorf("expected %s, got %s", types.MessageConnected, msg.Type)
	}
	if err := json.Unmarshal(msg.Data, &g.Greeting); err != nil {
		_ = conn.Close(websocket.StatusProtocolError, "")
		return nil, fmt.Errorf("failed to decode greeting: %w", err)
	}
	return g, nil
}

// Ping sends a PING; the PONG arrives through Next
func (g *GatewayConn) Ping(ctx context.Context) error {
	return g.write(ctx, types.InboundMessage{Type: types.MessagePing})
}

// SubscribeUser associates the connection with userID
func (g *GatewayConn) SubscribeUser(ctx context.Context, userID string) error {
	return g.write(ctx, types.InboundMessage{Type: types.MessageSubscribeUser, UserID: userID})
}

// Next blocks for the next message pushed by the shard
func (g *GatewayConn) Next(ctx context.Context) (types.OutboundMessage, error) {
	var msg types.OutboundMessage
	_, data, err := g.conn.Read(ctx)
	if err != nil {
		return msg, err
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("failed to decode message: %w", err)
	}
	return msg, nil
}

// Close closes the connection normally
func (g *GatewayConn) Close() error {
	return g.conn.Close(websocket.StatusNormalClosure, "")
}

func (g *GatewayConn) write(ctx context.Context, msg types.InboundMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return g.conn.Write(ctx, websocket.MessageText, data)
}
