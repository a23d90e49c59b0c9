// Package types defines the records and wire messages shared by the relay
// write path, the event bus and the gateway shards.
//
// Content and its event payloads (LikeUpdate, Presence) travel as JSON on the
// bus. InboundMessage and OutboundMessage are the gateway websocket frames.
package types
