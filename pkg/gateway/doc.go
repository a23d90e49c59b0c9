// Package gateway implements a websocket gateway shard.
//
// A Shard accepts client websocket sessions, tracks them in its own
// connection registry, and relays content events from the bus to every open
// session. Sessions move from CONNECTING to OPEN once the CONNECTED greeting
// is queued and to CLOSED exactly once; only OPEN sessions receive fan-out
// and only OPEN sessions have inbound messages handled. Outbound frames go
// through a bounded per-session queue that drops rather than blocks a slow
// consumer.
//
// Clients may associate a user id with SUBSCRIBE_USER (or the userId query
// parameter). Shards publish presence:online and presence:offline for
// associated connections; an anonymous connection never produces presence.
package gateway
