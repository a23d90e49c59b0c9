/*
Package events provides the publish/subscribe backbone between relay's
write-path services and its gateway shards.

A Bus delivers JSON envelopes to every process subscribed to a topic at the
moment of publication. Delivery is fire-and-forget and at-most-once: there is
no acknowledgement, no replay for late subscribers, and no ordering across
topics. Every event carries a full snapshot so receivers can apply it
idempotently.

# Topics

	content:created   full types.Content record
	content:liked     types.LikeUpdate {id, likes}
	presence:online   types.Presence {userId, shardId, connectionId}
	presence:offline  types.Presence

# Backends

	┌───────────┬──────────────────────────────────────────────┐
	│ memory    │ Broker: in-process, one queue per subscription │
	│ redis     │ RedisBus: PUBLISH / SUBSCRIBE, channel = topic │
	│ nats      │ NATSBus: core NATS, subject = topic with '.'   │
	└───────────┴──────────────────────────────────────────────┘

Open selects a backend from Config.Driver and returns a Conn that also owns
the underlying client.

# Handlers

Handlers run on a goroutine owned by the subscription, never on the
publisher's goroutine. A panicking handler is recovered, logged and counted
in relay_bus_errors_total{op="handler"}; later messages are still delivered.
Slow handlers only delay their own subscription. The in-memory Broker drops
messages for a subscription whose queue is full instead of blocking
publishers.

Unsubscribe waits for the subscription goroutine to exit and must not be
called from the subscription's own handler.

# Usage

	conn, err := events.Open(ctx, cfg.Bus, shardID, log.WithComponent("bus"))
	if err != nil {
		return err
	}
	defer conn.Close()

	sub, err := conn.Subscribe(ctx, events.TopicContentLiked, func(ctx context.Context, env events.Envelope) {
		var update types.LikeUpdate
		if err := env.Decode(&update); err != nil {
			return
		}
		// push update to local connections
	})
*/
package events
