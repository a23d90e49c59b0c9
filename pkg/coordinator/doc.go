/*
Package coordinator implements the write path of relay.

Every mutation runs three steps in a fixed order:

	store commit -> cache invalidation -> event publish

A store failure stops the sequence and is returned to the caller. Cache and
bus failures are logged and counted but never fail the write: a stale cache
entry is bounded by its TTL and events are fire-and-forget.

Reads are read-through. A miss loads from the store and repopulates the
cache with SetIfAbsent, so a reader racing an invalidation can at worst
write back a value that a later invalidation removes.
*/
package coordinator
