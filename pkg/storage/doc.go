/*
Package storage provides the content source of truth for relay's write path.

BoltStore keeps every content record as JSON in a single bbolt bucket keyed
by the big-endian record id, so a reverse cursor walk yields the newest
records first.

# Atomic likes

IncrementLikes reads, increments and writes the counter inside one bbolt
Update transaction. bbolt admits a single writer at a time, so concurrent
likes on the same record never lose an update; callers must not compute the
new count themselves.

# Deployment

bbolt holds an exclusive lock on relay.db for as long as the store is open.
Exactly one write API process can use a data directory; a second one fails
at startup with ErrLocked. Several write API processes sharing one content
store need a networked Store implementation.

# Errors

Lookups of unknown ids return an error wrapping ErrNotFound:

	content, err := store.IncrementLikes(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		// 404
	}
*/
package storage
