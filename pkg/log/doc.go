/*
Package log provides structured logging for relay using zerolog.

The package holds a single global zerolog.Logger configured once at process
start by Init. Gateway shards and write-path services derive child loggers
from it so every line carries the identity of the process that emitted it.

# Configuration

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
	})

Console output (JSONOutput false) uses zerolog.ConsoleWriter with RFC3339
timestamps and is intended for local development.

# Context Loggers

  - WithComponent: adds component (e.g. "gateway", "coordinator")
  - WithShardID: adds shard_id for gateway processes
  - WithServiceID: adds service_id for write-path processes
  - WithConnectionID: adds connection_id to an existing logger

Example:

	shardLog := log.WithShardID("2")
	connLog := log.WithConnectionID(shardLog, connID)
	connLog.Info().Str("user_id", userID).Msg("user associated")

Values are attached as fields, never formatted into the message, so logs can
be filtered by shard or connection in aggregation.
*/
package log
