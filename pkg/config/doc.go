/*
Package config loads relay's configuration.

Values are resolved in order: built-in defaults, an optional YAML file, the
environment, and finally explicit command-line flags applied by cmd/relay.

	log:
	  level: info
	gateway:
	  shardId: "1"
	  addr: ":4000"
	bus:
	  driver: redis
	  redisUrl: redis://redis:6379
	cache:
	  driver: redis
	  redisUrl: redis://redis:6379
	  itemTTL: 15m
	  listTTL: 5m

Recognised environment variables: SHARD_ID, SERVICE_ID, PORT, REDIS_URI,
NATS_URL, BUS_DRIVER, CACHE_DRIVER, DATA_DIR and LOG_LEVEL.
*/
package config
