// Package registry tracks the live connections of a single gateway shard.
package registry
