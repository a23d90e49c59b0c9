/*
Package health probes the dependencies of a relay process.

Two checkers implement Checker: PingChecker wraps a dependency's own ping
(Redis, NATS, the bbolt store) and HTTPChecker probes another process's
/health endpoint, decoding its JSON body so callers such as `relay status`
can show shard connection counts.

A Monitor runs checkers on an interval. A component is reported unhealthy
only after Config.Retries consecutive failures, and every result is pushed
into the metrics package's component registry that backs /health and /ready.
*/
package health
