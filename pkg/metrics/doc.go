/*
Package metrics provides Prometheus metrics and component health reporting for
relay processes.

All collectors are registered on the default Prometheus registry at package
init and exposed by Handler for scraping. Metric names are prefixed with
"relay_":

  - relay_gateway_*: open connections, deliveries, dropped frames, inbound
    messages by outcome
  - relay_bus_*: published, received, dropped and failed bus events per topic
  - relay_cache_*: hits, misses and errors per namespace, invalidations
  - relay_write_duration_seconds: write path latency per operation
  - relay_api_*: HTTP request counts and latency per route

# Health

Components register themselves with RegisterComponent and report through
UpdateComponent, usually from a health.Monitor. HealthHandler reports overall
health, ReadyHandler fails while any critical component (SetCriticalComponents)
is unhealthy, and LivenessHandler only reports that the process is serving.

# Timing

	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.WriteDuration, "like")

Collector samples gauges whose value is owned elsewhere, such as the size of
a gateway's connection registry, on a fixed interval.
*/
package metrics
