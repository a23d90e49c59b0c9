package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Gateway metrics
	GatewayConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_gateway_connections",
			Help: "Number of live connections held by this shard",
		},
	)

	GatewayDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_gateway_deliveries_total",
			Help: "Total number of frames queued to local connections by topic",
		},
		[]string{"topic"},
	)

	GatewayDroppedFrames = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_gateway_dropped_frames_total",
			Help: "Total number of outbound frames dropped because a connection's send queue was full",
		},
	)

	GatewayInboundMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_gateway_inbound_messages_total",
			Help: "Total number of inbound client messages by type",
		},
		[]string{"type"},
	)

	// Bus metrics
	BusPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_bus_published_total",
			Help: "Total number of events handed to the bus by topic",
		},
		[]string{"topic"},
	)

	BusReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_bus_received_total",
			Help: "Total number of events delivered to local handlers by topic",
		},
		[]string{"topic"},
	)

	BusErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_bus_errors_total",
			Help: "Total number of bus errors by operation",
		},
		[]string{"op"},
	)

	BusDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_bus_dropped_total",
			Help: "Total number of events dropped because a subscription queue was full",
		},
	)

	// Cache metrics
	CacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_cache_requests_total",
			Help: "Total number of cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)

	CacheInvalidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_cache_invalidations_total",
			Help: "Total number of cache invalidations by result",
		},
		[]string{"result"},
	)

	// Write path metrics
	WriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_write_duration_seconds",
			Help:    "Duration of coordinated write operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_api_requests_total",
			Help: "Total number of API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(GatewayConnections)
	prometheus.MustRegister(GatewayDeliveries)
	prometheus.MustRegister(GatewayDroppedFrames)
	prometheus.MustRegister(GatewayInboundMessages)
	prometheus.MustRegister(BusPublished)
	prometheus.MustRegister(BusReceived)
	prometheus.MustRegister(BusErrors)
	prometheus.MustRegister(BusDropped)
	prometheus.MustRegister(CacheRequests)
	prometheus.MustRegister(CacheInvalidations)
	prometheus.MustRegister(WriteDuration)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
