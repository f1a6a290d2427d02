package peer

import "github.com/prometheus/client_golang/prometheus"

// Metrics used in monitoring the peer layer.
var (
	connectionsAccepted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of inbound peer connections accepted",
			Name:      "connections_accepted_total",
			Namespace: "torchat",
		},
	)
	connectionsDialed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of outgoing peer connections dialed through the proxy",
			Name:      "connections_dialed_total",
			Namespace: "torchat",
		},
	)
	connectionsClosed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of peer connections closed, any reason",
			Name:      "connections_closed_total",
			Namespace: "torchat",
		},
	)
	messagesReceived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of protocol messages received",
			Name:      "messages_received_total",
			Namespace: "torchat",
		},
	)
	messagesSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of protocol messages sent",
			Name:      "messages_sent_total",
			Namespace: "torchat",
		},
	)
	socksFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of outgoing connections lost to SOCKS handshake failures",
			Name:      "socks_failures_total",
			Namespace: "torchat",
		},
	)
)

func init() {
	prometheus.MustRegister(
		connectionsAccepted,
		connectionsDialed,
		connectionsClosed,
		messagesReceived,
		messagesSent,
		socksFailures,
	)
}
