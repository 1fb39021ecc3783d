package observ

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Results recorded on ChatJoins.
const (
	JoinCreated  = "created"
	JoinExisting = "existing"
	JoinFull     = "full"
	JoinClosed   = "closed"
)

var (
	ChatJoins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "naejango_chat_joins_total",
		Help: "Group channel join attempts by result.",
	}, []string{"result"})

	ChatLeaves = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "naejango_chat_leaves_total",
		Help: "Chats deleted by their owner, by channel type.",
	}, []string{"channel_type"})

	ChannelsDeleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "naejango_channels_deleted_total",
		Help: "Channels removed after their last member left or lost history.",
	}, []string{"channel_type"})

	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "naejango_messages_sent_total",
		Help: "Chat messages persisted.",
	})

	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "naejango_events_published_total",
		Help: "Channel events handed to a sink, by sink and result.",
	}, []string{"sink", "result"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "naejango_ws_connections",
		Help: "Open websocket connections on this instance.",
	})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "naejango_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)
