package delivery

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Drop reasons used as metric labels.
const (
	ReasonOverrun    = "overrun"
	ReasonOutOfOrder = "out_of_order"
	ReasonClosed     = "closed"
	ReasonInvalid    = "invalid"
)

var (
	buffersDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediadevice",
		Subsystem: "delivery",
		Name:      "buffers_delivered_total",
		Help:      "Buffers handed to a consumer handler",
	}, []string{"device_id", "stream"})

	buffersDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediadevice",
		Subsystem: "delivery",
		Name:      "buffers_dropped_total",
		Help:      "Buffers dropped before reaching a consumer handler",
	}, []string{"device_id", "stream", "reason"})

	handlerPanics = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediadevice",
		Subsystem: "delivery",
		Name:      "handler_panics_total",
		Help:      "Consumer handler invocations that panicked",
	}, []string{"device_id", "stream"})

	activeChannels = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "mediadevice",
		Subsystem: "delivery",
		Name:      "active_channels",
		Help:      "Number of open delivery channels",
	})
)
