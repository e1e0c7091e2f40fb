package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BidsPlacedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auction_bids_placed_total",
		Help: "Total number of bids accepted by the store.",
	})

	BidsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auction_bids_rejected_total",
		Help: "Total number of bids rejected before reaching the store.",
	},
		[]string{"reason"},
	)

	AuctionExtensionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auction_extensions_total",
		Help: "Total number of anti-sniping clock extensions.",
	})

	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auction_orders_created_total",
		Help: "Total number of orders generated from won lots.",
	})

	OrdersPaidTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auction_orders_paid_total",
		Help: "Total number of orders marked as paid.",
	})

	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auction_events_published_total",
		Help: "Total number of events published, by transport and result.",
	},
		[]string{"transport", "result"},
	)

	SwipesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swipe_swipes_total",
		Help: "Total number of swipes by direction.",
	},
		[]string{"direction"},
	)

	SwipeMatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swipe_matches_total",
		Help: "Total number of matches produced by swipes.",
	})

	SwipeUndosTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swipe_undos_total",
		Help: "Total number of undone swipes.",
	})

	OperationErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auction_operation_errors_total",
		Help: "Total number of errors encountered during specific operations.",
	},
		[]string{"operation"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency by route and status code.",
		Buckets: prometheus.DefBuckets,
	},
		[]string{"method", "route", "status"},
	)
)
