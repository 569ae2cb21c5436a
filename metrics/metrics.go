package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// APIRequests counts backend calls by endpoint and outcome (ok, http_error, app_error, unreachable, malformed).
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "court_desk",
			Name:      "api_requests_total",
			Help:      "The total number of REST backend requests",
		},
		[]string{"endpoint", "outcome"},
	)

	// BookingsSubmitted counts submission attempts by result (committed, rejected, conflict, invalid).
	BookingsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "court_desk",
			Name:      "bookings_submitted_total",
			Help:      "The total number of booking submissions",
		},
		[]string{"result"},
	)

	AvailabilityConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "court_desk",
			Name:      "availability_conflicts_total",
			Help:      "Slots found occupied by the pre-submit recheck",
		},
	)

	// OccupiedFallbacks counts the secondary endpoint being used (kind=endpoint)
	// and optimistic empty sets after a failed fetch (kind=optimistic).
	OccupiedFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "court_desk",
			Name:      "occupied_fallback_total",
			Help:      "Occupied-slot fetches that fell back",
		},
		[]string{"kind"},
	)
)
