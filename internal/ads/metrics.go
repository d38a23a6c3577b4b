package ads

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricAuctionsTotal       = "ad_auctions_total"
	MetricAuctionCandidates   = "ad_auction_candidates"
	MetricSettlementPrice     = "ad_settlement_price_dollars"
	MetricAdmissionRejections = "ad_admission_rejections_total"
	MetricTrackedEventsTotal  = "ad_tracked_events_total"
)

// Outcome labels for auctions.
const (
	OutcomeWon   = "won"
	OutcomeEmpty = "empty"
)

// Rejection reason labels.
const (
	RejectTargeting = "targeting"
	RejectBudget    = "budget"
	RejectFrequency = "frequency"
	RejectInactive  = "inactive"
	RejectCreative  = "creative"
)

// Metrics contains Prometheus metrics for the ad decision path.
// All operations are thread-safe.
type Metrics struct {
	auctionsTotal     *prometheus.CounterVec
	auctionCandidates prometheus.Histogram
	settlementPrice   prometheus.Histogram
	rejections        *prometheus.CounterVec
	trackedEvents     *prometheus.CounterVec
}

// NewMetrics creates and returns a new Metrics instance with all collectors
// initialized. The metrics are not registered; call Register to register
// them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		auctionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricAuctionsTotal,
				Help: "Total number of ad auctions by outcome",
			},
			[]string{"outcome"},
		),
		auctionCandidates: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    MetricAuctionCandidates,
				Help:    "Number of candidates entering each auction",
				Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
			},
		),
		settlementPrice: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    MetricSettlementPrice,
				Help:    "Settlement price of won auctions in dollars",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100},
			},
		),
		rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricAdmissionRejections,
				Help: "Total number of campaigns rejected at admission by reason",
			},
			[]string{"reason"},
		),
		trackedEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricTrackedEventsTotal,
				Help: "Total number of tracked ad events by type and attribution",
			},
			[]string{"event_type", "attributed"},
		),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(registry *prometheus.Registry) error {
	collectors := []prometheus.Collector{
		m.auctionsTotal,
		m.auctionCandidates,
		m.settlementPrice,
		m.rejections,
		m.trackedEvents,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveAuction records an auction outcome.
func (m *Metrics) ObserveAuction(candidates int, result AuctionResult) {
	if m == nil {
		return
	}
	m.auctionCandidates.Observe(float64(candidates))
	if result.Winner != nil {
		m.auctionsTotal.WithLabelValues(OutcomeWon).Inc()
		m.settlementPrice.Observe(result.SettlementPrice)
	} else {
		m.auctionsTotal.WithLabelValues(OutcomeEmpty).Inc()
	}
}

// ObserveRejection records an admission rejection.
func (m *Metrics) ObserveRejection(reason string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(reason).Inc()
}

// ObserveTrackedEvent records a tracked interaction.
func (m *Metrics) ObserveTrackedEvent(kind EventType, attributed bool) {
	if m == nil {
		return
	}
	label := "false"
	if attributed {
		label = "true"
	}
	m.trackedEvents.WithLabelValues(string(kind), label).Inc()
}
