package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type MetricsGenerator interface {
	IncUserOpsBuilt(mode string)
	IncUserOpsSubmitted(mode, status string)
	IncEstimationFailed(mode string)
	IncDeployments(kind string)
	IncSponsorships()
}

const incentivNamespace = "incentiv"

// SDKMetrics counts pipeline outcomes. All methods are nil-safe so library
// users who do not care about prometheus can wire nothing.
type SDKMetrics struct {
	numUserOpsBuilt     *prometheus.CounterVec
	numUserOpsSubmitted *prometheus.CounterVec
	numEstimationFailed *prometheus.CounterVec
	numDeployments      *prometheus.CounterVec
	numSponsorships     prometheus.Counter
}

func NewSDKMetrics(reg prometheus.Registerer) *SDKMetrics {
	return &SDKMetrics{
		numUserOpsBuilt: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: incentivNamespace,
				Name:      "num_userops_built_total",
				Help:      "The number of user operations assembled and gas-estimated, by signature mode",
			}, []string{"mode"}),

		numUserOpsSubmitted: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: incentivNamespace,
				Name:      "num_userops_submitted_total",
				Help:      "The number of user operations handed to the bundler, by signature mode and outcome",
			}, []string{"mode", "status"}),

		numEstimationFailed: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: incentivNamespace,
				Name:      "num_estimation_failed_total",
				Help:      "The number of gas estimations rejected by the bundler. A rising count usually means a misconfigured account or paymaster",
			}, []string{"mode"}),

		numDeployments: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: incentivNamespace,
				Name:      "num_deployments_total",
				Help:      "The number of deployments routed through the pipeline (wallet = first op with initCode, contract = CREATE2 through the wallet)",
			}, []string{"kind"}),

		numSponsorships: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: incentivNamespace,
				Name:      "num_sponsorships_total",
				Help:      "The number of operations that carried paymaster sponsorship data",
			}),
	}
}

func (m *SDKMetrics) IncUserOpsBuilt(mode string) {
	if m == nil {
		return
	}
	m.numUserOpsBuilt.WithLabelValues(mode).Inc()
}

func (m *SDKMetrics) IncUserOpsSubmitted(mode, status string) {
	if m == nil {
		return
	}
	m.numUserOpsSubmitted.WithLabelValues(mode, status).Inc()
}

func (m *SDKMetrics) IncEstimationFailed(mode string) {
	if m == nil {
		return
	}
	m.numEstimationFailed.WithLabelValues(mode).Inc()
}

func (m *SDKMetrics) IncDeployments(kind string) {
	if m == nil {
		return
	}
	m.numDeployments.WithLabelValues(kind).Inc()
}

func (m *SDKMetrics) IncSponsorships() {
	if m == nil {
		return
	}
	m.numSponsorships.Inc()
}
