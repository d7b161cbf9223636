package dialog

import "github.com/prometheus/client_golang/prometheus"

const (
	fetchResultSuccess = "success"
	fetchResultFailure = "failure"
)

// Metrics counts configuration retrievals and dialog renders.
type Metrics struct {
	ConfigFetches *prometheus.CounterVec
	Renders       *prometheus.CounterVec
}

// NewMetrics builds the collectors and registers them when reg is non nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConfigFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth_dialog",
			Name:      "config_fetch_total",
			Help:      "Authentication configuration retrievals by result.",
		}, []string{"result"}),
		Renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth_dialog",
			Name:      "render_total",
			Help:      "Dialog renders by mode.",
		}, []string{"mode"}),
	}
	if reg != nil {
		reg.MustRegister(m.ConfigFetches, m.Renders)
	}
	return m
}

func (m *Metrics) observeFetch(err error) {
	if m == nil {
		return
	}
	result := fetchResultSuccess
	if err != nil {
		result = fetchResultFailure
	}
	m.ConfigFetches.WithLabelValues(result).Inc()
}

func (m *Metrics) observeRender(mode DialogMode) {
	if m == nil {
		return
	}
	m.Renders.WithLabelValues(mode.String()).Inc()
}
