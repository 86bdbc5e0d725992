package fetcher

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts fetcher activity. A nil *Metrics records nothing.
type Metrics struct {
	Pages      prometheus.Counter
	Records    prometheus.Counter
	Duplicates prometheus.Counter
}

// NewMetrics creates the counters and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Pages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hologram_fetch_pages_total",
			Help: "Pages downloaded from the records endpoint.",
		}),
		Records: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hologram_fetch_records_total",
			Help: "Records decoded.",
		}),
		Duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hologram_fetch_duplicates_total",
			Help: "Records skipped because an earlier page already returned them.",
		}),
	}
	for _, c := range []prometheus.Collector{m.Pages, m.Records, m.Duplicates} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) page(newRecords, duplicates int) {
	if m == nil {
		return
	}
	m.Pages.Inc()
	m.Records.Add(float64(newRecords))
	m.Duplicates.Add(float64(duplicates))
}
