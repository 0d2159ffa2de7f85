package service

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the catalog's domain counters. A nil *Metrics records nothing.
type Metrics struct {
	uploads     *prometheus.CounterVec
	uploadBytes prometheus.Counter
	downloads   prometheus.Counter
	deletes     prometheus.Counter
}

// NewMetrics creates the domain counters and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "appstore_uploads_total",
			Help: "Application uploads by outcome.",
		}, []string{"result"}),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "appstore_upload_bytes_total",
			Help: "Bytes of asset files accepted by successful uploads.",
		}),
		downloads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "appstore_package_downloads_total",
			Help: "Package downloads recorded.",
		}),
		deletes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "appstore_app_deletes_total",
			Help: "Applications deleted by their developer.",
		}),
	}
	for _, c := range []prometheus.Collector{m.uploads, m.uploadBytes, m.downloads, m.deletes} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) upload(result string, bytes int64) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(result).Inc()
	if bytes > 0 {
		m.uploadBytes.Add(float64(bytes))
	}
}

func (m *Metrics) download() {
	if m != nil {
		m.downloads.Inc()
	}
}

func (m *Metrics) deleted() {
	if m != nil {
		m.deletes.Inc()
	}
}
