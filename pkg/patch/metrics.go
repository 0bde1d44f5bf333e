package patch

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	Functions    *prometheus.CounterVec
	BytesWritten prometheus.Counter
	Images       *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Functions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gt_patch_functions_total",
			Help: "Total number of functions visited by the patch pass, by outcome",
		}, []string{"result"}),
		BytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gt_patch_bytes_written_total",
			Help: "Total number of trampoline bytes written into images",
		}),
		Images: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gt_patch_images_total",
			Help: "Total number of patch passes, by status",
		}, []string{"status"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.Functions,
			m.BytesWritten,
			m.Images,
		)
	}

	return m
}
