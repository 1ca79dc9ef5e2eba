package metrics

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/MulatuMekonnen/EthioKidsLearn-sub001/pkg/domain/interfaces"
)

const namespace = "offlinecache"

// Prometheus exports cache metrics
type Prometheus struct {
	duration        *prometheus.HistogramVec
	failures        *prometheus.CounterVec
	downloadedBytes prometheus.Counter
	cachedContents  prometheus.Gauge
}

var _ interfaces.CacheObserver = (*Prometheus)(nil)

// NewPrometheus registers the cache metrics on reg (the default registerer when nil)
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	p := &Prometheus{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Latency of cache download and remove operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_failures_total",
			Help:      "Count of failed cache operations, including remote flag syncs.",
		}, []string{"operation"}),
		downloadedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloaded_bytes_total",
			Help:      "Media bytes written by successful downloads.",
		}),
		cachedContents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cached_contents",
			Help:      "Number of entries in the cache index.",
		}),
	}

	collectors := []prometheus.Collector{p.duration, p.failures, p.downloadedBytes, p.cachedContents}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, goerr.Wrap(err, "failed to register cache metric")
		}
	}
	return p, nil
}

func (p *Prometheus) RecordDownload(duration time.Duration, sizeBytes int64, err error) {
	p.duration.WithLabelValues("download").Observe(duration.Seconds())
	if err != nil {
		p.failures.WithLabelValues("download").Inc()
		return
	}
	p.downloadedBytes.Add(float64(sizeBytes))
}

func (p *Prometheus) RecordRemove(duration time.Duration, err error) {
	p.duration.WithLabelValues("remove").Observe(duration.Seconds())
	if err != nil {
		p.failures.WithLabelValues("remove").Inc()
	}
}

func (p *Prometheus) RecordRemoteSync(err error) {
	if err != nil {
		p.failures.WithLabelValues("remote_sync").Inc()
	}
}

func (p *Prometheus) SetCachedContents(n int) {
	p.cachedContents.Set(float64(n))
}
