package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/the-cloudkeeper-project/cloudkeeper-aws/kernel/model"
)

const (
	namespace     = "cloudkeeper_aws"
	ResultSuccess = "success"
)

// ImportSink receives one record per finished import attempt.
type ImportSink interface {
	RecordImport(a *model.Appliance, duration time.Duration, result string)
}

// Collector is a prometheus.Collector for RPC traffic and image imports.
type Collector struct {
	rpcCalls       *prometheus.CounterVec
	imports        *prometheus.CounterVec
	importDuration *prometheus.HistogramVec
	sinks          []ImportSink
}

func NewCollector(sinks ...ImportSink) *Collector {
	return &Collector{
		rpcCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rpc_calls_total",
				Help:      "The number of handled RPC calls.",
			}, []string{"method", "code"},
		),
		imports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "imports_total",
				Help:      "The number of appliance imports by result.",
			}, []string{"result"},
		),
		importDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "import_duration_seconds",
				Help:      "The time taken to stage, import and tag an appliance.",
				Buckets:   []float64{30, 60, 300, 600, 1200, 1800, 3600, 7200},
			}, []string{"result"},
		),
		sinks: sinks,
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.rpcCalls.Describe(ch)
	c.imports.Describe(ch)
	c.importDuration.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.rpcCalls.Collect(ch)
	c.imports.Collect(ch)
	c.importDuration.Collect(ch)
}

func (c *Collector) ObserveCall(method, code string) {
	c.rpcCalls.WithLabelValues(method, code).Inc()
}

func (c *Collector) ImportFinished(a *model.Appliance, duration time.Duration, err error) {
	result := Result(err)
	c.imports.WithLabelValues(result).Inc()
	c.importDuration.WithLabelValues(result).Observe(duration.Seconds())
	for _, sink := range c.sinks {
		sink.RecordImport(a, duration, result)
	}
}

// Result labels an outcome by its error kind.
func Result(err error) string {
	if err == nil {
		return ResultSuccess
	}
	return strings.ToLower(model.KindOf(err).String())
}

// Registry returns a registry holding c and the runtime collectors.
func Registry(c *Collector) *prometheus.Registry {
	r := prometheus.NewRegistry()
	r.MustRegister(c, collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return r
}

// RegisterMetrics mounts the metrics endpoint of r on mux.
func RegisterMetrics(mux *http.ServeMux, r *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(r, promhttp.HandlerOpts{}))
}
