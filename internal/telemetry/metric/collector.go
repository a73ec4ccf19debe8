package metric

import "github.com/prometheus/client_golang/prometheus"

// StateSource reports the live state of a node at scrape time.
type StateSource interface {
	OpenLinks() int
	TableSizes() map[string]int
}

// Collector reports link and routing table gauges from a StateSource.
type Collector struct {
	src        StateSource
	linksOpen  *prometheus.Desc
	routeCount *prometheus.Desc
}

// NewCollector creates a collector reading from src.
func NewCollector(src StateSource) *Collector {
	return &Collector{
		src: src,
		linksOpen: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "links_open"),
			"Secure links currently open.",
			nil, nil,
		),
		routeCount: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "route_entries"),
			"Entries per routing table.",
			[]string{"table"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.linksOpen
	ch <- c.routeCount
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.linksOpen, prometheus.GaugeValue, float64(c.src.OpenLinks()))
	for table, n := range c.src.TableSizes() {
		ch <- prometheus.MustNewConstMetric(c.routeCount, prometheus.GaugeValue, float64(n), table)
	}
}
