package stally

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector is a [prometheus.Collector] exporting a Tracker
// as two counters labeled by kind:
// stagehand_<direction>_messages_total and stagehand_<direction>_bytes_total.
//
// Counts are read from the tracker at scrape time.
// A tracker reset shows up as a counter reset.
type Collector[K Key] struct {
	t *Tracker[K]

	messages *prometheus.Desc
	bytes    *prometheus.Desc
}

// NewCollector returns a Collector for t.
// Direction is typically "received" or "sent".
func NewCollector[K Key](direction string, t *Tracker[K]) *Collector[K] {
	return &Collector[K]{
		t: t,

		messages: prometheus.NewDesc(
			prometheus.BuildFQName("stagehand", direction, "messages_total"),
			"Number of "+direction+" messages, by kind.",
			[]string{"kind"}, nil,
		),
		bytes: prometheus.NewDesc(
			prometheus.BuildFQName("stagehand", direction, "bytes_total"),
			"Number of "+direction+" bytes, by kind.",
			[]string{"kind"}, nil,
		),
	}
}

func (c *Collector[K]) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.messages
	ch <- c.bytes
}

func (c *Collector[K]) Collect(ch chan<- prometheus.Metric) {
	for k, e := range c.t.Snapshot() {
		label := k.String()
		ch <- prometheus.MustNewConstMetric(c.messages, prometheus.CounterValue, float64(e.Count), label)
		ch <- prometheus.MustNewConstMetric(c.bytes, prometheus.CounterValue, float64(e.Bytes), label)
	}
}
