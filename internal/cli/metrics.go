package cli

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stagehand-audio/stagehand"
	"github.com/stagehand-audio/stagehand/stally"
)

// newMetricsHandler serves the transport tallies and Go runtime metrics
// on /metrics, and a liveness probe on /health.
func newMetricsHandler(tr *stagehand.Transport) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		stally.NewCollector("received", tr.RxTally()),
		stally.NewCollector("sent", tr.TxTally()),
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}
