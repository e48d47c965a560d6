package mainboilerplate

import (
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

// DiagnosticsConfig configures export of application metrics.
type DiagnosticsConfig struct {
	MetricsTextfile string `long:"metrics-textfile" env:"METRICS_TEXTFILE" description:"If set, write Prometheus metrics to this path on exit, in the text format read by the node exporter's textfile collector"`
}

// WriteMetrics writes metrics of the default registry to the configured
// textfile, if any. Failure is logged rather than returned: metrics
// never decide the outcome of a command.
func WriteMetrics(cfg DiagnosticsConfig) {
	if cfg.MetricsTextfile == "" {
		return
	}
	if err := prometheus.WriteToTextfile(cfg.MetricsTextfile, prometheus.DefaultGatherer); err != nil {
		log.WithFields(log.Fields{
			"path": cfg.MetricsTextfile,
			"err":  err,
		}).Warn("failed to write metrics textfile")
	}
}

// Must panics if |err| is non-nil, supplying |msg| and |extra| as
// formatter and fields of the generated panic.
func Must(err error, msg string, extra ...interface{}) {
	if err == nil {
		return
	}
	var f = log.Fields{"err": err}
	for i := 0; i+1 < len(extra); i += 2 {
		f[extra[i].(string)] = extra[i+1]
	}
	log.WithFields(f).Panic(msg)
}
