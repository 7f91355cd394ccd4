// Package metrics defines the sink interface studies report to. Sinks like
// the Prometheus and InfluxDB implementations in infra/metrics are built from
// configuration through a registry; NewSink returns a MultiSink when several
// sinks are configured.
package metrics
