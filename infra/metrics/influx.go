package metrics

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/dcopf/core/metrics"
	"github.com/kilianp07/dcopf/infra/logger"
)

// InfluxSink writes study outcomes to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// InfluxConfig locates the bucket study points are written to.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.Sink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }

// RecordStudy writes one study point plus, for optimal studies, one point per
// bus and per line.
func (s *InfluxSink) RecordStudy(ev coremetrics.StudyEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, studyPoints(ev)...)
}

func studyPoints(ev coremetrics.StudyEvent) []*write.Point {
	ts := ev.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	study := write.NewPointWithMeasurement("dcopf_study").
		AddTag("study_id", ev.StudyID).
		AddTag("network", ev.Network).
		AddTag("status", ev.Status.String()).
		AddField("solve_ms", float64(ev.SolveDuration.Microseconds())/1000).
		AddField("warnings", ev.Warnings).
		SetTime(ts)
	if !ev.Optimal() {
		return []*write.Point{study.AddField("error", ev.Error)}
	}
	points := []*write.Point{study.AddField("total_cost", ev.TotalCost)}
	for _, bus := range sortedKeys(ev.LMPs) {
		points = append(points, write.NewPointWithMeasurement("dcopf_bus").
			AddTag("study_id", ev.StudyID).
			AddTag("network", ev.Network).
			AddTag("bus", bus).
			AddField("lmp", ev.LMPs[bus]).
			SetTime(ts))
	}
	for _, line := range sortedKeys(ev.Flows) {
		points = append(points, write.NewPointWithMeasurement("dcopf_line").
			AddTag("study_id", ev.StudyID).
			AddTag("network", ev.Network).
			AddTag("line", line).
			AddField("flow_mw", ev.Flows[line]).
			AddField("congestion_rent", ev.CongestionRents[line]).
			SetTime(ts))
	}
	return points
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
