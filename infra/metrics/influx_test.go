package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/kilianp07/dcopf/core/metrics"
	"github.com/kilianp07/dcopf/core/optim"
)

func TestInfluxSink_RecordStudy(t *testing.T) {
	var (
		mu   sync.Mutex
		body string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		body += string(data)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewInfluxSink(InfluxConfig{URL: srv.URL, Token: "token", Org: "org", Bucket: "bucket"})
	defer sink.Close()
	ev := congestedEvent()
	require.NoError(t, sink.RecordStudy(ev))

	bus := write.NewPointWithMeasurement("dcopf_bus").
		AddTag("study_id", "s1").
		AddTag("network", "triangle").
		AddTag("bus", "3").
		AddField("lmp", 30.0).
		SetTime(ev.Time)
	line := write.NewPointWithMeasurement("dcopf_line").
		AddTag("study_id", "s1").
		AddTag("network", "triangle").
		AddTag("line", "1-3").
		AddField("flow_mw", 10.0).
		AddField("congestion_rent", 30.0).
		SetTime(ev.Time)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, body, strings.TrimSpace(write.PointToLineProtocol(bus, time.Nanosecond)))
	assert.Contains(t, body, strings.TrimSpace(write.PointToLineProtocol(line, time.Nanosecond)))
	assert.Contains(t, body, "dcopf_study,")
	assert.Contains(t, body, "total_cost=3500")
}

func TestStudyPoints_NonOptimal(t *testing.T) {
	points := studyPoints(coremetrics.StudyEvent{StudyID: "s", Status: optim.StatusInfeasible, Error: "no feasible dispatch"})
	require.Len(t, points, 1)
	lp := write.PointToLineProtocol(points[0], time.Nanosecond)
	assert.Contains(t, lp, "status=infeasible")
	assert.Contains(t, lp, `error="no feasible dispatch"`)
	assert.NotContains(t, lp, "total_cost")
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(InfluxConfig{URL: srv.URL + "/api/v2/write", Token: "tok", Org: "org", Bucket: "bucket"})
	assert.IsType(t, coremetrics.NopSink{}, sink)
	assert.True(t, called, "health endpoint not called")
}
