package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/fleetdispatch/core/metrics"
	"github.com/kilianp07/fleetdispatch/infra/logger"
)

const writeTimeout = 5 * time.Second

// InfluxSink writes engine records to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: writeTimeout}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
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

func (s *InfluxSink) write(p *write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordSolve writes a solve point.
func (s *InfluxSink) RecordSolve(rec coremetrics.SolveRecord) error {
	p := write.NewPointWithMeasurement("optimizer_solve").
		AddTag("backend", rec.Backend).
		AddTag("problem_type", string(rec.ProblemType)).
		AddTag("fallback", strconv.FormatBool(rec.Fallback)).
		AddField("assignments", rec.Assignments).
		AddField("cost", round3(rec.Cost)).
		AddField("duration_ms", round3(rec.Duration.Seconds()*1000))
	if rec.Requested != "" {
		p = p.AddTag("requested", rec.Requested)
	}
	if rec.Err != "" {
		p = p.AddField("error", rec.Err)
	}
	return s.write(p.SetTime(rec.Time))
}

// RecordDispatch writes a dispatcher pass point.
func (s *InfluxSink) RecordDispatch(rec coremetrics.DispatchRecord) error {
	p := write.NewPointWithMeasurement("dispatch_pass").
		AddTag("component", "dispatcher").
		AddField("total_loads", rec.TotalLoads).
		AddField("assigned_loads", rec.AssignedLoads).
		AddField("publish_failures", rec.PublishFailures).
		AddField("rules", strings.Join(rec.RulesApplied, ",")).
		AddField("duration_ms", round3(rec.Duration.Seconds()*1000)).
		SetTime(rec.Time)
	if rec.Backend != "" {
		p = p.AddTag("backend", rec.Backend)
	}
	return s.write(p)
}

// RecordSuggestions writes an assistant pass point.
func (s *InfluxSink) RecordSuggestions(rec coremetrics.SuggestionRecord) error {
	p := write.NewPointWithMeasurement("assistant_pass").
		AddTag("component", "assistant").
		AddField("total_loads", rec.TotalLoads).
		AddField("suggested_loads", rec.SuggestedLoads).
		AddField("average_confidence", round3(rec.AverageConfidence)).
		AddField("duration_ms", round3(rec.Duration.Seconds()*1000)).
		SetTime(rec.Time)
	if rec.Backend != "" {
		p = p.AddTag("backend", rec.Backend)
	}
	return s.write(p)
}

// RecordDecision writes a human decision point.
func (s *InfluxSink) RecordDecision(rec coremetrics.DecisionRecord) error {
	return s.write(write.NewPointWithMeasurement("human_decision").
		AddTag("action", string(rec.Action)).
		AddTag("user_id", rec.UserID).
		AddField("count", 1).
		SetTime(rec.Time))
}

// RecordFallback writes a backend fallback point.
func (s *InfluxSink) RecordFallback(rec coremetrics.FallbackRecord) error {
	p := write.NewPointWithMeasurement("backend_fallback").
		AddTag("requested", rec.Requested).
		AddTag("backend", rec.Backend).
		AddField("count", 1).
		SetTime(rec.Time)
	if rec.Reason != "" {
		p = p.AddField("reason", rec.Reason)
	}
	return s.write(p)
}

// RecordBackendAttempt writes a backend manager step.
func (s *InfluxSink) RecordBackendAttempt(rec coremetrics.BackendAttemptRecord) error {
	p := write.NewPointWithMeasurement("backend_attempt").
		AddTag("backend", rec.Backend).
		AddTag("action", rec.Action).
		AddField("count", 1).
		SetTime(rec.Time)
	if rec.Err != "" {
		p = p.AddField("error", rec.Err)
	}
	return s.write(p)
}

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
