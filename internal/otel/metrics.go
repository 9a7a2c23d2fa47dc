package otel

import "go.opentelemetry.io/otel/metric"

// Metrics holds all stagehand metric instruments.
type Metrics struct {
	MoveDuration  metric.Float64Histogram
	ScreensShown  metric.Int64Counter
	StagesSkipped metric.Int64Counter
	MoveFailures  metric.Int64Counter
	ProbeRestarts metric.Int64Counter
}

// NewMetrics creates all metric instruments from the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.MoveDuration, err = meter.Float64Histogram("stagehand.move.duration",
		metric.WithDescription("Screen move duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.ScreensShown, err = meter.Int64Counter("stagehand.screens.shown",
		metric.WithDescription("Stage views successfully constructed and shown"),
	)
	if err != nil {
		return nil, err
	}

	m.StagesSkipped, err = meter.Int64Counter("stagehand.stages.skipped",
		metric.WithDescription("Stages that declined to participate in a move"),
	)
	if err != nil {
		return nil, err
	}

	m.MoveFailures, err = meter.Int64Counter("stagehand.move.failures",
		metric.WithDescription("Moves aborted by pretransition or view construction failure"),
	)
	if err != nil {
		return nil, err
	}

	m.ProbeRestarts, err = meter.Int64Counter("stagehand.probe.restarts",
		metric.WithDescription("Single-flight probe restarts triggered by user edits"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}
