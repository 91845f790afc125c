package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.opentelemetry.io/otel/codes"
	sdklogs "go.opentelemetry.io/otel/sdk/log"
	sdkmetrics "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/pitabwire/polyglot/config"
	"github.com/pitabwire/polyglot/telemetry"
)

// keepSpans survives provider shutdown so recorded spans can be inspected.
type keepSpans struct {
	*tracetest.InMemoryExporter
}

func (keepSpans) Shutdown(context.Context) error { return nil }

type discardLogs struct{}

func (discardLogs) Export(context.Context, []sdklogs.Record) error { return nil }
func (discardLogs) Shutdown(context.Context) error                 { return nil }
func (discardLogs) ForceFlush(context.Context) error               { return nil }

type TelemetrySuite struct {
	suite.Suite
}

func TestTelemetrySuite(t *testing.T) {
	suite.Run(t, new(TelemetrySuite))
}

func (s *TelemetrySuite) TestDisabledByConfiguration() {
	ctx := context.Background()
	cfg := &config.ConfigurationDefault{OpenTelemetryDisable: true}

	m := telemetry.NewManager(ctx, cfg)
	s.True(m.Disabled())
	s.Require().NoError(m.Init(ctx))
	s.Nil(m.LogHandler())
	s.NoError(m.Shutdown(ctx))
}

func (s *TelemetrySuite) TestTracerRecordsSpansAndLatency() {
	ctx := context.Background()
	spans := keepSpans{tracetest.NewInMemoryExporter()}
	reader := sdkmetrics.NewManualReader()

	m := telemetry.NewManager(ctx, &config.ConfigurationDefault{OpenTelemetryTraceRatio: 1},
		telemetry.WithServiceName("polyglot-test"),
		telemetry.WithServiceVersion("0.0.1"),
		telemetry.WithServiceEnvironment("test"),
		telemetry.WithTraceExporter(spans),
		telemetry.WithTraceSampler(sdktrace.AlwaysSample()),
		telemetry.WithMetricsReader(reader),
		telemetry.WithTraceLogsExporter(discardLogs{}),
		telemetry.WithMetricViews("polyglot/test"),
	)
	s.False(m.Disabled())
	s.Require().NoError(m.Init(ctx))
	s.NotNil(m.LogHandler())

	tracer := telemetry.NewTracer("polyglot/test")

	okCtx, okSpan := tracer.Start(ctx, "Bundle")
	tracer.End(okCtx, okSpan, nil)

	errCtx, errSpan := tracer.Start(ctx, "Fetch")
	tracer.End(errCtx, errSpan, errors.New("remote down"))

	var rm metricdata.ResourceMetrics
	s.Require().NoError(reader.Collect(ctx, &rm))

	names := map[string]bool{}
	for _, scope := range rm.ScopeMetrics {
		for _, metric := range scope.Metrics {
			names[metric.Name] = true
		}
	}
	s.True(names["polyglot/test/latency"])
	s.True(names["polyglot/test/completed_calls"])

	s.Require().NoError(m.Shutdown(ctx))

	recorded := spans.GetSpans()
	s.Require().Len(recorded, 2)
	byName := map[string]codes.Code{}
	for _, span := range recorded {
		byName[span.Name] = span.Status.Code
	}
	s.Equal(codes.Ok, byName["polyglot/test/Bundle"])
	s.Equal(codes.Error, byName["polyglot/test/Fetch"])
}

func (s *TelemetrySuite) TestErrorCode() {
	testCases := []struct {
		err  error
		want string
	}{
		{err: nil, want: "ok"},
		{err: context.Canceled, want: "canceled"},
		{err: context.DeadlineExceeded, want: "deadline exceeded"},
		{err: errors.New("x"), want: "err"},
	}

	for _, tc := range testCases {
		s.Run(tc.want, func() {
			s.Equal(tc.want, telemetry.ErrorCode(tc.err))
		})
	}
}
