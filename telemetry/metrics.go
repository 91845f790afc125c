package telemetry

import (
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Units are encoded according to the case-sensitive abbreviations from the
// Unified Code for Units of Measure: http://unitsofmeasure.org/ucum.html.
const (
	unitDimensionless = "1"
	unitMilliseconds  = "ms"
	unitBytes         = "By"
)

//nolint:gochecknoglobals // OpenTelemetry histogram boundaries must be global for reuse
var defaultMillisecondsBoundaries = []float64{
	0, 1, 2, 5, 10, 20, 50, 100, 200, 500, 1000, 2000, 5000, 10000,
}

// Views shapes the latency histogram recorded by NewTracer for pkg and derives
// a completed_calls counter from it.
func Views(pkg string) []sdkmetric.View {
	return []sdkmetric.View{
		func(inst sdkmetric.Instrument) (sdkmetric.Stream, bool) {
			if inst.Kind != sdkmetric.InstrumentKindHistogram || inst.Name != pkg+"/latency" {
				return sdkmetric.Stream{}, false
			}
			return sdkmetric.Stream{
				Name:        inst.Name,
				Description: "Distribution of method latency, by package and method.",
				Aggregation: sdkmetric.AggregationExplicitBucketHistogram{
					Boundaries: defaultMillisecondsBoundaries,
				},
				AttributeFilter: func(kv attribute.KeyValue) bool {
					return kv.Key == AttrPackageKey || kv.Key == AttrMethodKey
				},
			}, true
		},

		func(inst sdkmetric.Instrument) (sdkmetric.Stream, bool) {
			if inst.Kind != sdkmetric.InstrumentKindHistogram || inst.Name != pkg+"/latency" {
				return sdkmetric.Stream{}, false
			}
			return sdkmetric.Stream{
				Name:        strings.Replace(inst.Name, "/latency", "/completed_calls", 1),
				Description: "Count of method calls by method and status.",
				Aggregation: sdkmetric.AggregationSum{},
				AttributeFilter: func(kv attribute.KeyValue) bool {
					return kv.Key == AttrMethodKey || kv.Key == AttrStatusKey
				},
			}, true
		},
	}
}

func meter(pkg string) metric.Meter {
	return otel.Meter(pkg, metric.WithInstrumentationAttributes(AttrPackageKey.String(pkg)))
}

// LatencyMeasure returns the histogram for method call latency in pkg.
func LatencyMeasure(pkg string) metric.Float64Histogram {
	m, err := meter(pkg).Float64Histogram(
		pkg+"/latency",
		metric.WithDescription("Latency distribution of method calls"),
		metric.WithUnit(unitMilliseconds),
	)
	if err != nil {
		// Only invalid instrument names fail here.
		panic(fmt.Sprintf("latency measure for %q: %v", pkg, err))
	}
	return m
}

// DimensionlessMeasure creates a counter for plain event counts.
func DimensionlessMeasure(pkg string, meterName string, description string) metric.Int64Counter {
	m, err := meter(pkg).Int64Counter(
		pkg+meterName,
		metric.WithDescription(description),
		metric.WithUnit(unitDimensionless),
	)
	if err != nil {
		panic(fmt.Sprintf("counter %q for %q: %v", meterName, pkg, err))
	}
	return m
}

// BytesMeasure creates a counter for byte volumes.
func BytesMeasure(pkg string, meterName string, description string) metric.Int64Counter {
	m, err := meter(pkg).Int64Counter(
		pkg+meterName,
		metric.WithDescription(description),
		metric.WithUnit(unitBytes),
	)
	if err != nil {
		panic(fmt.Sprintf("bytes counter %q for %q: %v", meterName, pkg, err))
	}
	return m
}
