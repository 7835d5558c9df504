// Package observe provides application-wide observability primitives for
// Verbascape: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Verbascape metrics.
const meterName = "github.com/verbascape/verbascape"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Playback ---

	// ChunksScheduled counts downlink audio chunks accepted by the playback
	// scheduler.
	ChunksScheduled metric.Int64Counter

	// PlaybackGap tracks the silence inserted between a chunk's scheduled
	// start and the previous chunk's end. Zero when chunks arrive faster than
	// they play.
	PlaybackGap metric.Float64Histogram

	// DecodeErrors counts malformed downlink audio payloads that were dropped.
	DecodeErrors metric.Int64Counter

	// BargeIns counts interruption events that hard-stopped live playback.
	BargeIns metric.Int64Counter

	// --- Uplink ---

	// UplinkFrames counts capture frames forwarded to the live session.
	UplinkFrames metric.Int64Counter

	// UplinkDropped counts capture frames dropped because the session was not
	// yet active or the send failed.
	UplinkDropped metric.Int64Counter

	// --- Conversation ---

	// Turns counts finalized turn-pairs by provider.
	Turns metric.Int64Counter

	// --- Sessions ---

	// ActiveSessions tracks the number of live tutoring sessions.
	ActiveSessions metric.Int64UpDownCounter

	// SessionDuration tracks how long sessions stay open, by terminal state.
	SessionDuration metric.Float64Histogram

	// --- Scene generation ---

	// SceneGenerationDuration tracks panorama generation latency by provider
	// and status.
	SceneGenerationDuration metric.Float64Histogram

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// gapBuckets defines histogram bucket boundaries (in seconds) for playback
// gaps, which should sit near zero in a healthy session.
var gapBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1,
}

// durationBuckets defines histogram bucket boundaries (in seconds) for
// generation latency and session lifetimes.
var durationBuckets = []float64{
	0.5, 1, 2.5, 5, 10, 30, 60, 300, 900, 1800,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Playback.
	if met.ChunksScheduled, err = m.Int64Counter("verbascape.playback.chunks_scheduled",
		metric.WithDescription("Downlink audio chunks accepted by the playback scheduler."),
	); err != nil {
		return nil, err
	}
	if met.PlaybackGap, err = m.Float64Histogram("verbascape.playback.gap",
		metric.WithDescription("Silence between a chunk's scheduled start and the previous chunk's end."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(gapBuckets...),
	); err != nil {
		return nil, err
	}
	if met.DecodeErrors, err = m.Int64Counter("verbascape.playback.decode_errors",
		metric.WithDescription("Malformed downlink audio payloads dropped."),
	); err != nil {
		return nil, err
	}
	if met.BargeIns, err = m.Int64Counter("verbascape.playback.barge_ins",
		metric.WithDescription("Interruption events that hard-stopped live playback."),
	); err != nil {
		return nil, err
	}

	// Uplink.
	if met.UplinkFrames, err = m.Int64Counter("verbascape.uplink.frames",
		metric.WithDescription("Capture frames forwarded to the live session."),
	); err != nil {
		return nil, err
	}
	if met.UplinkDropped, err = m.Int64Counter("verbascape.uplink.dropped",
		metric.WithDescription("Capture frames dropped before or after the active window."),
	); err != nil {
		return nil, err
	}

	// Conversation.
	if met.Turns, err = m.Int64Counter("verbascape.conversation.turns",
		metric.WithDescription("Finalized turn-pairs by provider."),
	); err != nil {
		return nil, err
	}

	// Sessions.
	if met.ActiveSessions, err = m.Int64UpDownCounter("verbascape.active_sessions",
		metric.WithDescription("Number of live tutoring sessions."),
	); err != nil {
		return nil, err
	}
	if met.SessionDuration, err = m.Float64Histogram("verbascape.session.duration",
		metric.WithDescription("Session lifetime by terminal state."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	); err != nil {
		return nil, err
	}

	// Scene generation.
	if met.SceneGenerationDuration, err = m.Float64Histogram("verbascape.scene.generation.duration",
		metric.WithDescription("Panorama generation latency by provider and status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("verbascape.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordChunkScheduled records one accepted downlink chunk and the gap that
// preceded it.
func (m *Metrics) RecordChunkScheduled(ctx context.Context, gapSeconds float64) {
	m.ChunksScheduled.Add(ctx, 1)
	if gapSeconds >= 0 {
		m.PlaybackGap.Record(ctx, gapSeconds)
	}
}

// RecordDecodeError records one dropped malformed downlink payload.
func (m *Metrics) RecordDecodeError(ctx context.Context) {
	m.DecodeErrors.Add(ctx, 1)
}

// RecordBargeIn records one interruption that flushed live playback.
func (m *Metrics) RecordBargeIn(ctx context.Context) {
	m.BargeIns.Add(ctx, 1)
}

// RecordUplinkFrame records one forwarded or dropped capture frame.
func (m *Metrics) RecordUplinkFrame(ctx context.Context, dropped bool) {
	if dropped {
		m.UplinkDropped.Add(ctx, 1)
		return
	}
	m.UplinkFrames.Add(ctx, 1)
}

// RecordTurn records one finalized turn-pair.
func (m *Metrics) RecordTurn(ctx context.Context, provider string) {
	m.Turns.Add(ctx, 1,
		metric.WithAttributes(attribute.String("provider", provider)),
	)
}

// RecordSessionEnd records a completed session's lifetime and terminal state.
func (m *Metrics) RecordSessionEnd(ctx context.Context, seconds float64, state string) {
	m.SessionDuration.Record(ctx, seconds,
		metric.WithAttributes(attribute.String("state", state)),
	)
}

// RecordSceneGeneration records one panorama generation attempt.
func (m *Metrics) RecordSceneGeneration(ctx context.Context, seconds float64, provider, status string) {
	m.SceneGenerationDuration.Record(ctx, seconds,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)
}
