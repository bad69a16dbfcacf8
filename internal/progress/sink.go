package progress

import "context"

// Sink receives progress reports from a running operation. Implementations
// must tolerate repeated and out-of-order percents; consumers that need
// monotonic progress clamp on their side.
type Sink interface {
	Report(ctx context.Context, percent float64, stage string)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, percent float64, stage string)

// Report implements Sink.
func (f SinkFunc) Report(ctx context.Context, percent float64, stage string) {
	f(ctx, percent, stage)
}

// Discard drops all reports.
var Discard Sink = SinkFunc(func(context.Context, float64, string) {})

// MultiSink fans each report out to every sink in order.
func MultiSink(sinks ...Sink) Sink {
	return SinkFunc(func(ctx context.Context, percent float64, stage string) {
		for _, sink := range sinks {
			if sink != nil {
				sink.Report(ctx, percent, stage)
			}
		}
	})
}

// Scaled maps a sink's [0, 100] input range onto [from, to] of the parent.
// Sub-operations report their own completion while the caller owns the
// overall band.
func Scaled(parent Sink, from, to float64) Sink {
	return SinkFunc(func(ctx context.Context, percent float64, stage string) {
		if percent < 0 {
			percent = 0
		}
		if percent > 100 {
			percent = 100
		}
		parent.Report(ctx, from+(to-from)*percent/100, stage)
	})
}
