package progress

import (
	"context"
	"testing"
)

func TestMultiSinkFansOut(t *testing.T) {
	var first, second []float64
	sink := MultiSink(
		SinkFunc(func(_ context.Context, p float64, _ string) { first = append(first, p) }),
		nil,
		SinkFunc(func(_ context.Context, p float64, _ string) { second = append(second, p) }),
	)

	sink.Report(context.Background(), 40, "thumbnail")
	sink.Report(context.Background(), 80, "audio")

	if len(first) != 2 || len(second) != 2 || first[1] != 80 {
		t.Fatalf("fan-out incomplete: %v %v", first, second)
	}
}

func TestScaledMapsRange(t *testing.T) {
	var got []float64
	parent := SinkFunc(func(_ context.Context, p float64, _ string) { got = append(got, p) })
	sink := Scaled(parent, 70, 90)

	for _, p := range []float64{0, 50, 100, 150} {
		sink.Report(context.Background(), p, "encode")
	}

	want := []float64{70, 80, 90, 90}
	for i, w := range want {
		if got[i] != w {
			t.Fatalf("Scaled report %d = %v, want %v", i, got[i], w)
		}
	}
}
