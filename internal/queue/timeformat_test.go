package queue

import (
	"testing"
	"time"
)

func TestTimeFormatOrdersLexicographically(t *testing.T) {
	early := time.Date(2026, 3, 14, 9, 26, 53, 100_000_000, time.UTC)
	late := early.Add(20 * time.Millisecond)

	a := early.Format(timeFormat)
	b := late.Format(timeFormat)
	if len(a) != len(b) {
		t.Fatalf("timestamps must be fixed width: %q vs %q", a, b)
	}
	if a >= b {
		t.Fatalf("string order must match time order: %q >= %q", a, b)
	}

	// RFC3339Nano trims trailing zeros and misorders these two instants;
	// the padded format must not regress to that.
	if x, y := early.Format(time.RFC3339Nano), late.Format(time.RFC3339Nano); x < y {
		t.Fatalf("test instants no longer exercise the trimming case: %q < %q", x, y)
	}

	parsed, err := time.Parse(time.RFC3339Nano, a)
	if err != nil {
		t.Fatalf("stored timestamps must stay RFC3339 parseable: %v", err)
	}
	if !parsed.Equal(early) {
		t.Fatalf("round trip mismatch: %v != %v", parsed, early)
	}
}
