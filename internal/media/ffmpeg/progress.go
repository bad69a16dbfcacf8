package ffmpeg

import (
	"strconv"
	"strings"
)

// parseProgressLine extracts percent completion from one key=value line of
// ffmpeg's -progress stream. Only out_time_us carries position information;
// everything else is ignored.
func parseProgressLine(line string, totalSeconds float64) (float64, bool) {
	key, value, found := strings.Cut(strings.TrimSpace(line), "=")
	if !found {
		return 0, false
	}
	switch key {
	case "out_time_us", "out_time_ms":
		// Both keys are microseconds; out_time_ms is a historical misnomer.
		micros, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil || micros < 0 {
			return 0, false
		}
		percent := float64(micros) / 1e6 / totalSeconds * 100
		if percent > 100 {
			percent = 100
		}
		return percent, true
	case "progress":
		if strings.TrimSpace(value) == "end" {
			return 100, true
		}
	}
	return 0, false
}
