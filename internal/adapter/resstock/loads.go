package resstock

import (
	"time"

	"github.com/wattcarbon/resstock-dashboard/internal/hourly"
)

// loadIntervalShift moves a 15-minute end-of-interval stamp to the start of
// its interval.
const loadIntervalShift = 15 * time.Minute

// HourlyLoad sums a ResStock 15-minute load profile into hourly energy.
// Input stamps mark the end of each interval; output hours are start-stamped.
func HourlyLoad(load hourly.Series) hourly.Series {
	var out []hourly.Point
	for _, p := range load {
		h := p.Time.Add(-loadIntervalShift).Truncate(time.Hour)
		if n := len(out); n > 0 && out[n-1].Time.Equal(h) {
			out[n-1].Value += p.Value
			continue
		}
		out = append(out, hourly.Point{Time: h, Value: p.Value})
	}
	return out
}
