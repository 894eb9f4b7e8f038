package stats

import (
	"time"

	"github.com/splitkit/splitkit/internal/store"
)

// TimelineEntry is one calendar day of combined traffic across all
// variants. Date is formatted 2006-01-02.
type TimelineEntry struct {
	Date        string `json:"date"`
	Visitors    int    `json:"visitors"`
	Conversions int    `json:"conversions"`
}

// Timeline buckets per-variant daily counts into a continuous range of
// rangeDays+1 calendar days ending today. Days without data are present
// and zero-valued so charts get an unbroken axis.
func Timeline(counts []store.VariantCounts, rangeDays int) []TimelineEntry {
	return TimelineRange(counts, rangeDays, time.Now())
}

// TimelineRange is Timeline with an explicit end day, for reproducible
// reports. It is pure: no side effects, identical input yields identical
// output.
func TimelineRange(counts []store.VariantCounts, rangeDays int, end time.Time) []TimelineEntry {
	if rangeDays < 0 {
		rangeDays = 0
	}

	byDay := make(map[string]TimelineEntry)
	for _, c := range counts {
		for _, d := range c.Daily {
			key := d.Date.UTC().Format("2006-01-02")
			e := byDay[key]
			e.Visitors += d.Visitors
			e.Conversions += d.Conversions
			byDay[key] = e
		}
	}

	endDay := end.UTC().Truncate(24 * time.Hour)
	timeline := make([]TimelineEntry, 0, rangeDays+1)
	for i := rangeDays; i >= 0; i-- {
		key := endDay.AddDate(0, 0, -i).Format("2006-01-02")
		e := byDay[key]
		e.Date = key
		timeline = append(timeline, e)
	}
	return timeline
}
