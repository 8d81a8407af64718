package insight

import (
	"time"

	"classtrack/internal/absence"
)

// HeatmapRow is one ISO week of absence hours, Monday..Saturday.
type HeatmapRow struct {
	Week string                `json:"week"`
	Days [WeekdayCount]float64 `json:"days"`
}

// Heatmap buckets absence hours into a week-by-weekday grid covering the
// given number of weeks back from now, oldest week first. Records outside
// the window are ignored.
func Heatmap(records []absence.Record, now time.Time, weeks int) []HeatmapRow {
	if weeks <= 0 {
		weeks = 8
	}

	// Normalize to the Monday starting the current week.
	day := int(now.Weekday())
	if day == 0 {
		day = 7
	}
	thisMonday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).
		AddDate(0, 0, -(day - 1))
	windowStart := thisMonday.AddDate(0, 0, -7*(weeks-1))

	rows := make([]HeatmapRow, weeks)
	for i := range rows {
		start := windowStart.AddDate(0, 0, 7*i)
		rows[i].Week = start.Format("Jan 02")
	}

	for _, rec := range records {
		if rec.Date.Before(windowStart) || rec.Date.After(now) {
			continue
		}
		idx := int(rec.Date.Sub(windowStart) / week)
		if idx < 0 || idx >= weeks {
			continue
		}
		rows[idx].Days[weekdayBucket(rec.Date)] += rec.Hours
	}
	return rows
}
