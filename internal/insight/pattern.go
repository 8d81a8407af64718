package insight

import (
	"math"
	"sort"
	"time"

	"classtrack/internal/absence"
)

// Pattern severities.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// WeekdayCount is the number of tracked weekday buckets. Sunday is folded
// into the last slot, so the week is modelled as Monday..Saturday.
const WeekdayCount = 6

// PatternFlag marks a student whose absences cluster on one weekday.
type PatternFlag struct {
	StudentID   string `json:"student_id"`
	StudentName string `json:"student_name"`
	Group       string `json:"group"`
	DayIndex    int    `json:"day_index"`
	Count       int    `json:"count"`
	Percentage  int    `json:"percentage"`
	Severity    string `json:"severity"`
}

// weekdayBucket maps a date to its 0..5 bucket: Monday→0 .. Saturday→5,
// Sunday also →5.
func weekdayBucket(d time.Time) int {
	day := int(d.Weekday())
	if day == 0 {
		return 5
	}
	return day - 1
}

// DetectPatterns flags students whose absences concentrate on one weekday.
// A student needs at least 3 records to be evaluated, and a flag is emitted
// only when the dominant day holds ≥40% of the absences with at least 3
// hits. Output is ordered by descending percentage, capped at 8.
func DetectPatterns(records []absence.Record) []PatternFlag {
	if len(records) == 0 {
		return nil
	}

	type bucket struct {
		name  string
		group string
		days  [WeekdayCount]int
		total int
	}
	byStudent := make(map[string]*bucket)
	var order []string
	for _, rec := range records {
		b, ok := byStudent[rec.StudentID]
		if !ok {
			b = &bucket{name: rec.StudentName, group: rec.GroupName}
			byStudent[rec.StudentID] = b
			order = append(order, rec.StudentID)
		}
		b.days[weekdayBucket(rec.Date)]++
		b.total++
	}

	var flags []PatternFlag
	for _, id := range order {
		b := byStudent[id]
		if b.total < 3 {
			continue
		}
		dominant, max := 0, 0
		for i, c := range b.days {
			if c > max {
				dominant, max = i, c
			}
		}
		pct := int(math.Round(float64(max) / float64(b.total) * 100))
		if pct < 40 || max < 3 {
			continue
		}
		severity := SeverityInfo
		switch {
		case pct >= 70:
			severity = SeverityCritical
		case pct >= 55:
			severity = SeverityWarning
		}
		flags = append(flags, PatternFlag{
			StudentID:   id,
			StudentName: b.name,
			Group:       b.group,
			DayIndex:    dominant,
			Count:       max,
			Percentage:  pct,
			Severity:    severity,
		})
	}

	sort.SliceStable(flags, func(i, j int) bool { return flags[i].Percentage > flags[j].Percentage })
	if len(flags) > 8 {
		flags = flags[:8]
	}
	return flags
}

// WeekdayDistribution counts all absences per weekday bucket.
func WeekdayDistribution(records []absence.Record) [WeekdayCount]int {
	var counts [WeekdayCount]int
	for _, rec := range records {
		counts[weekdayBucket(rec.Date)]++
	}
	return counts
}
