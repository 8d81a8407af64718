package insight

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classtrack/internal/absence"
)

// date returns a day in October 2025 known to fall on the given weekday:
// Oct 6 2025 is a Monday.
func onWeekday(weekday int, weekOffset int) time.Time {
	return time.Date(2025, time.October, 6+weekday, 0, 0, 0, 0, time.UTC).
		AddDate(0, 0, 7*weekOffset)
}

func rec(studentID string, d time.Time) absence.Record {
	return absence.Record{
		ID:          studentID + d.Format("20060102"),
		StudentID:   studentID,
		StudentName: "Student " + studentID,
		GroupName:   "DEV101",
		Date:        d,
		Hours:       2,
	}
}

func TestWeekdayBucketFoldsSunday(t *testing.T) {
	monday := onWeekday(0, 0)
	require.Equal(t, time.Monday, monday.Weekday())
	assert.Equal(t, 0, weekdayBucket(monday))
	assert.Equal(t, 5, weekdayBucket(onWeekday(5, 0))) // Saturday
	assert.Equal(t, 5, weekdayBucket(onWeekday(6, 0))) // Sunday folds into 5
}

func TestDetectPatternsMondayCluster(t *testing.T) {
	// 5 absences, 4 of them on Mondays.
	records := []absence.Record{
		rec("s1", onWeekday(0, 0)),
		rec("s1", onWeekday(0, 1)),
		rec("s1", onWeekday(0, 2)),
		rec("s1", onWeekday(0, 3)),
		rec("s1", onWeekday(3, 0)), // one Thursday
	}
	flags := DetectPatterns(records)
	require.Len(t, flags, 1)
	assert.Equal(t, 0, flags[0].DayIndex)
	assert.Equal(t, 80, flags[0].Percentage)
	assert.Equal(t, 4, flags[0].Count)
	assert.Equal(t, SeverityCritical, flags[0].Severity)
}

func TestDetectPatternsMinimumRecords(t *testing.T) {
	records := []absence.Record{
		rec("s1", onWeekday(0, 0)),
		rec("s1", onWeekday(0, 1)),
	}
	assert.Empty(t, DetectPatterns(records), "fewer than 3 records never flags")
}

func TestDetectPatternsMinimumShare(t *testing.T) {
	// 9 records spread across three days: dominant holds 33% < 40%.
	var records []absence.Record
	for w := 0; w < 3; w++ {
		records = append(records,
			rec("s1", onWeekday(0, w)),
			rec("s1", onWeekday(2, w)),
			rec("s1", onWeekday(4, w)),
		)
	}
	assert.Empty(t, DetectPatterns(records))

	for _, f := range DetectPatterns(records) {
		assert.GreaterOrEqual(t, f.Percentage, 40)
	}
}

func TestDetectPatternsSeverityTiers(t *testing.T) {
	cases := []struct {
		name     string
		dominant int
		other    int
		want     string
	}{
		{"critical at 70", 7, 3, SeverityCritical},
		{"warning at 60", 6, 4, SeverityWarning},
		{"info at 50", 5, 5, SeverityInfo},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var records []absence.Record
			for i := 0; i < tc.dominant; i++ {
				records = append(records, rec("s1", onWeekday(1, i)))
			}
			for i := 0; i < tc.other; i++ {
				records = append(records, rec("s1", onWeekday(2+i%3, i)))
			}
			flags := DetectPatterns(records)
			require.Len(t, flags, 1)
			assert.Equal(t, 1, flags[0].DayIndex)
			assert.Equal(t, tc.want, flags[0].Severity)
		})
	}
}

func TestDetectPatternsOrderAndCap(t *testing.T) {
	var records []absence.Record
	// 10 students, each with a full Monday cluster of varying strength.
	for s := 0; s < 10; s++ {
		id := string(rune('a' + s))
		mondays := 3 + s%4
		for i := 0; i < mondays; i++ {
			records = append(records, rec(id, onWeekday(0, i)))
		}
		records = append(records, rec(id, onWeekday(4, 0)))
	}
	flags := DetectPatterns(records)
	assert.LessOrEqual(t, len(flags), 8)
	for i := 1; i < len(flags); i++ {
		assert.GreaterOrEqual(t, flags[i-1].Percentage, flags[i].Percentage)
	}
}

func TestWeekdayDistribution(t *testing.T) {
	records := []absence.Record{
		rec("s1", onWeekday(0, 0)),
		rec("s2", onWeekday(0, 1)),
		rec("s3", onWeekday(4, 0)),
		rec("s4", onWeekday(6, 0)), // Sunday
	}
	dist := WeekdayDistribution(records)
	assert.Equal(t, 2, dist[0])
	assert.Equal(t, 1, dist[4])
	assert.Equal(t, 1, dist[5])
}

func TestHeatmapBucketsHours(t *testing.T) {
	now := time.Date(2025, time.October, 15, 12, 0, 0, 0, time.UTC) // Wednesday
	records := []absence.Record{
		rec("s1", onWeekday(0, 0)), // Mon Oct 6, previous week
		rec("s2", onWeekday(2, 1)), // Wed Oct 15, current week
	}
	rows := Heatmap(records, now, 4)
	require.Len(t, rows, 4)
	assert.Equal(t, 2.0, rows[2].Days[0])
	assert.Equal(t, 2.0, rows[3].Days[2])
}
