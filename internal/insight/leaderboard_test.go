package insight

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classtrack/internal/absence"
)

func TestStreakSteps(t *testing.T) {
	cases := []struct {
		hours float64
		want  int
	}{
		{0, 30}, {1, 21}, {2, 21}, {3, 14}, {5, 14},
		{6, 7}, {10, 7}, {11, 3}, {20, 3}, {21, 0}, {60, 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Streak(tc.hours), "hours=%v", tc.hours)
	}
}

func TestBuildLeaderboardBadges(t *testing.T) {
	lb := BuildLeaderboard([]absence.StudentSummary{
		student("a", 12), student("b", 2), student("c", 7), student("d", 0),
	})
	require.Len(t, lb.Top, 4)

	assert.Equal(t, "d", lb.Top[0].StudentID)
	assert.Equal(t, BadgeGold, lb.Top[0].Badge)
	assert.Equal(t, "b", lb.Top[1].StudentID)
	assert.Equal(t, BadgeSilver, lb.Top[1].Badge)
	assert.Equal(t, "c", lb.Top[2].StudentID)
	assert.Equal(t, BadgeBronze, lb.Top[2].Badge)
	assert.Empty(t, lb.Top[3].Badge)

	badged := 0
	for _, e := range lb.Top {
		if e.Badge != "" {
			badged++
		}
	}
	assert.Equal(t, 3, badged)
}

func TestBuildLeaderboardFewerThanThree(t *testing.T) {
	lb := BuildLeaderboard([]absence.StudentSummary{student("a", 5), student("b", 1)})
	require.Len(t, lb.Top, 2)
	assert.Equal(t, BadgeGold, lb.Top[0].Badge)
	assert.Equal(t, BadgeSilver, lb.Top[1].Badge)
}

func TestBuildLeaderboardStableTies(t *testing.T) {
	// Equal hours keep fetch order.
	lb := BuildLeaderboard([]absence.StudentSummary{
		student("first", 4), student("second", 4), student("third", 4),
	})
	assert.Equal(t, "first", lb.Top[0].StudentID)
	assert.Equal(t, "second", lb.Top[1].StudentID)
	assert.Equal(t, "third", lb.Top[2].StudentID)
}

func TestBuildLeaderboardTruncationKeepsFullRanking(t *testing.T) {
	var students []absence.StudentSummary
	for i := 0; i < 15; i++ {
		students = append(students, student(string(rune('a'+i)), float64(i)))
	}
	lb := BuildLeaderboard(students)
	assert.Len(t, lb.Top, 10)
	assert.Equal(t, 15, lb.RankOf("o"), "worst student still has a rank")
	assert.Equal(t, 1, lb.RankOf("a"))
	assert.Zero(t, lb.RankOf("missing"))
}

func TestBuildLeaderboardAttendancePct(t *testing.T) {
	lb := BuildLeaderboard([]absence.StudentSummary{
		student("zero", 0), student("perfectish", 6), student("over", 75),
	})
	byID := map[string]LeaderboardEntry{}
	for _, e := range lb.Top {
		byID[e.StudentID] = e
	}
	assert.Equal(t, 100, byID["zero"].AttendancePct)
	assert.Equal(t, 30, byID["zero"].StreakDays)
	assert.Equal(t, 90, byID["perfectish"].AttendancePct)
	assert.Equal(t, 0, byID["over"].AttendancePct, "clamped at zero past the ceiling")
}
