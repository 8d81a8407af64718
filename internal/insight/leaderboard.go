package insight

import (
	"math"
	"sort"

	"classtrack/internal/absence"
)

// Badge tiers for the three best-attending students.
const (
	BadgeGold   = "gold"
	BadgeSilver = "silver"
	BadgeBronze = "bronze"
)

// LeaderboardEntry ranks one student by attendance.
type LeaderboardEntry struct {
	StudentID     string  `json:"student_id"`
	Name          string  `json:"name"`
	Group         string  `json:"group"`
	AbsenceHours  float64 `json:"absence_hours"`
	AttendancePct int     `json:"attendance_pct"`
	StreakDays    int     `json:"streak_days"`
	Badge         string  `json:"badge,omitempty"`
}

// Leaderboard holds the display list plus the full ranking for lookups.
type Leaderboard struct {
	Top  []LeaderboardEntry `json:"top"`
	rank map[string]int
}

// Streak derives a virtual good-attendance streak from total absence hours.
// It is illustrative, not a literal consecutive-day count.
func Streak(absHours float64) int {
	switch {
	case absHours == 0:
		return 30
	case absHours <= 2:
		return 21
	case absHours <= 5:
		return 14
	case absHours <= 10:
		return 7
	case absHours <= 20:
		return 3
	default:
		return 0
	}
}

// BuildLeaderboard sorts students by ascending absence hours (stable, so
// fetch order breaks ties), awards gold/silver/bronze to the first three,
// and keeps the top 10 for display. The full ordering is retained so any
// student's rank can still be looked up.
func BuildLeaderboard(students []absence.StudentSummary) Leaderboard {
	if len(students) == 0 {
		return Leaderboard{}
	}

	list := make([]LeaderboardEntry, 0, len(students))
	for _, s := range students {
		hours := s.TotalAbsenceHours
		if hours < 0 {
			hours = 0
		}
		pct := int(math.Round((MaxHours - hours) / MaxHours * 100))
		if pct < 0 {
			pct = 0
		}
		list = append(list, LeaderboardEntry{
			StudentID:     s.ID,
			Name:          s.Name,
			Group:         s.GroupName,
			AbsenceHours:  hours,
			AttendancePct: pct,
			StreakDays:    Streak(hours),
		})
	}

	sort.SliceStable(list, func(i, j int) bool { return list[i].AbsenceHours < list[j].AbsenceHours })

	badges := []string{BadgeGold, BadgeSilver, BadgeBronze}
	for i := 0; i < len(badges) && i < len(list); i++ {
		list[i].Badge = badges[i]
	}

	rank := make(map[string]int, len(list))
	for i, e := range list {
		rank[e.StudentID] = i + 1
	}

	top := list
	if len(top) > 10 {
		top = top[:10]
	}
	return Leaderboard{Top: top, rank: rank}
}

// RankOf returns a student's 1-based position in the full ordering, or 0
// when the student is not ranked.
func (l Leaderboard) RankOf(studentID string) int {
	return l.rank[studentID]
}
