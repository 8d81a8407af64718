package insight

import (
	"math"
	"sort"
	"time"

	"classtrack/internal/absence"
)

// MaxHours is the absence-hour ceiling a student may accumulate per term.
// The scoring thresholds below are tuned heuristics carried over from the
// production dashboard; changing them changes what users see, so they are
// deliberately not configurable.
const MaxHours = 60.0

// Trend classifies the direction of a student's weekly absence rate.
type Trend string

const (
	TrendRising    Trend = "rising"
	TrendStable    Trend = "stable"
	TrendDeclining Trend = "declining"
)

// RiskAssessment projects whether a student will breach MaxHours by term end.
type RiskAssessment struct {
	StudentID       string     `json:"student_id"`
	Name            string     `json:"name"`
	Group           string     `json:"group"`
	Hours           float64    `json:"hours"`
	WeeklyRate      float64    `json:"weekly_rate"`
	Risk            int        `json:"risk"`
	Trend           Trend      `json:"trend"`
	PredictedBreach *time.Time `json:"predicted_breach,omitempty"`
}

// AssessRisk scores every student and returns the top offenders: entries with
// risk above 25, ordered by descending risk, capped at 5. The cap mirrors
// what the dashboard displays and is part of the contract.
func AssessRisk(students []absence.StudentSummary, now time.Time, term Term) []RiskAssessment {
	if len(students) == 0 {
		return nil
	}

	weeksElapsed := float64(term.WeeksElapsed(now))
	weeksRemaining := float64(term.WeeksRemaining(now))

	out := make([]RiskAssessment, 0, len(students))
	for _, s := range students {
		hours := s.TotalAbsenceHours
		if hours < 0 {
			hours = 0
		}
		weeklyRate := hours / weeksElapsed
		projected := hours + weeklyRate*weeksRemaining
		raw := math.Min(100, projected/MaxHours*100)
		risk := int(math.Min(100, math.Round(raw*0.6+hours/MaxHours*40)))

		var breach *time.Time
		if weeklyRate > 0 {
			weeksToBreach := (MaxHours - hours) / weeklyRate
			if weeksToBreach > 0 && weeksToBreach < weeksRemaining {
				t := now.Add(time.Duration(weeksToBreach * float64(week)))
				breach = &t
			}
		}

		trend := TrendDeclining
		switch {
		case weeklyRate > 3:
			trend = TrendRising
		case weeklyRate > 1:
			trend = TrendStable
		}

		out = append(out, RiskAssessment{
			StudentID:       s.ID,
			Name:            s.Name,
			Group:           s.GroupName,
			Hours:           hours,
			WeeklyRate:      math.Round(weeklyRate*10) / 10,
			Risk:            risk,
			Trend:           trend,
			PredictedBreach: breach,
		})
	}

	filtered := out[:0]
	for _, r := range out {
		if r.Risk > 25 {
			filtered = append(filtered, r)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool { return filtered[i].Risk > filtered[j].Risk })
	if len(filtered) > 5 {
		filtered = filtered[:5]
	}
	return filtered
}
