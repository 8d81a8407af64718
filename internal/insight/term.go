package insight

import "time"

// Term is the semester window used for absence projections. Fall terms run
// September through December, spring terms February through June.
type Term struct {
	Start time.Time
	End   time.Time
}

// TermFor returns the term containing (or nearest to) the given instant.
func TermFor(now time.Time) Term {
	year := now.Year()
	if now.Month() >= time.September {
		return Term{
			Start: time.Date(year, time.September, 1, 0, 0, 0, 0, now.Location()),
			End:   time.Date(year, time.December, 30, 0, 0, 0, 0, now.Location()),
		}
	}
	return Term{
		Start: time.Date(year, time.February, 1, 0, 0, 0, 0, now.Location()),
		End:   time.Date(year, time.June, 30, 0, 0, 0, 0, now.Location()),
	}
}

const week = 7 * 24 * time.Hour

// WeeksElapsed returns whole weeks since term start, never less than 1 so
// rate divisions stay defined.
func (t Term) WeeksElapsed(now time.Time) int {
	w := int(now.Sub(t.Start) / week)
	if w < 1 {
		return 1
	}
	return w
}

// WeeksRemaining returns whole weeks until term end, never less than 1.
func (t Term) WeeksRemaining(now time.Time) int {
	w := int(t.End.Sub(now) / week)
	if w < 1 {
		return 1
	}
	return w
}
