package surface

import (
	"errors"
	"math"
	"sort"
	"time"
)

// DateMatchType selects how MatchExpiry resolves a target date.
type DateMatchType string

const (
	MatchExact   DateMatchType = "exact"   // must match exactly
	MatchHigher  DateMatchType = "higher"  // next available expiration after target
	MatchLower   DateMatchType = "lower"   // last available expiration before target
	MatchNearest DateMatchType = "nearest" // closest available expiration (default)
)

// ErrNoStrikes is returned by NearestStrike for an empty strike list.
var ErrNoStrikes = errors.New("no strikes to match")

// MatchExpiry picks an expiration relative to target by calendar date.
// The zero time is returned when nothing satisfies mode; unknown modes
// behave like MatchNearest. expiries is not modified.
func MatchExpiry(target time.Time, expiries []time.Time, mode DateMatchType) time.Time {
	var (
		exact  time.Time
		lower  time.Time
		higher time.Time
	)

	switch mode {
	case MatchExact, MatchHigher, MatchLower, MatchNearest:
		// ok
	default:
		mode = MatchNearest
	}

	sorted := append([]time.Time(nil), expiries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	day := target.Format("2006-01-02")
	for _, dt := range sorted {
		switch d := dt.Format("2006-01-02"); {
		case d == day:
			exact = dt
		case d < day:
			lower = dt // keeps the last one before target
		case higher.IsZero():
			higher = dt
		}
	}

	switch mode {
	case MatchExact:
		return exact
	case MatchLower:
		return lower
	case MatchHigher:
		return higher
	}

	if !exact.IsZero() {
		return exact
	}
	switch {
	case !lower.IsZero() && !higher.IsZero():
		if target.Sub(lower) <= higher.Sub(target) {
			return lower
		}
		return higher
	case !lower.IsZero():
		return lower
	case !higher.IsZero():
		return higher
	}
	return time.Time{}
}

// NearestStrike finds the strike in an ascending slice closest to target.
// Ties go to the higher strike.
func NearestStrike(strikes []float64, target float64) (float64, error) {
	n := len(strikes)
	if n == 0 {
		return 0, ErrNoStrikes
	}

	i := sort.SearchFloat64s(strikes, target)
	if i == 0 {
		return strikes[0], nil
	}
	if i == n {
		return strikes[n-1], nil
	}

	before, after := strikes[i-1], strikes[i]
	if math.Abs(before-target) < math.Abs(after-target) {
		return before, nil
	}
	return after, nil
}
