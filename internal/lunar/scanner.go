package lunar

import "time"

// Default scan limits for UpcomingPrincipalPhases.
const (
	DefaultMaxResults  = 4
	DefaultHorizonDays = 60
)

// Event marks the calendar day on which a principal phase begins.
type Event struct {
	Date  time.Time `json:"date"`
	Phase Phase     `json:"phaseId"`
}

// UpcomingPrincipalPhases walks forward one day at a time from the day after
// start and records the first day of each distinct principal phase. It stops
// after maxResults phases or horizonDays days, whichever comes first, so a
// short horizon yields fewer events. Each day is sampled at start's time of
// day; Event.Date is that day's midnight in start's location.
func UpcomingPrincipalPhases(start time.Time, maxResults, horizonDays int) []Event {
	if maxResults <= 0 || horizonDays <= 0 {
		return []Event{}
	}

	seen := make(map[Phase]bool, len(PrincipalPhases))
	events := make([]Event, 0, maxResults)

	for i := 1; i <= horizonDays && len(events) < maxResults; i++ {
		day := start.AddDate(0, 0, i)
		phase := ComputePhase(day).Phase
		if !phase.IsPrincipal() || seen[phase] {
			continue
		}
		seen[phase] = true
		events = append(events, Event{Date: startOfDay(day), Phase: phase})
	}

	return events
}

// PrincipalPhasesBetween returns every principal-phase onset between from and
// to, inclusive. A day is an onset when its phase is principal and differs
// from the phase of the previous day.
func PrincipalPhasesBetween(from, to time.Time) []Event {
	events := []Event{}
	if to.Before(from) {
		return events
	}

	prev := ComputePhase(from.AddDate(0, 0, -1)).Phase
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		phase := ComputePhase(day).Phase
		if phase.IsPrincipal() && phase != prev {
			events = append(events, Event{Date: startOfDay(day), Phase: phase})
		}
		prev = phase
	}

	return events
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
