// Package lunar computes moon phases, upcoming principal phases and
// phase-annotated month grids.
//
// The model uses a fixed mean synodic month anchored on the new moon of
// January 6, 2000. Real lunations vary between roughly 29.18 and 29.93 days,
// so computed phase boundaries drift from astronomical reality by about half
// a day per year away from the epoch. This is an accepted approximation.
package lunar

import (
	"fmt"
	"math"
	"time"
)

// SynodicMonth is the mean time between two new moons, in days.
const SynodicMonth = 29.53058867

const secondsPerDay = 86400.0

// Epoch is the reference new moon.
var Epoch = time.Date(2000, time.January, 6, 0, 0, 0, 0, time.UTC)

// Phase identifies one of the eight phase buckets of a lunation.
type Phase int

const (
	New Phase = iota
	WaxingCrescent
	FirstQuarter
	WaxingGibbous
	Full
	WaningGibbous
	LastQuarter
	WaningCrescent
)

var phaseIDs = [...]string{
	New:            "NEW",
	WaxingCrescent: "WAXING_CRESCENT",
	FirstQuarter:   "FIRST_QUARTER",
	WaxingGibbous:  "WAXING_GIBBOUS",
	Full:           "FULL",
	WaningGibbous:  "WANING_GIBBOUS",
	LastQuarter:    "LAST_QUARTER",
	WaningCrescent: "WANING_CRESCENT",
}

var phaseNames = [...]string{
	New:            "New Moon",
	WaxingCrescent: "Waxing Crescent",
	FirstQuarter:   "First Quarter",
	WaxingGibbous:  "Waxing Gibbous",
	Full:           "Full Moon",
	WaningGibbous:  "Waning Gibbous",
	LastQuarter:    "Last Quarter",
	WaningCrescent: "Waning Crescent",
}

var illumination = [...]int{
	New:            0,
	WaxingCrescent: 25,
	FirstQuarter:   50,
	WaxingGibbous:  75,
	Full:           100,
	WaningGibbous:  75,
	LastQuarter:    50,
	WaningCrescent: 25,
}

// Phases lists every phase in cycle order.
var Phases = []Phase{New, WaxingCrescent, FirstQuarter, WaxingGibbous, Full, WaningGibbous, LastQuarter, WaningCrescent}

// PrincipalPhases lists the four principal phases in cycle order.
var PrincipalPhases = []Phase{New, FirstQuarter, Full, LastQuarter}

// boundaries[i] is the upper bound (exclusive) of bucket i, in days since new
// moon. The cycle is cut into 16 equal slices; every bucket spans two slices
// and the first half-bucket of the new moon wraps around the end of the cycle.
var boundaries = func() [8]float64 {
	var b [8]float64
	for i := range b {
		b[i] = SynodicMonth * float64(2*i+1) / 16
	}
	return b
}()

// ID returns the stable identifier of the phase, e.g. "FIRST_QUARTER".
func (p Phase) ID() string {
	if !p.valid() {
		return fmt.Sprintf("PHASE(%d)", int(p))
	}
	return phaseIDs[p]
}

// String returns the English name of the phase.
func (p Phase) String() string {
	if !p.valid() {
		return p.ID()
	}
	return phaseNames[p]
}

// Illumination returns the coarse illumination bucket of the phase in percent.
func (p Phase) Illumination() int {
	if !p.valid() {
		return 0
	}
	return illumination[p]
}

// IsPrincipal reports whether p is a new, first quarter, full or last quarter moon.
func (p Phase) IsPrincipal() bool {
	return p == New || p == FirstQuarter || p == Full || p == LastQuarter
}

func (p Phase) valid() bool {
	return p >= New && p <= WaningCrescent
}

// MarshalText encodes the phase as its ID.
func (p Phase) MarshalText() ([]byte, error) {
	if !p.valid() {
		return nil, fmt.Errorf("invalid phase %d", int(p))
	}
	return []byte(p.ID()), nil
}

// UnmarshalText decodes a phase ID.
func (p *Phase) UnmarshalText(text []byte) error {
	parsed, err := ParsePhase(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePhase returns the phase with the given ID.
func ParsePhase(id string) (Phase, error) {
	for i, candidate := range phaseIDs {
		if candidate == id {
			return Phase(i), nil
		}
	}
	return New, fmt.Errorf("unknown phase %q", id)
}

// Namer resolves human-readable text for a phase.
type Namer interface {
	Name(p Phase) string
	Description(p Phase) string
}

// Descriptor describes the moon at a given instant.
type Descriptor struct {
	Phase        Phase   `json:"phaseId"`
	Illumination int     `json:"illuminationPercent"`
	AgeDays      float64 `json:"ageDays"`
	DisplayName  string  `json:"displayName"`
	Description  string  `json:"description"`
}

// Localized returns a copy of d with display text resolved by n.
// A nil Namer leaves d unchanged.
func (d Descriptor) Localized(n Namer) Descriptor {
	if n == nil {
		return d
	}
	d.DisplayName = n.Name(d.Phase)
	d.Description = n.Description(d.Phase)
	return d
}

// ComputePhase returns the phase descriptor for instant t. Display names
// default to English; use Localized for other languages.
func ComputePhase(t time.Time) Descriptor {
	age := MoonAge(t)
	phase := ClassifyAge(age)
	return Descriptor{
		Phase:        phase,
		Illumination: phase.Illumination(),
		AgeDays:      age,
		DisplayName:  phase.String(),
	}
}

// MoonAge returns the days elapsed since the most recent new moon, in [0, SynodicMonth).
func MoonAge(t time.Time) float64 {
	// Unix seconds avoid the ~292 year saturation of time.Duration.
	seconds := float64(t.Unix()-Epoch.Unix()) + float64(t.Nanosecond())/1e9
	cycle := seconds / secondsPerDay / SynodicMonth
	age := (cycle - math.Floor(cycle)) * SynodicMonth
	if age >= SynodicMonth || age < 0 {
		return 0
	}
	return age
}

// ClassifyAge maps a moon age in days to its phase bucket.
func ClassifyAge(age float64) Phase {
	for i, limit := range boundaries {
		if age < limit {
			return Phase(i)
		}
	}
	return New
}
