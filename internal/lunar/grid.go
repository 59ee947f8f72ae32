package lunar

import "time"

// Cell is one slot of a month grid. Padding cells before the first day of the
// month have a nil Date and no Phase.
type Cell struct {
	Date  *time.Time  `json:"date"`
	Phase *Descriptor `json:"phase,omitempty"`
}

// IsPadding reports whether the cell precedes the first day of the month.
func (c Cell) IsPadding() bool {
	return c.Date == nil
}

// BuildMonthGrid returns the grid for the given month in loc: one padding cell
// per weekday before the 1st (weeks start on Sunday), then one cell per day
// dated at local midnight and annotated with its phase. A nil loc means UTC.
func BuildMonthGrid(year int, month time.Month, loc *time.Location) []Cell {
	if loc == nil {
		loc = time.UTC
	}

	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	padding := int(first.Weekday())
	days := DaysInMonth(year, month)

	cells := make([]Cell, padding, padding+days)
	for day := 1; day <= days; day++ {
		date := time.Date(year, month, day, 0, 0, 0, 0, loc)
		phase := ComputePhase(date)
		cells = append(cells, Cell{Date: &date, Phase: &phase})
	}

	return cells
}

// DaysInMonth returns the number of days of the month in the Gregorian calendar.
func DaysInMonth(year int, month time.Month) int {
	// Day 0 of the next month normalizes to the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// LocalizeGrid returns a copy of cells with every phase resolved by n.
func LocalizeGrid(cells []Cell, n Namer) []Cell {
	out := make([]Cell, len(cells))
	for i, c := range cells {
		out[i] = c
		if c.Phase != nil {
			localized := c.Phase.Localized(n)
			out[i].Phase = &localized
		}
	}
	return out
}
