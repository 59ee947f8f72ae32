package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/magic-amatlan/backend/internal/api/middleware"
	"github.com/magic-amatlan/backend/internal/locale"
	"github.com/magic-amatlan/backend/internal/lunar"
)

// Query limits for the upcoming phases endpoint.
const (
	maxUpcomingResults = 16
	maxHorizonDays     = 366
)

// LunarOptions holds the dependencies shared by the lunar handlers.
type LunarOptions struct {
	Scheduler   *lunar.Scheduler
	Catalog     *locale.Catalog
	Location    *time.Location
	MaxResults  int
	HorizonDays int
	Now         func() time.Time
}

func (o LunarOptions) now() time.Time {
	if o.Now != nil {
		return o.Now().In(o.location())
	}
	return time.Now().In(o.location())
}

func (o LunarOptions) location() *time.Location {
	if o.Location == nil {
		return time.UTC
	}
	return o.Location
}

// namer resolves the response language from ?lang= or Accept-Language and
// reports it in Content-Language.
func (o LunarOptions) namer(w http.ResponseWriter, r *http.Request) lunar.Namer {
	if o.Catalog == nil {
		return nil
	}
	langs := []string{r.URL.Query().Get("lang"), r.Header.Get("Accept-Language")}
	n := o.Catalog.Namer(langs...)
	w.Header().Set("Content-Language", n.Language().String())
	return n
}

// parseInstant accepts RFC 3339 timestamps or plain dates in loc.
func parseInstant(value string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.In(loc), nil
	}
	t, err := time.ParseInLocation(time.DateOnly, value, loc)
	if err != nil {
		return time.Time{}, errors.New("expected RFC 3339 timestamp or YYYY-MM-DD date")
	}
	return t, nil
}

func intParam(r *http.Request, name string, def, lo, hi int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("%s must be an integer between %d and %d", name, lo, hi)
	}
	return n, nil
}

// PhaseResponse is the moon at an instant.
type PhaseResponse struct {
	lunar.Descriptor
	At string `json:"at"`
}

// CurrentPhase returns a handler for the current phase, or the phase at ?at=.
func CurrentPhase(opts LunarOptions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			at time.Time
			d  lunar.Descriptor
		)
		if raw := r.URL.Query().Get("at"); raw != "" {
			t, err := parseInstant(raw, opts.location())
			if err != nil {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid at: "+err.Error())
				return
			}
			at, d = t, lunar.ComputePhase(t)
		} else if opts.Scheduler != nil {
			at, d = opts.now(), opts.Scheduler.Current()
		} else {
			at = opts.now()
			d = lunar.ComputePhase(at)
		}

		response := PhaseResponse{
			Descriptor: d.Localized(opts.namer(w, r)),
			At:         at.Format(time.RFC3339),
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}
}

// UpcomingPhase is one principal phase onset.
type UpcomingPhase struct {
	Date         string      `json:"date"`
	Phase        lunar.Phase `json:"phaseId"`
	Illumination int         `json:"illuminationPercent"`
	DisplayName  string      `json:"displayName"`
}

// UpcomingResponse lists the next principal phases.
type UpcomingResponse struct {
	From   string          `json:"from"`
	Events []UpcomingPhase `json:"events"`
}

// UpcomingPhases returns a handler listing upcoming principal phases.
func UpcomingPhases(opts LunarOptions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from := opts.now()
		if raw := r.URL.Query().Get("from"); raw != "" {
			t, err := parseInstant(raw, opts.location())
			if err != nil {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid from: "+err.Error())
				return
			}
			from = t
		}

		defMax := opts.MaxResults
		if defMax <= 0 {
			defMax = lunar.DefaultMaxResults
		}
		maxResults, err := intParam(r, "max", defMax, 1, maxUpcomingResults)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, err.Error())
			return
		}
		defHorizon := opts.HorizonDays
		if defHorizon <= 0 {
			defHorizon = lunar.DefaultHorizonDays
		}
		horizon, err := intParam(r, "horizon", defHorizon, 1, maxHorizonDays)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, err.Error())
			return
		}

		namer := opts.namer(w, r)
		onsets := lunar.UpcomingPrincipalPhases(from, maxResults, horizon)
		response := UpcomingResponse{
			From:   from.Format(time.DateOnly),
			Events: make([]UpcomingPhase, 0, len(onsets)),
		}
		for _, e := range onsets {
			name := e.Phase.String()
			if namer != nil {
				name = namer.Name(e.Phase)
			}
			response.Events = append(response.Events, UpcomingPhase{
				Date:         e.Date.Format(time.DateOnly),
				Phase:        e.Phase,
				Illumination: e.Phase.Illumination(),
				DisplayName:  name,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}
}

// MonthResponse is a calendar month grid.
type MonthResponse struct {
	Year  int          `json:"year"`
	Month int          `json:"month"`
	Days  int          `json:"days"`
	Cells []lunar.Cell `json:"cells"`
}

// MonthGrid returns a handler for a month grid, defaulting to the current month.
func MonthGrid(opts LunarOptions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := opts.now()

		year, err := intParam(r, "year", now.Year(), 1, 9999)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, err.Error())
			return
		}
		month, err := intParam(r, "month", int(now.Month()), 1, 12)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, err.Error())
			return
		}

		cells := lunar.BuildMonthGrid(year, time.Month(month), opts.location())
		if namer := opts.namer(w, r); namer != nil {
			cells = lunar.LocalizeGrid(cells, namer)
		}

		response := MonthResponse{
			Year:  year,
			Month: month,
			Days:  lunar.DaysInMonth(year, time.Month(month)),
			Cells: cells,
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}
}
