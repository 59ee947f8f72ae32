// Package feed publishes principal moon phases and upcoming site events as
// an iCalendar feed for calendar clients.
package feed

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"github.com/magic-amatlan/backend/internal/lunar"
	"github.com/magic-amatlan/backend/internal/storage/models"
)

// iCalendar property and value names.
const (
	propUID          = "UID"
	propSummary      = "SUMMARY"
	propDescription  = "DESCRIPTION"
	propLocation     = "LOCATION"
	propCategories   = "CATEGORIES"
	propDTStart      = "DTSTART"
	propDTEnd        = "DTEND"
	propDTStamp      = "DTSTAMP"
	propLastModified = "LAST-MODIFIED"
	propTransp       = "TRANSP"
	propVersion      = "VERSION"
	propProdID       = "PRODID"
	propCalScale     = "CALSCALE"
	propMethod       = "METHOD"
	propCalName      = "X-WR-CALNAME"
	propTimezone     = "X-WR-TIMEZONE"
	propRefresh      = "REFRESH-INTERVAL"

	icalVersion   = "2.0"
	calScale      = "GREGORIAN"
	methodPublish = "PUBLISH"

	lunarDomain = "lunar.magic-amatlan.mx"
	eventDomain = "events.magic-amatlan.mx"
)

// DefaultProductID identifies the feed's producer.
const DefaultProductID = "-//Magic Amatlan//Lunar Calendar//EN"

// stubCalendar is served when there is nothing to list. go-ical refuses to
// encode a calendar without children.
const stubCalendar = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:%s\r\nCALSCALE:GREGORIAN\r\nMETHOD:PUBLISH\r\nEND:VCALENDAR\r\n"

// Translator localizes feed text.
type Translator interface {
	lunar.Namer
	Message(id string, data map[string]any) string
}

// Builder renders the calendar.
type Builder struct {
	ProductID string
	// Months is the length of the lunar window starting today.
	Months     int
	Location   *time.Location
	Translator Translator
	Refresh    time.Duration
}

// Calendar is a rendered feed.
type Calendar struct {
	Data []byte
	// ETag is derived from the feed's logical content, not its bytes.
	ETag string
	// Onsets and Events count the VEVENTs by source.
	Onsets int
	Events int
}

// Build renders the feed for the window starting on now's local day.
// Inactive events and events that already ended are skipped.
func (b *Builder) Build(now time.Time, events []models.Event) (*Calendar, error) {
	loc := b.Location
	if loc == nil {
		loc = time.UTC
	}
	months := b.Months
	if months <= 0 {
		months = 6
	}
	productID := b.ProductID
	if productID == "" {
		productID = DefaultProductID
	}

	local := now.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	until := today.AddDate(0, months, 0)
	stamp := today.UTC()

	fingerprint := sha256.New()
	fmt.Fprintf(fingerprint, "%s|%s|%s|%d\n", productID, loc, today.Format(time.DateOnly), months)

	cal := ical.NewCalendar()
	cal.Props.SetText(propVersion, icalVersion)
	cal.Props.SetText(propProdID, productID)
	cal.Props.SetText(propCalScale, calScale)
	cal.Props.SetText(propMethod, methodPublish)
	cal.Props.SetText(propCalName, b.message("feed_calendar_name", nil))
	cal.Props.SetText(propTimezone, loc.String())
	if b.Refresh > 0 {
		refresh := ical.NewProp(propRefresh)
		refresh.SetDuration(b.Refresh)
		cal.Props.Set(refresh)
	}

	out := &Calendar{}

	for _, onset := range lunar.PrincipalPhasesBetween(today, until) {
		cal.Children = append(cal.Children, b.phaseEvent(onset, stamp).Component)
		fmt.Fprintf(fingerprint, "P|%s|%s\n", onset.Phase.ID(), onset.Date.Format(time.DateOnly))
		out.Onsets++
	}

	for _, e := range events {
		if !e.Active || !e.EndDate.After(now) {
			continue
		}
		cal.Children = append(cal.Children, b.bookingEvent(e).Component)
		fmt.Fprintf(fingerprint, "E|%s|%d\n", e.ID, e.UpdatedAt.UnixNano())
		out.Events++
	}

	out.ETag = `"` + hex.EncodeToString(fingerprint.Sum(nil)) + `"`

	if len(cal.Children) == 0 {
		var buf bytes.Buffer
		fmt.Fprintf(&buf, stubCalendar, productID)
		out.Data = buf.Bytes()
		return out, nil
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("encoding calendar: %w", err)
	}
	out.Data = buf.Bytes()
	return out, nil
}

func (b *Builder) phaseEvent(onset lunar.Event, stamp time.Time) *ical.Event {
	event := ical.NewEvent()
	event.Props.SetText(propUID, PhaseUID(onset))

	name := onset.Phase.String()
	description := ""
	if b.Translator != nil {
		name = b.Translator.Name(onset.Phase)
		description = b.Translator.Description(onset.Phase)
	}
	event.Props.SetText(propSummary, b.message("feed_phase_summary", map[string]any{"Phase": name}))
	if description != "" {
		event.Props.SetText(propDescription, description)
	}
	// Set directly so the list separator is not escaped.
	categories := ical.NewProp(propCategories)
	categories.Value = "LUNAR," + onset.Phase.ID()
	event.Props.Set(categories)
	event.Props.SetText(propTransp, "TRANSPARENT")

	setDateTime(event, propDTStamp, stamp)
	setDate(event, propDTStart, onset.Date)
	setDate(event, propDTEnd, onset.Date.AddDate(0, 0, 1))
	return event
}

func (b *Builder) bookingEvent(e models.Event) *ical.Event {
	event := ical.NewEvent()
	event.Props.SetText(propUID, EventUID(e))
	event.Props.SetText(propSummary, b.message("feed_event_summary", map[string]any{
		"Title":    e.Title,
		"Category": strings.ToLower(string(e.Category)),
	}))
	if e.Description != "" {
		event.Props.SetText(propDescription, e.Description)
	}
	if e.Location != "" {
		event.Props.SetText(propLocation, e.Location)
	}
	event.Props.SetText(propCategories, string(e.Category))

	setDateTime(event, propDTStamp, e.UpdatedAt.UTC())
	setDateTime(event, propLastModified, e.UpdatedAt.UTC())
	setDateTime(event, propDTStart, e.StartDate.UTC())
	setDateTime(event, propDTEnd, e.EndDate.UTC())
	return event
}

// message falls back to a plain English rendering without a translator.
func (b *Builder) message(id string, data map[string]any) string {
	if b.Translator != nil {
		return b.Translator.Message(id, data)
	}
	switch id {
	case "feed_calendar_name":
		return "Magic Amatlán lunar calendar"
	case "feed_phase_summary":
		return fmt.Sprint(data["Phase"])
	case "feed_event_summary":
		return fmt.Sprint(data["Title"])
	}
	return id
}

// PhaseUID is stable for a given onset across rebuilds.
func PhaseUID(onset lunar.Event) string {
	return fmt.Sprintf("%s-%s@%s", strings.ToLower(onset.Phase.ID()), onset.Date.Format("20060102"), lunarDomain)
}

// EventUID is stable for a given event across edits.
func EventUID(e models.Event) string {
	return e.ID + "@" + eventDomain
}

func setDate(event *ical.Event, name string, t time.Time) {
	prop := ical.NewProp(name)
	prop.SetDate(t)
	event.Props.Set(prop)
}

func setDateTime(event *ical.Event, name string, t time.Time) {
	prop := ical.NewProp(name)
	prop.SetDateTime(t)
	event.Props.Set(prop)
}
