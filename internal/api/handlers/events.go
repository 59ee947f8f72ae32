package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/magic-amatlan/backend/internal/api/middleware"
	"github.com/magic-amatlan/backend/internal/events"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// writeServiceError maps event service errors to HTTP responses.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var ve *events.ValidationError
	switch {
	case errors.As(err, &ve):
		middleware.WriteErrorWithDetails(w, http.StatusBadRequest, middleware.ErrValidation, "Validation failed", ve.Fields)
	case errors.Is(err, events.ErrUnauthenticated):
		middleware.WriteError(w, http.StatusUnauthorized, middleware.ErrUnauthorized, "Authentication required")
	case errors.Is(err, events.ErrForbidden):
		middleware.WriteError(w, http.StatusForbidden, middleware.ErrForbidden, "Admin role required")
	case errors.Is(err, events.ErrNotFound):
		middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Event not found")
	case errors.Is(err, events.ErrConflict):
		middleware.WriteError(w, http.StatusConflict, middleware.ErrConflict, err.Error())
	default:
		logger.Error("event request failed", zap.Error(err))
		middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "An unexpected error occurred")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// parseFilter reads the search query string.
func parseFilter(r *http.Request, loc *time.Location) (events.Filter, map[string]string) {
	q := r.URL.Query()
	f := events.Filter{
		Query:    q.Get("q"),
		Category: q.Get("category"),
		Sort:     q.Get("sort"),
	}
	invalid := map[string]string{}

	switch strings.ToLower(q.Get("order")) {
	case "", "asc":
	case "desc":
		f.Desc = true
	default:
		invalid["order"] = "must be asc or desc"
	}

	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		if raw := q.Get(p.name); raw != "" {
			t, err := parseInstant(raw, loc)
			if err != nil {
				invalid[p.name] = err.Error()
				continue
			}
			*p.dst = &t
		}
	}

	for _, p := range []struct {
		name string
		dst  **int64
	}{{"minPrice", &f.MinPrice}, {"maxPrice", &f.MaxPrice}} {
		if raw := q.Get(p.name); raw != "" {
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || n < 0 {
				invalid[p.name] = "must be a non-negative integer"
				continue
			}
			*p.dst = &n
		}
	}

	return f, invalid
}

// ListEvents returns a handler that searches active events.
func ListEvents(svc *events.Service, loc *time.Location, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, invalid := parseFilter(r, loc)
		if len(invalid) > 0 {
			middleware.WriteErrorWithDetails(w, http.StatusBadRequest, middleware.ErrValidation, "Invalid query parameters", invalid)
			return
		}

		list, err := svc.List(r.Context(), f)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, list)
	}
}

// GetEvent returns a handler that returns an event with its attendees.
func GetEvent(svc *events.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		event, err := svc.Get(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, event)
	}
}

type createEventRequest struct {
	events.Actor
	events.CreateInput
}

// CreateEvent returns a handler that creates an event.
func CreateEvent(svc *events.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createEventRequest
		if !decodeBody(w, r, &req) {
			return
		}

		event, err := svc.Create(r.Context(), req.Actor, req.CreateInput)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}

		writeJSON(w, http.StatusCreated, event)
	}
}

type updateEventRequest struct {
	events.Actor
	events.UpdateInput
}

// UpdateEvent returns a handler that applies a partial update to an event.
func UpdateEvent(svc *events.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateEventRequest
		if !decodeBody(w, r, &req) {
			return
		}

		event, err := svc.Update(r.Context(), mux.Vars(r)["id"], req.Actor, req.UpdateInput)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, event)
	}
}

// DeleteEvent returns a handler that soft-deletes an event.
func DeleteEvent(svc *events.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// A missing body is a missing actor, which the service rejects with 401.
		var actor events.Actor
		if r.ContentLength != 0 && !decodeBody(w, r, &actor) {
			return
		}

		event, err := svc.Delete(r.Context(), mux.Vars(r)["id"], actor)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, event)
	}
}

// RegisterAttendee returns a handler that books a place on an event.
func RegisterAttendee(svc *events.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in events.RegisterInput
		if !decodeBody(w, r, &in) {
			return
		}

		attendee, err := svc.Register(r.Context(), mux.Vars(r)["id"], in)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}

		writeJSON(w, http.StatusCreated, attendee)
	}
}

type attendeeStatusRequest struct {
	events.Actor
	events.StatusInput
}

// UpdateAttendeeStatus returns a handler that confirms or cancels a registration.
func UpdateAttendeeStatus(svc *events.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req attendeeStatusRequest
		if !decodeBody(w, r, &req) {
			return
		}

		vars := mux.Vars(r)
		event, err := svc.SetAttendeeStatus(r.Context(), vars["id"], vars["attendeeId"], req.Actor, req.StatusInput)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, event)
	}
}
