// Package api provides HTTP routing and handlers for the REST API.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/magic-amatlan/backend/internal/api/handlers"
	"github.com/magic-amatlan/backend/internal/api/middleware"
	"github.com/magic-amatlan/backend/internal/events"
	"github.com/magic-amatlan/backend/internal/feed"
	"github.com/magic-amatlan/backend/internal/locale"
	"github.com/magic-amatlan/backend/internal/lunar"
	"github.com/magic-amatlan/backend/internal/storage"
	"github.com/magic-amatlan/backend/internal/websocket"
)

// Services holds everything the router serves. Nil optional services leave
// their routes unregistered.
type Services struct {
	DB        *storage.DB
	Hub       *websocket.Hub
	Events    *events.Service
	Scheduler *lunar.Scheduler
	Catalog   *locale.Catalog
	Feed      *feed.Service

	Location    *time.Location
	MaxResults  int
	HorizonDays int
	StaticDir   string
	Logger      *zap.Logger
	Now         func() time.Time
}

// NewRouter creates and configures the HTTP router with all API routes.
func NewRouter(s Services) *mux.Router {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}

	r := mux.NewRouter()

	// Apply global middleware
	r.Use(middleware.Logging(logger.Named("http")))
	r.Use(middleware.ErrorRecovery(logger))

	methodNotAllowed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, middleware.ErrMethodNotAllowed, "Method not allowed")
	})
	// A NotFoundHandler on the subrouter would also swallow method
	// mismatches, so unknown routes fall through to the root.
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Route not found")
	})
	r.MethodNotAllowedHandler = methodNotAllowed

	api := r.PathPrefix("/api").Subrouter()
	api.MethodNotAllowedHandler = methodNotAllowed

	// Health
	api.HandleFunc("/health", handlers.HealthCheck(s.DB, s.Hub)).Methods("GET")

	// WebSocket endpoint
	if s.Hub != nil {
		api.HandleFunc("/ws", handlers.WebSocketUpgrade(s.Hub, logger.Named("ws"))).Methods("GET")
	}

	// Lunar endpoints
	lunarOpts := handlers.LunarOptions{
		Scheduler:   s.Scheduler,
		Catalog:     s.Catalog,
		Location:    loc,
		MaxResults:  s.MaxResults,
		HorizonDays: s.HorizonDays,
		Now:         s.Now,
	}
	api.HandleFunc("/lunar/phase", handlers.CurrentPhase(lunarOpts)).Methods("GET")
	api.HandleFunc("/lunar/upcoming", handlers.UpcomingPhases(lunarOpts)).Methods("GET")
	api.HandleFunc("/lunar/month", handlers.MonthGrid(lunarOpts)).Methods("GET")
	if s.Feed != nil {
		api.Handle("/lunar/calendar.ics", s.Feed).Methods("GET", "HEAD")
	}

	// Event endpoints
	if s.Events != nil {
		elog := logger.Named("api.events")
		api.HandleFunc("/events", handlers.ListEvents(s.Events, loc, elog)).Methods("GET")
		api.HandleFunc("/events", handlers.CreateEvent(s.Events, elog)).Methods("POST")
		api.HandleFunc("/events/{id}", handlers.GetEvent(s.Events, elog)).Methods("GET")
		api.HandleFunc("/events/{id}", handlers.UpdateEvent(s.Events, elog)).Methods("PUT")
		api.HandleFunc("/events/{id}", handlers.DeleteEvent(s.Events, elog)).Methods("DELETE")
		api.HandleFunc("/events/{id}/attendees", handlers.RegisterAttendee(s.Events, elog)).Methods("POST")
		api.HandleFunc("/events/{id}/attendees/{attendeeId}", handlers.UpdateAttendeeStatus(s.Events, elog)).Methods("PUT")
	}

	// Serve static frontend files
	if s.StaticDir != "" {
		r.PathPrefix("/").
			MatcherFunc(func(req *http.Request, _ *mux.RouteMatch) bool {
				return !strings.HasPrefix(req.URL.Path, "/api/")
			}).
			Handler(http.FileServer(http.Dir(s.StaticDir)))
	}

	return r
}
