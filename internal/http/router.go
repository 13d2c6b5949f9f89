package http

import (
	"net/http"
)

// RouterConfig wires handlers into the API. Nil handlers leave their routes
// unregistered. Authenticate guards every route except /healthz and /metrics.
type RouterConfig struct {
	Shifts       *ShiftHandler
	Calendar     *CalendarHandler
	Schedules    *ScheduleHandler
	Sites        *SiteHandler
	Pins         *PinHandler
	Metrics      http.Handler
	Authenticate func(http.Handler) http.Handler
	Middleware   []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	api := http.NewServeMux()

	if cfg.Shifts != nil {
		api.HandleFunc("POST /shifts/check-in", cfg.Shifts.CheckIn)
		api.HandleFunc("POST /shifts/check-out", cfg.Shifts.CheckOut)
		api.HandleFunc("GET /shifts/current", cfg.Shifts.Current)
		api.HandleFunc("GET /shifts/{id}", cfg.Shifts.Get)
	}

	if cfg.Calendar != nil {
		api.HandleFunc("GET /calendar/occurrences", cfg.Calendar.Occurrences)
		api.HandleFunc("GET /calendar/next", cfg.Calendar.Next)
	}

	if cfg.Schedules != nil {
		api.HandleFunc("GET /schedules", cfg.Schedules.List)
		api.HandleFunc("POST /schedules", cfg.Schedules.Create)
		api.HandleFunc("GET /schedules/{id}", cfg.Schedules.Get)
		api.HandleFunc("PUT /schedules/{id}", cfg.Schedules.Update)
		api.HandleFunc("DELETE /schedules/{id}", cfg.Schedules.Delete)
		api.HandleFunc("PUT /schedules/{id}/status", cfg.Schedules.SetStatus)
	}

	if cfg.Sites != nil {
		api.HandleFunc("GET /clients/{id}/site", cfg.Sites.Get)
		api.HandleFunc("PUT /clients/{id}/site", cfg.Sites.Put)
	}

	if cfg.Pins != nil {
		api.HandleFunc("PUT /organization/pin", cfg.Pins.Put)
	}

	var protected http.Handler = api
	if cfg.Authenticate != nil {
		protected = cfg.Authenticate(api)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}
	mux.Handle("/", protected)

	var handler http.Handler = mux
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}

	return handler
}
