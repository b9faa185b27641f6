package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/samber/mo"

	"pdxevents/internal/config"
	"pdxevents/internal/events"
	"pdxevents/internal/ics"
	appLog "pdxevents/internal/log"
	"pdxevents/internal/model"
	"pdxevents/internal/recurrence"
	"pdxevents/internal/store"
)

const (
	eventsCacheTTL = 30 * time.Second
	maxWindowDays  = 366
	maxBodyBytes   = 64 << 10

	// maxCachedWindows bounds the number of distinct from/days windows kept.
	maxCachedWindows = 16
)

// EventService is what the HTTP layer needs from the events service.
type EventService interface {
	Submit(ctx context.Context, d events.Draft) (*model.Event, error)
	Edit(ctx context.Context, id string, d events.Draft) (*model.Event, error)
	Delete(ctx context.Context, id string) error
	Approve(ctx context.Context, id string) (*model.Event, error)
	Reject(ctx context.Context, id string) (*model.Event, error)
	Get(ctx context.Context, id string) (*model.Event, error)
	List(ctx context.Context, status mo.Option[model.Status]) ([]*model.Event, error)
	Options(selected recurrence.Date, existing string) []recurrence.Pattern
	Occurrences(ctx context.Context, from, to recurrence.Date) (events.ExpandResult, error)
}

// Server provides the recurrence and events HTTP API.
type Server struct {
	cfg *config.Config
	svc EventService
	mux *http.ServeMux
	loc *time.Location
	now func() time.Time

	// In-memory cache for /api/events responses keyed by window, to avoid
	// re-expanding every series on each request.
	eventsMu    sync.RWMutex
	eventsCache map[string]*eventsCache
}

// NewServer constructs a new Server. now supplies "today" for requests that
// omit a date; nil means time.Now.
func NewServer(cfg *config.Config, svc EventService, now func() time.Time) *Server {
	if now == nil {
		now = time.Now
	}
	s := &Server{
		cfg:         cfg,
		svc:         svc,
		mux:         http.NewServeMux(),
		loc:         cfg.Location(),
		now:         now,
		eventsCache: make(map[string]*eventsCache),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Serve listens on cfg.Listen until ctx is canceled, then shuts down
// gracefully.
func Serve(ctx context.Context, cfg *config.Config, svc EventService) error {
	s := NewServer(cfg, svc, nil)
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen, "basic_auth", s.basicAuthEnabled())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /api/recurrence/options", s.handleOptions)
	s.mux.HandleFunc("GET /api/recurrence/next", s.handleNext)
	s.mux.HandleFunc("GET /api/recurrence/nth", s.handleNth)
	s.mux.HandleFunc("GET /api/recurrence/type", s.handleType)

	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	s.mux.HandleFunc("GET /api/events.ics", s.handleFeed)
	s.mux.HandleFunc("GET /api/events/{id}", s.handleGetEvent)
	s.mux.Handle("POST /api/events", s.requireAuth(http.HandlerFunc(s.handleSubmit)))
	s.mux.Handle("PUT /api/events/{id}", s.requireAuth(http.HandlerFunc(s.handleEdit)))
	s.mux.Handle("DELETE /api/events/{id}", s.requireAuth(http.HandlerFunc(s.handleDelete)))
	s.mux.Handle("POST /api/events/{id}/approve", s.requireAuth(http.HandlerFunc(s.handleApprove)))
	s.mux.Handle("POST /api/events/{id}/reject", s.requireAuth(http.HandlerFunc(s.handleReject)))
	s.mux.Handle("GET /api/admin/events", s.requireAuth(http.HandlerFunc(s.handleAdminList)))
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// requireAuth wraps write and admin handlers with HTTP Basic Auth when it
// is configured.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	if !s.basicAuthEnabled() {
		return next
	}
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Portland.Events", charset="UTF-8"`)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// today is the current date in the configured timezone.
func (s *Server) today() recurrence.Date {
	return recurrence.DateOf(s.now().In(s.loc))
}

// dateParam reads a YYYY-MM-DD query parameter, defaulting to today.
func (s *Server) dateParam(r *http.Request, name string) (recurrence.Date, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return s.today(), nil
	}
	d, err := recurrence.ParseDate(v)
	if err != nil {
		return recurrence.Date{}, fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}

// handleOptions lists the recurrence choices for a selected date.
//
// GET /api/recurrence/options?date=2024-01-01&existing=second-tuesday
func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	selected, err := s.dateParam(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	opts := s.svc.Options(selected, r.URL.Query().Get("existing"))

	resp := optionsResponse{Date: selected.String(), Options: make([]optionDTO, 0, len(opts))}
	for _, p := range opts {
		resp.Options = append(resp.Options, optionDTO{Pattern: p.String(), Type: typeName(p.Type())})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleNext resolves a pattern against a date.
//
// GET /api/recurrence/next?from=2024-02-01&pattern=fourth-monday
func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	from, err := s.dateParam(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	pattern := r.URL.Query().Get("pattern")
	d, err := recurrence.Resolve(from, pattern)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nextResponse{From: from.String(), Pattern: pattern, Date: d.String()})
}

// handleNth finds the Nth (or last) weekday of a month. month is 1-12.
//
// GET /api/recurrence/nth?year=2024&month=2&selector=fifth&weekday=monday
func (s *Server) handleNth(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, err := strconv.Atoi(q.Get("year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "year must be an integer")
		return
	}
	month, err := strconv.Atoi(q.Get("month"))
	if err != nil || month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "month must be 1-12")
		return
	}
	sel, err := recurrence.ParseSelector(q.Get("selector"))
	if err != nil || sel == recurrence.Every {
		writeError(w, http.StatusBadRequest, "selector must be one of first..fifth or last")
		return
	}
	wd, err := recurrence.ParseWeekday(q.Get("weekday"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := nthResponse{Year: year, Month: month, Selector: sel.String(), Weekday: recurrence.WeekdayName(wd)}
	if d, ok := recurrence.FindNthWeekdayOfMonth(year, time.Month(month), sel, wd); ok {
		resp.Found = true
		resp.Date = d.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleType classifies a raw pattern string.
//
// GET /api/recurrence/type?pattern=last-friday
func (s *Server) handleType(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("pattern")
	writeJSON(w, http.StatusOK, typeResponse{
		Pattern: pattern,
		Type:    typeName(recurrence.TypeFromPattern(pattern)),
	})
}

// handleEvents returns approved event occurrences within a window.
//
// GET /api/events?from=2024-01-01&days=30
//   - from: first day of the window (default: today in the configured zone)
//   - days: window length in days (default: horizon_days, max 366)
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	from, err := s.dateParam(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	days := parseIntDefault(r.URL.Query().Get("days"), s.cfg.HorizonDays)
	if days <= 0 || days > maxWindowDays {
		writeError(w, http.StatusBadRequest, "days must be between 1 and 366")
		return
	}
	to := from.AddDays(days - 1)

	key := from.String() + "/" + strconv.Itoa(days)
	cacheNow := s.now()

	s.eventsMu.RLock()
	ec := s.eventsCache[key]
	s.eventsMu.RUnlock()
	if ec != nil && cacheNow.Sub(ec.updatedAt) < eventsCacheTTL {
		writeJSON(w, http.StatusOK, ec.resp)
		return
	}

	appLog.Debug("api events request", "from", from, "to", to, "timezone", s.loc.String())

	res, err := s.svc.Occurrences(r.Context(), from, to)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := eventsResponse{
		Occurrences:     make([]occurrenceDTO, 0, len(res.Occurrences)),
		TruncatedEvents: res.TruncatedEvents,
		RangeStart:      from.String(),
		RangeEnd:        to.String(),
		TimeZone:        s.loc.String(),
	}
	for _, occ := range res.Occurrences {
		resp.Occurrences = append(resp.Occurrences, newOccurrenceDTO(occ))
	}

	s.cacheEvents(key, resp, cacheNow)
	writeJSON(w, http.StatusOK, resp)
}

// cacheEvents stores resp under key, first dropping expired windows and,
// when still full, the oldest one.
func (s *Server) cacheEvents(key string, resp eventsResponse, now time.Time) {
	s.eventsMu.Lock()
	defer s.eventsMu.Unlock()

	for k, ec := range s.eventsCache {
		if now.Sub(ec.updatedAt) >= eventsCacheTTL {
			delete(s.eventsCache, k)
		}
	}
	if _, ok := s.eventsCache[key]; !ok && len(s.eventsCache) >= maxCachedWindows {
		oldest := ""
		for k, ec := range s.eventsCache {
			if oldest == "" || ec.updatedAt.Before(s.eventsCache[oldest].updatedAt) {
				oldest = k
			}
		}
		delete(s.eventsCache, oldest)
	}
	s.eventsCache[key] = &eventsCache{resp: resp, updatedAt: now}
}

// invalidateEvents drops cached occurrence windows after a write.
func (s *Server) invalidateEvents() {
	s.eventsMu.Lock()
	clear(s.eventsCache)
	s.eventsMu.Unlock()
}

// handleFeed publishes approved events as an iCalendar feed.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	approved, err := s.svc.List(r.Context(), mo.Some(model.StatusApproved))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	err = ics.WriteFeed(w, approved, ics.FeedOptions{
		Name:      s.cfg.Feed.Name,
		ProductID: s.cfg.Feed.ProductID,
		Location:  s.loc,
		UIDDomain: r.Host,
		Now:       s.now(),
	})
	if err != nil {
		appLog.Error("api feed: write failed", err)
	}
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	e, err := s.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	// Unreviewed events are only visible through the admin API.
	if e.Status != model.StatusApproved {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	writeJSON(w, http.StatusOK, newEventDTO(e))
}

// handleSubmit stores a new pending event.
//
// POST /api/events
//
//	{"title": "...", "date": "2024-02-01", "pattern": "every-monday", ...}
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	draft, ok := decodeDraft(w, r)
	if !ok {
		return
	}
	e, err := s.svc.Submit(r.Context(), draft)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	s.invalidateEvents()
	writeJSON(w, http.StatusCreated, newEventDTO(e))
}

// handleEdit replaces an event's content; the body has the submit shape.
// The edited event returns to pending review.
func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	draft, ok := decodeDraft(w, r)
	if !ok {
		return
	}
	e, err := s.svc.Edit(r.Context(), r.PathValue("id"), draft)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	s.invalidateEvents()
	writeJSON(w, http.StatusOK, newEventDTO(e))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	s.invalidateEvents()
	w.WriteHeader(http.StatusNoContent)
}

// decodeDraft reads a submitRequest body, writing a 400 on failure.
func decodeDraft(w http.ResponseWriter, r *http.Request) (events.Draft, bool) {
	var req submitRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return events.Draft{}, false
	}

	draft, err := req.draft()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return events.Draft{}, false
	}
	return draft, true
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	s.review(w, r, s.svc.Approve)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	s.review(w, r, s.svc.Reject)
}

func (s *Server) review(w http.ResponseWriter, r *http.Request, fn func(context.Context, string) (*model.Event, error)) {
	e, err := fn(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	s.invalidateEvents()
	writeJSON(w, http.StatusOK, newEventDTO(e))
}

// handleAdminList lists events by review status.
//
// GET /api/admin/events?status=pending
func (s *Server) handleAdminList(w http.ResponseWriter, r *http.Request) {
	status := mo.None[model.Status]()
	if v := r.URL.Query().Get("status"); v != "" {
		st := model.Status(v)
		if !st.Valid() {
			writeError(w, http.StatusBadRequest, "unknown status")
			return
		}
		status = mo.Some(st)
	}

	list, err := s.svc.List(r.Context(), status)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]eventDTO, 0, len(list))
	for _, e := range list {
		out = append(out, newEventDTO(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

// writeServiceError maps domain errors onto HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "event not found")
	case errors.Is(err, events.ErrInvalidEvent),
		errors.Is(err, recurrence.ErrInvalidPattern),
		errors.Is(err, recurrence.ErrInvalidDate):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, events.ErrSeriesEnded),
		errors.Is(err, recurrence.ErrUnresolvable):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to send.
	default:
		appLog.Error("api request failed", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
