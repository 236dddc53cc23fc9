package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	appanalytics "github.com/bryanwahyu/feedback-ai/internal/application/analytics"
	appsubs "github.com/bryanwahyu/feedback-ai/internal/application/submissions"
	domain "github.com/bryanwahyu/feedback-ai/internal/domain/submissions"
	"github.com/bryanwahyu/feedback-ai/internal/logger"
	"github.com/bryanwahyu/feedback-ai/internal/middleware"
)

const (
	maxBodyBytes       = 64 << 10
	defaultWaitTimeout = 25 * time.Second
)

// Deps is everything the HTTP layer needs.
type Deps struct {
	Submissions *appsubs.Service
	Analytics   *appanalytics.Service
	Metrics     *middleware.Metrics
	Limiter     *middleware.RateLimiter
	AdminKeys   map[string]string
	CORSOrigins []string

	// Health runs on /health; names in Optional only degrade it.
	Health   map[string]middleware.HealthChecker
	Optional []string
	Ready    middleware.HealthChecker

	// WaitTimeout caps ?wait=true on submit.
	WaitTimeout time.Duration
}

type Router struct {
	subs      *appsubs.Service
	analytics *appanalytics.Service
	metrics   *middleware.Metrics
	wait      time.Duration
}

func NewRouter(d Deps) http.Handler {
	if d.Metrics == nil {
		d.Metrics = middleware.Default
	}
	if d.WaitTimeout <= 0 {
		d.WaitTimeout = defaultWaitTimeout
	}
	origins := d.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r := &Router{subs: d.Submissions, analytics: d.Analytics, metrics: d.Metrics, wait: d.WaitTimeout}

	mux := chi.NewRouter()
	mux.Use(chimw.RequestID)
	mux.Use(chimw.RealIP)
	mux.Use(chimw.Recoverer)
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(d.Metrics.Middleware)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		MaxAge:         300,
	}))

	mux.Get("/health", middleware.HealthHandler(d.Health, d.Optional...))
	mux.Get("/ready", middleware.ReadinessHandler(d.Ready))
	mux.Get("/live", middleware.LivenessHandler)
	mux.Get("/metrics", d.Metrics.Handler)

	mux.Route("/api", func(rt chi.Router) {
		rt.With(middleware.RateLimitMiddleware(d.Limiter)).
			Post("/submit-review", r.wrap(r.handleSubmit))
		rt.Get("/submissions", r.wrap(r.handleList))
		rt.Get("/submissions/latest", r.wrap(r.handleLatest))
		rt.Get("/submissions/{id}", r.wrap(r.handleGet))
		rt.Get("/submission/{id}", r.wrap(r.handleGet))
		rt.Get("/stats", r.wrap(r.handleStats))
		rt.Get("/analytics", r.wrap(r.handleAnalytics))

		rt.Route("/admin", func(ad chi.Router) {
			ad.Use(middleware.APIKeyAuth(d.AdminKeys))
			ad.Post("/export", r.wrap(r.handleExport))
		})
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			var ve *domain.ValidationError
			switch {
			case errors.As(err, &ve):
				writeJSON(w, http.StatusBadRequest, map[string]string{
					"error": "validation failed", "field": ve.Field, "message": ve.Message,
				})
			case errors.Is(err, domain.ErrNotFound):
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "submission not found"})
			case errors.Is(err, appsubs.ErrExportDisabled):
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
			default:
				logger.WithError(err).WithField("path", req.URL.Path).Error("request failed")
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			}
		}
	}
}

type submitBody struct {
	Rating     *int   `json:"rating"`
	ReviewText string `json:"review_text"`
}

// POST /api/submit-review[?wait=true]
// Body: {"rating": 1..5, "review_text": "..."}
func (r *Router) handleSubmit(w http.ResponseWriter, req *http.Request) error {
	var body submitBody
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		return &domain.ValidationError{Field: "body", Message: "invalid JSON body"}
	}
	if body.Rating == nil {
		return &domain.ValidationError{Field: "rating", Message: "rating is required"}
	}
	text, err := middleware.ValidateReviewText(body.ReviewText)
	if err != nil {
		return err
	}

	var sub *domain.Submission
	if wait, _ := strconv.ParseBool(req.URL.Query().Get("wait")); wait {
		ctx, cancel := context.WithTimeout(req.Context(), r.wait)
		defer cancel()
		sub, err = r.subs.SubmitAndWait(ctx, *body.Rating, text)
	} else {
		sub, err = r.subs.Submit(req.Context(), *body.Rating, text)
	}
	if err != nil {
		return err
	}
	r.metrics.IncrementSubmissions()

	status := http.StatusCreated
	if sub.Status == domain.StatusProcessing {
		status = http.StatusAccepted
	}
	writeJSON(w, status, sub)
	return nil
}

// GET /api/submissions?rating=&date=&start_date=&end_date=&date_range=&limit=
func (r *Router) handleList(w http.ResponseWriter, req *http.Request) error {
	q, err := parseQuery(req)
	if err != nil {
		return err
	}
	list, err := r.subs.List(req.Context(), q)
	if err != nil {
		return err
	}
	if raw := req.URL.Query().Get("limit"); raw != "" {
		n, _ := strconv.Atoi(raw)
		if n = middleware.ValidateLimit(n); len(list) > n {
			list = list[:n]
		}
	}
	writeJSON(w, http.StatusOK, list)
	return nil
}

// GET /api/submissions/latest
func (r *Router) handleLatest(w http.ResponseWriter, req *http.Request) error {
	sub, err := r.subs.Latest(req.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, sub)
	return nil
}

// GET /api/submissions/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	id, err := middleware.ValidateSubmissionID(chi.URLParam(req, "id"))
	if err != nil {
		return err
	}
	sub, err := r.subs.Get(req.Context(), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, sub)
	return nil
}

// GET /api/stats
func (r *Router) handleStats(w http.ResponseWriter, req *http.Request) error {
	st, err := r.analytics.Stats(req.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, st)
	return nil
}

// GET /api/analytics?date_range=&rating=&start_date=&end_date=
func (r *Router) handleAnalytics(w http.ResponseWriter, req *http.Request) error {
	q, err := parseQuery(req)
	if err != nil {
		return err
	}
	report, err := r.analytics.Analytics(req.Context(), q)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, report)
	return nil
}

// POST /api/admin/export
func (r *Router) handleExport(w http.ResponseWriter, req *http.Request) error {
	location, err := r.subs.Export(req.Context())
	if err != nil {
		return err
	}
	logger.WithField("admin", middleware.AdminFromContext(req.Context())).
		WithField("location", location).Info("snapshot exported")
	writeJSON(w, http.StatusOK, map[string]string{"location": location})
	return nil
}

// parseQuery builds a fresh Query per request from the URL parameters.
func parseQuery(req *http.Request) (domain.Query, error) {
	v := req.URL.Query()
	rating, err := middleware.ParseRating(v.Get("rating"))
	if err != nil {
		return domain.Query{}, err
	}
	dr, err := middleware.ValidateDateRange(v.Get("date_range"))
	if err != nil {
		return domain.Query{}, err
	}
	for _, field := range []string{"date", "start_date", "end_date"} {
		if err := middleware.ValidateDate(field, v.Get(field)); err != nil {
			return domain.Query{}, err
		}
	}
	return domain.Query{
		Rating:    rating,
		Date:      v.Get("date"),
		DateRange: dr,
		StartDate: v.Get("start_date"),
		EndDate:   v.Get("end_date"),
	}, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithError(err).Warn("encode response failed")
	}
}
