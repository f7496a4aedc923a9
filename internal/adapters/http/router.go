package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kirillkom/feedback-sentinel/internal/config"
	"github.com/kirillkom/feedback-sentinel/internal/core/domain"
	"github.com/kirillkom/feedback-sentinel/internal/core/ports"
)

const (
	maxRequestBodyBytes = 64 << 10

	defaultDeadLetterLimit = 50
	maxDeadLetterLimit     = 500
)

type Router struct {
	cfg         config.Config
	analyzer    ports.FeedbackAnalyzer
	submitter   ports.FeedbackSubmitter
	feedbacks   ports.FeedbackReader
	deadLetters ports.DeadLetterReader
	metrics     httpMetrics
	breakers    func() map[string]string
	logger      *slog.Logger
}

// httpMetrics is satisfied by metrics.HTTPServerMetrics.
type httpMetrics interface {
	Middleware(next http.Handler) http.Handler
	Handler() http.Handler
}

func NewRouter(
	cfg config.Config,
	analyzer ports.FeedbackAnalyzer,
	submitter ports.FeedbackSubmitter,
	feedbacks ports.FeedbackReader,
	deadLetters ports.DeadLetterReader,
) *Router {
	return &Router{
		cfg:         cfg,
		analyzer:    analyzer,
		submitter:   submitter,
		feedbacks:   feedbacks,
		deadLetters: deadLetters,
		logger:      slog.Default(),
	}
}

func (rt *Router) SetMetrics(m httpMetrics) {
	rt.metrics = m
}

// SetBreakerStates adds circuit breaker states to the health response.
func (rt *Router) SetBreakerStates(fn func() map[string]string) {
	rt.breakers = fn
}

func (rt *Router) SetLogger(logger *slog.Logger) {
	if logger != nil {
		rt.logger = logger
	}
}

func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(requestIDMiddleware)
	r.Use(middleware.RealIP)
	if rt.metrics != nil {
		r.Use(rt.metrics.Middleware)
	}
	r.Use(accessLogMiddleware(rt.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", rt.healthz)
	if rt.metrics != nil {
		r.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(rateLimitMiddleware(rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst))

		r.Post("/feedback", rt.submitFeedback)
		r.Post("/feedback/analyze", rt.analyzeFeedback)
		r.Get("/feedback/{id}", rt.getFeedback)
		r.Get("/alerts/dead-letters", rt.listDeadLetters)
	})

	return r
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{"status": "ok"}
	if rt.breakers != nil {
		resp["breakers"] = rt.breakers()
	}
	writeJSON(w, http.StatusOK, resp)
}

type customerPayload struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

type feedbackRequest struct {
	Text        string           `json:"text"`
	CustomerRef string           `json:"customer_ref"`
	Customer    *customerPayload `json:"customer"`
}

func (rt *Router) submitFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	submitReq := ports.SubmitFeedbackRequest{
		Text:        req.Text,
		CustomerRef: strings.TrimSpace(req.CustomerRef),
	}
	if req.Customer != nil {
		submitReq.Customer = &domain.Customer{
			Name:  req.Customer.Name,
			Phone: req.Customer.Phone,
			Email: req.Customer.Email,
		}
	}

	resp, err := rt.submitter.Submit(r.Context(), submitReq)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (rt *Router) analyzeFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := rt.analyzer.Analyze(r.Context(), req.Text, strings.TrimSpace(req.CustomerRef))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) getFeedback(w http.ResponseWriter, r *http.Request) {
	if rt.feedbacks == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "feedback store is not configured"})
		return
	}

	feedback, err := rt.feedbacks.GetFeedback(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, feedback)
}

func (rt *Router) listDeadLetters(w http.ResponseWriter, r *http.Request) {
	if rt.deadLetters == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "dead letter store is not configured"})
		return
	}

	limit := defaultDeadLetterLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxDeadLetterLimit {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "limit must be an integer between 1 and " + strconv.Itoa(maxDeadLetterLimit),
			})
			return
		}
		limit = n
	}

	letters, err := rt.deadLetters.List(r.Context(), limit)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if letters == nil {
		letters = []domain.DeadLetter{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"dead_letters": letters})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, out any) bool {
	body := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(body).Decode(out); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "request body too large"})
		case errors.Is(err, io.EOF):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "request body is required"})
		default:
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		}
		return false
	}
	return true
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		rt.logger.ErrorContext(r.Context(), "http_request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
		message = http.StatusText(status)
	}
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
