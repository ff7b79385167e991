package raceengine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP is the thin caller-facing layer over the engine. Transport and
// formatting only; all computation lives in the engine.
type HTTP struct {
	server *http.Server
	logger Logger

	port   uint16
	engine *Engine
}

func NewHTTP(port uint16, engine *Engine, logger Logger) *HTTP {
	return &HTTP{
		port:   port,
		engine: engine,
		logger: logger,
	}
}

func (h *HTTP) Listen() error {
	h.logger.Infof("HTTP server listening on port: %d", h.port)

	h.server = &http.Server{
		Handler: h.Router(),
		Addr:    fmt.Sprintf(":%d", h.port),
	}

	go func() {
		err := h.server.ListenAndServe()

		if err == http.ErrServerClosed {
			return
		} else if err != nil {
			h.logger.WithError(err).Errorf("Could not start HTTP server")
		}
	}()

	return nil
}

func (h *HTTP) Shutdown(ctx context.Context) error {
	if h.server == nil {
		return nil
	}

	h.logger.Debugf("Closing HTTP listener")

	return h.server.Shutdown(ctx)
}

func (h *HTTP) Router() http.Handler {
	router := chi.NewRouter()
	router.Use(h.requestLogger)

	router.Get("/pace/{season}/{round}", h.RacePace)
	router.Get("/pace/{season}/{round}/clean-air", h.CleanAirPace)
	router.Get("/distribution/{season}/{round}", h.Distribution)
	router.Post("/strategy/predict", h.PredictStrategy)
	router.Get("/healthz", h.Health)
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.logger.Debugf("Could not find HTTP response for URL: %s", r.URL.String())

		http.NotFound(w, r)
	})

	return router
}

func (h *HTTP) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()
		w.Header().Set("X-Request-ID", requestID)

		h.logger.Debugf("%s %s (request: %s)", r.Method, r.URL.Path, requestID)

		next.ServeHTTP(w, r)
	})
}

// httpError follows the RFC 7807 problem shape.
type httpError struct {
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

func (h *HTTP) writeError(w http.ResponseWriter, operation string, err error) {
	status := http.StatusInternalServerError
	title := "internal error"

	var malformed *MalformedRecordError

	switch {
	case errors.Is(err, ErrInvalidRequest):
		status = http.StatusBadRequest
		title = "invalid request"
	case errors.Is(err, ErrInsufficientSample):
		status = http.StatusUnprocessableEntity
		title = "insufficient sample"
	case errors.Is(err, ErrModelNotFound):
		status = http.StatusNotFound
		title = "model not found"
	case errors.As(err, &malformed):
		status = http.StatusUnprocessableEntity
		title = "malformed record"
	default:
		h.logger.WithError(err).Errorf("Request failed")
	}

	requestsServed.WithLabelValues(operation, "error").Inc()

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(httpError{Title: title, Status: status, Detail: err.Error()})
}

func (h *HTTP) writeJSON(w http.ResponseWriter, operation string, value interface{}) {
	requestsServed.WithLabelValues(operation, "ok").Inc()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(value)
}

func eventParams(r *http.Request) (season, round int, err error) {
	season, err = strconv.Atoi(chi.URLParam(r, "season"))

	if err != nil {
		return 0, 0, fmt.Errorf("%w: season must be an integer", ErrInvalidRequest)
	}

	round, err = strconv.Atoi(chi.URLParam(r, "round"))

	if err != nil {
		return 0, 0, fmt.Errorf("%w: round must be an integer", ErrInvalidRequest)
	}

	return season, round, nil
}

func (h *HTTP) RacePace(w http.ResponseWriter, r *http.Request) {
	season, round, err := eventParams(r)

	if err != nil {
		h.writeError(w, "race_pace", err)
		return
	}

	mode, err := ParsePaceMode(r.URL.Query().Get("mode"))

	if err != nil {
		h.writeError(w, "race_pace", err)
		return
	}

	report, err := h.engine.RacePace(r.Context(), season, round, mode)

	if err != nil {
		h.writeError(w, "race_pace", err)
		return
	}

	h.writeJSON(w, "race_pace", report)
}

func (h *HTTP) CleanAirPace(w http.ResponseWriter, r *http.Request) {
	season, round, err := eventParams(r)

	if err != nil {
		h.writeError(w, "clean_air_pace", err)
		return
	}

	report, err := h.engine.CleanAirPace(r.Context(), season, round)

	if err != nil {
		h.writeError(w, "clean_air_pace", err)
		return
	}

	h.writeJSON(w, "clean_air_pace", report)
}

func (h *HTTP) Distribution(w http.ResponseWriter, r *http.Request) {
	season, round, err := eventParams(r)

	if err != nil {
		h.writeError(w, "lap_time_distribution", err)
		return
	}

	report, err := h.engine.LapTimeDistributions(r.Context(), season, round)

	if err != nil {
		h.writeError(w, "lap_time_distribution", err)
		return
	}

	h.writeJSON(w, "lap_time_distribution", report)
}

type strategyRequest struct {
	Circuit   string   `json:"circuit"`
	TrackTemp float64  `json:"track_temp"`
	Compounds []string `json:"compounds"`
	MaxStops  int      `json:"max_stops"`
}

func (h *HTTP) PredictStrategy(w http.ResponseWriter, r *http.Request) {
	var request strategyRequest

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, "predict_strategy", fmt.Errorf("%w: %s", ErrInvalidRequest, err))
		return
	}

	candidates, err := h.engine.PredictStrategy(request.Circuit, request.TrackTemp, request.Compounds, request.MaxStops)

	if err != nil {
		h.writeError(w, "predict_strategy", err)
		return
	}

	h.writeJSON(w, "predict_strategy", candidates)
}

func (h *HTTP) Health(w http.ResponseWriter, r *http.Request) {
	status := h.engine.CacheStatus()

	if !status.Loaded {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(status)

		return
	}

	h.writeJSON(w, "cache_status", status)
}
