package http

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"fuelcell/ml"
	"fuelcell/report"
	"fuelcell/stack"

	"github.com/gorilla/schema"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// HistoryStore persists served predictions.
type HistoryStore interface {
	SavePrediction(p *ml.Prediction) error
	RecentPredictions(limit int) ([]ml.Prediction, error)
}

// Feed publishes predictions to live subscribers.
type Feed interface {
	PublishPrediction(p *ml.Prediction) error
	HandleWebSocket(w http.ResponseWriter, r *http.Request)
}

// Observer records per-prediction serving metrics and exposes them.
type Observer interface {
	ObservePrediction(p *ml.Prediction, elapsed time.Duration, err error)
	Handler() http.Handler
}

// Options wires the handlers to their collaborators. History, Feed and Metrics
// are optional.
type Options struct {
	Predictor ml.Service
	Registry  *ml.Registry
	Formatter *report.Formatter
	Stack     stack.Parameters
	Chart     report.ChartOptions
	History   HistoryStore
	Feed      Feed
	Metrics   Observer
	Logger    *zap.Logger
}

// Handlers serves the web UI and the JSON API.
type Handlers struct {
	predictor ml.Service
	registry  *ml.Registry
	formatter *report.Formatter
	stack     stack.Parameters
	chart     report.ChartOptions
	history   HistoryStore
	feed      Feed
	metrics   Observer
	logger    *zap.Logger
	decoder   *schema.Decoder
	started   time.Time
}

// NewHandlers requires a Predictor and fills in defaults for the other options.
func NewHandlers(o Options) (*Handlers, error) {
	if o.Predictor == nil {
		return nil, errors.New("predictor is required")
	}
	if o.Formatter == nil {
		formatter, err := report.NewFormatter("")
		if err != nil {
			return nil, err
		}
		o.Formatter = formatter
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)

	return &Handlers{
		predictor: o.Predictor,
		registry:  o.Registry,
		formatter: o.Formatter,
		stack:     o.Stack,
		chart:     o.Chart,
		history:   o.History,
		feed:      o.Feed,
		metrics:   o.Metrics,
		logger:    o.Logger,
		decoder:   decoder,
		started:   time.Now(),
	}, nil
}

// Register mounts every route on mux.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.handleIndex)
	mux.HandleFunc("POST /predict", h.handlePredictForm)
	mux.HandleFunc("GET /chart", h.handleChart)
	mux.HandleFunc("GET /chart.png", h.handleChartPNG)

	mux.HandleFunc("GET /api/health", h.handleHealth)
	mux.HandleFunc("POST /api/predict", h.handlePredict)
	mux.HandleFunc("GET /api/targets", h.handleTargets)
	mux.HandleFunc("GET /api/stack", h.handleStack)
	mux.HandleFunc("GET /api/history", h.handleHistory)
	if h.feed != nil {
		mux.HandleFunc("GET /api/ws/predictions", h.feed.HandleWebSocket)
	}
	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics.Handler())
	}
}

// predict runs one inference and records it. Recording failures are logged only.
func (h *Handlers) predict(ctx context.Context, in ml.Input) (*ml.Prediction, error) {
	start := time.Now()
	prediction, err := h.predictor.Predict(ctx, in)
	if h.metrics != nil {
		h.metrics.ObservePrediction(prediction, time.Since(start), err)
	}
	if err != nil {
		return nil, err
	}
	if h.history != nil {
		if err := h.history.SavePrediction(prediction); err != nil {
			h.logger.Warn("save prediction failed", zap.String("request_id", GetRequestID(ctx)), zap.Error(err))
		}
	}
	if h.feed != nil {
		if err := h.feed.PublishPrediction(prediction); err != nil {
			h.logger.Warn("publish prediction failed", zap.String("request_id", GetRequestID(ctx)), zap.Error(err))
		}
	}
	return prediction, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ml.ErrInputOutOfRange), errors.Is(err, stack.ErrParameterOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, ml.ErrNotLoaded):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// ---- browser front-end ----

type inputBounds struct {
	VoltageMin, VoltageMax float64
	CurrentMin, CurrentMax float64
	Step                   float64
}

type pageResult struct {
	Summary  string
	Rows     []report.Row
	ChartURL template.URL
	Version  string
}

type pageData struct {
	Input              ml.Input
	Bounds             inputBounds
	Stack              []stack.Bound
	AverageCellVoltage string
	Result             *pageResult
	Error              string
}

type predictForm struct {
	Voltage float64          `schema:"voltage"`
	Current float64          `schema:"current"`
	Stack   stack.Parameters `schema:"stack"`
}

func (h *Handlers) newPage(in ml.Input, params stack.Parameters) *pageData {
	return &pageData{
		Input: in,
		Bounds: inputBounds{
			VoltageMin: ml.VoltageMin,
			VoltageMax: ml.VoltageMax,
			CurrentMin: ml.CurrentMin,
			CurrentMax: ml.CurrentMax,
			Step:       ml.InputStep,
		},
		Stack:              params.Bounds(),
		AverageCellVoltage: h.formatter.Value(params.AverageCellVoltage()),
	}
}

func (h *Handlers) renderPage(w http.ResponseWriter, status int, data *pageData) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		h.logger.Error("render page failed", zap.Error(err))
		http.Error(w, "render error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handlers) handleIndex(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, http.StatusOK, h.newPage(ml.DefaultInput(), h.stack))
}

func (h *Handlers) handlePredictForm(w http.ResponseWriter, r *http.Request) {
	form := predictForm{
		Voltage: ml.DefaultVoltage,
		Current: ml.DefaultCurrent,
		Stack:   h.stack,
	}
	if err := r.ParseForm(); err != nil {
		h.renderPage(w, http.StatusBadRequest, &pageData{Error: "invalid form: " + err.Error()})
		return
	}
	if err := h.decoder.Decode(&form, r.PostForm); err != nil {
		page := h.newPage(ml.DefaultInput(), h.stack)
		page.Error = "invalid form: " + err.Error()
		h.renderPage(w, http.StatusBadRequest, page)
		return
	}

	in := ml.Input{Voltage: form.Voltage, Current: form.Current}
	page := h.newPage(in, form.Stack)
	if err := form.Stack.Validate(); err != nil {
		page.Error = err.Error()
		h.renderPage(w, http.StatusBadRequest, page)
		return
	}

	prediction, err := h.predict(r.Context(), in)
	if err != nil {
		page.Error = err.Error()
		h.renderPage(w, statusFor(err), page)
		return
	}

	ref := form.Stack.Estimate(in.Voltage, in.Current)
	page.Result = &pageResult{
		Summary:  h.formatter.LoadCondition(prediction),
		Rows:     h.formatter.Rows(prediction, &ref),
		ChartURL: template.URL("/chart?" + inputQuery(in)),
		Version:  prediction.ArtifactVersion,
	}
	h.renderPage(w, http.StatusOK, page)
}

func inputQuery(in ml.Input) string {
	q := url.Values{}
	q.Set("voltage", strconv.FormatFloat(in.Voltage, 'f', -1, 64))
	q.Set("current", strconv.FormatFloat(in.Current, 'f', -1, 64))
	return q.Encode()
}

type chartQuery struct {
	Voltage float64 `schema:"voltage"`
	Current float64 `schema:"current"`
}

// chartInput reads voltage and current from the query string, defaulting each.
func (h *Handlers) chartInput(r *http.Request) (ml.Input, error) {
	q := chartQuery{Voltage: ml.DefaultVoltage, Current: ml.DefaultCurrent}
	if err := h.decoder.Decode(&q, r.URL.Query()); err != nil {
		return ml.Input{}, err
	}
	return ml.Input{Voltage: q.Voltage, Current: q.Current}, nil
}

func (h *Handlers) handleChart(w http.ResponseWriter, r *http.Request) {
	in, err := h.chartInput(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	prediction, err := h.predictor.Predict(r.Context(), in)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	var buf bytes.Buffer
	if err := report.RenderHTML(&buf, prediction, h.chart); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (h *Handlers) handleChartPNG(w http.ResponseWriter, r *http.Request) {
	in, err := h.chartInput(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	prediction, err := h.predictor.Predict(r.Context(), in)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	var buf bytes.Buffer
	if err := report.RenderPNG(&buf, prediction); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}

// ---- JSON API ----

// PredictRequest is the body of POST /api/predict.
type PredictRequest struct {
	Voltage *float64          `json:"voltage"`
	Current *float64          `json:"current"`
	Stack   *stack.Parameters `json:"stack,omitempty"`
}

type PredictResponse struct {
	Prediction *ml.Prediction  `json:"prediction"`
	Summary    string          `json:"summary"`
	Table      []report.Row    `json:"table"`
	Reference  stack.Reference `json:"reference"`
}

const maxRequestBody = 64 << 10

func (h *Handlers) handlePredict(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	// Stack fields missing from the request keep their configured values.
	params := h.stack
	req := PredictRequest{Stack: &params}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	if req.Voltage == nil || req.Current == nil {
		respondError(w, http.StatusBadRequest, "voltage and current are required")
		return
	}
	if err := params.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	in := ml.Input{Voltage: *req.Voltage, Current: *req.Current}
	prediction, err := h.predict(r.Context(), in)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	ref := params.Estimate(in.Voltage, in.Current)
	respondJSON(w, http.StatusOK, PredictResponse{
		Prediction: prediction,
		Summary:    h.formatter.LoadCondition(prediction),
		Table:      h.formatter.Rows(prediction, &ref),
		Reference:  ref,
	})
}

func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.started).Round(time.Second).String()
	if h.registry == nil || h.registry.Current() == nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "uptime": uptime})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status":           "ok",
		"artifact_version": h.registry.Current().Version,
		"uptime":           uptime,
	})
}

func (h *Handlers) handleTargets(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"targets": ml.Targets(),
		"count":   ml.NumTargets,
	})
}

func (h *Handlers) handleStack(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"parameters":           h.stack,
		"bounds":               h.stack.Bounds(),
		"average_cell_voltage": h.stack.AverageCellVoltage(),
		"input": inputBounds{
			VoltageMin: ml.VoltageMin,
			VoltageMax: ml.VoltageMax,
			CurrentMin: ml.CurrentMin,
			CurrentMax: ml.CurrentMax,
			Step:       ml.InputStep,
		},
	})
}

func (h *Handlers) handleHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		respondError(w, http.StatusNotFound, "prediction history is disabled")
		return
	}
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		l, err := strconv.Atoi(s)
		if err != nil || l <= 0 || l > 500 {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = l
	}
	predictions, err := h.history.RecentPredictions(limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"predictions": predictions,
		"count":       len(predictions),
	})
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
