package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"healthpredict/db"
	"healthpredict/ml"
	"healthpredict/monitoring"
	"healthpredict/pipeline"
	"healthpredict/predictor"
	"healthpredict/render"
)

// Predictor is the prediction service the handlers call.
type Predictor interface {
	Predict(ctx context.Context, row ml.FeatureRow) (predictor.Result, error)
	Status() predictor.Status
	Load() error
}

var (
	predictionService Predictor
	pageRenderer      *render.Renderer
	predictionMetrics *monitoring.PredictionMetrics
	liveHub           *PredictionHub
	logger            = zap.NewNop()

	defaultRendererOnce sync.Once
	defaultRenderer     *render.Renderer
)

// errPredictorMissing is returned when no predictor has been set.
var errPredictorMissing = errors.New("prediction service not configured")

func SetPredictor(p Predictor) {
	predictionService = p
}

func SetRenderer(r *render.Renderer) {
	pageRenderer = r
}

func SetMetrics(m *monitoring.PredictionMetrics) {
	predictionMetrics = m
}

func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
}

func currentRenderer() *render.Renderer {
	if pageRenderer != nil {
		return pageRenderer
	}
	defaultRendererOnce.Do(func() {
		r, err := render.NewRenderer(nil)
		if err != nil {
			panic(err)
		}
		defaultRenderer = r
	})
	return defaultRenderer
}

func RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("GET /api/status", handleStatus)
	mux.HandleFunc("POST /api/reload", handleReload)
	mux.HandleFunc("GET /api/models", handleModels)
	mux.HandleFunc("GET /api/metrics", handleMetrics)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleStatus(w http.ResponseWriter, r *http.Request) {
	if predictionService == nil {
		respondError(w, r, http.StatusServiceUnavailable, errPredictorMissing)
		return
	}
	respondJSON(w, http.StatusOK, predictionService.Status())
}

func handleReload(w http.ResponseWriter, r *http.Request) {
	if predictionService == nil {
		respondError(w, r, http.StatusServiceUnavailable, errPredictorMissing)
		return
	}
	err := predictionService.Load()
	status := predictionService.Status()
	if liveHub != nil {
		liveHub.BroadcastStatus(status)
	}
	if err != nil {
		logger.Warn("artifact reload failed", zap.String("request_id", GetRequestID(r.Context())), zap.Error(err))
		respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"error":  err.Error(),
			"status": status,
		})
		return
	}
	fields := []zap.Field{zap.Uint64("generation", status.Generation)}
	if start := GetStartTime(r.Context()); !start.IsZero() {
		fields = append(fields, zap.Duration("elapsed", time.Since(start)))
	}
	logger.Info("artifacts reloaded", fields...)
	respondJSON(w, http.StatusOK, map[string]interface{}{"status": status})
}

func handleModels(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l < 0 {
			respondError(w, r, http.StatusBadRequest, errors.New("limit must be a non-negative integer"))
			return
		}
		limit = l
	}

	logs, err := db.LoadTrainingLog(limit)
	if err != nil {
		respondError(w, r, http.StatusServiceUnavailable, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"models": logs,
		"count":  len(logs),
	})
}

func handleMetrics(w http.ResponseWriter, r *http.Request) {
	if predictionMetrics == nil {
		respondError(w, r, http.StatusServiceUnavailable, errors.New("metrics not initialized"))
		return
	}

	collector := predictionMetrics.Collector()
	format := r.URL.Query().Get("format")
	if (format == "prometheus" || format == "series") && collector == nil {
		respondError(w, r, http.StatusServiceUnavailable, errors.New("metrics collector not initialized"))
		return
	}

	switch format {
	case "prometheus":
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		w.Write([]byte(collector.ExportPrometheus()))
	case "series":
		// 原始指标序列
		data, err := collector.ExportJSON()
		if err != nil {
			respondError(w, r, http.StatusInternalServerError, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(data))
	default:
		response := map[string]interface{}{
			"predictions": predictionMetrics.Stats(),
			"timestamp":   time.Now(),
		}
		if collector != nil {
			response["system"] = collector.GetSystemStats()
			if latency, err := collector.GetMetricSummary("prediction_latency_ms", nil); err == nil {
				response["latency"] = latency
			}
		}
		respondJSON(w, http.StatusOK, response)
	}
}

// errorResponse is the JSON body of every API error.
type errorResponse struct {
	Error     string   `json:"error"`
	Field     string   `json:"field,omitempty"`
	Missing   []string `json:"missing,omitempty"`
	RequestID string   `json:"request_id,omitempty"`
}

func respondError(w http.ResponseWriter, r *http.Request, status int, err error) {
	body := errorResponse{Error: err.Error(), RequestID: GetRequestID(r.Context())}
	var inputErr *pipeline.InputError
	if errors.As(err, &inputErr) {
		body.Field = inputErr.Field
	}
	var artifactErr *predictor.ArtifactError
	if errors.As(err, &artifactErr) {
		body.Missing = artifactErr.Missing
	}
	respondJSON(w, status, body)
}

// respondJSON 统一JSON响应
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Warn("failed to encode JSON", zap.Error(err))
	}
}
