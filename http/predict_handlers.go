package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"healthpredict/ml"
	"healthpredict/monitoring"
	"healthpredict/pipeline"
	"healthpredict/predictor"
	"healthpredict/render"
)

const (
	sourceForm = "form"
	sourceAPI  = "api"
	sourceWS   = "ws"
)

func RegisterPredictHandlers(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", handleIndex)
	mux.HandleFunc("POST /{$}", handleFormSubmit)
	mux.HandleFunc("POST /api/predict", handlePredict)
	mux.HandleFunc("GET /api/schema", handleSchema)
}

// runPrediction calls the predictor and records metrics for source.
func runPrediction(ctx context.Context, source string, row ml.FeatureRow) (predictor.Result, error) {
	if predictionService == nil {
		return predictor.Result{}, fmt.Errorf("%w: %w", errPredictorMissing, predictor.ErrArtifactsUnavailable)
	}

	start := time.Now()
	result, err := predictionService.Predict(ctx, row)
	if err != nil {
		_, kind := classifyError(err)
		if predictionMetrics != nil {
			predictionMetrics.RecordFailure(source, kind)
		}
		return predictor.Result{}, err
	}
	if predictionMetrics != nil {
		predictionMetrics.RecordPrediction(source, result, time.Since(start))
	}
	return result, nil
}

// classifyError maps an error to an HTTP status and a failure kind.
func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, predictor.ErrArtifactsUnavailable):
		return http.StatusServiceUnavailable, monitoring.FailureArtifacts
	case errors.Is(err, pipeline.ErrInvalidInput):
		return http.StatusBadRequest, monitoring.FailureInput
	default:
		return http.StatusInternalServerError, monitoring.FailurePrediction
	}
}

func handleIndex(w http.ResponseWriter, r *http.Request) {
	renderPage(w, r, ml.DefaultRow())
}

func handleFormSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form submission", http.StatusBadRequest)
		return
	}
	renderPage(w, r, rowFromForm(r))
}

func renderPage(w http.ResponseWriter, r *http.Request, row ml.FeatureRow) {
	result, err := runPrediction(r.Context(), sourceForm, row)
	if err != nil && !errors.Is(err, predictor.ErrArtifactsUnavailable) {
		logger.Warn("prediction failed", zap.String("request_id", GetRequestID(r.Context())), zap.Error(err))
	}

	renderer := currentRenderer()
	var resultPtr *predictor.Result
	if err == nil {
		resultPtr = &result
	}

	var buf bytes.Buffer
	if renderErr := renderer.Render(&buf, renderer.NewPage(row, resultPtr, err)); renderErr != nil {
		logger.Error("render page", zap.Error(renderErr))
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

// rowFromForm reads each field, falling back to its default when absent or
// unparsable and clamping it into the widget's range.
func rowFromForm(r *http.Request) ml.FeatureRow {
	schema := ml.InputSchema()
	values := make([]float64, len(schema))
	for i, spec := range schema {
		values[i] = spec.Default
		raw := r.PostFormValue(spec.Name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		values[i] = spec.Clamp(v)
	}
	row, _ := ml.RowFromVector(values)
	return row
}

// predictRequest uses pointers so missing fields can be told apart from zero.
type predictRequest struct {
	Age        *float64 `json:"age"`
	BMI        *float64 `json:"BMI"`
	GammaGTP   *float64 `json:"gamma_GTP"`
	Hemoglobin *float64 `json:"hemoglobin"`
}

func (p predictRequest) row() (ml.FeatureRow, error) {
	fields := []*float64{p.Age, p.BMI, p.GammaGTP, p.Hemoglobin}
	values := make([]float64, len(fields))
	for i, name := range ml.FeatureNames() {
		if fields[i] == nil {
			return ml.FeatureRow{}, &pipeline.InputError{Field: name, Reason: "is required"}
		}
		values[i] = *fields[i]
	}
	return ml.RowFromVector(values)
}

func decodePredictRequest(data []byte) (ml.FeatureRow, error) {
	var req predictRequest
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		return ml.FeatureRow{}, fmt.Errorf("%w: %v", pipeline.ErrInvalidInput, err)
	}
	return req.row()
}

type outcomeResponse struct {
	predictor.Outcome
	Display        string `json:"display"`
	ConfidenceText string `json:"confidence_text"`
}

type predictResponse struct {
	RequestID string          `json:"request_id,omitempty"`
	Input     ml.FeatureRow   `json:"input"`
	Smoking   outcomeResponse `json:"smoking"`
	Drinking  outcomeResponse `json:"drinking"`
}

func newPredictResponse(requestID string, result predictor.Result) predictResponse {
	format := currentRenderer().Formatter()
	outcome := func(o predictor.Outcome) outcomeResponse {
		return outcomeResponse{
			Outcome:        o,
			Display:        render.Label(o.Target, o.Label),
			ConfidenceText: format.Confidence(o.Confidence),
		}
	}
	return predictResponse{
		RequestID: requestID,
		Input:     result.Input,
		Smoking:   outcome(result.Smoking),
		Drinking:  outcome(result.Drinking),
	}
}

func handlePredict(w http.ResponseWriter, r *http.Request) {
	var body bytes.Buffer
	if _, err := body.ReadFrom(r.Body); err != nil {
		respondError(w, r, http.StatusBadRequest, fmt.Errorf("read body: %w", err))
		return
	}
	row, err := decodePredictRequest(body.Bytes())
	if err != nil {
		if predictionMetrics != nil {
			predictionMetrics.RecordFailure(sourceAPI, monitoring.FailureInput)
		}
		respondError(w, r, http.StatusBadRequest, err)
		return
	}

	result, err := runPrediction(r.Context(), sourceAPI, row)
	if err != nil {
		status, _ := classifyError(err)
		if status == http.StatusInternalServerError {
			logger.Error("prediction failed", zap.String("request_id", GetRequestID(r.Context())), zap.Error(err))
			err = errors.New(render.PredictionError(err))
		}
		respondError(w, r, status, err)
		return
	}
	respondJSON(w, http.StatusOK, newPredictResponse(GetRequestID(r.Context()), result))
}

func handleSchema(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"features": ml.FeatureNames(),
		"fields":   ml.InputSchema(),
	})
}
