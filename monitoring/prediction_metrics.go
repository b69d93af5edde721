package monitoring

import (
	"sync"
	"time"

	"healthpredict/predictor"
)

// Failure kinds recorded by RecordFailure.
const (
	FailureArtifacts  = "artifacts"
	FailureInput      = "invalid_input"
	FailurePrediction = "prediction"
)

// PredictionMetrics 预测业务指标
type PredictionMetrics struct {
	collector *MetricsCollector

	metricsLock sync.RWMutex
	total       int64
	bySource    map[string]int64
	failures    map[string]int64
	positives   map[predictor.Target]int64
	latencyMax  time.Duration
	latencySum  time.Duration
}

// PredictionStats 预测统计快照
type PredictionStats struct {
	Total        int64                      `json:"total"`
	BySource     map[string]int64           `json:"by_source"`
	Failures     map[string]int64           `json:"failures"`
	Positives    map[predictor.Target]int64 `json:"positives"`
	AvgLatencyMs float64                    `json:"avg_latency_ms"`
	MaxLatencyMs float64                    `json:"max_latency_ms"`
}

// NewPredictionMetrics 创建预测指标；collector 可为 nil
func NewPredictionMetrics(collector *MetricsCollector) *PredictionMetrics {
	return &PredictionMetrics{
		collector: collector,
		bySource:  make(map[string]int64),
		failures:  make(map[string]int64),
		positives: make(map[predictor.Target]int64),
	}
}

func (pm *PredictionMetrics) Collector() *MetricsCollector {
	return pm.collector
}

// RecordPrediction 记录一次成功预测
func (pm *PredictionMetrics) RecordPrediction(source string, result predictor.Result, elapsed time.Duration) {
	pm.metricsLock.Lock()
	pm.total++
	pm.bySource[source]++
	for _, outcome := range []predictor.Outcome{result.Smoking, result.Drinking} {
		if outcome.Label == 1 {
			pm.positives[outcome.Target]++
		}
	}
	pm.latencySum += elapsed
	if elapsed > pm.latencyMax {
		pm.latencyMax = elapsed
	}
	pm.metricsLock.Unlock()

	if pm.collector != nil {
		pm.collector.IncrCounter("predictions_total", 1, map[string]string{"source": source})
		pm.collector.RecordHistogram("prediction_latency_ms", float64(elapsed)/float64(time.Millisecond), nil)
		pm.collector.SetGauge("prediction_confidence", result.Smoking.Confidence, map[string]string{"target": string(predictor.TargetSmoking)})
		pm.collector.SetGauge("prediction_confidence", result.Drinking.Confidence, map[string]string{"target": string(predictor.TargetDrinking)})
	}
}

// RecordFailure 记录一次失败
func (pm *PredictionMetrics) RecordFailure(source, kind string) {
	pm.metricsLock.Lock()
	pm.failures[kind]++
	pm.metricsLock.Unlock()

	if pm.collector != nil {
		pm.collector.IncrCounter("prediction_failures_total", 1, map[string]string{"source": source, "kind": kind})
	}
}

// Stats 获取统计快照
func (pm *PredictionMetrics) Stats() PredictionStats {
	pm.metricsLock.RLock()
	defer pm.metricsLock.RUnlock()

	stats := PredictionStats{
		Total:        pm.total,
		BySource:     make(map[string]int64, len(pm.bySource)),
		Failures:     make(map[string]int64, len(pm.failures)),
		Positives:    make(map[predictor.Target]int64, len(pm.positives)),
		MaxLatencyMs: float64(pm.latencyMax) / float64(time.Millisecond),
	}
	for k, v := range pm.bySource {
		stats.BySource[k] = v
	}
	for k, v := range pm.failures {
		stats.Failures[k] = v
	}
	for k, v := range pm.positives {
		stats.Positives[k] = v
	}
	if pm.total > 0 {
		stats.AvgLatencyMs = float64(pm.latencySum) / float64(pm.total) / float64(time.Millisecond)
	}
	return stats
}
