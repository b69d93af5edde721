package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

// MetricType 指标类型
type MetricType string

const (
	MetricTypeCounter   MetricType = "counter"
	MetricTypeGauge     MetricType = "gauge"
	MetricTypeHistogram MetricType = "histogram"
)

const historyLimit = 1000

// Metric 指标
type Metric struct {
	Name      string            `json:"name"`
	Type      MetricType        `json:"type"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Help      string            `json:"help,omitempty"`
}

// MetricsCollector 指标收集器，按 name+labels 保存每个序列的历史
type MetricsCollector struct {
	metrics     map[string][]*Metric
	metricsLock sync.RWMutex

	startTime time.Time
}

// NewMetricsCollector 创建指标收集器
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		metrics:   make(map[string][]*Metric),
		startTime: time.Now(),
	}
}

// Start 定期收集系统指标，直到 ctx 结束
func (mc *MetricsCollector) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				mc.collectMemoryMetrics()
				mc.collectGoroutineMetrics()
			}
		}
	}()
}

func seriesKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	return name + "{" + formatLabels(labels) + "}"
}

func formatLabels(labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = fmt.Sprintf(`%s="%s"`, k, labels[k])
	}
	return strings.Join(pairs, ",")
}

// RecordMetric 记录指标
func (mc *MetricsCollector) RecordMetric(metric *Metric) {
	mc.metricsLock.Lock()
	defer mc.metricsLock.Unlock()
	mc.record(metric)
}

func (mc *MetricsCollector) record(metric *Metric) {
	metric.Timestamp = time.Now()
	key := seriesKey(metric.Name, metric.Labels)
	mc.metrics[key] = append(mc.metrics[key], metric)

	// 限制历史大小
	if len(mc.metrics[key]) > historyLimit {
		mc.metrics[key] = mc.metrics[key][100:]
	}
}

// GetMetric 获取指标序列的副本
func (mc *MetricsCollector) GetMetric(name string, labels map[string]string) ([]*Metric, error) {
	mc.metricsLock.RLock()
	defer mc.metricsLock.RUnlock()

	metrics, ok := mc.metrics[seriesKey(name, labels)]
	if !ok {
		return nil, fmt.Errorf("metric %s not found", seriesKey(name, labels))
	}

	result := make([]*Metric, len(metrics))
	for i, m := range metrics {
		metricCopy := *m
		result[i] = &metricCopy
	}
	return result, nil
}

// GetAllMetrics 获取所有指标
func (mc *MetricsCollector) GetAllMetrics() map[string][]*Metric {
	mc.metricsLock.RLock()
	defer mc.metricsLock.RUnlock()

	result := make(map[string][]*Metric, len(mc.metrics))
	for key, metrics := range mc.metrics {
		metricCopy := make([]*Metric, len(metrics))
		for i, m := range metrics {
			m := *m
			metricCopy[i] = &m
		}
		result[key] = metricCopy
	}
	return result
}

// Summary 指标摘要
type Summary struct {
	Name      string    `json:"name"`
	Count     int       `json:"count"`
	Latest    float64   `json:"latest"`
	Min       float64   `json:"min"`
	Max       float64   `json:"max"`
	Average   float64   `json:"average"`
	Timestamp time.Time `json:"timestamp"`
}

// GetMetricSummary 获取指标摘要
func (mc *MetricsCollector) GetMetricSummary(name string, labels map[string]string) (Summary, error) {
	metrics, err := mc.GetMetric(name, labels)
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{Name: seriesKey(name, labels), Count: len(metrics)}
	if len(metrics) == 0 {
		return summary, nil
	}

	summary.Latest = metrics[len(metrics)-1].Value
	summary.Timestamp = metrics[len(metrics)-1].Timestamp
	summary.Min = metrics[0].Value
	summary.Max = metrics[0].Value
	sum := 0.0
	for _, m := range metrics {
		sum += m.Value
		if m.Value < summary.Min {
			summary.Min = m.Value
		}
		if m.Value > summary.Max {
			summary.Max = m.Value
		}
	}
	summary.Average = sum / float64(len(metrics))
	return summary, nil
}

func (mc *MetricsCollector) collectMemoryMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	mc.SetGauge("memory_heap_alloc", float64(m.HeapAlloc), nil)
	mc.SetGauge("memory_heap_sys", float64(m.HeapSys), nil)
}

func (mc *MetricsCollector) collectGoroutineMetrics() {
	mc.SetGauge("system_goroutines", float64(runtime.NumGoroutine()), nil)
}

// IncrCounter 累加计数器
func (mc *MetricsCollector) IncrCounter(name string, delta float64, labels map[string]string) {
	mc.metricsLock.Lock()
	defer mc.metricsLock.Unlock()

	value := delta
	if history := mc.metrics[seriesKey(name, labels)]; len(history) > 0 {
		value += history[len(history)-1].Value
	}
	mc.record(&Metric{Name: name, Type: MetricTypeCounter, Value: value, Labels: labels})
}

// SetGauge 设置仪表
func (mc *MetricsCollector) SetGauge(name string, value float64, labels map[string]string) {
	mc.RecordMetric(&Metric{Name: name, Type: MetricTypeGauge, Value: value, Labels: labels})
}

// RecordHistogram 记录一次观测值
func (mc *MetricsCollector) RecordHistogram(name string, value float64, labels map[string]string) {
	mc.RecordMetric(&Metric{Name: name, Type: MetricTypeHistogram, Value: value, Labels: labels})
}

// ExportPrometheus 导出Prometheus文本格式（每个序列的最新值）
func (mc *MetricsCollector) ExportPrometheus() string {
	metrics := mc.GetAllMetrics()
	keys := make([]string, 0, len(metrics))
	for key := range metrics {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	described := make(map[string]bool)
	for _, key := range keys {
		list := metrics[key]
		if len(list) == 0 {
			continue
		}
		metric := list[len(list)-1]
		if !described[metric.Name] {
			help := metric.Help
			if help == "" {
				help = fmt.Sprintf("Metric %s", metric.Name)
			}
			fmt.Fprintf(&b, "# HELP %s %s\n", metric.Name, help)
			fmt.Fprintf(&b, "# TYPE %s %s\n", metric.Name, prometheusType(metric.Type))
			described[metric.Name] = true
		}
		fmt.Fprintf(&b, "%s %g %d\n", key, metric.Value, metric.Timestamp.UnixMilli())
	}
	return b.String()
}

func prometheusType(t MetricType) string {
	if t == MetricTypeHistogram {
		return "untyped"
	}
	return string(t)
}

// ExportJSON 导出JSON格式
func (mc *MetricsCollector) ExportJSON() (string, error) {
	data, err := json.MarshalIndent(mc.GetAllMetrics(), "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// GetUptime 获取运行时间
func (mc *MetricsCollector) GetUptime() time.Duration {
	return time.Since(mc.startTime)
}

// GetSystemStats 获取系统统计
func (mc *MetricsCollector) GetSystemStats() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]interface{}{
		"uptime":     mc.GetUptime().String(),
		"goroutines": runtime.NumGoroutine(),
		"memory": map[string]interface{}{
			"alloc":      m.Alloc,
			"sys":        m.Sys,
			"heap_alloc": m.HeapAlloc,
			"heap_inuse": m.HeapInuse,
			"gc_count":   m.NumGC,
		},
		"num_cpu": runtime.NumCPU(),
	}
}
