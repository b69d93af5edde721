package pipeline

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"healthpredict/ml"

	"go.uber.org/zap"
)

// ErrInvalidInput 所有 InputError 都包装此错误
var ErrInvalidInput = errors.New("invalid input")

// InputError 输入校验错误，记录未通过规则的字段
type InputError struct {
	Field  string
	Value  float64
	Min    float64
	Max    float64
	Reason string
}

func (e *InputError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("%s=%g outside [%g, %g]", e.Field, e.Value, e.Min, e.Max)
}

func (e *InputError) Unwrap() error {
	return ErrInvalidInput
}

// CleaningRule 清洗规则
type CleaningRule interface {
	Apply(row ml.FeatureRow) error
	Name() string
}

// QualityIssue 质量问题
type QualityIssue struct {
	Rule      string    `json:"rule"`
	Row       int       `json:"row"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// CleaningStats 清洗统计
type CleaningStats struct {
	TotalProcessed int64            `json:"total_processed"`
	Passed         int64            `json:"passed"`
	Rejected       int64            `json:"rejected"`
	Issues         map[string]int64 `json:"issues"`
	LastClean      time.Time        `json:"last_clean"`
}

// DataCleaner 数据清洗器，校验表单输入并过滤训练数据
type DataCleaner struct {
	rules  []CleaningRule
	logger *zap.Logger

	stats     CleaningStats
	statsLock sync.RWMutex
}

// NewDataCleaner 创建数据清洗器
func NewDataCleaner(logger *zap.Logger) *DataCleaner {
	if logger == nil {
		logger = zap.NewNop()
	}
	cleaner := &DataCleaner{
		logger: logger,
		stats: CleaningStats{
			Issues: make(map[string]int64),
		},
	}
	cleaner.AddRule(NewFiniteValueRule())
	cleaner.AddRule(NewRangeRule(ml.InputSchema()))
	return cleaner
}

// AddRule 添加清洗规则，按添加顺序执行
func (dc *DataCleaner) AddRule(rule CleaningRule) {
	dc.rules = append(dc.rules, rule)
	dc.logger.Debug("added cleaning rule", zap.String("rule", rule.Name()))
}

// Check 返回单行数据第一个未通过的规则错误
func (dc *DataCleaner) Check(row ml.FeatureRow) error {
	for _, rule := range dc.rules {
		if err := rule.Apply(row); err != nil {
			return err
		}
	}
	return nil
}

// Clean 清洗数据，只保留通过所有规则的行，标签与行保持对齐
func (dc *DataCleaner) Clean(data ml.Dataset) (ml.Dataset, []QualityIssue) {
	var cleaned ml.Dataset
	var issues []QualityIssue

	dc.statsLock.Lock()
	defer dc.statsLock.Unlock()

	for i, row := range data.Rows {
		dc.stats.TotalProcessed++

		var rowIssues []QualityIssue
		for _, rule := range dc.rules {
			if err := rule.Apply(row); err != nil {
				rowIssues = append(rowIssues, QualityIssue{
					Rule:      rule.Name(),
					Row:       i,
					Message:   err.Error(),
					Timestamp: time.Now(),
				})
				dc.stats.Issues[rule.Name()]++
			}
		}

		if len(rowIssues) > 0 {
			dc.stats.Rejected++
			issues = append(issues, rowIssues...)
			continue
		}
		dc.stats.Passed++
		cleaned.Append(row, data.Smoking[i], data.Drinking[i])
	}

	dc.stats.LastClean = time.Now()
	if len(issues) > 0 {
		dc.logger.Info("dataset cleaned",
			zap.Int("kept", cleaned.Len()),
			zap.Int("rejected", data.Len()-cleaned.Len()),
		)
	}
	return cleaned, issues
}

// GetStats 获取统计信息
func (dc *DataCleaner) GetStats() CleaningStats {
	dc.statsLock.RLock()
	defer dc.statsLock.RUnlock()

	stats := dc.stats
	stats.Issues = make(map[string]int64, len(dc.stats.Issues))
	for k, v := range dc.stats.Issues {
		stats.Issues[k] = v
	}
	return stats
}

// ============ 清洗规则实现 ============

// FiniteValueRule 有限值规则，拒绝 NaN 和无穷大
type FiniteValueRule struct{}

func NewFiniteValueRule() *FiniteValueRule {
	return &FiniteValueRule{}
}

func (r *FiniteValueRule) Name() string {
	return "finite_value"
}

func (r *FiniteValueRule) Apply(row ml.FeatureRow) error {
	names := ml.FeatureNames()
	for i, value := range ml.FeatureVector(row) {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return &InputError{Field: names[i], Value: value, Reason: "must be a finite number"}
		}
	}
	return nil
}

// RangeRule 范围验证规则，拒绝超出输入控件范围的值
type RangeRule struct {
	Fields []ml.FieldSpec
}

func NewRangeRule(fields []ml.FieldSpec) *RangeRule {
	return &RangeRule{Fields: fields}
}

func (r *RangeRule) Name() string {
	return "range_validation"
}

func (r *RangeRule) Apply(row ml.FeatureRow) error {
	for _, field := range r.Fields {
		value, err := row.Value(field.Name)
		if err != nil {
			return err
		}
		if !field.Contains(value) {
			return &InputError{Field: field.Name, Value: value, Min: field.Min, Max: field.Max}
		}
	}
	return nil
}
