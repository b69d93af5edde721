// Package render turns prediction results into the strings and HTML page users see.
package render

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"healthpredict/predictor"
)

const (
	Title         = "🚭🍷 Smoking & Drinking Status Predictor"
	Intro         = "Use this tool to predict smoking and drinking status based on biometric inputs."
	SidebarHeader = "📋 Enter Your Health Info"
	ResultsHeader = "🔍 Prediction Results"
	Disclaimer    = "📌 This tool is for educational purposes only and does not replace medical advice."
)

var displayLabels = map[predictor.Target][2]string{
	predictor.TargetSmoking:  {"✅ Non-Smoker", "🚬 Smoker"},
	predictor.TargetDrinking: {"✅ Non-Drinker", "🍷 Drinker"},
}

var metricTitles = map[predictor.Target]string{
	predictor.TargetSmoking:  "Smoking Status",
	predictor.TargetDrinking: "Drinking Status",
}

// Label maps a binary prediction to its display string. Any non-zero label is
// treated as the positive class.
func Label(target predictor.Target, label int) string {
	labels, ok := displayLabels[target]
	if !ok {
		return ""
	}
	if label == 0 {
		return labels[0]
	}
	return labels[1]
}

// MetricTitle is the caption shown above a target's label.
func MetricTitle(target predictor.Target) string {
	return metricTitles[target]
}

// Formatter renders numbers for one locale.
type Formatter struct {
	tag     language.Tag
	printer *message.Printer
}

// NewFormatter parses lang as a BCP 47 tag; an empty or invalid tag falls back to English.
func NewFormatter(lang string) *Formatter {
	tag := language.English
	if lang != "" {
		if parsed, err := language.Parse(lang); err == nil {
			tag = parsed
		}
	}
	return &Formatter{tag: tag, printer: message.NewPrinter(tag)}
}

func (f *Formatter) Language() language.Tag {
	return f.tag
}

// Confidence formats a probability with two decimals, e.g. "Confidence: 0.87".
func (f *Formatter) Confidence(value float64) string {
	return f.printer.Sprintf("Confidence: %.2f", value)
}

// PredictionError formats a failed prediction for display.
func PredictionError(err error) string {
	return "⚠️ Error during prediction: " + err.Error()
}
