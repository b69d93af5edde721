package render

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"strconv"

	"healthpredict/ml"
	"healthpredict/predictor"
)

//go:embed templates/*.html
var templateFS embed.FS

// Field is one form widget with its current value.
type Field struct {
	ml.FieldSpec
	Value float64
}

// InputType is the HTML input type for the widget kind.
func (f Field) InputType() string {
	if f.Widget == ml.WidgetSlider {
		return "range"
	}
	return "number"
}

func (f Field) FormatValue() string {
	return formatNumber(f.Value, f.Step)
}

func (f Field) FormatMin() string {
	return formatNumber(f.Min, f.Step)
}

func (f Field) FormatMax() string {
	return formatNumber(f.Max, f.Step)
}

func (f Field) FormatStep() string {
	return strconv.FormatFloat(f.Step, 'f', -1, 64)
}

// Metric is one result column.
type Metric struct {
	Target     predictor.Target
	Title      string
	Value      string
	Confidence string
}

// Page is everything the template needs for one render.
type Page struct {
	Title         string
	Intro         string
	SidebarHeader string
	ResultsHeader string
	Disclaimer    string
	Fields        []Field
	ArtifactError string
	ErrorMessage  string
	Metrics       []Metric
}

// Ready reports whether the prediction section is shown.
func (p *Page) Ready() bool {
	return p.ArtifactError == ""
}

// Renderer executes the embedded page template.
type Renderer struct {
	tmpl   *template.Template
	format *Formatter
}

func NewRenderer(format *Formatter) (*Renderer, error) {
	if format == nil {
		format = NewFormatter("")
	}
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl, format: format}, nil
}

func (r *Renderer) Formatter() *Formatter {
	return r.format
}

// NewPage builds the page for row. err is the outcome of the prediction;
// an artifact error hides the prediction section.
func (r *Renderer) NewPage(row ml.FeatureRow, result *predictor.Result, err error) *Page {
	page := &Page{
		Title:         Title,
		Intro:         Intro,
		SidebarHeader: SidebarHeader,
		ResultsHeader: ResultsHeader,
		Disclaimer:    Disclaimer,
	}
	for _, spec := range ml.InputSchema() {
		value, _ := row.Value(spec.Name)
		page.Fields = append(page.Fields, Field{FieldSpec: spec, Value: value})
	}

	switch {
	case errors.Is(err, predictor.ErrArtifactsUnavailable):
		page.ArtifactError = "❌ " + err.Error()
	case err != nil:
		page.ErrorMessage = PredictionError(err)
	case result != nil:
		page.Metrics = []Metric{
			r.metric(result.Smoking),
			r.metric(result.Drinking),
		}
	}
	return page
}

func (r *Renderer) metric(outcome predictor.Outcome) Metric {
	return Metric{
		Target:     outcome.Target,
		Title:      MetricTitle(outcome.Target),
		Value:      Label(outcome.Target, outcome.Label),
		Confidence: r.format.Confidence(outcome.Confidence),
	}
}

// Render writes the full HTML page.
func (r *Renderer) Render(w io.Writer, page *Page) error {
	return r.tmpl.ExecuteTemplate(w, "page.html", page)
}

// RenderResults writes only the results section, for live updates.
func (r *Renderer) RenderResults(w io.Writer, page *Page) error {
	return r.tmpl.ExecuteTemplate(w, "results", page)
}

func formatNumber(value, step float64) string {
	if step >= 1 {
		return strconv.FormatFloat(value, 'f', 0, 64)
	}
	return strconv.FormatFloat(value, 'f', 1, 64)
}
