package report

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"fuelcell/ml"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

var barColor = color.RGBA{R: 0x21, G: 0x96, B: 0xf3, A: 0xff}

// ChartOptions tune the rendered charts.
type ChartOptions struct {
	AssetsHost string
	Width      string
	Height     string
}

func axisLabels(p *ml.Prediction) []string {
	labels := make([]string, len(p.Targets))
	for i, t := range p.Targets {
		labels[i] = fmt.Sprintf("%s (%s)", t.Name, t.Unit)
	}
	return labels
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// BarChart builds an interactive bar chart of the predicted targets.
func BarChart(p *ml.Prediction, o ChartOptions) *charts.Bar {
	if o.Width == "" {
		o.Width = "100%"
	}
	if o.Height == "" {
		o.Height = "480px"
	}
	initOpts := opts.Initialization{PageTitle: "Predicted Values", Width: o.Width, Height: o.Height}
	if o.AssetsHost != "" {
		initOpts.AssetsHost = o.AssetsHost
	}

	data := make([]opts.BarData, len(p.Targets))
	for i, t := range p.Targets {
		data[i] = opts.BarData{Value: round2(t.Value)}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts),
		charts.WithTitleOpts(opts.Title{
			Title:    "Predicted Values",
			Subtitle: fmt.Sprintf("V=%.2f V  I=%.2f A  load condition %d", p.Voltage, p.Current, p.LoadCondition),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(axisLabels(p)).
		AddSeries("prediction", data,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: "#2196F3"}),
		)
	return bar
}

// RenderHTML writes a standalone HTML page containing the bar chart.
func RenderHTML(w io.Writer, p *ml.Prediction, o ChartOptions) error {
	if err := BarChart(p, o).Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

// RenderPNG writes a static PNG bar chart of the predicted targets.
func RenderPNG(w io.Writer, p *ml.Prediction) error {
	values := make(plotter.Values, len(p.Targets))
	for i, t := range p.Targets {
		values[i] = round2(t.Value)
	}

	pl := plot.New()
	pl.Title.Text = fmt.Sprintf("Predicted Values (load condition %d)", p.LoadCondition)
	pl.Y.Label.Text = "Predicted value"

	bars, err := plotter.NewBarChart(values, vg.Points(28))
	if err != nil {
		return fmt.Errorf("build bar chart: %w", err)
	}
	bars.Color = barColor
	bars.LineStyle.Width = vg.Length(0)
	pl.Add(bars)
	pl.NominalX(axisLabels(p)...)
	pl.X.Tick.Label.Rotation = math.Pi / 6
	pl.X.Tick.Label.XAlign = draw.XRight
	pl.X.Tick.Label.YAlign = draw.YCenter

	wt, err := pl.WriterTo(12*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("encode chart: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write chart: %w", err)
	}
	return nil
}
