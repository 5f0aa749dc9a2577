package report

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"testing"

	"fuelcell/ml"
	"fuelcell/stack"

	"github.com/stretchr/testify/require"
)

var twoDecimals = regexp.MustCompile(`^-?\d+\.\d{2}$`)

func samplePrediction() *ml.Prediction {
	values := []float64{50, 42.123, 0.6, 0.3, 0.5, 61.987, 0.11, 0.26}
	p := &ml.Prediction{
		Input:         ml.Input{Voltage: 7.5, Current: 6.5},
		LoadCondition: 2,
	}
	for i, t := range ml.Targets() {
		p.Targets = append(p.Targets, ml.TargetValue{Name: t.Name, Unit: t.Unit, Value: values[i]})
	}
	return p
}

func TestFormatterTwoDecimals(t *testing.T) {
	f, err := NewFormatter("en")
	require.NoError(t, err)

	require.Equal(t, "42.12", f.Value(42.123))
	require.Equal(t, "0.60", f.Value(0.6))
	require.Equal(t, "-3.00", f.Value(-3))
	require.Equal(t, "1234.57", f.Value(1234.5678))
	require.Equal(t, "123456.79", f.Value(123456.789))
	for _, v := range []float64{0, 0.004, 7.777, 99.5, 123456.789} {
		require.Regexp(t, twoDecimals, f.Value(v))
	}
}

func TestFormatterLocaleDecimalMark(t *testing.T) {
	de, err := NewFormatter("de")
	require.NoError(t, err)
	require.Equal(t, "1234,57", de.Value(1234.5678))
	require.Equal(t, "-3,00", de.Value(-3))

	en, err := NewFormatter("en")
	require.NoError(t, err)
	// Same rounding as %.2f on the binary value.
	require.Equal(t, fmt.Sprintf("%.2f", 2.675), en.Value(2.675))
}

func TestNewFormatterRejectsBadLocale(t *testing.T) {
	_, err := NewFormatter("not a locale!")
	require.Error(t, err)
}

func TestRows(t *testing.T) {
	f, err := NewFormatter("")
	require.NoError(t, err)
	ref := stack.Defaults().Estimate(7.5, 6.5)

	rows := f.Rows(samplePrediction(), &ref)
	require.Len(t, rows, ml.NumTargets)
	require.Equal(t, "Power Output", rows[0].Variable)
	require.Equal(t, "50.00", rows[0].Predicted)
	require.Equal(t, "48.75", rows[0].Reference)
	for _, row := range rows {
		require.Regexp(t, twoDecimals, row.Predicted)
		require.Regexp(t, twoDecimals, row.Reference)
	}

	plain := f.Rows(samplePrediction(), nil)
	require.Empty(t, plain[0].Reference)
}

func TestWriteText(t *testing.T) {
	f, err := NewFormatter("en")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.WriteText(&buf, samplePrediction(), nil))
	out := buf.String()
	require.True(t, strings.HasPrefix(out, "Predicted Load Condition: 2\n"))
	for _, name := range ml.TargetNames() {
		require.Contains(t, out, name)
	}
	require.Contains(t, out, "61.99")
	require.NotContains(t, out, "Reference")

	buf.Reset()
	ref := stack.Defaults().Estimate(7.5, 6.5)
	require.NoError(t, f.WriteText(&buf, samplePrediction(), &ref))
	require.Contains(t, buf.String(), "Reference")
}

func TestRenderHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderHTML(&buf, samplePrediction(), ChartOptions{}))
	out := buf.String()
	require.Contains(t, out, "Predicted Values")
	require.Contains(t, out, "Hydrogen Consumption Rate")
	require.Contains(t, out, "echarts")
}

func TestRenderPNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderPNG(&buf, samplePrediction()))
	require.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG\r\n\x1a\n")))
}
