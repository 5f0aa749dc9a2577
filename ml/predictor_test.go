package ml

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

func newTestPredictor(t *testing.T) *Predictor {
	t.Helper()
	artifacts, err := LoadArtifacts(testdataPaths())
	require.NoError(t, err)
	return NewPredictor(NewRegistry(artifacts), nil)
}

func TestPredictDefaultInput(t *testing.T) {
	p := newTestPredictor(t)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	got, err := p.Predict(context.Background(), DefaultInput())
	require.NoError(t, err)

	// Trees vote 3 and 2; 2.5 rounds half to even.
	require.Equal(t, 2, got.LoadCondition)
	require.Equal(t, fixed, got.CreatedAt)
	require.Len(t, got.Targets, NumTargets)
	require.Equal(t, TargetNames()[0], got.Targets[0].Name)
	require.Equal(t, "W", got.Targets[0].Unit)
	require.InDeltaSlice(t, []float64{50, 42, 0.6, 0.3, 0.5, 61, 0.11, 0.26}, got.Values(), 1e-9)
}

func TestPredictLoadRounding(t *testing.T) {
	p := newTestPredictor(t)
	cases := []struct {
		in   Input
		want int
	}{
		{Input{Voltage: 15, Current: 8}, 4}, // 3.5
		{Input{Voltage: 5, Current: 1}, 2},  // 1.5
		{Input{Voltage: 15, Current: 1}, 2}, // 2.5
		{Input{Voltage: 0, Current: 0}, 2},  // 1.5
	}
	for _, tc := range cases {
		got, err := p.Predict(context.Background(), tc.in)
		require.NoError(t, err)
		require.Equal(t, tc.want, got.LoadCondition, "input %+v", tc.in)
	}
}

func TestPredictIsDeterministic(t *testing.T) {
	p := newTestPredictor(t)
	in := Input{Voltage: 11.37, Current: 4.02}

	first, err := p.Predict(context.Background(), in)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := p.Predict(context.Background(), in)
		require.NoError(t, err)
		if diff := cmp.Diff(first, again, cmpopts.IgnoreFields(Prediction{}, "CreatedAt")); diff != "" {
			t.Fatalf("prediction changed (-first +again):\n%s", diff)
		}
	}
}

func TestPredictRejectsOutOfRange(t *testing.T) {
	p := newTestPredictor(t)
	inputs := []Input{
		{Voltage: -0.01, Current: 1},
		{Voltage: 20.01, Current: 1},
		{Voltage: 1, Current: -1},
		{Voltage: 1, Current: 10.5},
		{Voltage: math.NaN(), Current: 1},
		{Voltage: 1, Current: math.Inf(1)},
	}
	for _, in := range inputs {
		_, err := p.Predict(context.Background(), in)
		require.ErrorIs(t, err, ErrInputOutOfRange, "input %+v", in)
	}
}

func TestPredictAcceptsBounds(t *testing.T) {
	p := newTestPredictor(t)
	for _, in := range []Input{{VoltageMin, CurrentMin}, {VoltageMax, CurrentMax}} {
		_, err := p.Predict(context.Background(), in)
		require.NoError(t, err)
	}
}

func TestPredictWithoutArtifacts(t *testing.T) {
	p := NewPredictor(NewRegistry(nil), nil)
	_, err := p.Predict(context.Background(), DefaultInput())
	require.ErrorIs(t, err, ErrNotLoaded)
}

func TestPredictCancelledContext(t *testing.T) {
	p := newTestPredictor(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Predict(ctx, DefaultInput())
	require.ErrorIs(t, err, context.Canceled)
}
