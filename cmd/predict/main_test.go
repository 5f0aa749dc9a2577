package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	fhttp "fuelcell/http"
	"fuelcell/ml"
	"fuelcell/report"
	"fuelcell/stack"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

func TestParseInput(t *testing.T) {
	cases := []struct {
		line    string
		want    ml.Input
		wantErr bool
	}{
		{line: "7.5 6.5", want: ml.Input{Voltage: 7.5, Current: 6.5}},
		{line: "12,3.25", want: ml.Input{Voltage: 12, Current: 3.25}},
		{line: "1\t2", want: ml.Input{Voltage: 1, Current: 2}},
		{line: "7.5", wantErr: true},
		{line: "a 1", wantErr: true},
		{line: "1 2 3", wantErr: true},
	}
	for _, tc := range cases {
		got, err := parseInput(tc.line)
		if tc.wantErr {
			require.Error(t, err, tc.line)
			continue
		}
		require.NoError(t, err, tc.line)
		require.Equal(t, tc.want, got)
	}
}

func TestRunInteractive(t *testing.T) {
	formatter, err := report.NewFormatter("en")
	require.NoError(t, err)

	var seen []ml.Input
	predict := func(ctx context.Context, in ml.Input) (*ml.Prediction, *stack.Reference, error) {
		seen = append(seen, in)
		if in.Voltage > ml.VoltageMax {
			return nil, nil, errors.New("voltage out of range")
		}
		return &ml.Prediction{Input: in, LoadCondition: 3}, nil, nil
	}

	var out strings.Builder
	in := strings.NewReader("7.5 6.5\n\nbogus\n30 1\nquit\n1 1\n")
	require.NoError(t, runInteractive(context.Background(), in, &out, predict, formatter))

	require.Equal(t, []ml.Input{{Voltage: 7.5, Current: 6.5}, {Voltage: 30, Current: 1}}, seen)
	require.Contains(t, out.String(), "Predicted Load Condition: 3")
	require.Contains(t, out.String(), `error: expected "voltage current", got "bogus"`)
	require.Contains(t, out.String(), "error: voltage out of range")
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	dir := filepath.Join("..", "..", "ml", "testdata")
	artifacts, err := ml.LoadArtifacts(ml.ArtifactPaths{
		Scaler:      filepath.Join(dir, "scaler.json"),
		LoadModel:   filepath.Join(dir, "load_model.json"),
		TargetModel: filepath.Join(dir, "target_model.json"),
	})
	require.NoError(t, err)
	registry := ml.NewRegistry(artifacts)

	handlers, err := fhttp.NewHandlers(fhttp.Options{
		Predictor: ml.NewPredictor(registry, nil),
		Registry:  registry,
		Stack:     stack.Defaults(),
	})
	require.NoError(t, err)
	mux := http.NewServeMux()
	handlers.Register(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRemotePredictor(t *testing.T) {
	srv := newTestServer(t)
	params := stack.Defaults()
	predict := remotePredictor(resty.New().SetBaseURL(srv.URL), params)

	prediction, ref, err := predict(context.Background(), ml.DefaultInput())
	require.NoError(t, err)
	require.Equal(t, 2, prediction.LoadCondition)
	require.Len(t, prediction.Targets, ml.NumTargets)
	require.InDelta(t, 50, prediction.Targets[0].Value, 1e-9)
	require.InDelta(t, params.Estimate(7.5, 6.5).PowerOutput, ref.PowerOutput, 1e-9)

	_, _, err = predict(context.Background(), ml.Input{Voltage: 21, Current: 1})
	require.Error(t, err)
	require.Contains(t, err.Error(), "server returned 400")
	require.Contains(t, err.Error(), "voltage 21 not in")
}
