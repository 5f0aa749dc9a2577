package monitoring

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fuelcell/ml"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestOutcome(t *testing.T) {
	require.Equal(t, OutcomeOK, Outcome(nil))
	require.Equal(t, OutcomeInvalidInput, Outcome(fmt.Errorf("%w: voltage", ml.ErrInputOutOfRange)))
	require.Equal(t, OutcomeNotLoaded, Outcome(ml.ErrNotLoaded))
	require.Equal(t, OutcomeTimeout, Outcome(context.DeadlineExceeded))
	require.Equal(t, OutcomeError, Outcome(errors.New("broken tree")))
}

func TestMetricsObservePrediction(t *testing.T) {
	m := NewMetrics()

	m.ObservePrediction(&ml.Prediction{LoadCondition: 2}, time.Millisecond, nil)
	m.ObservePrediction(&ml.Prediction{LoadCondition: 2}, time.Millisecond, nil)
	m.ObservePrediction(nil, time.Microsecond, ml.ErrInputOutOfRange)

	require.Equal(t, 2.0, testutil.ToFloat64(m.predictions.WithLabelValues(OutcomeOK)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.predictions.WithLabelValues(OutcomeInvalidInput)))
	require.Equal(t, 2.0, testutil.ToFloat64(m.loadClass.WithLabelValues("2")))
}

func TestMetricsReloadAndHandler(t *testing.T) {
	m := NewMetrics()
	hub := NewWebSocketHub(nil)
	m.WatchHub(hub)

	m.SetArtifacts(&ml.Artifacts{Version: "aaaaaaaaaaaa"})
	m.ObserveReload(&ml.Artifacts{Version: "bbbbbbbbbbbb"})
	require.Equal(t, 1.0, testutil.ToFloat64(m.reloads))
	require.Equal(t, 1, testutil.CollectAndCount(m.artifacts))

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	res, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	require.Contains(t, string(body), `fuelcell_artifact_info{version="bbbbbbbbbbbb"} 1`)
	require.Contains(t, string(body), "fuelcell_ws_clients 0")
	require.Contains(t, string(body), "go_goroutines")
}
