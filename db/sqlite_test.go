package db

import (
	"path/filepath"
	"testing"
	"time"

	"fuelcell/ml"

	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := InitDB(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func prediction(voltage float64, at time.Time) *ml.Prediction {
	p := &ml.Prediction{
		Input:           ml.Input{Voltage: voltage, Current: 2},
		LoadCondition:   3,
		ArtifactVersion: "abc123def456",
		CreatedAt:       at,
	}
	for i, target := range ml.Targets() {
		p.Targets = append(p.Targets, ml.TargetValue{Name: target.Name, Unit: target.Unit, Value: float64(i) + 0.5})
	}
	return p
}

func TestSaveAndLoadPredictions(t *testing.T) {
	d := openTestDB(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, d.SavePrediction(prediction(5, base)))
	require.NoError(t, d.SavePrediction(prediction(6, base.Add(time.Minute))))
	require.NoError(t, d.SavePrediction(prediction(7, base.Add(2*time.Minute))))

	got, err := d.RecentPredictions(2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, 7.0, got[0].Voltage)
	require.Equal(t, 6.0, got[1].Voltage)
	require.Equal(t, 3, got[0].LoadCondition)
	require.Len(t, got[0].Targets, ml.NumTargets)
	require.Equal(t, "Power Output", got[0].Targets[0].Name)
	require.True(t, got[0].CreatedAt.Equal(base.Add(2*time.Minute)))
}

func TestInitDBIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	first, err := InitDB(path)
	require.NoError(t, err)
	require.NoError(t, first.SavePrediction(prediction(5, time.Now())))
	require.NoError(t, first.Close())

	second, err := InitDB(path)
	require.NoError(t, err)
	defer second.Close()
	got, err := second.RecentPredictions(10)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestSavePredictionRejectsNil(t *testing.T) {
	d := openTestDB(t)
	require.Error(t, d.SavePrediction(nil))
}
