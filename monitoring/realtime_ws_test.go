package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fuelcell/ml"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestHubBroadcastsPredictions(t *testing.T) {
	hub := NewWebSocketHub(nil)
	go hub.Start()
	defer hub.Stop()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	prediction := &ml.Prediction{
		Input:           ml.Input{Voltage: 7.5, Current: 6.5},
		LoadCondition:   2,
		ArtifactVersion: "v1",
	}
	require.NoError(t, hub.PublishPrediction(prediction))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(raw, &msg))
	require.Equal(t, PredictionMade, msg.Type)
	require.NotEmpty(t, msg.ID)

	var got ml.Prediction
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	require.Equal(t, 2, got.LoadCondition)
	require.Equal(t, 7.5, got.Voltage)

	require.Eventually(t, func() bool { return hub.Stats().MessagesSent == 1 }, time.Second, 10*time.Millisecond)
}

func TestHubUnregistersClosedClients(t *testing.T) {
	hub := NewWebSocketHub(nil)
	go hub.Start()
	defer hub.Stop()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubSendsHeartbeats(t *testing.T) {
	hub := NewWebSocketHub(nil)
	hub.heartbeat = 20 * time.Millisecond
	go hub.Start()
	defer hub.Stop()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(raw, &msg))
	require.Equal(t, Heartbeat, msg.Type)

	var stats HubStats
	require.NoError(t, json.Unmarshal(msg.Data, &stats))
	require.Equal(t, 1, stats.ConnectedClients)
	require.False(t, stats.StartTime.IsZero())
}

func TestPublishReload(t *testing.T) {
	hub := NewWebSocketHub(nil)
	require.NoError(t, hub.PublishReload(&ml.Artifacts{Version: "abc"}))

	select {
	case raw := <-hub.broadcast:
		var msg Message
		require.NoError(t, json.Unmarshal(raw, &msg))
		require.Equal(t, ArtifactsReloaded, msg.Type)
		require.JSONEq(t, `{"version":"abc"}`, string(msg.Data))
	default:
		t.Fatal("expected queued message")
	}
}
