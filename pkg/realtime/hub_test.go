package realtime_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ramsey-B/aster/pkg/events"
	"github.com/Ramsey-B/aster/pkg/kafka"
	"github.com/Ramsey-B/aster/pkg/realtime"
)

func getTestLogger() ectologger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

// connectClient upgrades a loopback connection and registers its server side
// with the hub, returning the client side to read broadcasts from.
func connectClient(t *testing.T, hub *realtime.Hub, tenantID, pipelineID string) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		hub.Register(conn, tenantID, pipelineID)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) *events.BoardEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	event, err := events.ParseBoardEvent(data)
	require.NoError(t, err)
	return event
}

func assertNoEvent(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err, "expected no event to arrive")
}

func waitForClients(t *testing.T, hub *realtime.Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return hub.ClientCount() == n
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHubBroadcastsToSubscribers(t *testing.T) {
	hub := realtime.NewHub(getTestLogger())
	defer hub.Shutdown()

	conn := connectClient(t, hub, "tenant-1", "pipe-1")
	waitForClients(t, hub, 1)

	hub.Broadcast(&events.BoardEvent{
		Type:       events.TypeDealStageUpdated,
		TenantID:   "tenant-1",
		PipelineID: "pipe-1",
		DealID:     "deal-1",
	})

	event := readEvent(t, conn)
	assert.Equal(t, events.TypeDealStageUpdated, event.Type)
	assert.Equal(t, "deal-1", event.DealID)
}

func TestHubFiltersByTenantAndPipeline(t *testing.T) {
	hub := realtime.NewHub(getTestLogger())
	defer hub.Shutdown()

	otherTenant := connectClient(t, hub, "tenant-2", "")
	otherPipeline := connectClient(t, hub, "tenant-1", "pipe-2")
	wholeTenant := connectClient(t, hub, "tenant-1", "")
	waitForClients(t, hub, 3)

	hub.Broadcast(&events.BoardEvent{
		Type:       events.TypeDealUpdated,
		TenantID:   "tenant-1",
		PipelineID: "pipe-1",
	})

	// An empty pipeline subscription receives the whole tenant's boards.
	event := readEvent(t, wholeTenant)
	assert.Equal(t, events.TypeDealUpdated, event.Type)

	assertNoEvent(t, otherTenant)
	assertNoEvent(t, otherPipeline)
}

func TestHubHandleMessage(t *testing.T) {
	hub := realtime.NewHub(getTestLogger())
	defer hub.Shutdown()

	conn := connectClient(t, hub, "tenant-1", "")
	waitForClients(t, hub, 1)

	event := &events.BoardEvent{
		Type:       events.TypeStagesReordered,
		TenantID:   "tenant-1",
		PipelineID: "pipe-1",
	}
	data, err := event.ToJSON()
	require.NoError(t, err)

	err = hub.HandleMessage(context.Background(), &kafka.ReceivedMessage{Value: data})
	require.NoError(t, err)

	received := readEvent(t, conn)
	assert.Equal(t, events.TypeStagesReordered, received.Type)
}

func TestHubHandleMessageBadPayload(t *testing.T) {
	hub := realtime.NewHub(getTestLogger())
	defer hub.Shutdown()

	// A poison message must be dropped, not retried forever.
	err := hub.HandleMessage(context.Background(), &kafka.ReceivedMessage{Value: []byte("not json")})
	assert.NoError(t, err)
}

func TestHubShutdownDisconnectsClients(t *testing.T) {
	hub := realtime.NewHub(getTestLogger())

	conn := connectClient(t, hub, "tenant-1", "")
	waitForClients(t, hub, 1)

	hub.Shutdown()
	waitForClients(t, hub, 0)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}
