package mcp

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vatsal-bst/bluestacksmcp/api/schemas"
)

func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(hub.HandleEvents))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHubBroadcastsStepAndTerminal(t *testing.T) {
	hub := NewHub(zap.NewNop())
	conn := dialHub(t, hub)

	// Give the server a moment to register the client.
	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.clients) == 1
	}, time.Second, 10*time.Millisecond)

	session := &schemas.TaskSession{
		ID:     "s-1",
		Status: schemas.StatusSucceeded,
	}
	hub.PublishStep(session, schemas.StepRecord{
		Index:   0,
		Action:  schemas.ActionSpec{Kind: schemas.ActionTap},
		Outcome: schemas.ActionOutcome{Classification: schemas.OutcomeOK},
	})
	hub.PublishTerminal(session)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first Event
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, EventStep, first.Type)
	assert.Equal(t, "s-1", first.SessionID)

	var second Event
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, EventTerminal, second.Type)
}

func TestHubPublishWithoutSubscribers(t *testing.T) {
	hub := NewHub(zap.NewNop())
	hub.PublishTerminal(&schemas.TaskSession{ID: "s-2", Status: schemas.StatusFailed})
}
