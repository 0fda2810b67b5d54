package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/CrowderSoup/bizniz-quest/database"
	"github.com/CrowderSoup/bizniz-quest/services"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wsEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (e *testEnv) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/api/ws?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil skips messages until one of type typ arrives and returns its data.
func readUntil(t *testing.T, conn *websocket.Conn, typ string, match func(json.RawMessage) bool) json.RawMessage {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		var msg wsEnvelope
		require.NoError(t, conn.ReadJSON(&msg), "waiting for %q", typ)
		if msg.Type == typ && (match == nil || match(msg.Data)) {
			return msg.Data
		}
	}
}

func hasTask(name string) func(json.RawMessage) bool {
	return func(data json.RawMessage) bool {
		var view services.StateView
		if err := json.Unmarshal(data, &view); err != nil {
			return false
		}
		for _, b := range view.Lists {
			for _, task := range b.Tasks {
				if task.Name == name {
					return true
				}
			}
		}
		return false
	}
}

func TestWebSocket_RejectsMissingToken(t *testing.T) {
	env := newTestEnv(t, "")

	url := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/api/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebSocket_EditsSaveAndOtherViewsReload(t *testing.T) {
	env := newTestEnv(t, "")
	acct, token := env.login(t, "tabs@example.com")

	first := env.dial(t, token)
	readUntil(t, first, "state", nil)

	second := env.dial(t, token)
	readUntil(t, second, "state", nil)

	require.NoError(t, first.WriteJSON(services.Op{
		Type:   services.OpAdd,
		Bucket: database.BucketKey{Number: 1},
		Name:   "  Send invoices ",
	}))
	readUntil(t, first, "state", hasTask("Send invoices"))
	require.Eventually(t, func() bool {
		stored, _, err := env.store.GetSnapshot(context.Background(), acct.ID)
		return err == nil && len(stored) > 0 && len(stored[0].Tasks) == 1 && stored[0].Tasks[0].Name == "Send invoices"
	}, 3*time.Second, 10*time.Millisecond)
	readUntil(t, first, "status", func(data json.RawMessage) bool {
		return strings.Contains(string(data), "Tasks saved")
	})

	// The other view is told to reload and picks up the saved task.
	readUntil(t, second, "sync", nil)
	require.NoError(t, second.WriteJSON(services.Op{Type: services.OpReload}))
	readUntil(t, second, "state", hasTask("Send invoices"))
}

func TestWebSocket_PingPong(t *testing.T) {
	env := newTestEnv(t, "")
	_, token := env.login(t, "ping@example.com")

	conn := env.dial(t, token)
	readUntil(t, conn, "state", nil)

	require.NoError(t, conn.WriteJSON(services.WebSocketMessage{Type: "ping"}))
	data := readUntil(t, conn, "pong", nil)
	assert.Contains(t, string(data), "timestamp")
}

func TestWebSocket_NightlyResetTellsOpenViewsToReload(t *testing.T) {
	env := newTestEnv(t, "")
	acct, token := env.login(t, "overnight@example.com")

	snap := database.DefaultSnapshot()
	snap[3].Tasks = []database.Task{{ID: "t1", Name: "Check email", Completed: true}}
	require.NoError(t, env.store.SaveSnapshot(context.Background(), acct.ID, snap))
	require.NoError(t, env.store.SetLastReset(context.Background(), acct.ID, time.Now().UTC().Format("2006-01-02")))

	conn := env.dial(t, token)
	readUntil(t, conn, "state", nil)

	resp := env.do(t, "GET", "/reset-daily-tasks", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	readUntil(t, conn, "sync", nil)
	require.NoError(t, conn.WriteJSON(services.Op{Type: services.OpReload}))
	data := readUntil(t, conn, "state", hasTask("Check email"))

	var view services.StateView
	require.NoError(t, json.Unmarshal(data, &view))
	for _, b := range view.Lists {
		for _, task := range b.Tasks {
			assert.False(t, task.Completed, task.Name)
		}
	}
}
