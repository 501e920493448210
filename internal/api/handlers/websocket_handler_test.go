package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/welldanyogia/node-attachments-backend/internal/logger"
	"github.com/welldanyogia/node-attachments-backend/internal/websocket"
	"github.com/welldanyogia/node-attachments-backend/tests/fixtures"
)

func startWebSocketServer(t *testing.T, upgrader gorillaws.Upgrader) (*websocket.Hub, string) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := websocket.NewHub(nil)
	go hub.Run(ctx)

	e := echo.New()
	e.GET("/ws", NewWebSocketHandler(hub, upgrader, nil).Connect)

	server := httptest.NewServer(e)
	t.Cleanup(server.Close)

	return hub, "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
}

func TestWebSocketHandler_DeliversNodeEvents(t *testing.T) {
	hub, url := startWebSocketServer(t, websocket.DefaultUpgrader())

	conn, _, err := gorillaws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(websocket.WSMessage{Type: websocket.MessageTypeSubscribe, NodeID: 42}))
	require.Eventually(t, func() bool { return hub.SubscriberCount(42) == 1 }, time.Second, 10*time.Millisecond)

	hub.AttachmentCreated(fixtures.NewAttachmentBuilder().WithNodeID(42).Build())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "attachment_created", msg["type"])
	assert.Equal(t, float64(42), msg["node_id"])
}

func TestWebSocketHandler_RejectsForeignOrigin(t *testing.T) {
	var buf bytes.Buffer
	secLogger := logger.NewSecurityLoggerWithHandler(slog.NewJSONHandler(&buf, nil))
	_, url := startWebSocketServer(t, websocket.NewSecureUpgrader("https://app.example.com", secLogger))

	header := http.Header{}
	header.Set("Origin", "https://evil.example.com")
	_, resp, err := gorillaws.DefaultDialer.Dial(url, header)

	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, buf.String(), "https://evil.example.com")
}

func TestWebSocketHandler_PlainRequestIsNotUpgraded(t *testing.T) {
	hub := websocket.NewHub(nil)
	handler := NewWebSocketHandler(hub, websocket.DefaultUpgrader(), nil)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	rec := httptest.NewRecorder()

	err := handler.Connect(e.NewContext(req, rec))

	assert.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
