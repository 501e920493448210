package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func runHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func control(t *testing.T, msgType MessageType, nodeID uint) []byte {
	t.Helper()
	data, err := json.Marshal(WSMessage{Type: msgType, NodeID: nodeID})
	require.NoError(t, err)
	return data
}

func nextError(t *testing.T, client *Client) string {
	t.Helper()
	select {
	case raw := <-client.send:
		var msg WSMessage
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, MessageTypeError, msg.Type)
		return msg.Error
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expected error message to be sent")
		return ""
	}
}

func assertNothingQueued(t *testing.T, client *Client) {
	t.Helper()
	select {
	case raw := <-client.send:
		t.Fatalf("unexpected message queued: %s", raw)
	default:
	}
}

func TestNewClient(t *testing.T) {
	hub := NewHub(nil)
	client := NewClient(hub, nil, nil)

	assert.Equal(t, hub, client.hub)
	assert.Equal(t, sendBufferSize, cap(client.send))
	assert.Empty(t, client.nodes)
	assert.NotNil(t, client.limiter)
}

func TestClient_SubscribeAndUnsubscribe(t *testing.T) {
	hub := runHub(t)
	client := NewClient(hub, nil, nil)
	hub.Register(client)

	client.handleMessage(control(t, MessageTypeSubscribe, 123))

	assert.Eventually(t, func() bool { return hub.SubscriberCount(123) == 1 }, time.Second, 5*time.Millisecond)
	assert.Contains(t, client.nodes, uint(123))

	client.handleMessage(control(t, MessageTypeUnsubscribe, 123))

	assert.Eventually(t, func() bool { return hub.SubscriberCount(123) == 0 }, time.Second, 5*time.Millisecond)
	assert.NotContains(t, client.nodes, uint(123))
	assertNothingQueued(t, client)
}

func TestClient_RepeatedSubscribeIsIgnored(t *testing.T) {
	hub := runHub(t)
	client := NewClient(hub, nil, nil)
	hub.Register(client)

	client.handleMessage(control(t, MessageTypeSubscribe, 7))
	client.handleMessage(control(t, MessageTypeSubscribe, 7))

	assert.Eventually(t, func() bool { return hub.SubscriberCount(7) == 1 }, time.Second, 5*time.Millisecond)
	assert.Len(t, client.nodes, 1)
	assertNothingQueued(t, client)
}

func TestClient_SubscriptionLimit(t *testing.T) {
	hub := runHub(t)
	client := NewClient(hub, nil, nil)
	client.limiter = rate.NewLimiter(rate.Inf, 0)
	hub.Register(client)

	for nodeID := uint(1); nodeID <= maxSubscriptionsPerClient; nodeID++ {
		client.handleMessage(control(t, MessageTypeSubscribe, nodeID))
	}
	assertNothingQueued(t, client)

	client.handleMessage(control(t, MessageTypeSubscribe, maxSubscriptionsPerClient+1))

	assert.Equal(t, "subscription limit reached", nextError(t, client))
	assert.Len(t, client.nodes, maxSubscriptionsPerClient)
	assert.Equal(t, 0, hub.SubscriberCount(maxSubscriptionsPerClient+1))
}

func TestClient_UnsubscribeUnknownNode(t *testing.T) {
	client := NewClient(NewHub(nil), nil, nil)

	client.handleMessage(control(t, MessageTypeUnsubscribe, 9))

	assert.Equal(t, "not subscribed to node", nextError(t, client))
}

func TestClient_RejectsMalformedMessages(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		want    string
	}{
		{"invalid json", []byte("invalid json"), "invalid message format"},
		{"unknown type", []byte(`{"type":"unknown_type","node_id":1}`), "unknown message type"},
		{"subscribe without node", []byte(`{"type":"subscribe"}`), "node_id is required"},
		{"unsubscribe without node", []byte(`{"type":"unsubscribe","node_id":0}`), "node_id is required"},
		{"negative node", []byte(`{"type":"subscribe","node_id":-1}`), "invalid message format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(NewHub(nil), nil, nil)

			client.handleMessage(tt.payload)

			assert.Equal(t, tt.want, nextError(t, client))
			assert.Empty(t, client.nodes)
		})
	}
}

func TestClient_ControlMessagesAreRateLimited(t *testing.T) {
	client := NewClient(NewHub(nil), nil, nil)
	client.limiter = rate.NewLimiter(rate.Every(time.Hour), 2)

	for i := 0; i < 3; i++ {
		client.handleMessage([]byte(fmt.Sprintf(`{"type":"bogus_%d"}`, i)))
	}

	assert.Equal(t, "unknown message type", nextError(t, client))
	assert.Equal(t, "unknown message type", nextError(t, client))
	assert.Equal(t, "too many requests", nextError(t, client))
}

func TestClient_SendErrorDropsWhenBufferFull(t *testing.T) {
	client := NewClient(NewHub(nil), nil, nil)

	for i := 0; i < sendBufferSize+10; i++ {
		client.sendError("test error")
	}

	assert.Len(t, client.send, sendBufferSize)
}

func TestMessageTypes_WireValues(t *testing.T) {
	assert.Equal(t, MessageType("subscribe"), MessageTypeSubscribe)
	assert.Equal(t, MessageType("unsubscribe"), MessageTypeUnsubscribe)
	assert.Equal(t, MessageType("attachment_created"), MessageTypeAttachmentCreated)
	assert.Equal(t, MessageType("attachment_deleted"), MessageTypeAttachmentDeleted)
	assert.Equal(t, MessageType("error"), MessageTypeError)
}
