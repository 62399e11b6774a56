package realtime

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"eventix/internal/shared/config"
	"eventix/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{Secret: "test-secret"},
		Realtime: config.RealtimeConfig{
			ClientBuffer:   16,
			WriteTimeout:   time.Second,
			PongTimeout:    5 * time.Second,
			MaxMessageSize: 4096,
			AllowedOrigins: []string{"*"},
		},
	}
}

func startWSServer(t *testing.T, hub *Hub) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(hub, hub, testConfig(), logger.Discard())
	r.GET("/ws", h.ServeWS)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestWebsocketSelectionReachesOtherViewers(t *testing.T) {
	hub := NewHub(logger.Discard())
	url := startWSServer(t, hub)
	eventID := uuid.New()

	alice := dial(t, url)
	bob := dial(t, url)
	join := map[string]string{"type": CommandJoinEvent, "eventId": eventID.String()}
	require.NoError(t, alice.WriteJSON(join))
	require.NoError(t, bob.WriteJSON(join))

	assert.Eventually(t, func() bool { return hub.SubscriberCount(eventID) == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, alice.WriteJSON(map[string]string{
		"type":       CommandSelectSeat,
		"eventId":    eventID.String(),
		"seatId":     "seat-1",
		"seatNumber": "A1",
	}))

	msg := readMessage(t, bob)
	assert.Equal(t, KindSeatSelected, msg.Kind)
	assert.JSONEq(t, `{"seatId":"seat-1","seatNumber":"A1"}`, string(msg.Payload))

	// authoritative updates reach both, and alice never saw her own selection
	hub.Broadcast(Message{EventID: eventID, Kind: KindSeatBooked})
	assert.Equal(t, KindSeatBooked, readMessage(t, alice).Kind)
	assert.Equal(t, KindSeatBooked, readMessage(t, bob).Kind)
}

func TestWebsocketRejectsUnknownFields(t *testing.T) {
	hub := NewHub(logger.Discard())
	url := startWSServer(t, hub)
	conn := dial(t, url)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"join-event","eventId":"`+uuid.NewString()+`","extra":true}`)))

	msg := readMessage(t, conn)
	assert.Equal(t, KindError, msg.Kind)
	assert.Contains(t, string(msg.Payload), "extra")
}

func TestWebsocketSelectRequiresJoin(t *testing.T) {
	hub := NewHub(logger.Discard())
	url := startWSServer(t, hub)
	conn := dial(t, url)

	require.NoError(t, conn.WriteJSON(map[string]string{
		"type":    CommandSelectSeat,
		"eventId": uuid.NewString(),
		"seatId":  "seat-1",
	}))

	msg := readMessage(t, conn)
	assert.Equal(t, KindError, msg.Kind)
}

func TestWebsocketRejectsBadToken(t *testing.T) {
	hub := NewHub(logger.Discard())
	url := startWSServer(t, hub)

	_, resp, err := websocket.DefaultDialer.Dial(url+"?token=garbage", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 401, resp.StatusCode)
}
