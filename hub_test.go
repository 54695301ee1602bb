package surveyforge

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"github.com/surveyforge/surveyforge/config"
	"github.com/surveyforge/surveyforge/votes"
)

func createHub(t *testing.T) *Hub {
	t.Helper()

	container := NewContainer(config.LoadConfig("."))

	hub, err := container.Hub()
	require.NoError(t, err)

	return hub
}

func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()

	gin.SetMode(gin.TestMode)

	router := gin.New()
	hub.SetupRouter(router)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	if resp != nil {
		_ = resp.Body.Close()
	}

	t.Cleanup(func() {
		_ = conn.Close()
	})

	return conn
}

func subscribe(t *testing.T, conn *websocket.Conn, surveyID int64) {
	t.Helper()

	data, err := json.Marshal(subscribeRequest{SurveyID: surveyID})
	require.NoError(t, err)

	require.NoError(t, conn.WriteJSON(WSMessage{Type: eventSubscribe, Data: data}))
}

func TestSubscribeReceivesBroadcast(t *testing.T) {
	hub := createHub(t)
	conn := dialHub(t, hub)

	const surveyID = int64(421001)

	subscribe(t, conn, surveyID)

	// subscription is applied by the read loop, give it a moment
	require.Eventually(t, func() bool {
		hub.mutex.Lock()
		defer hub.mutex.Unlock()

		return len(hub.rooms[surveyID]) == 1
	}, time.Second, 10*time.Millisecond)

	hub.Broadcast(surveyID, eventUpdate, UpdatePayload{
		QuestionID: 7,
		Aggregate:  []votes.Aggregate{},
		TotalVotes: 3,
		Timestamp:  time.Now(),
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))

	var msg WSMessage

	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, eventUpdate, msg.Type)

	var payload UpdatePayload

	require.NoError(t, json.Unmarshal(msg.Data, &payload))
	require.Equal(t, int64(7), payload.QuestionID)
	require.Equal(t, int64(3), payload.TotalVotes)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	hub := createHub(t)
	conn := dialHub(t, hub)

	const surveyID = int64(421002)

	subscribe(t, conn, surveyID)

	require.Eventually(t, func() bool {
		hub.mutex.Lock()
		defer hub.mutex.Unlock()

		return len(hub.rooms[surveyID]) == 1
	}, time.Second, 10*time.Millisecond)

	data, err := json.Marshal(subscribeRequest{SurveyID: surveyID})
	require.NoError(t, err)

	require.NoError(t, conn.WriteJSON(WSMessage{Type: eventUnsubscribe, Data: data}))

	require.Eventually(t, func() bool {
		hub.mutex.Lock()
		defer hub.mutex.Unlock()

		return len(hub.rooms[surveyID]) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestBroadcastWithoutSubscribers(t *testing.T) {
	hub := createHub(t)

	hub.Broadcast(421003, eventUpdate, UpdatePayload{QuestionID: 1})
}

func TestBroadcastDropsFailedWriter(t *testing.T) {
	hub := createHub(t)

	const surveyID = int64(421005)

	gin.SetMode(gin.TestMode)

	// upgrade without a read loop so only the broadcast write path can
	// evict the peer
	router := gin.New()
	router.GET("/ws", func(ctx *gin.Context) {
		conn, err := hub.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
		if err != nil {
			return
		}

		hub.subscribe(conn, surveyID)
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	if resp != nil {
		_ = resp.Body.Close()
	}

	require.Eventually(t, func() bool {
		hub.mutex.Lock()
		defer hub.mutex.Unlock()

		return len(hub.rooms[surveyID]) == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.UnderlyingConn().Close())

	require.Eventually(t, func() bool {
		hub.Broadcast(surveyID, eventUpdate, UpdatePayload{QuestionID: 1})

		hub.mutex.Lock()
		defer hub.mutex.Unlock()

		return len(hub.rooms[surveyID]) == 0
	}, 2*time.Second, 50*time.Millisecond)
}

func TestDroppedConnLeavesRooms(t *testing.T) {
	hub := createHub(t)
	conn := dialHub(t, hub)

	const surveyID = int64(421004)

	subscribe(t, conn, surveyID)

	require.Eventually(t, func() bool {
		hub.mutex.Lock()
		defer hub.mutex.Unlock()

		return len(hub.rooms[surveyID]) == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		hub.mutex.Lock()
		defer hub.mutex.Unlock()

		return len(hub.rooms) == 0
	}, time.Second, 10*time.Millisecond)
}
