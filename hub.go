package surveyforge

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/surveyforge/surveyforge/dashboard"
	"github.com/surveyforge/surveyforge/votes"
)

const (
	eventSubscribe   = "subscribe:survey"
	eventUnsubscribe = "unsubscribe:survey"
	eventSurveyData  = "survey:data"
	eventUpdate      = "survey:update"
)

// writeTimeout bounds every websocket write. A peer that stops reading
// fails the write and is dropped instead of blocking the hub.
const writeTimeout = 10 * time.Second

// WSMessage is the envelope for every frame in both directions.
type WSMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type subscribeRequest struct {
	SurveyID int64 `json:"survey_id"`
}

// UpdatePayload is pushed to a survey room after each accepted vote.
type UpdatePayload struct {
	QuestionID int64             `json:"question_id"`
	Aggregate  []votes.Aggregate `json:"aggregate"`
	TotalVotes int64             `json:"total_votes"`
	Timestamp  time.Time         `json:"timestamp"`
}

// Hub fans vote updates out to websocket subscribers grouped by survey.
type Hub struct {
	mutex     sync.Mutex
	rooms     map[int64]map[*websocket.Conn]bool
	upgrader  websocket.Upgrader
	dashboard *dashboard.Dashboard
	votes     *votes.Repository
}

// NewHub constructor.
func NewHub(dashboardService *dashboard.Dashboard, votesRepository *votes.Repository) *Hub {
	return &Hub{
		rooms: make(map[int64]map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				return true
			},
		},
		dashboard: dashboardService,
		votes:     votesRepository,
	}
}

// SetupRouter registers the websocket endpoint.
func (s *Hub) SetupRouter(router *gin.Engine) {
	router.GET("/ws", func(ctx *gin.Context) {
		conn, err := s.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
		if err != nil {
			logrus.Warnf("websocket upgrade: %v", err)

			return
		}

		s.serveConn(ctx.Request.Context(), conn)
	})
}

func (s *Hub) serveConn(ctx context.Context, conn *websocket.Conn) {
	websocketConnections.Inc()

	defer func() {
		s.dropConn(conn)
		_ = conn.Close()
		websocketConnections.Dec()
	}()

	for {
		var msg WSMessage

		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logrus.Warnf("websocket read: %v", err)
			}

			return
		}

		var req subscribeRequest

		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &req); err != nil {
				logrus.Warnf("websocket message decode: %v", err)

				continue
			}
		}

		switch msg.Type {
		case eventSubscribe:
			s.subscribe(conn, req.SurveyID)
			s.sendSnapshot(ctx, conn, req.SurveyID)
		case eventUnsubscribe:
			s.unsubscribe(conn, req.SurveyID)
		}
	}
}

func (s *Hub) subscribe(conn *websocket.Conn, surveyID int64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	room, ok := s.rooms[surveyID]
	if !ok {
		room = make(map[*websocket.Conn]bool)
		s.rooms[surveyID] = room
	}

	room[conn] = true
}

func (s *Hub) unsubscribe(conn *websocket.Conn, surveyID int64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if room, ok := s.rooms[surveyID]; ok {
		delete(room, conn)

		if len(room) == 0 {
			delete(s.rooms, surveyID)
		}
	}
}

func (s *Hub) dropConn(conn *websocket.Conn) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for surveyID, room := range s.rooms {
		delete(room, conn)

		if len(room) == 0 {
			delete(s.rooms, surveyID)
		}
	}
}

// sendSnapshot pushes the cached analytics document to a fresh
// subscriber. A cache miss is not an error, the client will receive the
// next survey:update instead.
func (s *Hub) sendSnapshot(ctx context.Context, conn *websocket.Conn, surveyID int64) {
	payload, ok := s.dashboard.CachedRealtime(ctx, surveyID)
	if !ok {
		return
	}

	if err := s.send(conn, eventSurveyData, payload); err != nil {
		logrus.Warnf("websocket snapshot for survey %d: %v", surveyID, err)
	}
}

func (s *Hub) send(conn *websocket.Conn, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))

	return conn.WriteJSON(WSMessage{Type: event, Data: data})
}

// NotifyVote recomputes the affected question aggregate and broadcasts it
// to the survey room. Runs async so vote submission latency is unaffected.
func (s *Hub) NotifyVote(surveyID int64, questionID int64) {
	go func() {
		ctx := context.Background()

		aggregate, err := s.votes.AggregateByQuestion(ctx, questionID)
		if err != nil {
			logrus.Warnf("aggregate for question %d: %v", questionID, err)

			return
		}

		totalVotes, err := s.votes.TotalCount(ctx, surveyID)
		if err != nil {
			logrus.Warnf("total votes for survey %d: %v", surveyID, err)

			return
		}

		if err = s.dashboard.InvalidateAnalytics(ctx, surveyID); err != nil {
			logrus.Warnf("invalidate analytics for survey %d: %v", surveyID, err)
		}

		s.Broadcast(surveyID, eventUpdate, UpdatePayload{
			QuestionID: questionID,
			Aggregate:  aggregate,
			TotalVotes: totalVotes,
			Timestamp:  time.Now(),
		})
	}()
}

// Broadcast sends an event to every subscriber of a survey. Connections
// that fail to write are dropped from the room.
func (s *Hub) Broadcast(surveyID int64, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logrus.Warnf("broadcast encode: %v", err)

		return
	}

	msg := WSMessage{Type: event, Data: data}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	room, ok := s.rooms[surveyID]
	if !ok {
		return
	}

	for conn := range room {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))

		if err := conn.WriteJSON(msg); err != nil {
			logrus.Warnf("websocket write: %v", err)
			delete(room, conn)
			_ = conn.Close()
		}
	}

	if len(room) == 0 {
		delete(s.rooms, surveyID)
	}

	broadcastsTotal.Inc()
}
