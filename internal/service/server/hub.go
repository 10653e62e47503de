package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"pairchat/internal/model"
	"pairchat/internal/utils/log"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

// Hub tracks the websocket of every connected party and delivers events to
// them. It is the Notifier of the conversation store.
type Hub struct {
	queue Queue

	mu     sync.RWMutex
	mapper map[model.PartyID]*client
}

// NewHub returns a hub that queues events for offline parties in queue. With
// a nil queue those events are dropped.
func NewHub(queue Queue) *Hub {
	return &Hub{
		queue:  queue,
		mapper: make(map[model.PartyID]*client),
	}
}

// client serializes writes to one websocket connection.
type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *client) send(ev model.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(&ev)
}

func (s *Hub) HandleInitWS() http.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // Allow all origins
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		partyID := partyFromContext(r.Context())

		s.mu.RLock()
		_, ok := s.mapper[partyID]
		s.mu.RUnlock()
		if ok {
			http.Error(w, "party already connected", http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error("websocket upgrade failed", zap.Error(err))
			return
		}

		c := &client{conn: conn}
		s.mu.Lock()
		if _, ok := s.mapper[partyID]; ok {
			s.mu.Unlock()
			_ = conn.Close()
			return
		}
		s.mapper[partyID] = c
		s.mu.Unlock()

		go s.processWSMessage(partyID, c)
		if err := s.ForwardQueuedEvents(context.Background(), partyID, c); err != nil {
			log.Error("forward queued events failed", zap.Int64("party_id", int64(partyID)), zap.Error(err))
		}
	}
}

// processWSMessage drains the connection until the peer goes away. Clients
// send messages through the HTTP API; anything they write here is ignored.
func (s *Hub) processWSMessage(partyID model.PartyID, c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			log.Debug("web socket closed", zap.Int64("party_id", int64(partyID)), zap.Error(err))
			s.mu.Lock()
			if s.mapper[partyID] == c {
				delete(s.mapper, partyID)
			}
			s.mu.Unlock()
			_ = c.conn.Close()
			return
		}
	}
}

// Notify pushes ev to the party's websocket, or queues it until the party
// connects.
func (s *Hub) Notify(ctx context.Context, to model.PartyID, ev model.Event) error {
	s.mu.RLock()
	c, ok := s.mapper[to]
	s.mu.RUnlock()

	if ok {
		err := c.send(ev)
		if err == nil {
			return nil
		}
		log.Debug("push to web socket failed, queueing", zap.Int64("party_id", int64(to)), zap.Error(err))
	}
	return s.PutEventsToCache(ctx, to, []model.Event{ev})
}

func (s *Hub) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.mapper {
		_ = c.conn.Close()
		delete(s.mapper, id)
	}
}
