package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket live feed for cluster events. Clients subscribe per cluster:
//
//	{"type":"subscribe","id":"1","clusterId":"cl_varkala"}
//
// and receive {"type":"event","id":"1","payload":{...}} frames.

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

type wsMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	ClusterID string          `json:"clusterId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// EventsWSHandler handles /v1/events/ws
func (s *Server) EventsWSHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	type sub struct {
		clusterID string
		ch        chan SSEEvent
		done      chan struct{}
	}
	subs := map[string]sub{}
	defer func() {
		for _, sb := range subs {
			close(sb.done)
			s.Broker.Unsubscribe(sb.clusterID, sb.ch)
		}
	}()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error { _ = conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	var wmu sync.Mutex
	write := func(v any) error {
		wmu.Lock()
		defer wmu.Unlock()
		return conn.WriteJSON(v)
	}

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		switch msg.Type {
		case "connection_init":
			_ = write(wsMessage{Type: "connection_ack"})
			go func() {
				ticker := time.NewTicker(20 * time.Second)
				defer ticker.Stop()
				for range ticker.C {
					if err := write(wsMessage{Type: "ping"}); err != nil {
						return
					}
				}
			}()
		case "ping":
			_ = write(wsMessage{Type: "pong"})
		case "subscribe":
			if msg.ClusterID == "" || msg.ID == "" {
				_ = write(wsMessage{Type: "error", ID: msg.ID, Payload: json.RawMessage(`{"message":"clusterId and id required"}`)})
				continue
			}
			if _, exists := subs[msg.ID]; exists {
				continue
			}
			sb := sub{clusterID: msg.ClusterID, ch: s.Broker.Subscribe(msg.ClusterID), done: make(chan struct{})}
			subs[msg.ID] = sb
			go func(id string, sb sub) {
				for {
					select {
					case <-sb.done:
						return
					case evt, ok := <-sb.ch:
						if !ok {
							return
						}
						b, _ := json.Marshal(map[string]any{"type": evt.Type, "data": evt.Data})
						if err := write(wsMessage{Type: "event", ID: id, Payload: b}); err != nil {
							return
						}
					}
				}
			}(msg.ID, sb)
		case "unsubscribe", "complete":
			if sb, ok := subs[msg.ID]; ok {
				close(sb.done)
				s.Broker.Unsubscribe(sb.clusterID, sb.ch)
				delete(subs, msg.ID)
			}
		}
	}
}
