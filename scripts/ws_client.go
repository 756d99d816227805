// Package main runs a demo WebSocket client for cluster events.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	ClusterID string          `json:"clusterId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	// Pick the top-ranked cluster
	resp, err := http.Get(base + "/v1/clusters")
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	var list struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		log.Fatal(err)
	}
	if len(list.Items) == 0 {
		log.Fatal("no clusters returned")
	}
	clusterID := list.Items[0].ID
	log.Printf("Cluster ID: %s", clusterID)

	// Connect WS
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/events/ws"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	// connection_init
	if err := c.WriteJSON(wsMessage{Type: "connection_init"}); err != nil {
		log.Fatal(err)
	}
	// subscribe to cluster events
	if err := c.WriteJSON(wsMessage{Type: "subscribe", ID: "1", ClusterID: clusterID}); err != nil {
		log.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m wsMessage
			if err := c.ReadJSON(&m); err != nil {
				log.Printf("read: %v", err)
				return
			}
			log.Printf("WS <- %s: %s", m.Type, string(m.Payload))
		}
	}()

	// Trigger an event via assign
	time.Sleep(500 * time.Millisecond)
	body := []byte(`{"vehicleId":"veh_1"}`)
	assignReq, _ := http.NewRequest(http.MethodPost, fmt.Sprintf("%s/v1/clusters/%s/assign", base, clusterID), bytes.NewReader(body))
	assignReq.Header.Set("Content-Type", "application/json")
	_, _ = http.DefaultClient.Do(assignReq)

	// Wait briefly to receive a few messages
	select {
	case <-time.After(2 * time.Second):
	case <-done:
	}
}
