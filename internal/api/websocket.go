package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"futures-core/internal/events"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsEnvelope struct {
	Topic   string `json:"topic"`
	Payload any    `json:"payload"`
}

// websocket streams loop events to the dashboard as tagged envelopes.
func (s *Server) websocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}
	defer conn.Close()

	if s.Bus == nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"bus not ready"}`))
		return
	}

	topics := []events.Event{
		events.EventBalanceUpdate,
		events.EventCandidates,
		events.EventSignal,
		events.EventPositionOpened,
		events.EventPositionClosed,
		events.EventCycleError,
	}
	merged := make(chan wsEnvelope, 100)
	done := make(chan struct{})
	defer close(done)

	for _, topic := range topics {
		stream, unsub := s.Bus.Subscribe(topic, 100)
		defer unsub()
		go func(topic events.Event, stream <-chan any) {
			for msg := range stream {
				select {
				case merged <- wsEnvelope{Topic: string(topic), Payload: msg}:
				case <-done:
					return
				}
			}
		}(topic, stream)
	}

	for env := range merged {
		if err := conn.WriteJSON(env); err != nil {
			log.Printf("ws write error: %v", err)
			return
		}
	}
}
