package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	streamBuffer   = 16
	writeWait      = 10 * time.Second
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// handleStream pushes the current snapshot and then every published one
// until the client goes away or the feed shuts down.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to upgrade stream connection")
		return
	}
	defer conn.Close()

	sub := s.feed.Subscribe(streamBuffer)
	defer s.feed.Unsubscribe(sub)

	logger := s.logger.WithFields(logrus.Fields{
		"subscriber": sub.ID,
		"remote":     r.RemoteAddr,
	})
	logger.Info("Stream client connected")
	defer logger.Info("Stream client disconnected")

	done := make(chan struct{})
	go s.readPump(conn, done)

	ping := time.NewTicker(s.pingPeriod)
	defer ping.Stop()

	for {
		select {
		case snap, ok := <-sub.C:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "feed stopped"),
					time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(snap); err != nil {
				logger.WithError(err).Debug("Failed to write snapshot")
				return
			}

		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				logger.WithError(err).Debug("Failed to send ping")
				return
			}

		case <-done:
			return
		}
	}
}

// readPump discards client frames; it exists to process pongs and close
// frames and to notice a dead peer.
func (s *Server) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	pongWait := 2 * s.pingPeriod
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
