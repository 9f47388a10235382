package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/gregtusar/simfeed/pkg/models"
	"github.com/sirupsen/logrus"
)

type SnapshotHandler func(snap *models.Snapshot) error

// StreamClient follows a server's /api/stream. A StreamClient serves a
// single connection; dial a new one to reconnect.
type StreamClient struct {
	url     string
	conn    *websocket.Conn
	mu      sync.Mutex
	handler SnapshotHandler
	logger  *logrus.Logger

	pingPeriod time.Duration
	closeOnce  sync.Once
	done       chan struct{}
}

// NewStreamClient derives the stream URL from an http(s) server URL.
func NewStreamClient(serverURL string, handler SnapshotHandler, logger *logrus.Logger) (*StreamClient, error) {
	u, err := url.Parse(strings.TrimRight(serverURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}

	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path += "/api/stream"

	return &StreamClient{
		url:        u.String(),
		handler:    handler,
		logger:     logger,
		pingPeriod: 30 * time.Second,
		done:       make(chan struct{}),
	}, nil
}

func (sc *StreamClient) Connect(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.conn != nil {
		return nil
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, sc.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to websocket: %w", err)
	}
	sc.conn = conn

	go sc.readLoop()
	go sc.keepAlive(ctx)

	sc.logger.WithField("url", sc.url).Info("Connected to feed stream")
	return nil
}

// Done is closed once the connection is gone.
func (sc *StreamClient) Done() <-chan struct{} {
	return sc.done
}

func (sc *StreamClient) Close() error {
	sc.mu.Lock()
	conn := sc.conn
	sc.mu.Unlock()

	if conn == nil {
		return nil
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	sc.disconnect()
	return nil
}

func (sc *StreamClient) readLoop() {
	defer sc.disconnect()

	for {
		var snap models.Snapshot
		if err := sc.conn.ReadJSON(&snap); err != nil {
			select {
			case <-sc.done:
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					sc.logger.WithError(err).Error("Failed to read websocket message")
				}
			}
			return
		}

		if sc.handler != nil {
			if err := sc.handler(&snap); err != nil {
				sc.logger.WithError(err).Error("Handler error")
			}
		}
	}
}

func (sc *StreamClient) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(sc.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = sc.Close()
			return
		case <-sc.done:
			return
		case <-ticker.C:
			if err := sc.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				sc.logger.WithError(err).Error("Failed to send ping")
				sc.disconnect()
				return
			}
		}
	}
}

func (sc *StreamClient) disconnect() {
	sc.closeOnce.Do(func() {
		close(sc.done)
		sc.conn.Close()
	})
}
