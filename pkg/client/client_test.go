package client

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/gregtusar/simfeed/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func generateKeyPEM(t *testing.T) (*ecdsa.PrivateKey, string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)
	return key, string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}))
}

func testSnapshot(seq uint64) models.Snapshot {
	return models.Snapshot{
		Symbol:       "BTC-USD",
		Sequence:     seq,
		Running:      true,
		CurrentPrice: decimal.RequireFromString("49500.25"),
		Ticks: []models.Tick{
			{Timestamp: time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC), Price: decimal.RequireFromString("49500.25")},
		},
		UpdatedAt: time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
	}
}

func TestNewJWTAuthenticator_RejectsBadInput(t *testing.T) {
	_, keyPEM := generateKeyPEM(t)

	_, err := NewJWTAuthenticator("", keyPEM)
	assert.Error(t, err)

	_, err = NewJWTAuthenticator("desk-1", "not a key")
	assert.Error(t, err)
}

func TestClient_GetSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/snapshot", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(testSnapshot(7))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", nil, testLogger())
	snap, err := c.GetSnapshot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(7), snap.Sequence)
	assert.Equal(t, "49500.25", snap.CurrentPrice.String())
	require.Len(t, snap.Ticks, 1)
	assert.True(t, snap.Ticks[0].Timestamp.Equal(time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)))
}

func TestClient_PlaceOrderSignsRequest(t *testing.T) {
	key, keyPEM := generateKeyPEM(t)
	auth, err := NewJWTAuthenticator("desk-1", keyPEM)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
			return &key.PublicKey, nil
		}, jwt.WithValidMethods([]string{"ES256"}))
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "desk-1", claims["sub"])
		assert.Equal(t, "POST "+r.Host+"/api/orders", claims["uri"])
		assert.NotEmpty(t, claims["nonce"])

		var req models.OrderRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, models.OrderTypeLimit, req.Type)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(models.Trade{
			ID:        "ord-1",
			Side:      req.Side,
			Price:     decimal.RequireFromString(req.Price),
			Quantity:  decimal.RequireFromString(req.Quantity),
			Source:    models.TradeSourceOrder,
			OrderType: req.Type,
			Status:    models.OrderStatusFilled,
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, auth, testLogger())
	trade, err := c.PlaceOrder(context.Background(), models.OrderRequest{
		Side:     models.OrderSideSell,
		Type:     models.OrderTypeLimit,
		Quantity: "0.5",
		Price:    "51000",
	})
	require.NoError(t, err)
	assert.Equal(t, "ord-1", trade.ID)
	assert.Equal(t, "51000", trade.Price.String())
	assert.Equal(t, models.OrderStatusFilled, trade.Status)
}

func TestClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid order input: quantity must be positive"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, testLogger())
	_, err := c.PlaceOrder(context.Background(), models.OrderRequest{Side: "buy", Type: "market", Quantity: "0"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "quantity must be positive")
}

func TestNewStreamClient_URL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "http://localhost:8080", want: "ws://localhost:8080/api/stream"},
		{in: "https://feed.example.com/", want: "wss://feed.example.com/api/stream"},
		{in: "ws://127.0.0.1:9000", want: "ws://127.0.0.1:9000/api/stream"},
		{in: "ftp://example.com", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			sc, err := NewStreamClient(tt.in, nil, testLogger())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, sc.url)
		})
	}
}

func TestStreamClient_ReceivesSnapshots(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/stream", r.URL.Path)
		conn, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		defer conn.Close()

		for seq := uint64(1); seq <= 3; seq++ {
			assert.NoError(t, conn.WriteJSON(testSnapshot(seq)))
		}
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "done"))
	}))
	defer srv.Close()

	var (
		mu   sync.Mutex
		seqs []uint64
	)
	sc, err := NewStreamClient(srv.URL, func(snap *models.Snapshot) error {
		mu.Lock()
		defer mu.Unlock()
		seqs = append(seqs, snap.Sequence)
		return nil
	}, testLogger())
	require.NoError(t, err)
	require.NoError(t, sc.Connect(context.Background()))

	select {
	case <-sc.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not finish")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []uint64{1, 2, 3}, seqs)
	assert.NoError(t, sc.Close())
}
