package websocket

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"schoolhub/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var secret = []byte("hub-secret")

func startServer(t *testing.T, hub *Hub, groups GroupLister) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) { ServeWs(hub, c, secret, groups) })
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func tokenFor(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  userID.String(),
		"role": "Teacher",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString(secret)
	require.NoError(t, err)
	return s
}

func TestHubRoutesEventsToGroupRooms(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(zap.NewNop())
	go hub.Run(ctx)

	user := uuid.New()
	classGroup := uuid.New()
	staffGroup := uuid.New()
	url := startServer(t, hub, func(context.Context, string, string) ([]uuid.UUID, error) {
		return []uuid.UUID{classGroup}, nil
	})

	conn, _, err := websocket.DefaultDialer.Dial(url+"?token="+tokenFor(t, user), nil)
	require.NoError(t, err)
	defer conn.Close()

	assert.Eventually(t, func() bool { return hub.Subscribers(classGroup) == 1 }, time.Second, 10*time.Millisecond)
	assert.Zero(t, hub.Subscribers(staffGroup))

	hub.Publish(staffGroup, []byte(`{"type":"message","group_id":"staff"}`))
	hub.Publish(classGroup, []byte(`{"type":"message","group_id":"class"}`))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"message","group_id":"class"}`, string(payload), "events for other rooms are not delivered")

	hub.Join(staffGroup, user)
	hub.Join(staffGroup, uuid.New())
	assert.Equal(t, 1, hub.Subscribers(staffGroup))

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Subscribers(classGroup) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubLeaveStopsDelivery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(zap.NewNop())
	go hub.Run(ctx)

	user := uuid.New()
	classGroup := uuid.New()
	staffGroup := uuid.New()
	url := startServer(t, hub, func(context.Context, string, string) ([]uuid.UUID, error) {
		return []uuid.UUID{classGroup}, nil
	})

	conn, _, err := websocket.DefaultDialer.Dial(url+"?token="+tokenFor(t, user), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Subscribers(classGroup) == 1 }, time.Second, 10*time.Millisecond)

	hub.Leave(classGroup, user)
	hub.Leave(classGroup, uuid.New())
	assert.Zero(t, hub.Subscribers(classGroup))

	hub.Publish(classGroup, []byte(`{"type":"message","group_id":"class"}`))
	hub.Join(staffGroup, user)
	hub.Publish(staffGroup, []byte(`{"type":"message","group_id":"staff"}`))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"message","group_id":"staff"}`, string(payload), "a removed member no longer gets the group's messages")
}

func TestServeWsRejectsBadTokens(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(zap.NewNop())
	go hub.Run(ctx)
	url := startServer(t, hub, func(context.Context, string, string) ([]uuid.UUID, error) { return nil, nil })

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(url+"?token=nope", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServeWsRefusesForbiddenRoles(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(zap.NewNop())
	go hub.Run(ctx)

	roles := make(chan string, 1)
	url := startServer(t, hub, func(_ context.Context, _, role string) ([]uuid.UUID, error) {
		roles <- role
		return nil, fmt.Errorf("groups disabled: %w", service.ErrForbidden)
	})

	_, resp, err := websocket.DefaultDialer.Dial(url+"?token="+tokenFor(t, uuid.New()), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "Teacher", <-roles)
}

func TestHubStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(zap.NewNop())
	go hub.Run(ctx)
	cancel()

	// calls after shutdown return instead of blocking
	done := make(chan struct{})
	go func() {
		hub.Publish(uuid.New(), []byte("x"))
		hub.Join(uuid.New(), uuid.New())
		assert.Zero(t, hub.Subscribers(uuid.New()))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("hub calls blocked after shutdown")
	}
}
