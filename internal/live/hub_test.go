package live

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/sangam-association/backend/internal/auth"
	"github.com/sangam-association/backend/internal/checkin"
	"github.com/sangam-association/backend/internal/models"
)

func dialFeed(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func feedServer(t *testing.T, hub *Hub, jwt *auth.JWTService) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws/events/:id", ServeWs(hub, jwt, nil))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestGateFeedBroadcast(t *testing.T) {
	hub := NewHub(nil)
	jwt := auth.NewJWTService("feed-test-secret", 1)
	srv := feedServer(t, hub, jwt)

	token, err := jwt.Generate(5, "+919800000005", models.RoleGateStaff)
	if err != nil {
		t.Fatal(err)
	}
	wsURL := strings.Replace(srv.URL, "http://", "ws://", 1) + "/ws/events/7?token=" + token
	conn := dialFeed(t, wsURL)
	defer conn.Close()

	// Registration is asynchronous with respect to the dial returning.
	deadline := time.Now().Add(2 * time.Second)
	for hub.Watchers(7) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("dashboard never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.AnnounceCheckIn(&checkin.Result{
		Success: true,
		Member:  &models.Member{ID: 17, FullName: "Meena Shah"},
		Event:   &models.Event{ID: 7, Title: "Annual Trade Meet"},
	})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read broadcast: %v", err)
	}
	if msg.Event != "check_in" {
		t.Fatalf("event = %q, want check_in", msg.Event)
	}
}

func TestGateFeedIsScopedToEvent(t *testing.T) {
	hub := NewHub(nil)
	jwt := auth.NewJWTService("feed-test-secret", 1)
	srv := feedServer(t, hub, jwt)

	token, err := jwt.Generate(5, "+919800000005", models.RoleAdmin)
	if err != nil {
		t.Fatal(err)
	}
	wsURL := strings.Replace(srv.URL, "http://", "ws://", 1) + "/ws/events/7?token=" + token
	conn := dialFeed(t, wsURL)
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Watchers(7) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("dashboard never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// A scan for another event must not reach this room.
	hub.AnnounceCheckIn(&checkin.Result{
		Success: true,
		Event:   &models.Event{ID: 8, Title: "Other Event"},
	})

	_ = conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	var msg Message
	if err := conn.ReadJSON(&msg); err == nil {
		t.Fatalf("unexpected broadcast received: %+v", msg)
	}
}

func TestGateFeedRejectsMembers(t *testing.T) {
	hub := NewHub(nil)
	jwt := auth.NewJWTService("feed-test-secret", 1)
	srv := feedServer(t, hub, jwt)

	token, err := jwt.Generate(5, "+919800000005", models.RoleMember)
	if err != nil {
		t.Fatal(err)
	}
	wsURL := strings.Replace(srv.URL, "http://", "ws://", 1) + "/ws/events/7?token=" + token
	if _, _, err := websocket.DefaultDialer.Dial(wsURL, nil); err == nil {
		t.Fatal("member role was allowed onto the gate feed")
	}
}
