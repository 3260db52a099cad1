package matching

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/imadgeboyega/kiekky-matchmaker/internal/auth"
)

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	go hub.Run(ctx)

	// The user id comes from a header here instead of a JWT.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if r.Header.Get("X-Test-User") == "7" {
			ctx = auth.WithUserID(ctx, 7)
		}
		hub.ServeWS(w, r.WithContext(ctx))
	}))

	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-hub.done
	})
	return hub, srv
}

func TestHubDeliversMatchEvents(t *testing.T) {
	hub, srv := startHub(t)

	header := http.Header{}
	header.Set("X-Test-User", "7")
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for !hub.Connected(ctx, 7) {
		if ctx.Err() != nil {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if hub.Connected(ctx, 8) {
		t.Error("user 8 reported as connected")
	}

	event := MatchEvent{UserID: 7, MatchedUserID: 8, Compatibility: 0.9, MatchedAt: time.Now().UTC()}
	if err := hub.NotifyMutualMatch(ctx, event); err != nil {
		t.Fatalf("notify: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type   string     `json:"type"`
		UserID int64      `json:"user_id"`
		Data   MatchEvent `json:"data"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != "new_match" || msg.UserID != 7 || msg.Data.MatchedUserID != 8 {
		t.Errorf("message = %+v", msg)
	}
}

func TestHubRejectsAnonymousUpgrade(t *testing.T) {
	_, srv := startHub(t)

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err == nil {
		t.Fatal("expected the dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("response = %v, want 401", resp)
	}
}

func TestHubStopped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	go hub.Run(ctx)
	cancel()
	<-hub.done

	if err := hub.NotifyMutualMatch(context.Background(), MatchEvent{UserID: 1, MatchedUserID: 2}); err != nil {
		t.Errorf("notify after stop = %v, want nil", err)
	}
	if hub.Connected(context.Background(), 1) {
		t.Error("stopped hub reports connections")
	}
}
