package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/your-org/videoqa/internal/models"
	"github.com/your-org/videoqa/pkg/dto"
)

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	go hub.Run(ctx)

	r := gin.New()
	r.GET("/api/ws", hub.HandleWS)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, got %d", n, hub.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) dto.WSEvent {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev dto.WSEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatal(err)
	}
	return ev
}

func TestHub_FiltersByVideo(t *testing.T) {
	hub, srv := startHub(t)
	all := dial(t, srv, "")
	onlyV2 := dial(t, srv, "?video_id=v2")
	waitForClients(t, hub, 2)

	hub.BroadcastEvent(models.ResultEvent{Type: models.EventAnalysisCompleted, VideoID: "v1", ResponseID: "r1"})
	hub.Notify(context.Background(), models.ResultEvent{Type: models.EventAnalysisFailed, VideoID: "v2", ResponseID: "r2", Error: "boom"})

	if ev := readEvent(t, all); ev.ResponseID != "r1" {
		t.Errorf("expected r1 first, got %+v", ev)
	}
	if ev := readEvent(t, all); ev.ResponseID != "r2" {
		t.Errorf("expected r2 second, got %+v", ev)
	}

	ev := readEvent(t, onlyV2)
	if ev.ResponseID != "r2" || ev.Type != "analysis_failed" || ev.Error != "boom" {
		t.Errorf("filtered client got %+v", ev)
	}
}

func TestHub_UnregistersOnDisconnect(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv, "")
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)
}
