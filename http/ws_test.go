package http

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"healthpredict/predictor"
)

func dialLive(t *testing.T) (*websocket.Conn, *PredictionHub) {
	t.Helper()
	hub := NewPredictionHub()
	go hub.Run()
	srv := httptest.NewServer(NewHandler(DefaultServerConfig(), hub))
	t.Cleanup(func() {
		hub.Stop()
		srv.Close()
		liveHub = nil
	})

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/predict"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn, hub
}

func readLive(t *testing.T, conn *websocket.Conn) LiveMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg LiveMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestLivePrediction(t *testing.T) {
	usePredictor(t, &fakePredictor{result: sampleResult()})
	conn, _ := dialLive(t)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"age": 45, "BMI": 27, "gamma_GTP": 80, "hemoglobin": 15}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	msg := readLive(t, conn)
	if msg.Type != MessagePrediction || msg.Result == nil {
		t.Fatalf("expected prediction, got %+v", msg)
	}
	if msg.Result.Smoking.Display != "🚬 Smoker" || msg.Result.Input.Age != 45 {
		t.Fatalf("unexpected result: %+v", msg.Result)
	}
	if !strings.Contains(msg.HTML, "Confidence: 0.87") {
		t.Fatalf("expected rendered results, got %q", msg.HTML)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"age": 45, "gamma_GTP": 80, "hemoglobin": 15}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	msg = readLive(t, conn)
	if msg.Type != MessageError || msg.Field != "BMI" {
		t.Fatalf("expected field error, got %+v", msg)
	}
	if !strings.Contains(msg.HTML, "Error during prediction") {
		t.Fatalf("expected rendered error, got %q", msg.HTML)
	}
}

func TestLiveStatusBroadcastOnReload(t *testing.T) {
	fake := &fakePredictor{status: predictor.Status{Ready: true, Generation: 3}}
	usePredictor(t, fake)
	conn, hub := dialLive(t)

	deadline := time.Now().Add(5 * time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	w := httptest.NewRecorder()
	handleReload(w, httptest.NewRequest("POST", "/api/reload", nil))

	msg := readLive(t, conn)
	if msg.Type != MessageStatus || msg.Status == nil || msg.Status.Generation != 3 {
		t.Fatalf("expected status broadcast, got %+v", msg)
	}
}
