package dispatch

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/example/ridepool/internal/models"
)

type recordingDispatcher struct {
	fail  bool
	calls int
}

func (r *recordingDispatcher) Offer(driverID string, offer models.MatchOffer) error {
	r.calls++
	if r.fail {
		return errors.New("delivery failed")
	}
	return nil
}

func testOffer() models.MatchOffer {
	return models.MatchOffer{RideID: "r1", DriverID: "d1", PassengerID: "p1", DetourSeconds: 120}
}

func TestChainStopsAtFirstDelivery(t *testing.T) {
	first := &recordingDispatcher{}
	second := &recordingDispatcher{}
	if err := (Chain{first, second}).Offer("d1", testOffer()); err != nil {
		t.Fatalf("Offer: %v", err)
	}
	if first.calls != 1 || second.calls != 0 {
		t.Fatalf("calls = %d/%d", first.calls, second.calls)
	}
}

func TestChainFallsThroughOnFailure(t *testing.T) {
	first := &recordingDispatcher{fail: true}
	second := &recordingDispatcher{}
	if err := (Chain{first, second}).Offer("d1", testOffer()); err != nil {
		t.Fatalf("Offer: %v", err)
	}
	if first.calls != 1 || second.calls != 1 {
		t.Fatalf("calls = %d/%d", first.calls, second.calls)
	}
}

func TestChainEmptyReportsNoSession(t *testing.T) {
	if err := (Chain{}).Offer("d1", testOffer()); !errors.Is(err, ErrNoSession) {
		t.Fatalf("want ErrNoSession, got %v", err)
	}
}

// wsPair upgrades one connection through httptest and hands back both ends.
func wsPair(t *testing.T) (server, client *websocket.Conn) {
	t.Helper()
	upgraded := make(chan *websocket.Conn, 1)
	var up websocket.Upgrader
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := up.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		upgraded <- c
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return <-upgraded, client
}

func TestWSRegistryDeliversOffer(t *testing.T) {
	server, client := wsPair(t)
	reg := NewWSRegistry(nil)
	reg.Add("d1", server)

	if err := reg.Offer("d1", testOffer()); err != nil {
		t.Fatalf("Offer: %v", err)
	}
	var got models.MatchOffer
	if err := client.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if got.RideID != "r1" {
		t.Fatalf("ride_id = %q", got.RideID)
	}
}

func TestWSRegistryDropsDeadSession(t *testing.T) {
	server, _ := wsPair(t)
	reg := NewWSRegistry(nil)
	reg.Add("d1", server)

	_ = server.Close()
	if err := reg.Offer("d1", testOffer()); err == nil {
		t.Fatal("expected write error on closed connection")
	}
	// the failed write retired the session
	if err := reg.Offer("d1", testOffer()); !errors.Is(err, ErrNoSession) {
		t.Fatalf("want ErrNoSession, got %v", err)
	}
}

func TestPushDispatcherPostsWithoutSession(t *testing.T) {
	var got struct {
		DriverID string            `json:"driver_id"`
		Offer    models.MatchOffer `json:"offer"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	p := NewPushDispatcher(srv.URL, nil)
	if err := p.Offer("d1", testOffer()); err != nil {
		t.Fatalf("Offer: %v", err)
	}
	if got.DriverID != "d1" || got.Offer.RideID != "r1" {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestPushDispatcherNoEndpointNoSession(t *testing.T) {
	p := NewPushDispatcher("", nil)
	if err := p.Offer("d1", testOffer()); !errors.Is(err, ErrNoSession) {
		t.Fatalf("want ErrNoSession, got %v", err)
	}
}

func TestFCMDispatcherPostsTopicMessage(t *testing.T) {
	var got struct {
		Message struct {
			Topic string            `json:"topic"`
			Data  map[string]string `json:"data"`
		} `json:"message"`
	}
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
	}))
	defer srv.Close()

	f := NewFCMDispatcher(srv.URL, "secret")
	if err := f.Offer("d1", testOffer()); err != nil {
		t.Fatalf("Offer: %v", err)
	}
	if got.Message.Topic != "driver.d1" {
		t.Fatalf("topic = %q", got.Message.Topic)
	}
	if got.Message.Data["ride_id"] != "r1" || got.Message.Data["detour_seconds"] != "120" {
		t.Fatalf("data = %v", got.Message.Data)
	}
	if auth != "Bearer secret" {
		t.Fatalf("auth = %q", auth)
	}
}

func TestFCMDispatcherNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if err := NewFCMDispatcher(srv.URL, "").Offer("d1", testOffer()); err == nil {
		t.Fatal("expected error on 502")
	}
}
