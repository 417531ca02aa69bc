package hub

import (
	"context"
	"testing"
	"time"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	h := New("test", nil)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(cancel)
	return h, cancel
}

func recv(t *testing.T, sub *Subscription) (Message, bool) {
	t.Helper()
	select {
	case msg, ok := <-sub.C():
		return msg, ok
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}, false
	}
}

func TestHub_BroadcastReachesSubscribers(t *testing.T) {
	h, _ := startHub(t)

	a := h.Subscribe(4)
	b := h.Subscribe(4)
	if h.ClientCount() != 2 {
		t.Fatalf("expected 2 subscribers, got %d", h.ClientCount())
	}

	if err := h.BroadcastJSON(map[string]float64{"luma": 42}); err != nil {
		t.Fatalf("BroadcastJSON failed: %v", err)
	}

	for _, sub := range []*Subscription{a, b} {
		msg, ok := recv(t, sub)
		if !ok {
			t.Fatal("subscription closed unexpectedly")
		}
		if msg.Type != JSONMessage || string(msg.Data) != `{"luma":42}` {
			t.Errorf("unexpected message %d %q", msg.Type, msg.Data)
		}
	}
}

func TestHub_CloseUnsubscribes(t *testing.T) {
	h, _ := startHub(t)

	sub := h.Subscribe(1)
	sub.Close()

	if _, ok := recv(t, sub); ok {
		t.Error("expected closed channel after Close")
	}
	if h.ClientCount() != 0 {
		t.Errorf("expected 0 subscribers, got %d", h.ClientCount())
	}
}

func TestHub_DropsSlowSubscriber(t *testing.T) {
	h, _ := startHub(t)

	slow := h.Subscribe(1)
	h.BroadcastBinary([]byte{1})
	h.BroadcastBinary([]byte{2})

	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("slow subscriber was not dropped")
		}
		time.Sleep(5 * time.Millisecond)
	}

	msg, ok := recv(t, slow)
	if !ok || msg.Data[0] != 1 {
		t.Errorf("expected first message before close, got %v %v", msg, ok)
	}
	if _, ok := recv(t, slow); ok {
		t.Error("expected channel closed after drop")
	}
}

func TestHub_StopClosesSubscriptions(t *testing.T) {
	h, cancel := startHub(t)
	sub := h.Subscribe(1)

	cancel()
	if _, ok := recv(t, sub); ok {
		t.Error("expected closed channel after stop")
	}

	if h.Subscribe(1) != nil {
		t.Error("Subscribe after stop should return nil")
	}
	sub.Close() // must not block
}
