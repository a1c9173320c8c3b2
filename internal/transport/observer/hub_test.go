package observer

import "testing"

func TestHubPrimesLateSubscribers(t *testing.T) {
	h := NewHub()
	h.Open("s1", "SEEDSEED0001")
	h.PublishState("s1", 3, "playing", []byte(`{"type":"STATE","round":3}`))

	ch, cancel, ok := h.Subscribe("s1", 4)
	if !ok {
		t.Fatalf("subscribe failed")
	}
	defer cancel()
	if got := string(<-ch); got != `{"type":"STATE","round":3}` {
		t.Fatalf("first frame: %s", got)
	}
	h.Publish("s1", []byte(`{"type":"ROUND"}`))
	if got := string(<-ch); got != `{"type":"ROUND"}` {
		t.Fatalf("relayed frame: %s", got)
	}

	live := h.Live()
	if len(live) != 1 || live[0].Round != 3 || live[0].Phase != "playing" || live[0].Seed != "SEEDSEED0001" {
		t.Fatalf("live: %+v", live)
	}
}

func TestHubDropsWhenSubscriberIsSlow(t *testing.T) {
	h := NewHub()
	h.Open("s1", "")
	ch, cancel, _ := h.Subscribe("s1", 1)
	defer cancel()
	for i := 0; i < 10; i++ {
		h.Publish("s1", []byte("x"))
	}
	if len(ch) != 1 {
		t.Fatalf("buffered=%d", len(ch))
	}
}

func TestHubCloseEndsSubscriptions(t *testing.T) {
	h := NewHub()
	h.Open("s1", "")
	ch, cancel, _ := h.Subscribe("s1", 1)
	h.Close("s1")
	if _, ok := <-ch; ok {
		t.Fatalf("channel should be closed")
	}
	cancel() // no double close
	if _, _, ok := h.Subscribe("s1", 1); ok {
		t.Fatalf("closed session still subscribable")
	}
	if len(h.Live()) != 0 {
		t.Fatalf("closed session still listed")
	}
}

func TestNilHubIsNoop(t *testing.T) {
	var h *Hub
	h.Open("s", "")
	h.Publish("s", nil)
	h.PublishState("s", 1, "playing", nil)
	h.Close("s")
	if h.Live() != nil {
		t.Fatalf("nil hub listed sessions")
	}
	ch, cancel, ok := h.Subscribe("s", 0)
	if ok || ch != nil || cancel == nil {
		t.Fatalf("nil hub subscribe: ok=%v ch=%v", ok, ch)
	}
	cancel()
}
