package events

import (
	"testing"
)

func TestHubPublishSubscribe(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe()
	defer h.Unsubscribe(ch)

	h.Publish(CalibrationFinished, CalibrationEvent{Device: "chip", Channels: 1})

	select {
	case e := <-ch:
		if e.Name != CalibrationFinished {
			t.Errorf("event name = %q, want %q", e.Name, CalibrationFinished)
		}
	default:
		t.Fatal("no event delivered")
	}
}

func TestHubSlowSubscriberDoesNotBlock(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe()
	defer h.Unsubscribe(ch)

	// Overflow the buffered channel; publishes must not block.
	for i := 0; i < 100; i++ {
		h.Publish(TuningError, TuningEvent{Message: "x"})
	}
	if len(ch) != cap(ch) {
		t.Errorf("buffered %d events, want full buffer %d", len(ch), cap(ch))
	}
}

func TestNilHub(t *testing.T) {
	var h *Hub
	// Must not panic.
	h.Publish(TuningError, TuningEvent{})
}
