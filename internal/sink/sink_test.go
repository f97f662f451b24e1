package sink

import (
	"testing"
	"time"

	"tvnotifyd/internal/eventbus"
	"tvnotifyd/internal/notify"
)

func TestBusSinkPublishesAlert(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	events, unsub := bus.Subscribe(4)
	defer unsub()

	s := NewBus(bus)
	s.Emit("Starting soon", "News 20:00-20:30", notify.Channel{ID: 1, Name: "One"})

	select {
	case ev := <-events:
		if ev.Type != eventbus.TypeAlert {
			t.Fatalf("Type = %s", ev.Type)
		}
		alert, ok := ev.Data.(eventbus.Alert)
		if !ok {
			t.Fatalf("Data = %#v", ev.Data)
		}
		want := eventbus.Alert{
			Heading:     "Starting soon",
			Body:        "News 20:00-20:30",
			ChannelID:   1,
			ChannelName: "One",
		}
		if alert != want {
			t.Fatalf("alert = %+v, want %+v", alert, want)
		}
	case <-time.After(time.Second):
		t.Fatal("no alert published")
	}
}

type countingSink struct {
	n int
}

func (c *countingSink) Emit(heading, body string, ch notify.Channel) { c.n++ }

func TestMultiFansOutAndSkipsNil(t *testing.T) {
	t.Parallel()
	a, b := &countingSink{}, &countingSink{}
	m := Multi{a, nil, b}

	m.Emit("h", "b", notify.Channel{})
	m.Emit("h", "b", notify.Channel{})

	if a.n != 2 || b.n != 2 {
		t.Fatalf("counts = %d, %d, want 2, 2", a.n, b.n)
	}
}
