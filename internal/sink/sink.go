// Package sink provides notify.Sink implementations: the event-bus hand-off
// to the host UI, and an optional Telegram mirror.
package sink

import (
	"tvnotifyd/internal/eventbus"
	"tvnotifyd/internal/notify"
)

// Bus publishes notifications onto the event bus, the in-process stand-in
// for the GUI message transport.
type Bus struct {
	bus eventbus.Bus
}

func NewBus(bus eventbus.Bus) *Bus { return &Bus{bus: bus} }

func (s *Bus) Emit(heading, body string, ch notify.Channel) {
	s.bus.Publish(eventbus.Event{Type: eventbus.TypeAlert, Data: eventbus.Alert{
		Heading:     heading,
		Body:        body,
		ChannelID:   ch.ID,
		ChannelName: ch.Name,
	}})
}

// Multi fans one notification out to several sinks.
type Multi []notify.Sink

func (m Multi) Emit(heading, body string, ch notify.Channel) {
	for _, s := range m {
		if s != nil {
			s.Emit(heading, body, ch)
		}
	}
}
