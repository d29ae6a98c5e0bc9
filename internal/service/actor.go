package service

import (
	"cabinrent/internal/domain"

	"github.com/rs/zerolog"
)

// Actor identifies who triggered a change; it ends up in event payloads.
type Actor struct {
	ID       int64
	Username string
}

// System is the actor for changes made by the service itself or by anonymous visitors.
var System = Actor{Username: "system"}

func publish(bus domain.EventPublisher, logger *zerolog.Logger, eventType string, payload interface{}) {
	if bus == nil {
		return
	}
	if err := bus.PublishJSON(eventType, payload); err != nil {
		logger.Error().Err(err).Str("event_type", eventType).Msg("publish event error")
	}
}

func nopLogger(logger *zerolog.Logger) *zerolog.Logger {
	if logger != nil {
		return logger
	}
	nop := zerolog.Nop()
	return &nop
}
