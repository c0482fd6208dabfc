package service

import (
	"context"
	"time"

	"set_and_wait/internal/logger"
	"set_and_wait/internal/models"
	"set_and_wait/internal/repository"

	"github.com/google/uuid"
)

// HostEvent is a signal from the host or the printer link.
type HostEvent string

const (
	HostConnected       HostEvent = "CONNECTED"
	HostDisconnecting   HostEvent = "DISCONNECTING"
	HostPrintStarted    HostEvent = "PRINT_STARTED"
	HostPrintDone       HostEvent = "PRINT_DONE"
	HostPrintCancelling HostEvent = "PRINT_CANCELLING"
	HostError           HostEvent = "ERROR"
)

// abortsWaits reports whether ev must stop every wait.
func (ev HostEvent) abortsWaits() bool {
	switch ev {
	case HostDisconnecting, HostPrintCancelling, HostError:
		return true
	default:
		return false
	}
}

// EventBridge turns host events into wait aborts.
type EventBridge struct {
	waiter    Waiter
	eventRepo repository.EventRepo
	log       *logger.Logger
}

func NewEventBridge(waiter Waiter, eventRepo repository.EventRepo, log *logger.Logger) *EventBridge {
	if log == nil {
		log = logger.Nop()
	}
	return &EventBridge{waiter: waiter, eventRepo: eventRepo, log: log}
}

// Publish handles one host event. Safe to call from any goroutine.
func (b *EventBridge) Publish(ev HostEvent) {
	b.log.Infow("host_event", "event", string(ev))
	if b.eventRepo != nil {
		if err := b.eventRepo.Append(context.Background(), models.WaitEvent{
			EventID:     uuid.NewString(),
			OccurredAt:  time.Now().UTC(),
			Type:        models.EventHostEvent,
			Description: "Host event " + string(ev),
			Metadata:    map[string]any{"event": string(ev), "aborts": ev.abortsWaits()},
		}); err != nil {
			b.log.Errorw("host_event_append_failed", "event", string(ev), "err", err)
		}
	}
	if ev.abortsWaits() {
		b.waiter.AbortAll(models.HostActor(string(ev)))
	}
}
