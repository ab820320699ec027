package sse

import (
	"context"
	"sync"

	"ms-invites/internal/models"
)

const clientBuffer = 10

// CheckInEventEmitter fans recorded check-ins out to the live feed clients of each event
type CheckInEventEmitter struct {
	// key: eventID, value: client channels
	eventClients     map[string][]chan models.CheckInRecordedEvent
	eventClientMutex sync.RWMutex
}

// NewCheckInEventEmitter creates an emitter with no subscribers
func NewCheckInEventEmitter() *CheckInEventEmitter {
	return &CheckInEventEmitter{
		eventClients: make(map[string][]chan models.CheckInRecordedEvent),
	}
}

// SubscribeToEvent adds a client to the event's check-ins. The channel is closed once ctx ends.
func (e *CheckInEventEmitter) SubscribeToEvent(ctx context.Context, eventID string) <-chan models.CheckInRecordedEvent {
	clientChan := make(chan models.CheckInRecordedEvent, clientBuffer)

	e.eventClientMutex.Lock()
	e.eventClients[eventID] = append(e.eventClients[eventID], clientChan)
	e.eventClientMutex.Unlock()

	go func() {
		<-ctx.Done()
		e.removeEventClient(eventID, clientChan)
	}()

	return clientChan
}

// EmitCheckIn broadcasts a check-in to the event's subscribers. Slow clients miss events
// instead of blocking the caller.
func (e *CheckInEventEmitter) EmitCheckIn(evt models.CheckInRecordedEvent) {
	e.eventClientMutex.RLock()
	defer e.eventClientMutex.RUnlock()

	for _, clientChan := range e.eventClients[evt.EventID.String()] {
		select {
		case clientChan <- evt:
		default:
		}
	}
}

// NotifyCheckIn lets the emitter act as a check-in notifier
func (e *CheckInEventEmitter) NotifyCheckIn(ctx context.Context, evt models.CheckInRecordedEvent) error {
	e.EmitCheckIn(evt)
	return nil
}

func (e *CheckInEventEmitter) removeEventClient(eventID string, clientChan chan models.CheckInRecordedEvent) {
	e.eventClientMutex.Lock()
	defer e.eventClientMutex.Unlock()

	clients := e.eventClients[eventID]
	for i, ch := range clients {
		if ch == clientChan {
			e.eventClients[eventID] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}

	if len(e.eventClients[eventID]) == 0 {
		delete(e.eventClients, eventID)
	}
}

// GetEventClientCount returns the number of clients currently subscribed to an event
func (e *CheckInEventEmitter) GetEventClientCount(eventID string) int {
	e.eventClientMutex.RLock()
	defer e.eventClientMutex.RUnlock()
	return len(e.eventClients[eventID])
}
