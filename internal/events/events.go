package events

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"cabinrent/internal/models"
)

const (
	EventReservationCreated       = "reservation.created"
	EventReservationUpdated       = "reservation.updated"
	EventReservationStatusChanged = "reservation.status_changed"
	EventReservationDeleted       = "reservation.deleted"
	EventPaymentCreated           = "payment.created"
	EventPaymentDeleted           = "payment.deleted"
	EventBookingRequestCreated    = "booking_request.created"
	EventBookingRequestApproved   = "booking_request.approved"
	EventBookingRequestRejected   = "booking_request.rejected"
	EventCabinChanged             = "cabin.changed"
	EventGuestChanged             = "guest.changed"
)

// wildcard is the subscription key that receives every event type.
const wildcard = "*"

// ReservationEventPayload describes the reservation snapshot for event consumers.
type ReservationEventPayload struct {
	ReservationID  int64       `json:"reservation_id"`
	CabinID        int64       `json:"cabin_id"`
	CabinName      string      `json:"cabin_name,omitempty"`
	GuestID        int64       `json:"guest_id"`
	GuestName      string      `json:"guest_name,omitempty"`
	StartDate      models.Date `json:"start_date"`
	EndDate        models.Date `json:"end_date"`
	Status         string      `json:"status"`
	PreviousStatus string      `json:"previous_status,omitempty"`
	TotalPrice     float64     `json:"total_price"`
	ChangedBy      string      `json:"changed_by,omitempty"`
	ChangedByID    int64       `json:"changed_by_id,omitempty"`
}

// NewReservationPayload copies the fields consumers need from r.
func NewReservationPayload(r *models.Reservation) ReservationEventPayload {
	return ReservationEventPayload{
		ReservationID: r.ID,
		CabinID:       r.CabinID,
		CabinName:     r.CabinName,
		GuestID:       r.GuestID,
		GuestName:     r.GuestName,
		StartDate:     r.StartDate,
		EndDate:       r.EndDate,
		Status:        r.Status,
		TotalPrice:    r.TotalPrice,
	}
}

type PaymentEventPayload struct {
	PaymentID     int64   `json:"payment_id"`
	ReservationID int64   `json:"reservation_id"`
	Amount        float64 `json:"amount"`
	Method        string  `json:"method"`
	Status        string  `json:"status"`
	ChangedBy     string  `json:"changed_by,omitempty"`
}

type BookingRequestEventPayload struct {
	RequestID     int64       `json:"request_id"`
	CabinID       int64       `json:"cabin_id"`
	Status        string      `json:"status"`
	StartDate     models.Date `json:"start_date"`
	EndDate       models.Date `json:"end_date"`
	ReservationID int64       `json:"reservation_id,omitempty"`
	ChangedBy     string      `json:"changed_by,omitempty"`
}

// EntityEventPayload is used for plain CRUD changes of cabins and guests.
type EntityEventPayload struct {
	ID     int64  `json:"id"`
	Action string `json:"action"` // created, updated, deleted
}

// Event represents a lightweight domain event.
type Event struct {
	ID        int64           `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	seq         atomic.Int64
	onError     func(event *Event, err error)
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// OnError installs a callback for handler failures. Without it failures are dropped.
func (b *EventBus) OnError(fn func(event *Event, err error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onError = fn
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// SubscribeAll registers a handler that receives every event.
func (b *EventBus) SubscribeAll(handler EventHandler) {
	b.Subscribe(wildcard, handler)
}

// Publish notifies subscribers of the event type, then wildcard subscribers.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	handlers = append(handlers, b.subscribers[wildcard]...)
	onError := b.onError
	b.mu.RUnlock()

	if event.ID == 0 {
		event.ID = b.seq.Add(1)
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		if err := handler(event); err != nil && onError != nil {
			onError(event, err)
		}
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	event, err := NewJSONEvent(eventType, payload)
	if err != nil {
		return err
	}
	b.Publish(&event)
	return nil
}

// NewJSONEvent builds an Event with JSON payload for manual publishing.
func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}
