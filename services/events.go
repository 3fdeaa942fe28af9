package services

import "sync"

// Event names emitted by the core. Consumers (email, logging) subscribe to
// the dispatcher; the core never blocks on delivery.
const (
	EventAffiliateCreated   = "affiliate.created"
	EventAffiliateApproved  = "affiliate.approved"
	EventAffiliateRejected  = "affiliate.rejected"
	EventCommissionCreated  = "commission.created"
	EventCommissionApproved = "commission.approved"
	EventCommissionRejected = "commission.rejected"
	EventCommissionPaid     = "commission.paid"
	EventPaymentCreated     = "payment.created"
	EventPaymentCompleted   = "payment.completed"
	EventPaymentFailed      = "payment.failed"
	EventVisitTracked       = "visit.tracked"
	EventLinkGenerated      = "link.generated"
	EventFraudDetected      = "fraud.detected"
)

// EventPayload carries event-specific fields
type EventPayload map[string]interface{}

// EventSink receives named events, fire-and-forget
type EventSink interface {
	Emit(event string, payload EventPayload)
}

// EventHandler consumes a single event
type EventHandler func(event string, payload EventPayload)

// EventDispatcher fans events out to subscribed handlers, each in its own
// goroutine so a slow consumer cannot stall the caller
type EventDispatcher struct {
	mu       sync.RWMutex
	handlers []EventHandler
}

func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{}
}

// Subscribe registers a handler for all events
func (d *EventDispatcher) Subscribe(handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = append(d.handlers, handler)
}

// Emit dispatches the event to every handler without waiting for them
func (d *EventDispatcher) Emit(event string, payload EventPayload) {
	d.mu.RLock()
	handlers := make([]EventHandler, len(d.handlers))
	copy(handlers, d.handlers)
	d.mu.RUnlock()

	for _, handler := range handlers {
		go handler(event, payload)
	}
}
