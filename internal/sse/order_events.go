package sse

import (
	"context"
	"sync"
)

// OrderStatusEvent is pushed to subscribers whenever an order's state
// changes, letting the checkout UI react to webhook-driven transitions it
// would otherwise miss.
type OrderStatusEvent struct {
	OrderNumber   string `json:"order_number"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
}

// OrderEventEmitter manages SSE subscribers keyed by order number.
type OrderEventEmitter struct {
	mu      sync.RWMutex
	clients map[string][]chan OrderStatusEvent
}

func NewOrderEventEmitter() *OrderEventEmitter {
	return &OrderEventEmitter{
		clients: make(map[string][]chan OrderStatusEvent),
	}
}

// Subscribe registers a client for an order's status changes. The channel is
// removed when ctx is done.
func (e *OrderEventEmitter) Subscribe(ctx context.Context, orderNumber string) chan OrderStatusEvent {
	clientChan := make(chan OrderStatusEvent, 10)

	e.mu.Lock()
	e.clients[orderNumber] = append(e.clients[orderNumber], clientChan)
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.remove(orderNumber, clientChan)
	}()

	return clientChan
}

// Emit broadcasts an event to every subscriber of the order. Slow clients
// are skipped rather than blocking the emitter.
func (e *OrderEventEmitter) Emit(event OrderStatusEvent) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, clientChan := range e.clients[event.OrderNumber] {
		select {
		case clientChan <- event:
		default:
		}
	}
}

func (e *OrderEventEmitter) remove(orderNumber string, clientChan chan OrderStatusEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	channels := e.clients[orderNumber]
	for i, ch := range channels {
		if ch == clientChan {
			e.clients[orderNumber] = append(channels[:i], channels[i+1:]...)
			close(ch)
			break
		}
	}
	if len(e.clients[orderNumber]) == 0 {
		delete(e.clients, orderNumber)
	}
}
