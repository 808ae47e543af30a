package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"props-shop/internal/models"
)

// Producer streams order lifecycle events. Publishing is best-effort
// everywhere: a broker outage never fails a checkout.
type Producer struct {
	Writer *kafka.Writer
	Topics Topics
}

// Topics maps the order lifecycle to broker topic names.
type Topics struct {
	Created   string
	Paid      string
	Cancelled string
	Refunded  string
}

func DefaultTopics() Topics {
	return Topics{
		Created:   TopicOrderCreated,
		Paid:      TopicOrderPaid,
		Cancelled: TopicOrderCancelled,
		Refunded:  TopicOrderRefunded,
	}
}

func NewProducer(brokers []string, topics Topics) *Producer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.LeastBytes{},
	}
	return &Producer{Writer: writer, Topics: topics}
}

func (p *Producer) Publish(topic, key string, value []byte) error {
	if p.Writer == nil {
		return nil
	}
	return p.Writer.WriteMessages(context.Background(),
		kafka.Message{
			Topic: topic,
			Key:   []byte(key),
			Value: value,
		},
	)
}

// OrderEvent is the payload shared by all order topics.
type OrderEvent struct {
	Type        string    `json:"type"`
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Status      string    `json:"status"`
	Total       float64   `json:"total"`
	Timestamp   time.Time `json:"timestamp"`
}

func (p *Producer) publishOrder(topic, eventType string, order models.Order) error {
	event := OrderEvent{
		Type:        eventType,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Status:      order.Status,
		Total:       order.Total,
		Timestamp:   time.Now(),
	}
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal order event: %w", err)
	}
	return p.Publish(topic, order.ID, value)
}

func (p *Producer) PublishOrderCreated(order models.Order) error {
	return p.publishOrder(p.Topics.Created, "order.created", order)
}

func (p *Producer) PublishOrderPaid(order models.Order) error {
	return p.publishOrder(p.Topics.Paid, "order.paid", order)
}

func (p *Producer) PublishOrderCancelled(order models.Order) error {
	return p.publishOrder(p.Topics.Cancelled, "order.cancelled", order)
}

func (p *Producer) PublishOrderRefunded(order models.Order) error {
	return p.publishOrder(p.Topics.Refunded, "order.refunded", order)
}

func (p *Producer) Close() error {
	if p.Writer == nil {
		return nil
	}
	return p.Writer.Close()
}
