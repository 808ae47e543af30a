package kafka

import (
	"fmt"
	"net"
	"strconv"

	kafka "github.com/segmentio/kafka-go"
)

// Order lifecycle topics. Overridable via config; these are the defaults.
const (
	TopicOrderCreated   = "shop.orders.created"
	TopicOrderPaid      = "shop.orders.paid"
	TopicOrderCancelled = "shop.orders.cancelled"
	TopicOrderRefunded  = "shop.orders.refunded"
)

// CreateTopicIfNotExists provisions a topic on first use so a fresh broker
// does not reject the first publish.
func CreateTopicIfNotExists(brokers []string, topic string) error {
	if len(brokers) == 0 {
		return fmt.Errorf("no kafka brokers configured")
	}

	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("failed to dial kafka broker: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("failed to get kafka controller: %w", err)
	}

	controllerConn, err := kafka.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("failed to dial kafka controller: %w", err)
	}
	defer controllerConn.Close()

	topicConfig := kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}
	if err := controllerConn.CreateTopics(topicConfig); err != nil {
		return fmt.Errorf("failed to create topic %s: %w", topic, err)
	}
	return nil
}
