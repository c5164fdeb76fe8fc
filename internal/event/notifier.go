package event

import (
	"context"
	"fmt"
)

// MessageProducer is satisfied by the Kafka producer wrapper.
type MessageProducer interface {
	SendMessage(ctx context.Context, key string, value any) error
}

// KafkaNotifier publishes accepted-event notifications keyed by origin ID, so
// all notifications for one origin land in the same partition and the
// aggregator consumes them in order.
type KafkaNotifier struct {
	producer MessageProducer
}

func NewKafkaNotifier(producer MessageProducer) *KafkaNotifier {
	return &KafkaNotifier{producer: producer}
}

func (n *KafkaNotifier) EventAccepted(ctx context.Context, notification Notification) error {
	if err := n.producer.SendMessage(ctx, notification.OriginID.String(), notification); err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	return nil
}
