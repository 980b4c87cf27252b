package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/storefront/customizer/internal/services"
)

// PubSubLineItemPublisher publishes cart line item events to a Pub/Sub topic.
type PubSubLineItemPublisher struct {
	topic   *pubsub.Topic
	timeout time.Duration
	marshal func(any) ([]byte, error)
}

var _ services.LineItemPublisher = (*PubSubLineItemPublisher)(nil)

// NewPubSubLineItemPublisher constructs a Pub/Sub backed line item publisher.
// A positive timeout bounds how long a publish waits for the server ack.
func NewPubSubLineItemPublisher(topic *pubsub.Topic, timeout time.Duration) (*PubSubLineItemPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub line item publisher: topic is required")
	}
	return &PubSubLineItemPublisher{
		topic:   topic,
		timeout: timeout,
		marshal: json.Marshal,
	}, nil
}

// PublishLineItemAdded sends the event and returns the server-assigned message ID.
func (p *PubSubLineItemPublisher) PublishLineItemAdded(ctx context.Context, event services.LineItemEvent) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub line item publisher: not initialised")
	}

	data, err := p.marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal line item event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "eventType", event.Type)
	setAttr(attrs, "cartId", event.CartID)
	setAttr(attrs, "itemId", event.ItemID)
	setAttr(attrs, "variantId", event.VariantID)
	if len(event.Attributes) > 0 {
		attrs["customized"] = strconv.FormatBool(true)
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish line item event: %w", err)
	}
	return id, nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
