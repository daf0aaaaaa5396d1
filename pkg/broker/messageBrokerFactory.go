package broker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/zoff-tech/reviewbot/pkg/config"
)

// NewBroker builds the broker named by cfg.Type.
func NewBroker(ctx context.Context, cfg *config.BrokerSettings, logger *zap.Logger) (MessageBroker, error) {
	switch cfg.Type {
	case "", "none":
		return noopBroker{}, nil
	case "rabbitmq":
		return NewRabbitMqBroker(ctx, cfg, logger)
	case "gcp-pubsub":
		return NewPubSubClient(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported broker type: %s", cfg.Type)
	}
}
