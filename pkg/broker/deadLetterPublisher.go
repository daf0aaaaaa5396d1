package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/zoff-tech/reviewbot/schema"
)

// DeadLetterPublisher sends a JSON notice to a broker topic whenever an entry fails for good.
type DeadLetterPublisher struct {
	broker MessageBroker
	topic  string
	logger *zap.Logger
}

func NewDeadLetterPublisher(broker MessageBroker, topic string, logger *zap.Logger) *DeadLetterPublisher {
	return &DeadLetterPublisher{broker: broker, topic: topic, logger: logger.Named("dead_letter")}
}

func (p *DeadLetterPublisher) PublishDeadLetter(ctx context.Context, letter schema.DeadLetter) error {
	data, err := json.Marshal(letter)
	if err != nil {
		return fmt.Errorf("encode dead letter: %w", err)
	}

	headers := map[string]string{
		"queue":        letter.Queue,
		"failure_type": string(letter.FailureType),
		"attempt":      strconv.Itoa(letter.Attempt),
	}
	if err := p.broker.Publish(ctx, p.topic, data, headers); err != nil {
		return fmt.Errorf("publish dead letter %s: %w", letter.EntryID, err)
	}

	p.logger.Debug("dead letter published",
		zap.String("queue", letter.Queue),
		zap.String("entry_id", letter.EntryID.String()))
	return nil
}
