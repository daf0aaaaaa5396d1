package broker

import (
	"context"
	"errors"
	"fmt"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/zoff-tech/reviewbot/pkg/config"
)

var (
	errNacked = errors.New("rabbitmq: message not confirmed by broker")
	errClosed = errors.New("rabbitmq: broker closed")
)

// pooledChannel is a channel in confirm mode. Publishes on it are serialized by
// the pool, so each publish waits for exactly one confirmation.
type pooledChannel struct {
	channel  amqpChannel
	closed   chan *amqp.Error
	confirms chan amqp.Confirmation
}

func openPooledChannel(conn amqpConnection) (*pooledChannel, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("enable publisher confirms: %w", err)
	}
	return &pooledChannel{
		channel:  ch,
		closed:   ch.NotifyClose(make(chan *amqp.Error, 1)),
		confirms: ch.NotifyPublish(make(chan amqp.Confirmation, 1)),
	}, nil
}

func (pc *pooledChannel) isClosed() bool {
	select {
	case <-pc.closed:
		return true
	default:
		return false
	}
}

var newConnection = func(settings *config.BrokerSettings, logger *zap.Logger) (amqpConnection, error) {
	conn, err := amqp.Dial(settings.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	notifyClose := make(chan *amqp.Error)
	conn.NotifyClose(notifyClose)
	go func() {
		for err := range notifyClose {
			logger.Warn("rabbitmq connection closed", zap.Error(err))
		}
	}()

	return connectionAdapter{conn}, nil
}

func (r *rabbitMqBroker) connectAndInitialize() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errClosed
	}

	if r.connection != nil && !r.connection.IsClosed() {
		r.connection.Close()
	}

	connection, err := newConnection(r.settings, r.logger)
	if err != nil {
		return err
	}
	r.connection = connection

	close(r.channelPool)
	for stale := range r.channelPool {
		stale.channel.Close()
	}
	r.channelPool = make(chan *pooledChannel, r.settings.PoolSize)

	for i := 0; i < r.settings.PoolSize; i++ {
		pc, err := openPooledChannel(connection)
		if err != nil {
			return err
		}
		r.channelPool <- pc
	}

	r.logger.Info("rabbitmq channel pool ready", zap.Int("pool_size", r.settings.PoolSize))
	return nil
}

func (r *rabbitMqBroker) recoverConnection() {
	for {
		select {
		case <-r.reconnectTicker.C:
			r.mu.RLock()
			down := !r.closed && (r.connection == nil || r.connection.IsClosed())
			r.mu.RUnlock()
			if down {
				r.logger.Info("reconnecting to rabbitmq")
				if err := r.connectAndInitialize(); err != nil {
					r.logger.Error("rabbitmq reconnect failed", zap.Error(err))
				}
			}
		case <-r.stopReconnect:
			return
		}
	}
}

// getChannel takes a live channel from the pool or opens a new one when the
// pool is empty.
func (r *rabbitMqBroker) getChannel() (*pooledChannel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, errClosed
	}
	for {
		select {
		case pc := <-r.channelPool:
			if pc.isClosed() {
				r.logger.Debug("discarding closed channel")
				continue
			}
			return pc, nil
		default:
			return openPooledChannel(r.connection)
		}
	}
}

// releaseChannel returns pc to the pool. After Close, or when the pool is
// full, the channel is closed instead.
func (r *rabbitMqBroker) releaseChannel(pc *pooledChannel) {
	if pc.isClosed() {
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		pc.channel.Close()
		return
	}
	select {
	case r.channelPool <- pc:
	default:
		pc.channel.Close()
	}
}

// publishConfirmed publishes msg and blocks until the broker confirms it. A
// channel left with an outstanding confirmation is closed, not pooled.
func (r *rabbitMqBroker) publishConfirmed(ctx context.Context, pc *pooledChannel, exchange, key string, msg amqp.Publishing) error {
	// ExchangeDeclare is idempotent and has no effect if the exchange is already in place
	err := pc.channel.ExchangeDeclare(
		exchange,            // name of the exchange
		defaultExchangeKind, // type of the exchange
		true,                // durable
		false,               // auto-deleted
		false,               // internal
		false,               // no-wait
		nil,                 // arguments
	)
	if err != nil {
		r.releaseChannel(pc)
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	if err := pc.channel.Publish(exchange, key, false, false, msg); err != nil {
		r.releaseChannel(pc)
		return fmt.Errorf("publish to %s: %w", exchange, err)
	}

	select {
	case confirm, ok := <-pc.confirms:
		r.releaseChannel(pc)
		if !ok {
			return fmt.Errorf("publish to %s: channel closed before confirmation", exchange)
		}
		if !confirm.Ack {
			return errNacked
		}
		return nil
	case <-ctx.Done():
		pc.channel.Close()
		return ctx.Err()
	}
}
