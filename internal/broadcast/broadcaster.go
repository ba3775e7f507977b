package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"pawn-pos/internal/store"
)

type message struct {
	Session string `json:"session"`
	Key     string `json:"key"`
	Origin  string `json:"origin"`
}

// Broadcaster fans session store changes out to every API process bound to
// the exchange. It is a store.Notifier and a store.Feed.
type Broadcaster struct {
	pool     *ChannelPool
	exchange string
	origin   string
	logger   *zap.Logger
}

func NewBroadcaster(pool *ChannelPool, exchange, origin string, logger *zap.Logger) *Broadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{pool: pool, exchange: exchange, origin: origin, logger: logger}
}

func (b *Broadcaster) Notify(ctx context.Context, change store.Change) error {
	ch, err := b.pool.Get()
	if err != nil {
		return fmt.Errorf("get channel: %w", err)
	}
	defer b.pool.Put(ch)

	body, err := json.Marshal(message{Session: change.Key.Session, Key: change.Key.Name, Origin: b.origin})
	if err != nil {
		return err
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return ch.PublishWithContext(pubCtx,
		b.exchange, // exchange
		"",         // routing key, ignored by fanout
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		})
}

// Listen binds an exclusive queue to the exchange and forwards changes written
// by other processes until ctx is done.
func (b *Broadcaster) Listen(ctx context.Context, fn func(store.Change)) error {
	ch, err := b.pool.Open()
	if err != nil {
		return fmt.Errorf("open consumer channel: %w", err)
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(
		"",    // name, server generated
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", b.exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}
	b.logger.Info("broadcast: consuming", zap.String("exchange", b.exchange), zap.String("queue", q.Name))

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			if change, ok := b.decode(d.Body); ok {
				fn(change)
			}
		}
	}
}

// decode drops malformed messages and the ones this process published.
func (b *Broadcaster) decode(body []byte) (store.Change, bool) {
	var msg message
	if err := json.Unmarshal(body, &msg); err != nil {
		b.logger.Warn("broadcast: bad message", zap.Error(err))
		return store.Change{}, false
	}
	if msg.Origin == b.origin || msg.Session == "" {
		return store.Change{}, false
	}
	return store.Change{Key: store.Key{Session: msg.Session, Name: msg.Key}}, true
}
