// Package redisbus carries queue change events between processes so a
// notifier running next to the API refreshes as soon as a booking changes.
package redisbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/barbershop-booking/internal/domain"
	"github.com/go-redis/redis/v8"
)

// Change announces that the queue of Date may have moved.
type Change struct {
	Date          string    `json:"date"`
	AppointmentID string    `json:"appointment_id,omitempty"`
	At            time.Time `json:"at"`
}

type Bus struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

func NewClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
}

func NewBus(client *redis.Client, channel string, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{client: client, channel: channel, logger: logger}
}

func (b *Bus) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *Bus) Publish(ctx context.Context, c Change) error {
	if c.At.IsZero() {
		c.At = time.Now().UTC()
	}
	payload, err := encode(c)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", b.channel, err)
	}
	return nil
}

// QueueChanged announces a booking change to other processes. Failures are
// logged; the periodic refresh still picks the change up.
func (b *Bus) QueueChanged(ctx context.Context, a domain.Appointment) {
	err := b.Publish(ctx, Change{Date: a.Date, AppointmentID: a.AppointmentID})
	if err != nil {
		b.logger.Warn("failed to announce queue change", "appointment_id", a.AppointmentID, "err", err)
	}
}

// Subscribe calls fn for every change until ctx ends. Malformed payloads are
// logged and skipped.
func (b *Bus) Subscribe(ctx context.Context, fn func(Change)) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe %s: %w", b.channel, err)
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			c, err := decode(msg.Payload)
			if err != nil {
				b.logger.Warn("skipping malformed queue change", "channel", b.channel, "err", err)
				continue
			}
			fn(c)
		}
	}
}

func encode(c Change) (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode queue change: %w", err)
	}
	return string(b), nil
}

func decode(payload string) (Change, error) {
	var c Change
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return Change{}, fmt.Errorf("decode queue change: %w", err)
	}
	if c.Date == "" {
		return Change{}, fmt.Errorf("decode queue change: missing date")
	}
	return c, nil
}
