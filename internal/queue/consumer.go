package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// StaffConsumer drains the staff queue and appends one line per event to a
// journal, typically a rotating file.
type StaffConsumer struct {
	url     string
	log     *slog.Logger
	mu      sync.Mutex
	journal io.Writer
}

func NewStaffConsumer(url string, journal io.Writer, log *slog.Logger) *StaffConsumer {
	if log == nil {
		log = slog.Default()
	}
	return &StaffConsumer{url: url, journal: journal, log: log.With("component", "staff-consumer")}
}

// Run connects to the broker and consumes until ctx is cancelled. Broker
// failures are retried with exponential backoff capped at 30s.
func (c *StaffConsumer) Run(ctx context.Context) {
	backoff := time.Second
	for ctx.Err() == nil {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn("dial broker failed", "err", err, "retry_in", backoff.String())
			if !sleep(ctx, backoff) {
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		c.log.Warn("consume loop ended, reconnecting", "err", err)
		if !sleep(ctx, 2*time.Second) {
			return
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *StaffConsumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.Warn("set QoS failed", "err", err)
	}
	if _, err := ch.QueueDeclare(StaffQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, StaffQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := c.Handle(d.Body); err != nil {
			c.log.Error("handle message failed", "err", err, "message_id", d.MessageId)
			_ = d.Nack(false, false) // no requeue, avoids a poison loop
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

// Handle decodes one staff event and writes it to the journal.
func (c *StaffConsumer) Handle(body []byte) error {
	var ev StaffEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" || ev.BookingID == 0 {
		return errors.New("incomplete staff event")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := io.WriteString(c.journal, FormatStaffEvent(ev)); err != nil {
		return fmt.Errorf("write journal: %w", err)
	}
	return nil
}

// FormatStaffEvent renders ev as a single journal line.
func FormatStaffEvent(ev StaffEvent) string {
	rooms := make([]string, 0, len(ev.RoomIDs))
	for _, id := range ev.RoomIDs {
		rooms = append(rooms, fmt.Sprint(id))
	}
	return fmt.Sprintf("[%s] %s | booking=%s (id=%d) | branch=%d | customer=%s | rooms=[%s] | total=%s\n",
		ev.OccurredAt.UTC().Format(time.RFC3339), ev.Type, ev.BookingCode, ev.BookingID,
		ev.BranchID, ev.Email, strings.Join(rooms, ","), ev.Total.String())
}
