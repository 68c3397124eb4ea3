package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

const previewRunes = 80

type Consumer struct {
	reader *kafka.Reader
	push   PushSender
}

func NewConsumer(brokers, groupID, topic string, push PushSender) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        strings.Split(brokers, ","),
			GroupID:        groupID,
			Topic:          topic,
			MinBytes:       1,
			MaxBytes:       10 << 20,
			StartOffset:    kafka.FirstOffset,
			CommitInterval: time.Second,
		}),
		push: push,
	}
}

func (c *Consumer) Close() error { return c.reader.Close() }

// Run consumes notification intents until ctx is cancelled. Offsets
// commit only after successful delivery, so a crashed worker re-reads
// undelivered intents; malformed payloads are committed and skipped.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			log.Printf("kafka fetch: %v", err)
			continue
		}

		var it Intent
		if err := json.Unmarshal(m.Value, &it); err != nil {
			log.Printf("kafka decode: %v (key=%s)", err, string(m.Key))
			_ = c.reader.CommitMessages(ctx, m)
			continue
		}

		if err := c.deliver(ctx, it); err != nil {
			log.Printf("notify message=%d: %v", it.MessageID, err)
			continue
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			log.Printf("kafka commit: %v", err)
		}
	}
}

func (c *Consumer) deliver(ctx context.Context, it Intent) error {
	preview := Preview(it.Text)

	ids := make([]uint, 0, len(it.Recipients))
	for _, r := range it.Recipients {
		ids = append(ids, r.ID)
	}
	if err := c.push.Send(ctx, ids, it.SenderName, preview); err != nil {
		return err
	}

	if mentioned := ScanMentions(it.Text, it.Recipients); len(mentioned) > 0 {
		title := it.SenderName + " mentioned you"
		if err := c.push.Send(ctx, mentioned, title, preview); err != nil {
			return err
		}
	}
	return nil
}

// Preview truncates decoded content to a push-notification-sized line.
func Preview(text string) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= previewRunes {
		return text
	}
	return string(runes[:previewRunes]) + "…"
}
