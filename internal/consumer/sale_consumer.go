// Package consumer folds published sale events into per-day totals.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	d "github.com/fjod/go_pos/internal/domain"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type TotalsRecorder interface {
	Record(ctx context.Context, ev d.SaleCompletedEvent) (bool, error)
}

type Consumer struct {
	totals TotalsRecorder
	reader *kafka.Reader
	logger *zap.Logger
}

func NewConsumer(totals TotalsRecorder, logger *zap.Logger, topic, groupID string, brokers ...string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{totals: totals, reader: reader, logger: logger}
}

func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.processMessage(ctx)
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.logger.Warn("error closing kafka reader", zap.Error(err))
	}
}

func (c *Consumer) processMessage(ctx context.Context) {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		c.logger.Warn("error reading message", zap.Error(err))
		return
	}

	if err := c.handle(ctx, m); err != nil {
		c.logger.Warn("sale event skipped",
			zap.String("key", string(m.Key)),
			zap.Int64("offset", m.Offset),
			zap.Error(err))
	}
}

func (c *Consumer) handle(ctx context.Context, m kafka.Message) error {
	if et := eventType(m); et != "" && et != d.EventSaleCompleted {
		return nil
	}

	var ev d.SaleCompletedEvent
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		return fmt.Errorf("parse event: %w", err)
	}
	if ev.SaleID == "" || ev.UserID == "" || ev.Date == "" {
		return errors.New("event is missing required fields")
	}

	counted, err := c.totals.Record(ctx, ev)
	if err != nil {
		return err
	}
	if !counted {
		c.logger.Debug("sale already counted", zap.String("sale_id", ev.SaleID))
	}
	return nil
}

func eventType(m kafka.Message) string {
	for _, h := range m.Headers {
		if h.Key == "event_type" {
			return string(h.Value)
		}
	}
	return ""
}
