// Package publisher drains the settlement outbox into Kafka and finishes
// settlements that recorded their sale but never wrote the outbox event.
package publisher

import (
	"context"
	"encoding/json"
	"time"

	d "github.com/fjod/go_pos/internal/domain"
	l "github.com/fjod/go_pos/internal/ledger"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const DefaultTopic = "pos-sales"

type Outbox interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*l.OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
	GetStuckSettlements(ctx context.Context, olderThan time.Duration) ([]*l.Settlement, error)
	Complete(ctx context.Context, id string, payload []byte) error
}

type OutboxPoller struct {
	timeout      time.Duration
	eventTick    time.Duration
	recoveryTick time.Duration
	stuckAfter   time.Duration
	batchSize    int
	repo         Outbox
	writer       *kafka.Writer
	logger       *zap.Logger
}

func NewOutboxPoller(repo Outbox, logger *zap.Logger, topic string, brokers ...string) *OutboxPoller {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &OutboxPoller{
		timeout:      time.Second * 5,
		eventTick:    time.Second,
		recoveryTick: time.Second * 30,
		stuckAfter:   time.Minute,
		batchSize:    100,
		repo:         repo,
		writer:       w,
		logger:       logger,
	}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	recoveryTicker := time.NewTicker(p.recoveryTick)
	defer eventTicker.Stop()
	defer recoveryTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-recoveryTicker.C:
			p.recoverStuckSettlements(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) Close() error {
	return p.writer.Close()
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	events, err := p.repo.GetUnprocessedEvents(ctx, p.batchSize)
	if err != nil {
		p.logger.Error("failed to fetch outbox events", zap.Error(err))
		return
	}

	for _, event := range events {
		if err := p.publishToKafka(ctx, event); err != nil {
			p.logger.Warn("failed to publish event", zap.Int64("event_id", event.ID), zap.Error(err))
			continue
		}

		if err := p.repo.MarkEventAsProcessed(ctx, event.ID); err != nil {
			p.logger.Warn("failed to mark event as processed", zap.Int64("event_id", event.ID), zap.Error(err))
		}
	}
}

// recoverStuckSettlements completes settlements left at RECORDED, which
// happens when the ledger was unreachable right after the sale was written.
func (p *OutboxPoller) recoverStuckSettlements(ctx context.Context) {
	settlements, err := p.repo.GetStuckSettlements(ctx, p.stuckAfter)
	if err != nil {
		p.logger.Error("failed to get stuck settlements", zap.Error(err))
		return
	}
	for _, s := range settlements {
		var sale d.SaleRecord
		if err := json.Unmarshal(s.Sale, &sale); err != nil {
			p.logger.Error("failed to unmarshal stored sale", zap.String("settlement_id", s.ID), zap.Error(err))
			continue
		}

		payload, err := json.Marshal(d.NewSaleCompletedEvent(sale, s.UpdatedAt))
		if err != nil {
			p.logger.Error("failed to marshal sale event", zap.String("settlement_id", s.ID), zap.Error(err))
			continue
		}

		if err := p.repo.Complete(ctx, s.ID, payload); err != nil {
			p.logger.Warn("failed to complete stuck settlement", zap.String("settlement_id", s.ID), zap.Error(err))
			continue
		}
		p.logger.Info("settlement recovered", zap.String("settlement_id", s.ID))
	}
}

func (p *OutboxPoller) publishToKafka(ctx context.Context, event *l.OutboxEvent) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(event.AggregateID),
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}
