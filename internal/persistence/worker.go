package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/go_pos/internal/domain"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

type jobKind int

const (
	jobSave jobKind = iota
	jobDelete
)

type remoteJob struct {
	kind   jobKind
	userID string
	tabID  string
	tab    domain.SaleTab
	at     time.Time
}

type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 5,
	BaseDelay:   200 * time.Millisecond,
	MaxDelay:    5 * time.Second,
}

// Delay is the wait before the given retry (1-based), doubling up to MaxDelay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	return d
}

// enqueue never blocks: it is called while the cart manager holds its lock.
func (b *Bridge) enqueue(job remoteJob) {
	select {
	case b.queue <- job:
	default:
		b.logger.Warn("remote mirror queue full, dropping write",
			zap.String("user_id", job.userID),
			zap.String("tab_id", job.tabID))
	}
}

// Run drains the remote queue until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) {
	for {
		select {
		case job := <-b.queue:
			b.process(ctx, job)
		case <-ctx.Done():
			return
		}
	}
}

func (b *Bridge) process(ctx context.Context, job remoteJob) {
	var err error
	for attempt := 1; attempt <= b.retry.MaxAttempts; attempt++ {
		err = b.apply(ctx, job)
		if err == nil {
			return
		}
		if attempt == b.retry.MaxAttempts {
			break
		}

		select {
		case <-time.After(b.retry.Delay(attempt)):
		case <-ctx.Done():
			return
		}
	}

	b.logger.Error("remote mirror write failed",
		zap.String("user_id", job.userID),
		zap.String("tab_id", jobTabID(job)),
		zap.Int("attempts", b.retry.MaxAttempts),
		zap.Error(err))
}

func (b *Bridge) apply(ctx context.Context, job remoteJob) error {
	opCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	_, err := b.breaker.Execute(func() (struct{}, error) {
		switch job.kind {
		case jobDelete:
			return struct{}{}, b.remote.Delete(opCtx, job.userID, job.tabID)
		default:
			return struct{}{}, b.remote.Save(opCtx, job.userID, job.tab, job.at)
		}
	})
	if errors.Is(err, gobreaker.ErrOpenState) {
		b.logger.Debug("remote mirror circuit open", zap.String("user_id", job.userID))
	}
	return err
}

func jobTabID(job remoteJob) string {
	if job.kind == jobSave {
		return job.tab.ID
	}
	return job.tabID
}
