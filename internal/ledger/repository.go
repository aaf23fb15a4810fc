// Package ledger records settlement progress in Postgres so a retried
// settlement resumes where it stopped, and queues sale events in an outbox.
package ledger

import (
	"context"
	"errors"
	"time"

	d "github.com/fjod/go_pos/internal/domain"
)

const EventSaleCompleted = d.EventSaleCompleted

var (
	ErrSettlementNotFound = errors.New("settlement not found")
	ErrSettlementConflict = errors.New("settlement id belongs to another tab")
	ErrStaleStatus        = errors.New("settlement status changed concurrently")
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

type Settlement struct {
	ID        string
	UserID    string
	TabID     string
	Status    d.SettlementStatus
	Sale      []byte
	LastError string
	Attempts  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}

type RepoInterface interface {
	Close() error
	RunMigrations(*Credentials) error

	// Begin creates the settlement or returns the existing one with created=false.
	Begin(ctx context.Context, s *Settlement) (existing *Settlement, created bool, err error)
	Get(ctx context.Context, id string) (*Settlement, error)
	Advance(ctx context.Context, id string, from, to d.SettlementStatus, sale []byte) error
	MarkFailed(ctx context.Context, id string, from d.SettlementStatus, reason string) error
	// Complete moves a RECORDED settlement to COMPLETED and writes its outbox event in one transaction.
	Complete(ctx context.Context, id string, payload []byte) error

	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
	GetStuckSettlements(ctx context.Context, olderThan time.Duration) ([]*Settlement, error)
}
