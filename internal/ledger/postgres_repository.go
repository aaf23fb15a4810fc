package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	d "github.com/fjod/go_pos/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(cred *Credentials) (*Repository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(10)
	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "ledger_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) Begin(ctx context.Context, s *Settlement) (*Settlement, bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO settlements (id, user_id, tab_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (id) DO NOTHING`,
		s.ID, s.UserID, s.TabID, d.SettlementInitiated)
	if err != nil {
		return nil, false, fmt.Errorf("insert settlement: %w", err)
	}

	created := false
	if n, _ := res.RowsAffected(); n == 1 {
		created = true
	} else {
		_, err := r.db.ExecContext(ctx,
			`UPDATE settlements SET attempts = attempts + 1, updated_at = NOW()
			WHERE id = $1 AND user_id = $2 AND tab_id = $3`, s.ID, s.UserID, s.TabID)
		if err != nil {
			return nil, false, fmt.Errorf("count attempt: %w", err)
		}
	}

	existing, err := r.Get(ctx, s.ID)
	if err != nil {
		return nil, false, err
	}
	if existing.UserID != s.UserID || existing.TabID != s.TabID {
		return nil, false, ErrSettlementConflict
	}
	return existing, created, nil
}

func (r *Repository) Get(ctx context.Context, id string) (*Settlement, error) {
	var (
		s         Settlement
		sale      []byte
		lastError sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, tab_id, status, sale, last_error, attempts, created_at, updated_at
		FROM settlements WHERE id = $1`, id).Scan(
		&s.ID, &s.UserID, &s.TabID, &s.Status, &sale, &lastError, &s.Attempts, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSettlementNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query settlement: %w", err)
	}
	s.Sale = sale
	s.LastError = lastError.String
	return &s, nil
}

// Advance is a compare-and-set on status; sale is stored when non-nil.
func (r *Repository) Advance(ctx context.Context, id string, from, to d.SettlementStatus, sale []byte) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE settlements
		SET status = $3, sale = COALESCE($4, sale), last_error = NULL, updated_at = NOW()
		WHERE id = $1 AND status = $2`,
		id, from, to, nullableJSON(sale))
	if err != nil {
		return fmt.Errorf("advance settlement: %w", err)
	}
	return expectOneRow(res)
}

func (r *Repository) MarkFailed(ctx context.Context, id string, from d.SettlementStatus, reason string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE settlements SET status = $3, last_error = $4, updated_at = NOW()
		WHERE id = $1 AND status = $2`,
		id, from, d.SettlementFailed, reason)
	if err != nil {
		return fmt.Errorf("mark settlement failed: %w", err)
	}
	return expectOneRow(res)
}

func (r *Repository) Complete(ctx context.Context, id string, payload []byte) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE settlements SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2`,
		id, d.SettlementRecorded, d.SettlementCompleted)
	if err != nil {
		return fmt.Errorf("complete settlement: %w", err)
	}
	if err := expectOneRow(res); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO outbox_events (aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (aggregate_id, event_type) DO NOTHING`,
		id, EventSaleCompleted, payload)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *Repository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, aggregate_id, event_type, payload, created_at
		FROM outbox_events
		WHERE processed_at IS NULL
		ORDER BY id
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		e := &OutboxEvent{}
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *Repository) MarkEventAsProcessed(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE outbox_events SET processed_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark event processed: %w", err)
	}
	return nil
}

// GetStuckSettlements finds settlements whose sale was recorded but which never completed.
func (r *Repository) GetStuckSettlements(ctx context.Context, olderThan time.Duration) ([]*Settlement, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, tab_id, status, sale, attempts, created_at, updated_at
		FROM settlements
		WHERE status = $1 AND updated_at < $2`,
		d.SettlementRecorded, time.Now().Add(-olderThan))
	if err != nil {
		return nil, fmt.Errorf("query stuck settlements: %w", err)
	}
	defer rows.Close()

	var out []*Settlement
	for rows.Next() {
		s := &Settlement{}
		if err := rows.Scan(&s.ID, &s.UserID, &s.TabID, &s.Status, &s.Sale, &s.Attempts, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan settlement: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrStaleStatus
	}
	return nil
}

func nullableJSON(b []byte) interface{} {
	if b == nil {
		return nil
	}
	return string(b)
}
