package budget

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Transaction is one committed spend record. The store is an audit trail:
// it primes spend after restarts and supports async reconciliation when a
// provider bills for a timed-out call.
type Transaction struct {
	TaskID        uuid.UUID
	ModelID       string
	Cost          float64
	EstimatedCost float64
	Day           string
	CreatedAt     time.Time
}

// Store persists budget transactions in PostgreSQL.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStore creates a new Store instance.
func NewStore(db *sql.DB, logger *zap.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger,
	}
}

// InitSchema creates the transactions table when it does not exist.
func (s *Store) InitSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS budget_transactions (
			id BIGSERIAL PRIMARY KEY,
			task_id UUID NOT NULL,
			model_id TEXT NOT NULL,
			cost DOUBLE PRECISION NOT NULL,
			estimated_cost DOUBLE PRECISION NOT NULL,
			day TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create budget_transactions table: %w", err)
	}

	index := `
		CREATE INDEX IF NOT EXISTS idx_budget_transactions_day
		ON budget_transactions (day)
	`
	if _, err := s.db.ExecContext(ctx, index); err != nil {
		return fmt.Errorf("failed to create budget_transactions index: %w", err)
	}

	return nil
}

// InsertTransaction records one committed spend.
func (s *Store) InsertTransaction(ctx context.Context, tx Transaction) error {
	query := `
		INSERT INTO budget_transactions
		(task_id, model_id, cost, estimated_cost, day, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.db.ExecContext(ctx, query,
		tx.TaskID, tx.ModelID, tx.Cost, tx.EstimatedCost, tx.Day, tx.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	return nil
}

// SpentOn returns the total committed spend for a budget day.
func (s *Store) SpentOn(ctx context.Context, day string) (float64, error) {
	query := `
		SELECT COALESCE(SUM(cost), 0)
		FROM budget_transactions
		WHERE day = $1
	`

	var total float64
	err := s.db.QueryRowContext(ctx, query, day).Scan(&total)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query spend: %w", err)
	}

	return total, nil
}

// SpendByModel returns per-model committed spend for a budget day.
func (s *Store) SpendByModel(ctx context.Context, day string) (map[string]float64, error) {
	query := `
		SELECT model_id, SUM(cost)
		FROM budget_transactions
		WHERE day = $1
		GROUP BY model_id
	`

	rows, err := s.db.QueryContext(ctx, query, day)
	if err != nil {
		return nil, fmt.Errorf("failed to query spend by model: %w", err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var modelID string
		var cost float64
		if err := rows.Scan(&modelID, &cost); err != nil {
			return nil, fmt.Errorf("failed to scan spend row: %w", err)
		}
		out[modelID] = cost
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return out, nil
}

// Cleanup removes transactions older than the retention window.
// Called periodically by the scheduler to keep table size manageable.
func (s *Store) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)

	query := `
		DELETE FROM budget_transactions
		WHERE created_at < $1
	`

	result, err := s.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old transactions: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	s.logger.Info("cleaned up old budget transactions",
		zap.Int64("rows_deleted", rowsAffected),
		zap.Time("cutoff", cutoff))

	return rowsAffected, nil
}
