// Package results persists completed backtest runs.
package results

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/rotation/internal/domain"
	"github.com/aristath/rotation/internal/modules/backtest"
)

// DefaultListLimit caps List when no limit is given
const DefaultListLimit = 50

// Summary is the listing view of a stored run
type Summary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Mode        string    `json:"mode"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	TotalReturn float64   `json:"total_return"`
	Sharpe      float64   `json:"sharpe"`
	MaxDrawdown float64   `json:"max_drawdown"`
	FinalNAV    float64   `json:"final_nav"`
	CreatedAt   time.Time `json:"created_at"`
}

// Repository stores backtest results as msgpack payloads with a few
// queryable summary columns
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new result repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "results").Logger(),
	}
}

// Save stores a result under a new id, which is also written back to result.ID
func (r *Repository) Save(ctx context.Context, result *backtest.Result) (string, error) {
	if result == nil {
		return "", fmt.Errorf("cannot save nil result")
	}

	result.ID = uuid.New().String()
	payload, err := msgpack.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("failed to encode result: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO backtest_runs
		(id, name, mode, start_date, end_date, total_return, sharpe, max_drawdown, final_nav, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		result.ID,
		result.Config.Name,
		result.Config.Mode,
		result.Start.Format(domain.DateLayout),
		result.End.Format(domain.DateLayout),
		result.Report.Strategy.TotalReturn,
		result.Report.Strategy.Sharpe,
		result.Report.Strategy.MaxDrawdown,
		result.Series.FinalNAV(),
		payload,
		result.CreatedAt.Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert backtest run: %w", err)
	}

	r.log.Info().Str("id", result.ID).Str("name", result.Config.Name).Int("bytes", len(payload)).Msg("Saved backtest result")
	return result.ID, nil
}

// Get loads a stored result. Returns ErrRunNotFound for an unknown id.
func (r *Repository) Get(ctx context.Context, id string) (*backtest.Result, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx, `SELECT payload FROM backtest_runs WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query backtest run: %w", err)
	}

	var result backtest.Result
	if err := msgpack.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("failed to decode result %s: %w", id, err)
	}
	return &result, nil
}

// List returns the most recent runs first
func (r *Repository) List(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, mode, start_date, end_date, total_return, sharpe, max_drawdown, final_nav, created_at
		FROM backtest_runs
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query backtest runs: %w", err)
	}
	defer rows.Close()

	summaries := make([]Summary, 0)
	for rows.Next() {
		var s Summary
		var start, end string
		var createdAt int64
		if err := rows.Scan(&s.ID, &s.Name, &s.Mode, &start, &end,
			&s.TotalReturn, &s.Sharpe, &s.MaxDrawdown, &s.FinalNAV, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan backtest run: %w", err)
		}
		s.Start, _ = time.Parse(domain.DateLayout, start)
		s.End, _ = time.Parse(domain.DateLayout, end)
		s.CreatedAt = time.Unix(createdAt, 0).UTC()
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating backtest runs: %w", err)
	}
	return summaries, nil
}

// Delete removes a stored run. Returns ErrRunNotFound for an unknown id.
func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM backtest_runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete backtest run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrRunNotFound, id)
	}
	return nil
}
