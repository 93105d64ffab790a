// Package history stores daily closing prices and assembles them into price tables.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/rotation/internal/database"
	"github.com/aristath/rotation/internal/domain"
	"github.com/aristath/rotation/internal/utils"
)

// DailyPrice is one instrument's closing price on one date
type DailyPrice struct {
	Instrument string    `json:"instrument"`
	Date       time.Time `json:"date"`
	Close      float64   `json:"close"`
}

// Coverage describes what the store holds for one instrument
type Coverage struct {
	Instrument string    `json:"instrument"`
	Name       string    `json:"name"`
	First      time.Time `json:"first"`
	Last       time.Time `json:"last"`
	Count      int       `json:"count"`
}

// Repository provides access to stored daily prices
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new price history repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "history").Logger(),
	}
}

// Upsert inserts or replaces prices in a single transaction.
// Missing or non-positive closes are skipped; the number written is returned.
func (r *Repository) Upsert(ctx context.Context, prices []DailyPrice) (int, error) {
	written := 0
	now := time.Now().Unix()

	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO daily_prices (instrument, date, close, updated_at)
			VALUES (?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, p := range prices {
			if p.Instrument == "" || math.IsNaN(p.Close) || math.IsInf(p.Close, 0) || p.Close <= 0 {
				r.log.Debug().Str("instrument", p.Instrument).Time("date", p.Date).Float64("close", p.Close).Msg("Skipping invalid price")
				continue
			}
			date := domain.NormalizeDate(p.Date).Format(domain.DateLayout)
			if _, err := stmt.ExecContext(ctx, p.Instrument, date, p.Close, now); err != nil {
				return fmt.Errorf("failed to insert price for %s on %s: %w", p.Instrument, date, err)
			}
			written++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	r.log.Info().Int("count", written).Int("skipped", len(prices)-written).Msg("Stored daily prices")
	return written, nil
}

// UpsertTable stores every observed price of a table
func (r *Repository) UpsertTable(ctx context.Context, table domain.PriceTable) (int, error) {
	var prices []DailyPrice
	for _, id := range table.Instruments() {
		series := table.Observed(id)
		for i, date := range series.Dates {
			prices = append(prices, DailyPrice{Instrument: id, Date: date, Close: series.Values[i]})
		}
	}
	return r.Upsert(ctx, prices)
}

// SaveInstruments records display names for instruments
func (r *Repository) SaveInstruments(ctx context.Context, instruments []domain.Instrument) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		for _, inst := range instruments {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO instruments (id, name) VALUES (?, ?)
				 ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
				inst.ID, inst.Name,
			); err != nil {
				return fmt.Errorf("failed to save instrument %s: %w", inst.ID, err)
			}
		}
		return nil
	})
}

// LoadTable assembles the prices of ids between start and end (inclusive,
// zero bounds are open) into a PriceTable. The date index is the union of
// all dates any requested instrument traded; absent prices are gaps.
// Instruments without any stored price get no column.
func (r *Repository) LoadTable(ctx context.Context, ids []string, start, end time.Time) (domain.PriceTable, error) {
	if len(ids) == 0 {
		return domain.NewPriceTable(nil, nil)
	}
	done := utils.MeasureDBQuery("history_load_table", r.log)

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := `SELECT instrument, date, close FROM daily_prices WHERE instrument IN (` + placeholders + `)`
	args := make([]interface{}, 0, len(ids)+2)
	for _, id := range ids {
		args = append(args, id)
	}
	if !start.IsZero() {
		query += ` AND date >= ?`
		args = append(args, start.Format(domain.DateLayout))
	}
	if !end.IsZero() {
		query += ` AND date <= ?`
		args = append(args, end.Format(domain.DateLayout))
	}
	query += ` ORDER BY date`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return domain.PriceTable{}, fmt.Errorf("failed to query daily prices: %w", err)
	}
	defer rows.Close()

	byDate := make(map[string]map[string]float64)
	var dateKeys []string
	count := 0
	for rows.Next() {
		var id, date string
		var closePrice float64
		if err := rows.Scan(&id, &date, &closePrice); err != nil {
			return domain.PriceTable{}, fmt.Errorf("failed to scan daily price: %w", err)
		}
		if _, ok := byDate[date]; !ok {
			byDate[date] = make(map[string]float64, len(ids))
			dateKeys = append(dateKeys, date)
		}
		byDate[date][id] = closePrice
		count++
	}
	if err := rows.Err(); err != nil {
		return domain.PriceTable{}, fmt.Errorf("error iterating daily prices: %w", err)
	}
	done(int64(count))

	sort.Strings(dateKeys)
	dates := make([]time.Time, len(dateKeys))
	for i, key := range dateKeys {
		if dates[i], err = time.Parse(domain.DateLayout, key); err != nil {
			return domain.PriceTable{}, fmt.Errorf("failed to parse stored date %q: %w", key, err)
		}
	}

	prices := make(map[string][]float64)
	for i, key := range dateKeys {
		for id, p := range byDate[key] {
			col, ok := prices[id]
			if !ok {
				col = make([]float64, len(dateKeys))
				for j := range col {
					col[j] = math.NaN()
				}
				prices[id] = col
			}
			col[i] = p
		}
	}

	return domain.NewPriceTable(dates, prices)
}

// Coverage lists every stored instrument with its date range and row count
func (r *Repository) Coverage(ctx context.Context) ([]Coverage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.instrument, COALESCE(i.name, ''), MIN(p.date), MAX(p.date), COUNT(*)
		FROM daily_prices p
		LEFT JOIN instruments i ON i.id = p.instrument
		GROUP BY p.instrument
		ORDER BY p.instrument
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query coverage: %w", err)
	}
	defer rows.Close()

	var out []Coverage
	for rows.Next() {
		var c Coverage
		var first, last string
		if err := rows.Scan(&c.Instrument, &c.Name, &first, &last, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan coverage: %w", err)
		}
		c.First, _ = time.Parse(domain.DateLayout, first)
		c.Last, _ = time.Parse(domain.DateLayout, last)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating coverage: %w", err)
	}
	return out, nil
}
