package domain

import "errors"

var (
	// ErrInsufficientHistory means an indicator window had fewer observations than required
	ErrInsufficientHistory = errors.New("insufficient history")
	// ErrDegenerateScore means a momentum window could not be scored
	ErrDegenerateScore = errors.New("degenerate momentum score")
	// ErrEmptyAfterFiltering is fatal to a run: no date survived signal filtering
	ErrEmptyAfterFiltering = errors.New("no dates left after filtering undefined signals")
	// ErrMissingBenchmark means the benchmark column is absent; benchmark stats are skipped
	ErrMissingBenchmark = errors.New("benchmark series missing")
	// ErrInvalidPriceTable means the table violates ordering or shape invariants
	ErrInvalidPriceTable = errors.New("invalid price table")
	// ErrInvalidParams means strategy parameters are unusable
	ErrInvalidParams = errors.New("invalid strategy parameters")
	// ErrRunNotFound means a stored backtest run does not exist
	ErrRunNotFound = errors.New("backtest run not found")
)
