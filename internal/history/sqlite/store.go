// Package sqlite records streamed candles and signals in a local
// database for warm restarts. Raw entities only; indicator output is
// recomputed, never persisted.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"signalboard/internal/model"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = 200 * time.Millisecond
)

// Store is a single-writer SQLite store with transaction batching.
// Implements model.Recorder and model.SnapshotSource.
type Store struct {
	db *sql.DB

	// OnCommit observes each batch commit latency. Optional.
	OnCommit func(time.Duration)
}

// Open opens (or creates) the database with WAL mode and the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single writer; the snapshot reads share the pool.
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	slog.Info("sqlite: opened", "path", path)
	return &Store{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS candles (
			symbol    TEXT    NOT NULL,
			timeframe TEXT    NOT NULL,
			ts        INTEGER NOT NULL,
			open      REAL    NOT NULL,
			high      REAL    NOT NULL,
			low       REAL    NOT NULL,
			close     REAL    NOT NULL,
			volume    REAL,
			PRIMARY KEY (symbol, timeframe, ts)
		);

		CREATE TABLE IF NOT EXISTS signals (
			id      TEXT    NOT NULL PRIMARY KEY,
			symbol  TEXT    NOT NULL,
			ts      INTEGER NOT NULL,
			payload TEXT    NOT NULL
		);

		CREATE INDEX IF NOT EXISTS signals_ts ON signals (ts DESC);
	`)
	return err
}

// Run drains both channels into batched transactions. A batch commits
// when it reaches defaultBatchSize entries or defaultFlushDelay passes,
// whichever comes first. Returns when ctx is cancelled or both
// channels are closed.
func (s *Store) Run(ctx context.Context, candleCh <-chan model.Candle, signalCh <-chan model.Signal) {
	candles := make([]model.Candle, 0, defaultBatchSize)
	signals := make([]model.Signal, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(candles) == 0 && len(signals) == 0 {
			return
		}
		start := time.Now()
		if err := s.commit(candles, signals); err != nil {
			slog.Error("sqlite: batch commit failed", "err", err)
		} else if s.OnCommit != nil {
			s.OnCommit(time.Since(start))
		}
		candles = candles[:0]
		signals = signals[:0]
	}

	for candleCh != nil || signalCh != nil {
		select {
		case <-ctx.Done():
			flush()
			return

		case c, ok := <-candleCh:
			if !ok {
				candleCh = nil
				continue
			}
			candles = append(candles, c)
			if len(candles) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}

		case sig, ok := <-signalCh:
			if !ok {
				signalCh = nil
				continue
			}
			signals = append(signals, sig)
			if len(signals) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}

		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
	flush()
}

func (s *Store) commit(candles []model.Candle, signals []model.Signal) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	if len(candles) > 0 {
		stmt, err := tx.Prepare(`
			INSERT OR REPLACE INTO candles (symbol, timeframe, ts, open, high, low, close, volume)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			tx.Rollback()
			return err
		}
		for _, c := range candles {
			if _, err := stmt.Exec(c.Symbol, c.Timeframe, c.TS.UnixMilli(),
				c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
				stmt.Close()
				tx.Rollback()
				return err
			}
		}
		stmt.Close()
	}

	if len(signals) > 0 {
		stmt, err := tx.Prepare(`
			INSERT OR REPLACE INTO signals (id, symbol, ts, payload)
			VALUES (?, ?, ?, ?)
		`)
		if err != nil {
			tx.Rollback()
			return err
		}
		for i := range signals {
			sig := &signals[i]
			if _, err := stmt.Exec(sig.ID, sig.Symbol, sig.TS.UnixMilli(), string(sig.JSON())); err != nil {
				stmt.Close()
				tx.Rollback()
				return err
			}
		}
		stmt.Close()
	}

	return tx.Commit()
}

// FetchSignals returns the newest recorded signals, newest first.
func (s *Store) FetchSignals(ctx context.Context, limit int) ([]model.Signal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM signals ORDER BY ts DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query signals: %w", err)
	}
	defer rows.Close()

	var out []model.Signal
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("sqlite scan signal: %w", err)
		}
		var sig model.Signal
		if err := json.Unmarshal([]byte(payload), &sig); err != nil {
			slog.Warn("sqlite: bad signal payload skipped", "err", err)
			continue
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}

// FetchCandles returns the newest candles for one pair, ascending.
func (s *Store) FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]model.Candle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, timeframe, ts, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND timeframe = ?
		ORDER BY ts DESC LIMIT ?
	`, symbol, timeframe, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query candles: %w", err)
	}
	defer rows.Close()

	var out []model.Candle
	for rows.Next() {
		var c model.Candle
		var tsMilli int64
		if err := rows.Scan(&c.Symbol, &c.Timeframe, &tsMilli,
			&c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("sqlite scan candle: %w", err)
		}
		c.TS = time.UnixMilli(tsMilli).UTC()
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Newest-first from the query; the snapshot contract wants
	// ascending.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
