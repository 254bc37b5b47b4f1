package model

import "context"

// Data-source port interfaces. These decouple the sync engine from the
// concrete seed/record backends (REST, Redis Streams, SQLite). Each
// implementation satisfies one or more of these interfaces.

// SnapshotSource fetches the initial records used to seed the store on
// session start or selection switch. Implementations must return bars
// ordered ascending by timestamp.
type SnapshotSource interface {
	// FetchSignals returns the most recent signals, newest first,
	// capped at limit.
	FetchSignals(ctx context.Context, limit int) ([]Signal, error)

	// FetchCandles returns history for one (symbol, timeframe) pair.
	FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error)

	// Close releases underlying resources.
	Close() error
}

// SymbolDirectory lists the symbols and per-symbol timeframes available
// for subscription. Used to populate the selection UI.
type SymbolDirectory interface {
	ListSymbols(ctx context.Context) (map[string][]string, error)
}

// Recorder persists raw streamed entities locally for warm restarts.
// Indicator output is never recorded.
type Recorder interface {
	// Run drains candleCh and signalCh into storage with batching.
	// Blocks until ctx is cancelled or both channels are closed.
	Run(ctx context.Context, candleCh <-chan Candle, signalCh <-chan Signal)

	// Close flushes and releases underlying resources.
	Close() error
}
