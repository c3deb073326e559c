package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/shopspring/decimal"

	"futuresGuard/internal/domain"
	"futuresGuard/internal/ports"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const defaultLimit = 100

// Journal implements ports.TradeJournal and ports.RiskJournal using SQLite.
type Journal struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite journal.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewJournal opens (or creates) the journal database and its schema.
func NewJournal(cfg Config) (*Journal, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite journal")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/futures_guard.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite journal initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite journal initialization failed")
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite journal initialization failed")
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	j := &Journal{db: db, logger: cfg.Logger}
	if err := j.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite journal initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "SQLite journal ready", map[string]interface{}{"path": dbPath})
	return j, nil
}

func (j *Journal) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS closed_positions (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		entry_price TEXT NOT NULL,
		close_price TEXT NOT NULL,
		size TEXT NOT NULL,
		leverage INTEGER NOT NULL,
		strategy TEXT NOT NULL DEFAULT '',
		stop_loss TEXT NULL,
		take_profit TEXT NULL,
		fees TEXT NOT NULL,
		realized_pnl TEXT NOT NULL,
		max_pnl TEXT NOT NULL,
		min_pnl TEXT NOT NULL,
		close_reason TEXT NOT NULL,
		entry_time TIMESTAMP NOT NULL,
		close_time TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS risk_events (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		level TEXT NOT NULL,
		message TEXT NOT NULL,
		details TEXT NOT NULL DEFAULT '{}',
		timestamp TIMESTAMP NOT NULL,
		acknowledged INTEGER NOT NULL DEFAULT 0,
		resolved INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_closed_positions_close_time ON closed_positions (close_time);
	CREATE INDEX IF NOT EXISTS idx_closed_positions_symbol ON closed_positions (symbol);
	CREATE INDEX IF NOT EXISTS idx_risk_events_timestamp ON risk_events (timestamp);
	`
	if _, err := j.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w: %w", ports.ErrQueryFailed, err)
	}
	return nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.db != nil {
		j.logger.Info(context.Background(), "Closing SQLite database connection")
		return j.db.Close()
	}
	return nil
}

// --- TradeJournal Implementation ---

// RecordClosedPosition stores pos. A repeated ID overwrites the earlier row.
func (j *Journal) RecordClosedPosition(ctx context.Context, pos *domain.ManagedPosition) error {
	if pos == nil || pos.ID == "" {
		return fmt.Errorf("record closed position: %w: position id required", ports.ErrInvalidRequest)
	}
	const query = `
	INSERT INTO closed_positions (id, symbol, side, entry_price, close_price, size, leverage, strategy,
		stop_loss, take_profit, fees, realized_pnl, max_pnl, min_pnl, close_reason, entry_time, close_time)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		close_price = excluded.close_price,
		size = excluded.size,
		stop_loss = excluded.stop_loss,
		take_profit = excluded.take_profit,
		fees = excluded.fees,
		realized_pnl = excluded.realized_pnl,
		max_pnl = excluded.max_pnl,
		min_pnl = excluded.min_pnl,
		close_reason = excluded.close_reason,
		close_time = excluded.close_time`

	_, err := j.db.ExecContext(ctx, query,
		pos.ID, pos.Symbol, string(pos.Side), pos.EntryPrice, pos.ClosePrice, pos.Size, pos.Leverage, pos.Strategy,
		pos.StopLoss, pos.TakeProfit, pos.Fees, pos.RealizedPnL, pos.MaxPnL, pos.MinPnL,
		string(pos.CloseReason), pos.EntryTime.UTC(), pos.CloseTime.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert closed position %s: %w: %w", pos.ID, ports.ErrQueryFailed, err)
	}
	j.logger.Debug(ctx, "Closed position recorded", map[string]interface{}{"positionID": pos.ID, "symbol": pos.Symbol, "reason": pos.CloseReason})
	return nil
}

// ClosedPositions returns up to limit positions, most recently closed first.
func (j *Journal) ClosedPositions(ctx context.Context, limit int) ([]*domain.ManagedPosition, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	const query = `
	SELECT id, symbol, side, entry_price, close_price, size, leverage, strategy,
	       stop_loss, take_profit, fees, realized_pnl, max_pnl, min_pnl, close_reason, entry_time, close_time
	FROM closed_positions
	ORDER BY close_time DESC, id
	LIMIT ?`

	rows, err := j.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query closed positions: %w: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	out := make([]*domain.ManagedPosition, 0)
	for rows.Next() {
		pos, err := scanClosedPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan closed position: %w", err)
		}
		out = append(out, pos)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating closed position rows: %w", err)
	}
	return out, nil
}

// --- RiskJournal Implementation ---

// RecordRiskEvent inserts event or updates its mutable columns.
func (j *Journal) RecordRiskEvent(ctx context.Context, event *domain.RiskEvent) error {
	if event == nil || event.ID == "" {
		return fmt.Errorf("record risk event: %w: event id required", ports.ErrInvalidRequest)
	}
	details := "{}"
	if len(event.Details) > 0 {
		b, err := json.Marshal(event.Details)
		if err != nil {
			return fmt.Errorf("failed to encode details for event %s: %w", event.ID, err)
		}
		details = string(b)
	}

	const query = `
	INSERT INTO risk_events (id, type, level, message, details, timestamp, acknowledged, resolved)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		message = excluded.message,
		details = excluded.details,
		timestamp = excluded.timestamp,
		acknowledged = excluded.acknowledged,
		resolved = excluded.resolved`

	_, err := j.db.ExecContext(ctx, query,
		event.ID, string(event.Type), string(event.Level), event.Message, details,
		event.Timestamp.UTC(), event.Acknowledged, event.Resolved)
	if err != nil {
		return fmt.Errorf("failed to upsert risk event %s: %w: %w", event.ID, ports.ErrQueryFailed, err)
	}
	return nil
}

// RiskEvents returns up to limit events, newest first.
func (j *Journal) RiskEvents(ctx context.Context, limit int) ([]*domain.RiskEvent, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	const query = `
	SELECT id, type, level, message, details, timestamp, acknowledged, resolved
	FROM risk_events
	ORDER BY timestamp DESC, id
	LIMIT ?`

	rows, err := j.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query risk events: %w: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	out := make([]*domain.RiskEvent, 0)
	for rows.Next() {
		var (
			ev           domain.RiskEvent
			typ, level   string
			details      string
			acked, resol bool
		)
		if err := rows.Scan(&ev.ID, &typ, &level, &ev.Message, &details, &ev.Timestamp, &acked, &resol); err != nil {
			return nil, fmt.Errorf("failed to scan risk event: %w", err)
		}
		ev.Type = domain.RiskType(typ)
		ev.Level = domain.RiskLevel(level)
		ev.Acknowledged = acked
		ev.Resolved = resol
		if details != "" && details != "{}" {
			if err := json.Unmarshal([]byte(details), &ev.Details); err != nil {
				return nil, fmt.Errorf("failed to decode details for event %s: %w", ev.ID, err)
			}
		}
		out = append(out, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating risk event rows: %w", err)
	}
	return out, nil
}

// --- Helper Functions ---

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanClosedPosition(row scanner) (*domain.ManagedPosition, error) {
	var (
		pos          domain.ManagedPosition
		side, reason string
		entryPrice   decimal.Decimal
		closePrice   decimal.Decimal
	)
	err := row.Scan(
		&pos.ID, &pos.Symbol, &side, &entryPrice, &closePrice, &pos.Size, &pos.Leverage, &pos.Strategy,
		&pos.StopLoss, &pos.TakeProfit, &pos.Fees, &pos.RealizedPnL, &pos.MaxPnL, &pos.MinPnL,
		&reason, &pos.EntryTime, &pos.CloseTime,
	)
	if err != nil {
		return nil, err
	}
	pos.Side = domain.PositionSide(side)
	pos.CloseReason = domain.CloseReason(reason)
	pos.EntryPrice = entryPrice
	pos.ClosePrice = closePrice
	pos.CurrentPrice = closePrice
	pos.Status = domain.StatusClosed
	return &pos, nil
}
