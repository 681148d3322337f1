// Package sqlite implements the ports.PortfolioRepository contract on a
// local SQLite database. Monetary columns are stored as canonical decimal
// strings and converted at this boundary, so the database never carries
// binary floating-point currency values.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"pnfTracker/internal/domain"
	"pnfTracker/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements ports.PortfolioRepository using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository opens (creating if needed) the database and verifies the schema.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/portfolio.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// WAL mode keeps reads cheap while the write-behind saver is flushing.
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, ports.ErrDBConnection)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "SQLite database ready", map[string]interface{}{"path": dbPath})

	return repo, nil
}

func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS positions (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		entry_price TEXT NOT NULL,
		current_price TEXT NOT NULL,
		base_quantity INTEGER NOT NULL,
		current_quantity INTEGER NOT NULL,
		base_size TEXT NOT NULL,
		total_invested TEXT NOT NULL,
		pyramid_count INTEGER NOT NULL,
		max_pyramid_count INTEGER NOT NULL,
		pnl TEXT NOT NULL,
		pnl_percent TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS closed_positions (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		entry_price TEXT NOT NULL,
		exit_price TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		total_invested TEXT NOT NULL,
		exit_value TEXT NOT NULL,
		realized_pnl TEXT NOT NULL,
		realized_pnl_percent TEXT NOT NULL,
		closed_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS portfolio_settings (
		account_id TEXT PRIMARY KEY,
		total_capital TEXT NOT NULL,
		buffer TEXT NOT NULL,
		max_allocation TEXT NOT NULL,
		max_stocks INTEGER NOT NULL,
		max_pyramid_count INTEGER NOT NULL,
		pyramid_increment_percent TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_positions_account ON positions (account_id);
	CREATE INDEX IF NOT EXISTS idx_closed_positions_account_closed_at ON closed_positions (account_id, closed_at);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// LoadActivePositions retrieves the account's active positions, oldest first.
func (r *Repository) LoadActivePositions(ctx context.Context, accountID string) ([]*domain.Position, error) {
	const query = `
	SELECT id, symbol, entry_price, current_price, base_quantity, current_quantity,
	       base_size, total_invested, pyramid_count, max_pyramid_count, pnl, pnl_percent, created_at
	FROM positions
	WHERE account_id = ?
	ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query active positions for account %s: %w", accountID, ports.ErrQueryFailed)
	}
	defer rows.Close()

	positions := make([]*domain.Position, 0)
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, pos)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating position rows: %w", err)
	}
	return positions, nil
}

// LoadClosedPositions retrieves the account's closed history, newest first.
func (r *Repository) LoadClosedPositions(ctx context.Context, accountID string) ([]*domain.ClosedPosition, error) {
	const query = `
	SELECT id, symbol, entry_price, exit_price, quantity, total_invested,
	       exit_value, realized_pnl, realized_pnl_percent, closed_at
	FROM closed_positions
	WHERE account_id = ?
	ORDER BY closed_at DESC`

	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query closed positions for account %s: %w", accountID, ports.ErrQueryFailed)
	}
	defer rows.Close()

	closed := make([]*domain.ClosedPosition, 0)
	for rows.Next() {
		pos, err := scanClosedPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan closed position: %w", err)
		}
		closed = append(closed, pos)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating closed position rows: %w", err)
	}
	return closed, nil
}

// LoadSettings retrieves the account's settings. Returns nil, nil when the
// account has none yet. The derived tranche size is recomputed here, not read.
func (r *Repository) LoadSettings(ctx context.Context, accountID string) (*domain.Settings, error) {
	const query = `
	SELECT total_capital, buffer, max_allocation, max_stocks, max_pyramid_count, pyramid_increment_percent
	FROM portfolio_settings
	WHERE account_id = ?`

	var totalCapital, buffer, maxAllocation, incrementPercent string
	s := &domain.Settings{}
	err := r.db.QueryRowContext(ctx, query, accountID).Scan(
		&totalCapital, &buffer, &maxAllocation, &s.MaxStocks, &s.MaxPyramidsPerStock, &incrementPercent)
	if err == sql.ErrNoRows {
		r.logger.Debug(ctx, "No settings found for account", map[string]interface{}{"accountID": accountID})
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query settings for account %s: %w", accountID, ports.ErrQueryFailed)
	}
	if s.TotalCapital, err = parseMoney(totalCapital); err != nil {
		return nil, err
	}
	if s.Buffer, err = parseMoney(buffer); err != nil {
		return nil, err
	}
	if s.MaxAllocation, err = parseMoney(maxAllocation); err != nil {
		return nil, err
	}
	if s.PyramidIncrementPercent, err = parseMoney(incrementPercent); err != nil {
		return nil, err
	}
	return s, nil
}

// ReplaceActivePositions deletes and reinserts the account's active rows in
// one transaction. Closed positions are untouched.
func (r *Repository) ReplaceActivePositions(ctx context.Context, accountID string, positions []*domain.Position) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", ports.ErrUpdateFailed)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM positions WHERE account_id = ?`, accountID); err != nil {
		return fmt.Errorf("failed to clear active positions for account %s: %w", accountID, ports.ErrUpdateFailed)
	}

	const insert = `
	INSERT INTO positions (id, account_id, symbol, entry_price, current_price, base_quantity,
	                       current_quantity, base_size, total_invested, pyramid_count,
	                       max_pyramid_count, pnl, pnl_percent, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	for _, pos := range positions {
		_, err := tx.ExecContext(ctx, insert,
			pos.ID, accountID, pos.Symbol, money(pos.EntryPrice), money(pos.CurrentPrice),
			pos.BaseQuantity, pos.CurrentQuantity, money(pos.BaseSize), money(pos.TotalInvested),
			pos.PyramidCount, pos.MaxPyramidCount, money(pos.PNL), money(pos.PNLPercent), pos.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert position %s for account %s: %w", pos.Symbol, accountID, ports.ErrUpdateFailed)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit active position replacement: %w", ports.ErrUpdateFailed)
	}
	r.logger.Debug(ctx, "Active positions replaced", map[string]interface{}{"accountID": accountID, "count": len(positions)})
	return nil
}

// UpsertClosedPosition appends one closed record.
func (r *Repository) UpsertClosedPosition(ctx context.Context, accountID string, closed *domain.ClosedPosition) error {
	const query = `
	INSERT INTO closed_positions (id, account_id, symbol, entry_price, exit_price, quantity,
	                              total_invested, exit_value, realized_pnl, realized_pnl_percent, closed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		symbol = excluded.symbol, entry_price = excluded.entry_price, exit_price = excluded.exit_price,
		quantity = excluded.quantity, total_invested = excluded.total_invested, exit_value = excluded.exit_value,
		realized_pnl = excluded.realized_pnl, realized_pnl_percent = excluded.realized_pnl_percent,
		closed_at = excluded.closed_at`

	_, err := r.db.ExecContext(ctx, query,
		closed.ID, accountID, closed.Symbol, money(closed.EntryPrice), money(closed.ExitPrice),
		closed.Quantity, money(closed.TotalInvested), money(closed.ExitValue),
		money(closed.RealizedPNL), money(closed.RealizedPNLPercent), closed.ClosedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert closed position %s for account %s: %w", closed.Symbol, accountID, ports.ErrUpdateFailed)
	}
	r.logger.Debug(ctx, "Closed position recorded", map[string]interface{}{"accountID": accountID, "symbol": closed.Symbol, "realizedPnL": closed.RealizedPNL})
	return nil
}

// UpsertSettings creates or updates the account's settings. The derived
// tranche size is not persisted.
func (r *Repository) UpsertSettings(ctx context.Context, accountID string, settings *domain.Settings) error {
	const query = `
	INSERT INTO portfolio_settings (account_id, total_capital, buffer, max_allocation,
	                                max_stocks, max_pyramid_count, pyramid_increment_percent, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(account_id) DO UPDATE SET
		total_capital = excluded.total_capital, buffer = excluded.buffer,
		max_allocation = excluded.max_allocation, max_stocks = excluded.max_stocks,
		max_pyramid_count = excluded.max_pyramid_count,
		pyramid_increment_percent = excluded.pyramid_increment_percent,
		updated_at = excluded.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		accountID, money(settings.TotalCapital), money(settings.Buffer), money(settings.MaxAllocation),
		settings.MaxStocks, settings.MaxPyramidsPerStock, money(settings.PyramidIncrementPercent), time.Now())
	if err != nil {
		return fmt.Errorf("failed to upsert settings for account %s: %w", accountID, ports.ErrUpdateFailed)
	}
	return nil
}

// --- Helpers ---

// money renders a monetary value as a canonical decimal string.
func money(v float64) string {
	return decimal.NewFromFloat(v).String()
}

// parseMoney parses a decimal string column back into a float64.
func parseMoney(s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid decimal value '%s' in database: %w", s, ports.ErrQueryFailed)
	}
	f, _ := d.Float64()
	return f, nil
}

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPosition(s scanner) (*domain.Position, error) {
	p := &domain.Position{}
	var entryPrice, currentPrice, baseSize, totalInvested, pnl, pnlPercent string
	err := s.Scan(
		&p.ID, &p.Symbol, &entryPrice, &currentPrice, &p.BaseQuantity, &p.CurrentQuantity,
		&baseSize, &totalInvested, &p.PyramidCount, &p.MaxPyramidCount, &pnl, &pnlPercent, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	fields := []struct {
		raw string
		dst *float64
	}{
		{entryPrice, &p.EntryPrice},
		{currentPrice, &p.CurrentPrice},
		{baseSize, &p.BaseSize},
		{totalInvested, &p.TotalInvested},
		{pnl, &p.PNL},
		{pnlPercent, &p.PNLPercent},
	}
	for _, f := range fields {
		if *f.dst, err = parseMoney(f.raw); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func scanClosedPosition(s scanner) (*domain.ClosedPosition, error) {
	c := &domain.ClosedPosition{}
	var entryPrice, exitPrice, totalInvested, exitValue, realizedPNL, realizedPct string
	err := s.Scan(
		&c.ID, &c.Symbol, &entryPrice, &exitPrice, &c.Quantity, &totalInvested,
		&exitValue, &realizedPNL, &realizedPct, &c.ClosedAt)
	if err != nil {
		return nil, err
	}
	fields := []struct {
		raw string
		dst *float64
	}{
		{entryPrice, &c.EntryPrice},
		{exitPrice, &c.ExitPrice},
		{totalInvested, &c.TotalInvested},
		{exitValue, &c.ExitValue},
		{realizedPNL, &c.RealizedPNL},
		{realizedPct, &c.RealizedPNLPercent},
	}
	for _, f := range fields {
		if *f.dst, err = parseMoney(f.raw); err != nil {
			return nil, err
		}
	}
	return c, nil
}
