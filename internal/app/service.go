// Package app hosts the session service: the single-writer owner of the
// in-memory portfolio state. All mutations run synchronously through the
// engine; persistence happens behind the session through a write-behind
// saver, so no engine outcome ever waits on the store.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pnfTracker/config"
	"pnfTracker/internal/capital"
	"pnfTracker/internal/domain"
	"pnfTracker/internal/engine"
	"pnfTracker/internal/importer"
	"pnfTracker/internal/ports"
)

// Session owns one account's portfolio state for the lifetime of the
// process. The in-memory state is authoritative; the store is eventually
// consistent with it. The mutex guards against accidental concurrent use,
// the model itself is single-writer.
type Session struct {
	cfg    *config.Config
	logger ports.Logger
	repo   ports.PortfolioRepository

	mu          sync.Mutex
	settings    *domain.Settings
	positions   []*domain.Position
	closed      []*domain.ClosedPosition // newest first
	realizedPNL float64                  // running cross-session total

	dirty         bool
	saveTimer     *time.Timer
	pendingClosed []*domain.ClosedPosition // closed records whose write-through failed
}

// NewSession creates a session service instance.
func NewSession(cfg *config.Config, logger ports.Logger, repo ports.PortfolioRepository) (*Session, error) {
	if cfg == nil || logger == nil || repo == nil {
		return nil, fmt.Errorf("missing required dependencies for Session")
	}
	return &Session{
		cfg:    cfg,
		logger: logger,
		repo:   repo,
	}, nil
}

// Load pulls the account's state from the store. When the account has no
// settings yet, the configured defaults are created and written through.
func (s *Session) Load(ctx context.Context) error {
	positions, err := s.repo.LoadActivePositions(ctx, s.cfg.AccountID)
	if err != nil {
		return fmt.Errorf("failed to load active positions: %w", err)
	}
	closed, err := s.repo.LoadClosedPositions(ctx, s.cfg.AccountID)
	if err != nil {
		return fmt.Errorf("failed to load closed positions: %w", err)
	}
	settings, err := s.repo.LoadSettings(ctx, s.cfg.AccountID)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	if settings == nil {
		defaults := s.cfg.DefaultSettings
		settings = &defaults
		s.logger.Info(ctx, "No settings found, creating defaults", map[string]interface{}{"accountID": s.cfg.AccountID})
		if err := s.repo.UpsertSettings(ctx, s.cfg.AccountID, settings); err != nil {
			// Not fatal: in-memory settings stand, the saver retries later.
			s.logger.Error(ctx, err, "Failed to persist default settings")
		}
	}
	// The tranche is derived, never trusted from storage.
	capital.Recalculate(settings)

	var realized float64
	for _, c := range closed {
		realized += c.RealizedPNL
	}

	s.mu.Lock()
	s.settings = settings
	s.positions = positions
	s.closed = closed
	s.realizedPNL = realized
	s.mu.Unlock()

	s.logger.Info(ctx, "Session loaded", map[string]interface{}{
		"accountID":   s.cfg.AccountID,
		"active":      len(positions),
		"closed":      len(closed),
		"realizedPnL": realized,
	})
	return nil
}

// OpenPosition opens a new position from a first fill.
func (s *Session) OpenPosition(symbol string, price float64, quantity int64) (*domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, err := engine.OpenPosition(s.settings, s.positions, symbol, price, quantity)
	if err != nil {
		return nil, err
	}
	s.positions = append(s.positions, pos)
	s.markDirtyLocked()
	s.logger.Info(context.Background(), "Position opened", map[string]interface{}{"symbol": pos.Symbol, "size": pos.BaseSize})
	return pos, nil
}

// AddPyramid applies one pyramid step to the identified position.
func (s *Session) AddPyramid(id string, order engine.PyramidOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, err := s.findLocked(id)
	if err != nil {
		return err
	}
	if err := engine.AddPyramid(pos, s.settings, order); err != nil {
		return err
	}
	s.markDirtyLocked()
	s.logger.Info(context.Background(), "Pyramid added", map[string]interface{}{
		"symbol": pos.Symbol, "pyramidCount": pos.PyramidCount, "totalInvested": pos.TotalInvested,
	})
	return nil
}

// SetQuantity corrects a position's live quantity, preserving per-share cost.
func (s *Session) SetQuantity(id string, newQuantity int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, err := s.findLocked(id)
	if err != nil {
		return err
	}
	if err := engine.SetQuantity(pos, s.settings, newQuantity); err != nil {
		return err
	}
	s.markDirtyLocked()
	return nil
}

// MarkPrice applies a new mark to the identified position.
func (s *Session) MarkPrice(id string, price float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, err := s.findLocked(id)
	if err != nil {
		return err
	}
	engine.MarkPrice(pos, price)
	s.markDirtyLocked()
	return nil
}

// AdjustPyramidCount manually corrects a position's recorded pyramid count.
func (s *Session) AdjustPyramidCount(id string, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, err := s.findLocked(id)
	if err != nil {
		return err
	}
	engine.AdjustPyramidCount(pos, s.settings, count)
	s.markDirtyLocked()
	return nil
}

// ClosePosition liquidates part or all of the identified position. The
// closed record is written through immediately; history must not sit in
// the coalescing window.
func (s *Session) ClosePosition(ctx context.Context, id string, exitPrice float64, closeQuantity int64) (*domain.ClosedPosition, error) {
	s.mu.Lock()
	pos, err := s.findLocked(id)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	result, err := engine.ClosePosition(pos, exitPrice, closeQuantity)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if result.Remainder == nil {
		s.removeLocked(id)
	}
	s.closed = append([]*domain.ClosedPosition{result.Closed}, s.closed...)
	s.realizedPNL += result.Closed.RealizedPNL
	s.markDirtyLocked()
	s.mu.Unlock()

	if err := s.repo.UpsertClosedPosition(ctx, s.cfg.AccountID, result.Closed); err != nil {
		// In-memory state stays authoritative; the record is retried on the
		// next flush.
		s.logger.Error(ctx, err, "Failed to persist closed position", map[string]interface{}{"symbol": result.Closed.Symbol})
		s.mu.Lock()
		s.pendingClosed = append(s.pendingClosed, result.Closed)
		s.mu.Unlock()
	}
	s.logger.Info(ctx, "Position closed", map[string]interface{}{
		"symbol":      result.Closed.Symbol,
		"quantity":    result.Closed.Quantity,
		"realizedPnL": result.Closed.RealizedPNL,
		"fullClose":   result.Remainder == nil,
	})
	return result.Closed, nil
}

// DeletePosition drops a position from the active set without realizing
// any PnL. Used to discard mistaken entries.
func (s *Session) DeletePosition(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.findLocked(id); err != nil {
		return err
	}
	s.removeLocked(id)
	s.markDirtyLocked()
	return nil
}

// UpdateSettings validates and applies new settings, recomputing the
// derived tranche size and re-snapshotting pyramid caps on every active
// position.
func (s *Session) UpdateSettings(newSettings domain.Settings) error {
	if err := validateSettings(&newSettings); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	capital.Recalculate(&newSettings)
	engine.ApplySettingsChange(s.positions, &newSettings)
	s.settings = &newSettings
	s.markDirtyLocked()
	s.logger.Info(context.Background(), "Settings updated", map[string]interface{}{
		"tradingCapital": capital.TradingCapital(&newSettings),
		"trancheSize":    newSettings.TrancheSize,
	})
	return nil
}

func validateSettings(settings *domain.Settings) error {
	if settings.TotalCapital <= 0 {
		return fmt.Errorf("total capital %.2f must be positive: %w", settings.TotalCapital, ports.ErrValidation)
	}
	if settings.Buffer < 0 || settings.Buffer >= settings.TotalCapital {
		return fmt.Errorf("buffer %.2f must be non-negative and below total capital: %w", settings.Buffer, ports.ErrValidation)
	}
	if settings.MaxAllocation <= 0 || settings.MaxAllocation > 1 {
		return fmt.Errorf("max allocation %.3f must be in (0, 1]: %w", settings.MaxAllocation, ports.ErrValidation)
	}
	if settings.MaxStocks < 1 {
		return fmt.Errorf("max stocks %d must be at least 1: %w", settings.MaxStocks, ports.ErrValidation)
	}
	if settings.MaxPyramidsPerStock < 0 {
		return fmt.Errorf("max pyramids %d cannot be negative: %w", settings.MaxPyramidsPerStock, ports.ErrValidation)
	}
	if settings.PyramidIncrementPercent <= 0 {
		return fmt.Errorf("pyramid increment percent %.2f must be positive: %w", settings.PyramidIncrementPercent, ports.ErrValidation)
	}
	return nil
}

// ImportSnapshot reconciles a delimited export and replaces the entire
// active set with the result. The import is destructive by design: it does
// not merge with existing positions.
func (s *Session) ImportSnapshot(ctx context.Context, data string) (*importer.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := importer.Reconcile(data, s.settings)
	if err != nil {
		return nil, err
	}
	s.positions = result.Positions
	s.markDirtyLocked()
	if result.SkippedRows > 0 {
		s.logger.Warn(ctx, "Import skipped malformed rows", map[string]interface{}{"skipped": result.SkippedRows})
	}
	s.logger.Info(ctx, "Snapshot imported", map[string]interface{}{"positions": len(result.Positions)})
	return result, nil
}

// --- Accessors ---

// Positions returns the active set in open order.
func (s *Session) Positions() []*domain.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Position, len(s.positions))
	copy(out, s.positions)
	return out
}

// ClosedPositions returns the closed history, newest first.
func (s *Session) ClosedPositions() []*domain.ClosedPosition {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.ClosedPosition, len(s.closed))
	copy(out, s.closed)
	return out
}

// Settings returns a copy of the current settings.
func (s *Session) Settings() domain.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.settings
}

// RealizedPNL returns the running realized PnL total across sessions.
func (s *Session) RealizedPNL() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.realizedPNL
}

// Summary aggregates the portfolio header numbers.
type Summary struct {
	TotalInvested    float64
	UnrealizedPNL    float64
	RealizedPNL      float64
	AvailableCapital float64
	UtilizationPct   float64
	MaxNewPositions  int
	TotalROI         float64 // (realized + unrealized) / invested, percent
}

// Summarize computes the portfolio summary from the live state.
func (s *Session) Summarize() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sum Summary
	for _, pos := range s.positions {
		sum.TotalInvested += pos.TotalInvested
		sum.UnrealizedPNL += pos.PNL
	}
	sum.RealizedPNL = s.realizedPNL

	tradingCapital := capital.TradingCapital(s.settings)
	sum.AvailableCapital = tradingCapital - sum.TotalInvested
	if tradingCapital > 0 {
		sum.UtilizationPct = sum.TotalInvested / tradingCapital * 100
	}
	if n := s.settings.MaxStocks - len(s.positions); n > 0 {
		sum.MaxNewPositions = n
	}
	if sum.TotalInvested > 0 {
		sum.TotalROI = (sum.RealizedPNL + sum.UnrealizedPNL) / sum.TotalInvested * 100
	}
	return sum
}

// --- Persistence (write-behind) ---

// markDirtyLocked flags unsaved state and arms the coalescing timer.
// Callers must hold s.mu.
func (s *Session) markDirtyLocked() {
	s.dirty = true
	if s.saveTimer == nil {
		s.saveTimer = time.AfterFunc(s.cfg.SaveDebounce, func() {
			if err := s.Flush(context.Background()); err != nil {
				s.logger.Error(context.Background(), err, "Background save failed, will retry on next window")
			}
		})
		return
	}
	s.saveTimer.Reset(s.cfg.SaveDebounce)
}

// Flush writes any unsaved state synchronously. Safe to call at any time;
// a clean session is a no-op. On failure the state stays dirty and the
// next mutation or Flush retries.
func (s *Session) Flush(ctx context.Context) error {
	s.mu.Lock()
	if !s.dirty && len(s.pendingClosed) == 0 {
		s.mu.Unlock()
		return nil
	}
	positions := make([]*domain.Position, len(s.positions))
	copy(positions, s.positions)
	settings := *s.settings
	pending := s.pendingClosed
	s.pendingClosed = nil
	s.dirty = false
	s.mu.Unlock()

	for i, closed := range pending {
		if err := s.repo.UpsertClosedPosition(ctx, s.cfg.AccountID, closed); err != nil {
			s.requeueClosed(pending[i:])
			s.setDirty()
			return fmt.Errorf("failed to persist closed position backlog: %w", err)
		}
	}

	if err := s.repo.ReplaceActivePositions(ctx, s.cfg.AccountID, positions); err != nil {
		s.setDirty()
		return fmt.Errorf("failed to persist active positions: %w", err)
	}
	if err := s.repo.UpsertSettings(ctx, s.cfg.AccountID, &settings); err != nil {
		s.setDirty()
		return fmt.Errorf("failed to persist settings: %w", err)
	}
	s.logger.Debug(ctx, "Session state saved", map[string]interface{}{"active": len(positions)})
	return nil
}

func (s *Session) setDirty() {
	s.mu.Lock()
	s.dirty = true
	s.mu.Unlock()
}

func (s *Session) requeueClosed(records []*domain.ClosedPosition) {
	s.mu.Lock()
	s.pendingClosed = append(records, s.pendingClosed...)
	s.mu.Unlock()
}

// --- Internal helpers ---

// findLocked locates an active position by id. Callers must hold s.mu.
func (s *Session) findLocked(id string) (*domain.Position, error) {
	for _, pos := range s.positions {
		if pos.ID == id {
			return pos, nil
		}
	}
	return nil, fmt.Errorf("position %s: %w", id, ports.ErrNotFound)
}

// removeLocked drops an active position by id. Callers must hold s.mu.
func (s *Session) removeLocked(id string) {
	for i, pos := range s.positions {
		if pos.ID == id {
			s.positions = append(s.positions[:i], s.positions[i+1:]...)
			return
		}
	}
}
