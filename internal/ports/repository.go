package ports

import (
	"context"

	"pnfTracker/internal/domain"
)

// PortfolioRepository defines the store adapter contract for per-account
// portfolio state. The in-memory session is always the authority for the
// current session; the store is eventually consistent with it, so no engine
// outcome ever depends on a repository call succeeding.
type PortfolioRepository interface {
	// LoadActivePositions retrieves the account's active positions, oldest first.
	LoadActivePositions(ctx context.Context, accountID string) ([]*domain.Position, error)
	// LoadClosedPositions retrieves the account's closed history, newest first.
	LoadClosedPositions(ctx context.Context, accountID string) ([]*domain.ClosedPosition, error)
	// LoadSettings retrieves the account's settings.
	// Returns nil, nil when the account has none yet.
	LoadSettings(ctx context.Context, accountID string) (*domain.Settings, error)
	// ReplaceActivePositions atomically replaces the account's active set
	// (delete + reinsert). Closed positions are untouched.
	ReplaceActivePositions(ctx context.Context, accountID string, positions []*domain.Position) error
	// UpsertClosedPosition appends one closed record. Records are immutable;
	// upserting an existing ID rewrites the same values.
	UpsertClosedPosition(ctx context.Context, accountID string, closed *domain.ClosedPosition) error
	// UpsertSettings creates or updates the account's settings.
	UpsertSettings(ctx context.Context, accountID string, settings *domain.Settings) error
}
