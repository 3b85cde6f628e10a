package repository

import (
	"context"

	"github.com/AdamWentworth/pokesync/internal/model"
)

// UpsertOutcome reports how a conditional instance write resolved.
type UpsertOutcome int

const (
	// OutcomeStale means the stored record carried an equal or greater
	// last_update and the write was ignored.
	OutcomeStale UpsertOutcome = iota
	// OutcomeCreated means a new row was inserted.
	OutcomeCreated
	// OutcomeUpdated means an existing row was replaced.
	OutcomeUpdated
)

// Store defines data access for users, collection instances and trades.
// Every write is atomic at row granularity; there are no transactions
// spanning a whole batch.
type Store interface {
	// GetUser fetches a user by id. Returns (nil, nil) when absent.
	GetUser(ctx context.Context, userID string) (*model.User, error)

	// CreateUser inserts a new user row.
	CreateUser(ctx context.Context, u *model.User) error

	// UpdateUserLocation updates the last-known location of a user.
	UpdateUserLocation(ctx context.Context, userID string, lat, lng *float64) error

	// UserIDByUsername resolves a display name to a user id. Returns
	// ("", nil) when no such user exists.
	UserIDByUsername(ctx context.Context, username string) (string, error)

	// UpsertInstance writes a collection instance iff its last_update is
	// strictly greater than the stored value (or no row exists). The
	// comparison happens inside the SQL statement itself, so concurrent
	// writers cannot interleave between check and write.
	UpsertInstance(ctx context.Context, inst *model.PokemonInstance) (UpsertOutcome, error)

	// DeleteInstance removes a row outright, with no last_update check:
	// deletes always win. Returns whether a row was removed.
	DeleteInstance(ctx context.Context, instanceID string) (bool, error)

	// UpsertTrade unconditionally overwrites the trade row in a single
	// atomic statement. Trades carry no ordering guard.
	UpsertTrade(ctx context.Context, t *model.Trade) error

	// ListInstancesByUser returns all instances owned by a user.
	ListInstancesByUser(ctx context.Context, userID string) ([]model.PokemonInstance, error)

	// ListTradesByUser returns trades where the user is either party.
	ListTradesByUser(ctx context.Context, userID string) ([]model.Trade, error)

	// Ping verifies store connectivity, re-establishing stale pooled
	// connections as a side effect.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
