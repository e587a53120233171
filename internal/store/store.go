// Package store defines the persistence interface for the wagering engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/BroHamJenkins/friendsbet/internal/model"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrUnavailable is returned for transient backend failures. Callers
	// may retry the whole operation: votes are rejected as duplicates on
	// replay and resolution is idempotent.
	ErrUnavailable = errors.New("store: unavailable")
)

// UpdateFunc mutates a scenario inside a transaction. It receives the
// current document, applies domain checks and changes, and returns the
// ledger transactions that must commit atomically with the new state.
// Returning an error aborts the transaction with no effects.
type UpdateFunc func(sc *model.Scenario) ([]model.Transaction, error)

// Store is the persistence interface. The two mutable resources — the
// per-scenario document and the per-player balance — are only ever changed
// through all-or-nothing operations: UpdateScenario for documents,
// ApplyTransaction / Transfer for balances.
type Store interface {
	// --- Rooms ---

	// CreateRoom persists a new room.
	CreateRoom(ctx context.Context, room *model.Room) error

	// GetRoom retrieves a room by id.
	GetRoom(ctx context.Context, id string) (*model.Room, error)

	// ListRooms returns all rooms.
	ListRooms(ctx context.Context) ([]model.Room, error)

	// DeleteRoom removes a room and all of its scenarios. Admin-only
	// room clear; authorization is the caller's job.
	DeleteRoom(ctx context.Context, id string) error

	// --- Scenarios ---

	// CreateScenario persists a new draft scenario.
	CreateScenario(ctx context.Context, sc *model.Scenario) error

	// GetScenario retrieves a scenario by id.
	GetScenario(ctx context.Context, id string) (*model.Scenario, error)

	// ListScenarios returns all scenarios in a room.
	ListScenarios(ctx context.Context, roomID string) ([]model.Scenario, error)

	// UpdateScenario applies fn to the scenario's current state as a
	// single atomic transaction. The document change and any ledger
	// transactions returned by fn commit together or not at all. The
	// returned scenario is the committed state.
	UpdateScenario(ctx context.Context, id string, fn UpdateFunc) (*model.Scenario, error)

	// --- Players and ledger ---

	// EnsurePlayer creates a player with the given opening grant if they
	// do not exist. The grant is recorded as a transfer transaction so
	// the balance/log invariant holds from genesis. No-op if present.
	EnsurePlayer(ctx context.Context, id string, grant decimal.Decimal) error

	// GetPlayer retrieves a player by id.
	GetPlayer(ctx context.Context, id string) (*model.Player, error)

	// ListPlayers returns all players.
	ListPlayers(ctx context.Context) ([]model.Player, error)

	// ApplyTransaction atomically increments the player's balance by the
	// transaction amount and appends the immutable record. Loan entries
	// also move the loan balance by the same amount.
	ApplyTransaction(ctx context.Context, tx *model.Transaction) error

	// Transfer applies a debit and a credit as one atomic pair.
	Transfer(ctx context.Context, debit, credit *model.Transaction) error

	// TransactionsByPlayer returns the player's append-only log in
	// chronological order.
	TransactionsByPlayer(ctx context.Context, playerID string) ([]model.Transaction, error)

	// TransactionsByScenario returns all ledger records referencing a
	// scenario, across players.
	TransactionsByScenario(ctx context.Context, scenarioID string) ([]model.Transaction, error)
}
