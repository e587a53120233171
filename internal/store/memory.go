package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/BroHamJenkins/friendsbet/internal/model"
)

func nowUTC() time.Time { return time.Now().UTC() }

// MemoryStore implements Store with in-memory maps. Used for testing and
// development. A single mutex spans scenarios, players, and the ledger, so
// UpdateScenario's document change and its ledger transactions commit as
// one unit, same as a SQL transaction would.
type MemoryStore struct {
	mu        sync.RWMutex
	rooms     map[string]*model.Room
	scenarios map[string]*model.Scenario
	players   map[string]*model.Player
	ledger    []model.Transaction
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:     make(map[string]*model.Room),
		scenarios: make(map[string]*model.Scenario),
		players:   make(map[string]*model.Player),
	}
}

// --- Rooms ---

func (s *MemoryStore) CreateRoom(_ context.Context, room *model.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rooms[room.ID]; exists {
		return fmt.Errorf("room %s already exists", room.ID)
	}
	copy := *room
	s.rooms[room.ID] = &copy
	return nil
}

func (s *MemoryStore) GetRoom(_ context.Context, id string) (*model.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[id]
	if !ok {
		return nil, fmt.Errorf("room %s: %w", id, ErrNotFound)
	}
	copy := *room
	return &copy, nil
}

func (s *MemoryStore) ListRooms(_ context.Context) ([]model.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]model.Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		rooms = append(rooms, *r)
	}
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
	})
	return rooms, nil
}

func (s *MemoryStore) DeleteRoom(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[id]; !ok {
		return fmt.Errorf("room %s: %w", id, ErrNotFound)
	}
	delete(s.rooms, id)
	for scID, sc := range s.scenarios {
		if sc.RoomID == id {
			delete(s.scenarios, scID)
		}
	}
	return nil
}

// --- Scenarios ---

func (s *MemoryStore) CreateScenario(_ context.Context, sc *model.Scenario) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.scenarios[sc.ID]; exists {
		return fmt.Errorf("scenario %s already exists", sc.ID)
	}
	if _, ok := s.rooms[sc.RoomID]; !ok {
		return fmt.Errorf("room %s: %w", sc.RoomID, ErrNotFound)
	}
	s.scenarios[sc.ID] = sc.Clone()
	return nil
}

func (s *MemoryStore) GetScenario(_ context.Context, id string) (*model.Scenario, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sc, ok := s.scenarios[id]
	if !ok {
		return nil, fmt.Errorf("scenario %s: %w", id, ErrNotFound)
	}
	return sc.Clone(), nil
}

func (s *MemoryStore) ListScenarios(_ context.Context, roomID string) ([]model.Scenario, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var scenarios []model.Scenario
	for _, sc := range s.scenarios {
		if sc.RoomID == roomID {
			scenarios = append(scenarios, *sc.Clone())
		}
	}
	sort.Slice(scenarios, func(i, j int) bool {
		return scenarios[i].CreatedAt.Before(scenarios[j].CreatedAt)
	})
	return scenarios, nil
}

// UpdateScenario runs fn against a working copy under the write lock and
// swaps it in together with the ledger effects only when fn succeeds.
func (s *MemoryStore) UpdateScenario(_ context.Context, id string, fn UpdateFunc) (*model.Scenario, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.scenarios[id]
	if !ok {
		return nil, fmt.Errorf("scenario %s: %w", id, ErrNotFound)
	}

	working := current.Clone()
	txs, err := fn(working)
	if err != nil {
		return nil, err
	}
	for _, tx := range txs {
		if err := s.applyLocked(tx); err != nil {
			// fn produced a transaction for an unknown player; nothing
			// has been swapped in yet, so the update aborts cleanly.
			return nil, err
		}
	}
	s.scenarios[id] = working
	return working.Clone(), nil
}

// --- Players and ledger ---

func (s *MemoryStore) EnsurePlayer(_ context.Context, id string, grant decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.players[id]; exists {
		return nil
	}
	s.players[id] = &model.Player{ID: id}
	if grant.IsZero() {
		return nil
	}
	return s.applyLocked(model.Transaction{
		ID:        uuid.New().String(),
		Player:    id,
		Kind:      model.TxTransfer,
		Amount:    grant,
		Note:      "opening grant",
		Timestamp: nowUTC(),
	})
}

func (s *MemoryStore) GetPlayer(_ context.Context, id string) (*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.players[id]
	if !ok {
		return nil, fmt.Errorf("player %s: %w", id, ErrNotFound)
	}
	copy := *p
	return &copy, nil
}

func (s *MemoryStore) ListPlayers(_ context.Context) ([]model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	players := make([]model.Player, 0, len(s.players))
	for _, p := range s.players {
		players = append(players, *p)
	}
	sort.Slice(players, func(i, j int) bool { return players[i].ID < players[j].ID })
	return players, nil
}

func (s *MemoryStore) ApplyTransaction(_ context.Context, tx *model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(*tx)
}

func (s *MemoryStore) Transfer(_ context.Context, debit, credit *model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Both legs under one lock acquisition: all or nothing.
	if _, ok := s.players[debit.Player]; !ok {
		return fmt.Errorf("player %s: %w", debit.Player, ErrNotFound)
	}
	if _, ok := s.players[credit.Player]; !ok {
		return fmt.Errorf("player %s: %w", credit.Player, ErrNotFound)
	}
	if err := s.applyLocked(*debit); err != nil {
		return err
	}
	return s.applyLocked(*credit)
}

func (s *MemoryStore) TransactionsByPlayer(_ context.Context, playerID string) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var txs []model.Transaction
	for _, tx := range s.ledger {
		if tx.Player == playerID {
			txs = append(txs, tx)
		}
	}
	return txs, nil
}

func (s *MemoryStore) TransactionsByScenario(_ context.Context, scenarioID string) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var txs []model.Transaction
	for _, tx := range s.ledger {
		if tx.ScenarioID == scenarioID {
			txs = append(txs, tx)
		}
	}
	return txs, nil
}

// CorruptBalance overwrites a balance without a ledger record. Test hook
// for exercising reconciliation; nothing in the serving path calls it.
func (s *MemoryStore) CorruptBalance(id string, tokens decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.players[id]; ok {
		p.Tokens = tokens
	}
}

// applyLocked increments the balance and appends the record. Caller holds
// the write lock.
func (s *MemoryStore) applyLocked(tx model.Transaction) error {
	p, ok := s.players[tx.Player]
	if !ok {
		return fmt.Errorf("player %s: %w", tx.Player, ErrNotFound)
	}
	p.Tokens = p.Tokens.Add(tx.Amount)
	if tx.Kind == model.TxLoan {
		p.Loan = p.Loan.Add(tx.Amount)
	}
	s.ledger = append(s.ledger, tx)
	return nil
}
