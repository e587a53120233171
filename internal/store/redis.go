package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/BroHamJenkins/friendsbet/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary. Only scenario and
// player documents are cached — the transaction log and list queries go
// straight to the primary, because they feed balance reconciliation and
// must never serve stale data.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Scenario documents ---

func (s *CachedStore) CreateScenario(ctx context.Context, sc *model.Scenario) error {
	if err := s.primary.CreateScenario(ctx, sc); err != nil {
		return err
	}
	s.cacheScenario(ctx, sc)
	return nil
}

func (s *CachedStore) GetScenario(ctx context.Context, id string) (*model.Scenario, error) {
	data, err := s.rdb.Get(ctx, scenarioKey(id)).Bytes()
	if err == nil {
		var sc model.Scenario
		if json.Unmarshal(data, &sc) == nil {
			return &sc, nil
		}
	}

	sc, err := s.primary.GetScenario(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheScenario(ctx, sc)
	return sc, nil
}

func (s *CachedStore) UpdateScenario(ctx context.Context, id string, fn UpdateFunc) (*model.Scenario, error) {
	// The update itself is always against the primary's current state;
	// the cache is only a read accelerator and never participates in the
	// transaction.
	sc, err := s.primary.UpdateScenario(ctx, id, fn)
	if err != nil {
		return nil, err
	}
	s.cacheScenario(ctx, sc)
	// Ledger effects may have touched any voting player's balance.
	for player := range sc.Votes {
		s.rdb.Del(ctx, playerKey(player))
	}
	if sc.HousePlayer != "" {
		s.rdb.Del(ctx, playerKey(sc.HousePlayer))
	}
	return sc, nil
}

// --- Player documents ---

func (s *CachedStore) GetPlayer(ctx context.Context, id string) (*model.Player, error) {
	data, err := s.rdb.Get(ctx, playerKey(id)).Bytes()
	if err == nil {
		var p model.Player
		if json.Unmarshal(data, &p) == nil {
			return &p, nil
		}
	}

	p, err := s.primary.GetPlayer(ctx, id)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(p); err == nil {
		s.rdb.Set(ctx, playerKey(id), data, s.ttl)
	}
	return p, nil
}

func (s *CachedStore) ApplyTransaction(ctx context.Context, tx *model.Transaction) error {
	if err := s.primary.ApplyTransaction(ctx, tx); err != nil {
		return err
	}
	s.rdb.Del(ctx, playerKey(tx.Player))
	return nil
}

func (s *CachedStore) Transfer(ctx context.Context, debit, credit *model.Transaction) error {
	if err := s.primary.Transfer(ctx, debit, credit); err != nil {
		return err
	}
	s.rdb.Del(ctx, playerKey(debit.Player), playerKey(credit.Player))
	return nil
}

func (s *CachedStore) DeleteRoom(ctx context.Context, id string) error {
	scenarios, _ := s.primary.ListScenarios(ctx, id)
	if err := s.primary.DeleteRoom(ctx, id); err != nil {
		return err
	}
	for _, sc := range scenarios {
		s.rdb.Del(ctx, scenarioKey(sc.ID))
	}
	return nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) CreateRoom(ctx context.Context, room *model.Room) error {
	return s.primary.CreateRoom(ctx, room)
}

func (s *CachedStore) GetRoom(ctx context.Context, id string) (*model.Room, error) {
	return s.primary.GetRoom(ctx, id)
}

func (s *CachedStore) ListRooms(ctx context.Context) ([]model.Room, error) {
	return s.primary.ListRooms(ctx)
}

func (s *CachedStore) ListScenarios(ctx context.Context, roomID string) ([]model.Scenario, error) {
	return s.primary.ListScenarios(ctx, roomID)
}

func (s *CachedStore) EnsurePlayer(ctx context.Context, id string, grant decimal.Decimal) error {
	return s.primary.EnsurePlayer(ctx, id, grant)
}

func (s *CachedStore) ListPlayers(ctx context.Context) ([]model.Player, error) {
	return s.primary.ListPlayers(ctx)
}

func (s *CachedStore) TransactionsByPlayer(ctx context.Context, playerID string) ([]model.Transaction, error) {
	return s.primary.TransactionsByPlayer(ctx, playerID)
}

func (s *CachedStore) TransactionsByScenario(ctx context.Context, scenarioID string) ([]model.Transaction, error) {
	return s.primary.TransactionsByScenario(ctx, scenarioID)
}

// --- Cache helpers ---

func (s *CachedStore) cacheScenario(ctx context.Context, sc *model.Scenario) {
	if data, err := json.Marshal(sc); err == nil {
		s.rdb.Set(ctx, scenarioKey(sc.ID), data, s.ttl)
	}
}

func scenarioKey(id string) string { return fmt.Sprintf("scenario:%s", id) }
func playerKey(id string) string   { return fmt.Sprintf("player:%s", id) }
