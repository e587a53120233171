package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/BroHamJenkins/friendsbet/internal/ledger"
	"github.com/BroHamJenkins/friendsbet/internal/model"
	"github.com/BroHamJenkins/friendsbet/internal/store"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func seedScenario(t *testing.T, ms *store.MemoryStore) *model.Scenario {
	t.Helper()
	ctx := context.Background()

	room := &model.Room{ID: "room-1", Name: "game night", Kind: model.RoomProp, Creator: "alice", CreatedAt: time.Now().UTC()}
	if err := ms.CreateRoom(ctx, room); err != nil {
		t.Fatalf("failed to seed room: %v", err)
	}
	sc := &model.Scenario{
		ID:          "sc-1",
		RoomID:      room.ID,
		Creator:     "alice",
		Description: "first to fall asleep",
		Mode:        model.ModeFlat,
		Outcomes:    map[string]string{"yes": "Yes", "no": "No"},
		Order:       []string{"yes", "no"},
		MinBet:      d(5),
		MaxBet:      d(5),
		Votes:       map[string]model.Vote{},
		State:       model.StateOpen,
		CreatedAt:   time.Now().UTC(),
	}
	if err := ms.CreateScenario(ctx, sc); err != nil {
		t.Fatalf("failed to seed scenario: %v", err)
	}
	return sc
}

func TestUpdateScenario_CommitsDocumentAndLedgerTogether(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()
	seedScenario(t, ms)
	if err := ms.EnsurePlayer(ctx, "bob", d(100)); err != nil {
		t.Fatalf("failed to seed player: %v", err)
	}

	updated, err := ms.UpdateScenario(ctx, "sc-1", func(sc *model.Scenario) ([]model.Transaction, error) {
		sc.Votes["bob"] = model.Vote{Choice: "yes", Amount: d(5)}
		tx := ledger.NewTransaction("bob", model.TxWager, d(5).Neg(), sc.ID, "")
		return []model.Transaction{*tx}, nil
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if _, ok := updated.Votes["bob"]; !ok {
		t.Error("expected vote on returned scenario")
	}

	p, err := ms.GetPlayer(ctx, "bob")
	if err != nil {
		t.Fatalf("get player failed: %v", err)
	}
	if !p.Tokens.Equal(d(95)) {
		t.Errorf("expected escrow debit to land with the vote, balance %s", p.Tokens)
	}
}

func TestUpdateScenario_ErrorDiscardsEverything(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()
	seedScenario(t, ms)
	if err := ms.EnsurePlayer(ctx, "bob", d(100)); err != nil {
		t.Fatalf("failed to seed player: %v", err)
	}

	boom := errors.New("boom")
	_, err := ms.UpdateScenario(ctx, "sc-1", func(sc *model.Scenario) ([]model.Transaction, error) {
		sc.Votes["bob"] = model.Vote{Choice: "yes", Amount: d(5)}
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error to propagate, got %v", err)
	}

	sc, err := ms.GetScenario(ctx, "sc-1")
	if err != nil {
		t.Fatalf("get scenario failed: %v", err)
	}
	if len(sc.Votes) != 0 {
		t.Errorf("mutation on a failed update must not persist, votes %v", sc.Votes)
	}
}

func TestUpdateScenario_UnknownPlayerAborts(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()
	seedScenario(t, ms)

	_, err := ms.UpdateScenario(ctx, "sc-1", func(sc *model.Scenario) ([]model.Transaction, error) {
		sc.Votes["ghost"] = model.Vote{Choice: "yes", Amount: d(5)}
		tx := ledger.NewTransaction("ghost", model.TxWager, d(5).Neg(), sc.ID, "")
		return []model.Transaction{*tx}, nil
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unseeded player, got %v", err)
	}

	sc, _ := ms.GetScenario(ctx, "sc-1")
	if len(sc.Votes) != 0 {
		t.Errorf("aborted update must not persist the document, votes %v", sc.Votes)
	}
}

func TestUpdateScenario_ConcurrentVotesAllLand(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()
	seedScenario(t, ms)

	players := []string{"p0", "p1", "p2", "p3", "p4", "p5", "p6", "p7"}
	for _, p := range players {
		if err := ms.EnsurePlayer(ctx, p, d(100)); err != nil {
			t.Fatalf("failed to seed player: %v", err)
		}
	}

	var wg sync.WaitGroup
	for _, p := range players {
		wg.Add(1)
		go func(player string) {
			defer wg.Done()
			_, err := ms.UpdateScenario(ctx, "sc-1", func(sc *model.Scenario) ([]model.Transaction, error) {
				sc.Votes[player] = model.Vote{Choice: "yes", Amount: d(5)}
				tx := ledger.NewTransaction(player, model.TxWager, d(5).Neg(), sc.ID, "")
				return []model.Transaction{*tx}, nil
			})
			if err != nil {
				t.Errorf("%s: update failed: %v", player, err)
			}
		}(p)
	}
	wg.Wait()

	sc, _ := ms.GetScenario(ctx, "sc-1")
	if len(sc.Votes) != len(players) {
		t.Errorf("expected %d votes, got %d", len(players), len(sc.Votes))
	}
	if !sc.Pot().Equal(d(40)) {
		t.Errorf("expected pot 40, got %s", sc.Pot())
	}
	for _, p := range players {
		pl, _ := ms.GetPlayer(ctx, p)
		if !pl.Tokens.Equal(d(95)) {
			t.Errorf("%s: expected 95 after escrow, got %s", p, pl.Tokens)
		}
	}
}

func TestGetScenario_ReturnsIsolatedCopy(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()
	seedScenario(t, ms)

	sc, _ := ms.GetScenario(ctx, "sc-1")
	sc.Votes["intruder"] = model.Vote{Choice: "yes", Amount: d(5)}
	sc.Outcomes["hacked"] = "hacked"

	fresh, _ := ms.GetScenario(ctx, "sc-1")
	if len(fresh.Votes) != 0 || len(fresh.Outcomes) != 2 {
		t.Error("mutating a returned scenario must not affect the store")
	}
}

func TestDeleteRoom_CascadesScenarios(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()
	seedScenario(t, ms)

	if err := ms.DeleteRoom(ctx, "room-1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := ms.GetScenario(ctx, "sc-1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected scenarios to go with the room, got %v", err)
	}
}

func TestEnsurePlayer_Idempotent(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := ms.EnsurePlayer(ctx, "alice", d(100)); err != nil {
			t.Fatalf("ensure %d failed: %v", i, err)
		}
	}

	p, _ := ms.GetPlayer(ctx, "alice")
	if !p.Tokens.Equal(d(100)) {
		t.Errorf("repeated seeding must not re-grant, balance %s", p.Tokens)
	}
	txs, _ := ms.TransactionsByPlayer(ctx, "alice")
	if len(txs) != 1 {
		t.Errorf("expected a single opening grant record, got %d", len(txs))
	}
}
