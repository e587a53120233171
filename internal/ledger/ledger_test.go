package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/BroHamJenkins/friendsbet/internal/ledger"
	"github.com/BroHamJenkins/friendsbet/internal/model"
	"github.com/BroHamJenkins/friendsbet/internal/roster"
	"github.com/BroHamJenkins/friendsbet/internal/store"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// newTestLedger seeds an in-memory store with the given players at 100
// tokens each.
func newTestLedger(t *testing.T, players ...string) (*ledger.Ledger, *store.MemoryStore) {
	t.Helper()
	ms := store.NewMemoryStore()
	for _, p := range players {
		if err := ms.EnsurePlayer(context.Background(), p, d(100)); err != nil {
			t.Fatalf("failed to seed player %s: %v", p, err)
		}
	}
	return ledger.New(ms, roster.New(players)), ms
}

func balance(t *testing.T, l *ledger.Ledger, player string) decimal.Decimal {
	t.Helper()
	b, err := l.Balance(context.Background(), player)
	if err != nil {
		t.Fatalf("balance query failed for %s: %v", player, err)
	}
	return b
}

func TestOpeningGrantIsLogged(t *testing.T) {
	l, _ := newTestLedger(t, "alice")

	if !balance(t, l, "alice").Equal(d(100)) {
		t.Errorf("expected opening balance 100, got %s", balance(t, l, "alice"))
	}
	// The grant itself must be on the log so balance == sum from genesis.
	if err := l.Reconcile(context.Background(), "alice"); err != nil {
		t.Errorf("fresh player should reconcile: %v", err)
	}
}

func TestTransfer_MovesTokens(t *testing.T) {
	l, _ := newTestLedger(t, "alice", "bob")

	if err := l.Transfer(context.Background(), "alice", "bob", d(30), "pizza"); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}

	if !balance(t, l, "alice").Equal(d(70)) {
		t.Errorf("alice: expected 70, got %s", balance(t, l, "alice"))
	}
	if !balance(t, l, "bob").Equal(d(130)) {
		t.Errorf("bob: expected 130, got %s", balance(t, l, "bob"))
	}

	txs, err := l.History(context.Background(), "bob")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	last := txs[len(txs)-1]
	if last.Kind != model.TxTransfer {
		t.Errorf("expected transfer record, got %s", last.Kind)
	}
	if last.Note != "pizza" {
		t.Errorf("expected note to carry through, got %q", last.Note)
	}
}

func TestTransfer_CanonicalizesRecipient(t *testing.T) {
	l, _ := newTestLedger(t, "alice", "bob")

	// Case and whitespace variants resolve to the same player.
	if err := l.Transfer(context.Background(), "alice", "  BOB ", d(10), ""); err != nil {
		t.Fatalf("transfer to name variant failed: %v", err)
	}
	if !balance(t, l, "bob").Equal(d(110)) {
		t.Errorf("bob: expected 110, got %s", balance(t, l, "bob"))
	}
}

func TestTransfer_Rejections(t *testing.T) {
	l, _ := newTestLedger(t, "alice", "bob")

	cases := []struct {
		name   string
		to     string
		amount decimal.Decimal
		want   error
	}{
		{"zero amount", "bob", decimal.Zero, ledger.ErrInvalidAmount},
		{"negative amount", "bob", d(-5), ledger.ErrInvalidAmount},
		{"unknown recipient", "mallory", d(5), ledger.ErrInvalidRecipient},
		{"self transfer", "alice", d(5), ledger.ErrInvalidRecipient},
		{"over balance", "bob", d(100.01), ledger.ErrInsufficientFunds},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := l.Transfer(context.Background(), "alice", tc.to, tc.amount, "")
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}

	// Nothing moved.
	if !balance(t, l, "alice").Equal(d(100)) {
		t.Errorf("alice: expected untouched 100, got %s", balance(t, l, "alice"))
	}
}

func TestLoan_DrawAndRepay(t *testing.T) {
	l, ms := newTestLedger(t, "alice")

	if err := l.DrawLoan(context.Background(), "alice", d(50)); err != nil {
		t.Fatalf("loan draw failed: %v", err)
	}
	p, err := ms.GetPlayer(context.Background(), "alice")
	if err != nil {
		t.Fatalf("get player failed: %v", err)
	}
	if !p.Tokens.Equal(d(150)) {
		t.Errorf("expected balance 150 after draw, got %s", p.Tokens)
	}
	if !p.Loan.Equal(d(50)) {
		t.Errorf("expected loan 50 after draw, got %s", p.Loan)
	}

	if err := l.Repay(context.Background(), "alice", d(20)); err != nil {
		t.Fatalf("repay failed: %v", err)
	}
	p, _ = ms.GetPlayer(context.Background(), "alice")
	if !p.Tokens.Equal(d(130)) {
		t.Errorf("expected balance 130 after repay, got %s", p.Tokens)
	}
	if !p.Loan.Equal(d(30)) {
		t.Errorf("expected loan 30 after repay, got %s", p.Loan)
	}

	if err := l.Reconcile(context.Background(), "alice"); err != nil {
		t.Errorf("loans should reconcile: %v", err)
	}
}

func TestLoan_OverRepayRejected(t *testing.T) {
	l, _ := newTestLedger(t, "alice")

	if err := l.DrawLoan(context.Background(), "alice", d(10)); err != nil {
		t.Fatalf("loan draw failed: %v", err)
	}
	if err := l.Repay(context.Background(), "alice", d(10.01)); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount for over-repay, got %v", err)
	}
}

func TestReconcile_DetectsDrift(t *testing.T) {
	l, ms := newTestLedger(t, "alice")

	// Write a balance outside the ledger's transaction path.
	ms.CorruptBalance("alice", d(999))

	if err := l.Reconcile(context.Background(), "alice"); err == nil {
		t.Error("expected reconcile to detect the drifted balance")
	}
}

func TestConcurrentApply_AllIncrementsLand(t *testing.T) {
	l, _ := newTestLedger(t, "alice")

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Apply(context.Background(), "alice", model.TxPayout, d(1), ""); err != nil {
				t.Errorf("apply failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if !balance(t, l, "alice").Equal(d(120)) {
		t.Errorf("expected 120 after %d concurrent credits, got %s", workers, balance(t, l, "alice"))
	}
	if err := l.Reconcile(context.Background(), "alice"); err != nil {
		t.Errorf("concurrent applies should reconcile: %v", err)
	}
}
