// Package ledger manages player token balances through an append-only
// transaction log. The log is the source of truth: a player's balance is
// the sum of their transaction amounts, and Reconcile verifies the stored
// balance against that sum.
//
// All token amounts use shopspring/decimal — never float64 for money.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/BroHamJenkins/friendsbet/internal/model"
	"github.com/BroHamJenkins/friendsbet/internal/roster"
	"github.com/BroHamJenkins/friendsbet/internal/store"
)

var (
	// ErrInsufficientFunds is returned when a transfer exceeds the
	// sender's balance.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")

	// ErrInvalidRecipient is returned when a transfer targets an unknown
	// player or the sender themselves.
	ErrInvalidRecipient = errors.New("ledger: invalid recipient")

	// ErrInvalidAmount is returned for zero or negative transfer and
	// loan amounts.
	ErrInvalidAmount = errors.New("ledger: amount must be positive")
)

// Ledger provides balance queries and transfers on top of the store's
// atomic primitives. It holds no state of its own.
type Ledger struct {
	store  store.Store
	roster *roster.Roster
}

// New creates a ledger over the given store and player roster.
func New(st store.Store, r *roster.Roster) *Ledger {
	return &Ledger{store: st, roster: r}
}

// Balance returns the player's current token balance.
func (l *Ledger) Balance(ctx context.Context, player string) (decimal.Decimal, error) {
	p, err := l.store.GetPlayer(ctx, player)
	if err != nil {
		return decimal.Zero, err
	}
	return p.Tokens, nil
}

// Apply records a single balance change as an atomic increment with an
// appended immutable record.
func (l *Ledger) Apply(ctx context.Context, player, kind string, amount decimal.Decimal, scenarioID string) error {
	return l.store.ApplyTransaction(ctx, NewTransaction(player, kind, amount, scenarioID, ""))
}

// Transfer moves tokens between two players as an atomic debit/credit
// pair. The sender must cover the amount; the recipient must be a known
// player other than the sender.
//
// The balance check here is advisory — it rejects obviously bad requests
// before any write. The store applies both legs in one transaction, so a
// racing transfer can at worst drive the sender negative by the checked
// amount, matching the source system's behavior of allowing temporary
// debt rather than locking every player row.
func (l *Ledger) Transfer(ctx context.Context, from, to string, amount decimal.Decimal, note string) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	recipient, ok := l.roster.Canonical(to)
	if !ok || recipient == from {
		return fmt.Errorf("%w: %q", ErrInvalidRecipient, to)
	}

	balance, err := l.Balance(ctx, from)
	if err != nil {
		return err
	}
	if balance.LessThan(amount) {
		return fmt.Errorf("%w: balance %s, requested %s", ErrInsufficientFunds, balance, amount)
	}

	debit := NewTransaction(from, model.TxTransfer, amount.Neg(), "", note)
	credit := NewTransaction(recipient, model.TxTransfer, amount, "", note)
	if err := l.store.Transfer(ctx, debit, credit); err != nil {
		return err
	}

	slog.Info("transfer applied",
		"from", from,
		"to", recipient,
		"amount", amount.String(),
	)
	return nil
}

// DrawLoan credits the player's balance and raises their loan balance by
// the same amount. A later repayment is a DrawLoan with the repaid amount
// negated via Repay.
func (l *Ledger) DrawLoan(ctx context.Context, player string, amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	return l.store.ApplyTransaction(ctx, NewTransaction(player, model.TxLoan, amount, "", "loan draw"))
}

// Repay reduces the player's loan and balance by amount. Repaying more
// than the outstanding loan is rejected.
func (l *Ledger) Repay(ctx context.Context, player string, amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	p, err := l.store.GetPlayer(ctx, player)
	if err != nil {
		return err
	}
	if p.Loan.LessThan(amount) {
		return fmt.Errorf("%w: outstanding loan %s, repaying %s", ErrInvalidAmount, p.Loan, amount)
	}
	if p.Tokens.LessThan(amount) {
		return fmt.Errorf("%w: balance %s, repaying %s", ErrInsufficientFunds, p.Tokens, amount)
	}
	return l.store.ApplyTransaction(ctx, NewTransaction(player, model.TxLoan, amount.Neg(), "", "loan repayment"))
}

// History returns the player's transaction log in chronological order.
func (l *Ledger) History(ctx context.Context, player string) ([]model.Transaction, error) {
	return l.store.TransactionsByPlayer(ctx, player)
}

// Reconcile verifies that the stored balance equals the sum of the
// player's transaction log. A mismatch means a balance was written
// outside the ledger and is returned as an error.
func (l *Ledger) Reconcile(ctx context.Context, player string) error {
	p, err := l.store.GetPlayer(ctx, player)
	if err != nil {
		return err
	}
	txs, err := l.store.TransactionsByPlayer(ctx, player)
	if err != nil {
		return err
	}
	sum := decimal.Zero
	for _, tx := range txs {
		sum = sum.Add(tx.Amount)
	}
	if !sum.Equal(p.Tokens) {
		return fmt.Errorf("ledger: player %s balance %s does not match log sum %s",
			player, p.Tokens, sum)
	}
	return nil
}

// NewTransaction builds an immutable ledger record with a fresh id and
// UTC timestamp.
func NewTransaction(player, kind string, amount decimal.Decimal, scenarioID, note string) *model.Transaction {
	return &model.Transaction{
		ID:         uuid.New().String(),
		Player:     player,
		Kind:       kind,
		Amount:     amount,
		ScenarioID: scenarioID,
		Note:       note,
		Timestamp:  time.Now().UTC(),
	}
}
