// Package model defines the core domain types shared across the wagering engine.
// All token amounts use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Settlement modes.
const (
	ModeFlat  = "flat"  // fixed stake, pot split equally among winners
	ModePari  = "pari"  // variable stake, proportional split of the losing pool
	ModeHouse = "house" // single banker covers all opposing stakes at 1:1
)

// Scenario lifecycle states. Transitions are strictly forward:
// draft → open → closed → resolved; resolved is terminal.
const (
	StateDraft    = "draft"
	StateOpen     = "open"
	StateClosed   = "closed"
	StateResolved = "resolved"
)

// Room kinds.
const (
	RoomProp = "prop" // winner declared by the scenario creator
	RoomPoll = "poll" // winner decided by vote tally at close
)

// Transaction kinds. The per-player transaction log is append-only and is
// the source of truth for balances: balance(p) = Σ amounts for p.
const (
	TxWager    = "wager"
	TxPayout   = "payout"
	TxRefund   = "refund"
	TxTransfer = "transfer"
	TxLoan     = "loan"
)

// Player is a roster member. Tokens and Loan are mutated only through
// ledger transactions, never written directly by callers.
type Player struct {
	ID     string          `json:"id" db:"id"`
	Tokens decimal.Decimal `json:"tokens" db:"tokens"`
	Loan   decimal.Decimal `json:"loan" db:"loan"` // outstanding loan, >= 0
}

// Room is a container for scenarios. It carries no settlement logic.
type Room struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Kind      string    `json:"kind" db:"kind"` // "prop" or "poll"
	Creator   string    `json:"creator" db:"creator"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Vote is one player's stake on one outcome. Exactly one vote per player
// per scenario — a hard invariant enforced by the vote validator.
type Vote struct {
	Choice string          `json:"choice"`
	Amount decimal.Decimal `json:"amount"`
}

// Scenario is one wagering event: a description, a set of labeled outcomes,
// and a settlement mode. Outcome keys are unique; Order is a permutation of
// the outcome keys giving presentation order.
type Scenario struct {
	ID          string            `json:"id" db:"id"`
	RoomID      string            `json:"room_id" db:"room_id"`
	Creator     string            `json:"creator" db:"creator"`
	Description string            `json:"description" db:"description"`
	Mode        string            `json:"mode" db:"mode"`
	Outcomes    map[string]string `json:"outcomes"` // key → label
	Order       []string          `json:"order"`
	MinBet      decimal.Decimal   `json:"min_bet" db:"min_bet"`
	MaxBet      decimal.Decimal   `json:"max_bet" db:"max_bet"`
	Votes       map[string]Vote   `json:"votes"` // player → vote
	State       string            `json:"state" db:"state"`
	Winner      []string          `json:"winner,omitempty"` // nil until resolved; >1 key on a tie

	// House mode only: the banker and the single outcome the banker backs.
	// The banker's stake is never escrowed; every vote opposes HouseOutcome.
	HousePlayer  string `json:"house_player,omitempty" db:"house_player"`
	HouseOutcome string `json:"house_outcome,omitempty" db:"house_outcome"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Resolved reports whether the scenario has reached its terminal state.
func (s *Scenario) Resolved() bool { return s.State == StateResolved }

// HasOutcome reports whether key is a known outcome.
func (s *Scenario) HasOutcome(key string) bool {
	_, ok := s.Outcomes[key]
	return ok
}

// WinnerSet returns the declared winners as a set, or nil if unresolved.
func (s *Scenario) WinnerSet() map[string]bool {
	if len(s.Winner) == 0 {
		return nil
	}
	set := make(map[string]bool, len(s.Winner))
	for _, k := range s.Winner {
		set[k] = true
	}
	return set
}

// Pot returns the total stake escrowed across all votes.
func (s *Scenario) Pot() decimal.Decimal {
	pot := decimal.Zero
	for _, v := range s.Votes {
		pot = pot.Add(v.Amount)
	}
	return pot
}

// OpposingOutcome returns the outcome key opposing the house, for binary
// house scenarios. Empty string otherwise.
func (s *Scenario) OpposingOutcome() string {
	if s.Mode != ModeHouse || len(s.Outcomes) != 2 {
		return ""
	}
	for key := range s.Outcomes {
		if key != s.HouseOutcome {
			return key
		}
	}
	return ""
}

// Clone returns a deep copy. Stores hand out clones so callers can never
// mutate persisted state outside a transaction.
func (s *Scenario) Clone() *Scenario {
	c := *s
	c.Outcomes = make(map[string]string, len(s.Outcomes))
	for k, v := range s.Outcomes {
		c.Outcomes[k] = v
	}
	c.Order = append([]string(nil), s.Order...)
	c.Votes = make(map[string]Vote, len(s.Votes))
	for k, v := range s.Votes {
		c.Votes[k] = v
	}
	c.Winner = append([]string(nil), s.Winner...)
	return &c
}

// Transaction is one immutable ledger record. Amount is signed: wagers are
// negative, payouts and refunds positive, transfers either. Loan entries
// also move the player's loan balance by the same amount.
type Transaction struct {
	ID         string          `json:"id" db:"id"`
	Player     string          `json:"player" db:"player"`
	Kind       string          `json:"type" db:"kind"`
	Amount     decimal.Decimal `json:"amount" db:"amount"`
	ScenarioID string          `json:"scenario_id,omitempty" db:"scenario_id"`
	Note       string          `json:"note,omitempty" db:"note"`
	Timestamp  time.Time       `json:"timestamp" db:"timestamp"`
}
