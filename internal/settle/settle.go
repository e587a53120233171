// Package settle computes payouts and refunds for resolved scenarios.
//
// Three settlement modes are supported:
//   - flat:  uniform stake, pot split equally among winners
//   - pari:  parimutuel — each winner takes their stake back plus a share
//     of the losing pool proportional to their winning stake
//   - house: a single banker covers every opposing stake at 1:1 odds
//
// All token amounts use shopspring/decimal — never float64 for money.
// Settlement is a pure function of the scenario's votes and winner: it
// returns the ledger entries to apply and performs no I/O. Conservation
// (Σ payouts + Σ refunds == pot) is verified before returning; a violation
// is reported as ErrConservation rather than applied.
package settle

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/BroHamJenkins/friendsbet/internal/model"
)

var (
	// ErrNotResolved is returned when the scenario has no declared winner.
	ErrNotResolved = errors.New("settle: scenario has no declared winner")

	// ErrUnknownWinner is returned when a declared winner key is not one
	// of the scenario's outcomes.
	ErrUnknownWinner = errors.New("settle: winner is not a known outcome")

	// ErrNoHouse is returned for a house scenario missing its banker or
	// backed outcome.
	ErrNoHouse = errors.New("settle: house scenario missing house player or outcome")

	// ErrConservation is returned when computed entries would create or
	// destroy tokens. It indicates a bug, never a valid settlement.
	ErrConservation = errors.New("settle: payouts do not conserve the pot")
)

// Scale is the number of fractional digits for payout arithmetic.
// Division rounds down to Scale digits; the residual is granted to the
// winner with the largest stake (ties broken by smallest player id) so
// that the pot is conserved exactly.
const Scale int32 = 2

// Entry is one balance change produced by settlement. Amount is signed
// and credited to the player (negative amounts debit, used only for the
// house side of a lost house scenario).
type Entry struct {
	Player string
	Kind   string // model.TxPayout or model.TxRefund
	Amount decimal.Decimal
}

// Settle computes the ledger entries for a resolved scenario. The scenario
// must carry a non-empty winner set; votes are taken as already escrowed
// (stakes were debited at vote time), so entries are the resolution side
// only.
func Settle(sc *model.Scenario) ([]Entry, error) {
	if len(sc.Winner) == 0 {
		return nil, ErrNotResolved
	}
	for _, key := range sc.Winner {
		if !sc.HasOutcome(key) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownWinner, key)
		}
	}

	var (
		entries []Entry
		err     error
	)
	switch sc.Mode {
	case model.ModeHouse:
		entries, err = settleHouse(sc)
	case model.ModePari:
		entries, err = settlePari(sc)
	default:
		// Flat is the original mode and the fallback for scenarios
		// created before modes existed.
		entries, err = settleFlat(sc)
	}
	if err != nil {
		return nil, err
	}
	if err := checkConservation(sc, entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// settleFlat splits the pot equally among voters who picked a winning
// outcome. With no winners the scenario is a push: every voter is refunded
// exactly their own stake.
func settleFlat(sc *model.Scenario) ([]Entry, error) {
	winners := winningVoters(sc)
	if len(winners) == 0 {
		return refundAll(sc), nil
	}

	pot := sc.Pot()
	share := pot.Div(decimal.NewFromInt(int64(len(winners)))).RoundDown(Scale)

	entries := make([]Entry, 0, len(winners))
	paid := decimal.Zero
	for _, p := range winners {
		entries = append(entries, Entry{Player: p, Kind: model.TxPayout, Amount: share})
		paid = paid.Add(share)
	}
	allocateResidual(entries, pot.Sub(paid))
	return entries, nil
}

// settlePari pays each winner their stake back plus a share of the losing
// pool proportional to their winning stake:
//
//	payout_i = stake_i + (stake_i / totalWinning) × totalLosing
//
// Losers forfeit their already-escrowed stake. No winners → push.
func settlePari(sc *model.Scenario) ([]Entry, error) {
	winners := winningVoters(sc)
	if len(winners) == 0 {
		return refundAll(sc), nil
	}

	totalWinning := decimal.Zero
	for _, p := range winners {
		totalWinning = totalWinning.Add(sc.Votes[p].Amount)
	}
	totalLosing := sc.Pot().Sub(totalWinning)

	entries := make([]Entry, 0, len(winners))
	paid := decimal.Zero
	for _, p := range winners {
		stake := sc.Votes[p].Amount
		bonus := stake.Mul(totalLosing).Div(totalWinning).RoundDown(Scale)
		amount := stake.Add(bonus)
		entries = append(entries, Entry{Player: p, Kind: model.TxPayout, Amount: amount})
		paid = paid.Add(amount)
	}
	allocateResidual(entries, sc.Pot().Sub(paid))
	return entries, nil
}

// settleHouse settles a binary banker scenario. Every vote opposes the
// house; the house's own stake was never escrowed.
//
// House wins: each opposing stake (already escrowed) is credited to the
// house. House loses: each opponent is credited twice their stake (their
// stake back plus an equal match) and the house is debited the match
// portion only.
func settleHouse(sc *model.Scenario) ([]Entry, error) {
	if sc.HousePlayer == "" || sc.HouseOutcome == "" {
		return nil, ErrNoHouse
	}

	houseWins := sc.WinnerSet()[sc.HouseOutcome]
	var entries []Entry
	houseDelta := decimal.Zero

	for _, p := range sortedVoters(sc) {
		stake := sc.Votes[p].Amount
		if houseWins {
			houseDelta = houseDelta.Add(stake)
		} else {
			entries = append(entries, Entry{
				Player: p,
				Kind:   model.TxPayout,
				Amount: stake.Mul(decimal.NewFromInt(2)),
			})
			houseDelta = houseDelta.Sub(stake)
		}
	}
	if !houseDelta.IsZero() {
		entries = append(entries, Entry{
			Player: sc.HousePlayer,
			Kind:   model.TxPayout,
			Amount: houseDelta,
		})
	}
	return entries, nil
}

// refundAll returns each voter's exact stake — a push.
func refundAll(sc *model.Scenario) []Entry {
	voters := sortedVoters(sc)
	entries := make([]Entry, 0, len(voters))
	for _, p := range voters {
		entries = append(entries, Entry{
			Player: p,
			Kind:   model.TxRefund,
			Amount: sc.Votes[p].Amount,
		})
	}
	return entries
}

// winningVoters returns the players whose choice is in the winner set,
// ordered by stake descending then player id ascending. The ordering is
// the residual allocation order, so it must be deterministic.
func winningVoters(sc *model.Scenario) []string {
	winnerSet := sc.WinnerSet()
	var players []string
	for p, v := range sc.Votes {
		if winnerSet[v.Choice] {
			players = append(players, p)
		}
	}
	sort.Slice(players, func(i, j int) bool {
		si, sj := sc.Votes[players[i]].Amount, sc.Votes[players[j]].Amount
		if !si.Equal(sj) {
			return si.GreaterThan(sj)
		}
		return players[i] < players[j]
	})
	return players
}

// sortedVoters returns all voting players in id order.
func sortedVoters(sc *model.Scenario) []string {
	players := make([]string, 0, len(sc.Votes))
	for p := range sc.Votes {
		players = append(players, p)
	}
	sort.Strings(players)
	return players
}

// allocateResidual adds the rounding residual to the first entry, which by
// winningVoters ordering is the largest winning stake.
func allocateResidual(entries []Entry, residual decimal.Decimal) {
	if residual.IsZero() || len(entries) == 0 {
		return
	}
	entries[0].Amount = entries[0].Amount.Add(residual)
}

// checkConservation verifies Σ entries equals the escrowed pot. This holds
// in every mode: flat and pari redistribute the pot (or refund it on a
// push); house either moves the pot to the banker or pays opponents 2×
// their stakes while debiting the banker the match portion, which also
// nets to the pot.
func checkConservation(sc *model.Scenario, entries []Entry) error {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Amount)
	}
	if pot := sc.Pot(); !total.Equal(pot) {
		return fmt.Errorf("%w: entries total %s, pot %s", ErrConservation, total, pot)
	}
	return nil
}
