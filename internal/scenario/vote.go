package scenario

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/BroHamJenkins/friendsbet/internal/model"
)

// validateVote admits or rejects a vote against the scenario's current
// state. Checks run in a fixed order — lifecycle phase, outcome, duplicate,
// stake — and the first failure wins; nothing is mutated on rejection.
//
// Mode quirks: flat scenarios force the stake to the fixed bet regardless
// of the client-supplied figure; house scenarios force the choice to the
// outcome opposing the house and never admit the house player's own vote.
func validateVote(sc *model.Scenario, player, outcomeKey string, amount decimal.Decimal) (model.Vote, error) {
	if sc.State != model.StateOpen {
		return model.Vote{}, fmt.Errorf("%w: scenario is %s", ErrInvalidState, sc.State)
	}

	choice := outcomeKey
	if sc.Mode == model.ModeHouse {
		if player == sc.HousePlayer {
			return model.Vote{}, fmt.Errorf("%w: the house cannot bet against itself", ErrUnauthorized)
		}
		choice = sc.OpposingOutcome()
	}
	if !sc.HasOutcome(choice) {
		return model.Vote{}, fmt.Errorf("%w: %q", ErrUnknownOutcome, choice)
	}

	if _, voted := sc.Votes[player]; voted {
		return model.Vote{}, fmt.Errorf("%w: %s", ErrDuplicateVote, player)
	}

	if sc.Mode == model.ModeFlat {
		amount = sc.MinBet
	}
	if amount.LessThan(sc.MinBet) || amount.GreaterThan(sc.MaxBet) {
		return model.Vote{}, fmt.Errorf("%w: %s not in [%s, %s]",
			ErrStakeOutOfRange, amount, sc.MinBet, sc.MaxBet)
	}

	return model.Vote{Choice: choice, Amount: amount}, nil
}

// rejectionReason labels validator failures for metrics.
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrUnknownOutcome):
		return "unknown_outcome"
	case errors.Is(err, ErrDuplicateVote):
		return "duplicate"
	case errors.Is(err, ErrStakeOutOfRange):
		return "stake_range"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	default:
		return "other"
	}
}
