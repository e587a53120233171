package scenario

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/BroHamJenkins/friendsbet/internal/model"
)

// Lifecycle rules. Each helper mutates the scenario only after all checks
// pass; callers run them inside the store's transactional update so the
// checked state is the state that commits.

// addOutcome registers a new labeled outcome while the scenario is still
// a draft. A blank key gets a generated one; keys must be unique.
func addOutcome(sc *model.Scenario, caller, key, label string) error {
	if caller != sc.Creator {
		return fmt.Errorf("%w: only the creator may add outcomes", ErrUnauthorized)
	}
	if sc.State != model.StateDraft {
		return fmt.Errorf("%w: outcomes are fixed once launched", ErrInvalidState)
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return fmt.Errorf("%w: empty outcome label", ErrPreconditionFailed)
	}
	if key == "" {
		key = "opt-" + uuid.New().String()[:8]
	}
	if sc.HasOutcome(key) {
		return fmt.Errorf("%w: duplicate outcome key %q", ErrPreconditionFailed, key)
	}
	sc.Outcomes[key] = label
	sc.Order = append(sc.Order, key)
	return nil
}

// launch moves draft → open once at least two outcomes exist. House
// scenarios additionally need their backed outcome registered.
func launch(sc *model.Scenario, caller string) error {
	if caller != sc.Creator {
		return fmt.Errorf("%w: only the creator may launch", ErrUnauthorized)
	}
	if sc.State != model.StateDraft {
		return fmt.Errorf("%w: scenario is %s", ErrInvalidState, sc.State)
	}
	if len(sc.Outcomes) < 2 {
		return fmt.Errorf("%w: at least two outcomes required", ErrPreconditionFailed)
	}
	if sc.Mode == model.ModeHouse && !sc.HasOutcome(sc.HouseOutcome) {
		return fmt.Errorf("%w: house outcome %q not registered", ErrPreconditionFailed, sc.HouseOutcome)
	}
	sc.State = model.StateOpen
	return nil
}

// closeBets freezes voting ahead of resolution: open → closed. The house
// player may close their own scenario; otherwise only the creator.
func closeBets(sc *model.Scenario, caller string) error {
	if caller != sc.Creator && !(sc.Mode == model.ModeHouse && caller == sc.HousePlayer) {
		return fmt.Errorf("%w: only the creator may close betting", ErrUnauthorized)
	}
	if sc.State != model.StateOpen {
		return fmt.Errorf("%w: scenario is %s", ErrInvalidState, sc.State)
	}
	sc.State = model.StateClosed
	return nil
}

// authorizeResolve checks who may declare a winner: the creator, or in
// house mode either party (the banker may settle their own book).
func authorizeResolve(sc *model.Scenario, caller string) error {
	if caller == sc.Creator {
		return nil
	}
	if sc.Mode == model.ModeHouse && caller == sc.HousePlayer {
		return nil
	}
	return fmt.Errorf("%w: only the creator may resolve", ErrUnauthorized)
}

// tallyWinner computes a poll's winner set: the outcome(s) with the most
// votes. Ties produce multiple winners; an empty tally is an error.
func tallyWinner(sc *model.Scenario) ([]string, error) {
	counts := make(map[string]int)
	for _, v := range sc.Votes {
		if sc.HasOutcome(v.Choice) {
			counts[v.Choice]++
		}
	}
	if len(counts) == 0 {
		return nil, fmt.Errorf("%w: no votes to tally", ErrInvalidState)
	}

	best := 0
	for _, n := range counts {
		if n > best {
			best = n
		}
	}
	var winners []string
	for key, n := range counts {
		if n == best {
			winners = append(winners, key)
		}
	}
	sort.Strings(winners)
	return winners, nil
}
