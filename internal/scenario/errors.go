package scenario

import (
	"errors"
	"net/http"

	"github.com/BroHamJenkins/friendsbet/internal/ledger"
	"github.com/BroHamJenkins/friendsbet/internal/store"
)

var (
	// ErrInvalidState is returned when the scenario is in the wrong
	// lifecycle phase for the requested operation.
	ErrInvalidState = errors.New("scenario: invalid state for operation")

	// ErrUnauthorized is returned when the caller is not the creator
	// (or house player, where the house may act).
	ErrUnauthorized = errors.New("scenario: caller not authorized")

	// ErrUnauthorizedPlayer is returned when the caller's name does not
	// canonicalize against the roster.
	ErrUnauthorizedPlayer = errors.New("scenario: unknown player name")

	// ErrDuplicateVote is returned when a player who already voted votes
	// again. The existing vote and balance are left untouched.
	ErrDuplicateVote = errors.New("scenario: player already voted")

	// ErrStakeOutOfRange is returned when a stake falls outside
	// [minBet, maxBet].
	ErrStakeOutOfRange = errors.New("scenario: stake outside allowed range")

	// ErrUnknownOutcome is returned when a vote or winner references an
	// outcome key the scenario does not have.
	ErrUnknownOutcome = errors.New("scenario: unknown outcome")

	// ErrPreconditionFailed is returned when launch requirements are not
	// met (fewer than two outcomes, or a house scenario without its
	// backed outcome).
	ErrPreconditionFailed = errors.New("scenario: launch preconditions not met")
)

// errStatus maps domain errors onto HTTP status codes. Validation always
// runs before any mutation, so every non-2xx response implies no effects.
func errStatus(err error) int {
	switch {
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrUnauthorizedPlayer):
		return http.StatusForbidden
	case errors.Is(err, ErrUnknownOutcome), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidState),
		errors.Is(err, ErrDuplicateVote),
		errors.Is(err, ErrStakeOutOfRange),
		errors.Is(err, ErrPreconditionFailed):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrInvalidRecipient),
		errors.Is(err, ledger.ErrInvalidAmount):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
