// Package roster maps free-text player names onto the closed allow-list of
// known players. The engine performs no authentication beyond this match:
// an input that does not canonicalize is an unknown player.
package roster

import (
	"errors"
	"strings"
)

// ErrUnknownPlayer is returned when an input does not match any roster entry.
var ErrUnknownPlayer = errors.New("roster: unknown player")

// Roster is an immutable allow-list of canonical player ids. Matching is
// case-insensitive on trimmed input; the stored id keeps its original casing.
type Roster struct {
	byFold map[string]string
	ids    []string
}

// New builds a roster from canonical ids. Blank and duplicate entries
// (after case folding) are dropped.
func New(ids []string) *Roster {
	r := &Roster{byFold: make(map[string]string, len(ids))}
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		fold := strings.ToLower(id)
		if _, dup := r.byFold[fold]; dup {
			continue
		}
		r.byFold[fold] = id
		r.ids = append(r.ids, id)
	}
	return r
}

// Canonical maps free-text input to a canonical player id. The boolean is
// false when the input is not on the roster.
func (r *Roster) Canonical(input string) (string, bool) {
	id, ok := r.byFold[strings.ToLower(strings.TrimSpace(input))]
	return id, ok
}

// Resolve is Canonical with an error instead of a boolean, for call sites
// that propagate failures.
func (r *Roster) Resolve(input string) (string, error) {
	id, ok := r.Canonical(input)
	if !ok {
		return "", ErrUnknownPlayer
	}
	return id, nil
}

// IDs returns the canonical ids in registration order.
func (r *Roster) IDs() []string {
	return append([]string(nil), r.ids...)
}

// Len returns the roster size.
func (r *Roster) Len() int { return len(r.ids) }
