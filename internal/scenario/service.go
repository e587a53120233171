// Package scenario provides the HTTP handlers and business logic for the
// wagering engine: room and scenario lifecycle, vote admission, and
// settlement at resolution.
//
// All token amounts use shopspring/decimal — never float64 for money.
// Every scenario mutation goes through the store's transactional update,
// so the checked state is always the state that commits; settlement
// entries apply in the same transaction as the resolved state.
package scenario

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/BroHamJenkins/friendsbet/internal/ledger"
	"github.com/BroHamJenkins/friendsbet/internal/metrics"
	"github.com/BroHamJenkins/friendsbet/internal/model"
	"github.com/BroHamJenkins/friendsbet/internal/roster"
	"github.com/BroHamJenkins/friendsbet/internal/settle"
	"github.com/BroHamJenkins/friendsbet/internal/store"
)

// Service handles wagering commands. All state lives in the store; the
// service itself is stateless and safe for concurrent use.
type Service struct {
	store  store.Store
	ledger *ledger.Ledger
	roster *roster.Roster
	hub    *Hub // optional WebSocket hub for real-time broadcasts
	admin  string
}

// NewService creates a new wagering service. Pass nil for hub if WebSocket
// broadcasting is not needed; admin names the only player allowed to
// delete rooms.
func NewService(st store.Store, lg *ledger.Ledger, r *roster.Roster, hub *Hub, admin string) *Service {
	return &Service{
		store:  st,
		ledger: lg,
		roster: r,
		hub:    hub,
		admin:  admin,
	}
}

// Register mounts the command surface on a router. Used by main and by
// tests, so both always serve the same route table.
func (s *Service) Register(r chi.Router) {
	if s.hub != nil {
		r.Get("/ws", s.hub.HandleWS)
	}

	r.Get("/rooms", s.ListRooms)
	r.Post("/rooms", s.CreateRoom)
	r.Get("/rooms/{roomID}", s.GetRoom)
	r.Delete("/rooms/{roomID}", s.DeleteRoom)
	r.Get("/rooms/{roomID}/scenarios", s.ListScenarios)
	r.Post("/rooms/{roomID}/scenarios", s.CreateScenario)

	r.Get("/scenarios/{scenarioID}", s.GetScenario)
	r.Post("/scenarios/{scenarioID}/outcomes", s.AddOutcome)
	r.Post("/scenarios/{scenarioID}/launch", s.Launch)
	r.Post("/scenarios/{scenarioID}/close", s.CloseBets)
	r.Post("/scenarios/{scenarioID}/votes", s.CastVote)
	r.Post("/scenarios/{scenarioID}/resolve", s.Resolve)

	r.Get("/players", s.ListPlayers)
	r.Get("/players/{playerID}", s.GetPlayer)
	r.Get("/players/{playerID}/transactions", s.GetHistory)
	r.Post("/players/{playerID}/loan", s.Loan)
	r.Post("/transfer", s.Transfer)
}

// --- Request/Response types ---

// CreateRoomRequest is the JSON body for room creation.
type CreateRoomRequest struct {
	Player string `json:"player"`
	Name   string `json:"name"`
	Kind   string `json:"kind"` // "prop" (default) or "poll"
}

// OutcomeInput is one outcome supplied at scenario creation.
type OutcomeInput struct {
	Key   string `json:"key,omitempty"` // generated when blank
	Label string `json:"label"`
}

// CreateScenarioRequest is the JSON body for scenario creation. Flat mode
// takes a single fixed BetAmount; pari and house take a MinBet/MaxBet
// range. House mode marks the creator as the banker backing HouseOutcome.
type CreateScenarioRequest struct {
	Player       string          `json:"player"`
	Description  string          `json:"description"`
	Mode         string          `json:"mode"`
	BetAmount    decimal.Decimal `json:"bet_amount"`
	MinBet       decimal.Decimal `json:"min_bet"`
	MaxBet       decimal.Decimal `json:"max_bet"`
	Outcomes     []OutcomeInput  `json:"outcomes,omitempty"`
	HouseOutcome string          `json:"house_outcome,omitempty"`
}

// OutcomeRequest is the JSON body for adding one outcome to a draft.
type OutcomeRequest struct {
	Player string `json:"player"`
	Key    string `json:"key,omitempty"`
	Label  string `json:"label"`
}

// CallerRequest is the JSON body for launch and close commands.
type CallerRequest struct {
	Player string `json:"player"`
}

// VoteRequest is the JSON body for POST /scenarios/{id}/votes.
type VoteRequest struct {
	Player  string          `json:"player"`
	Outcome string          `json:"outcome"`
	Amount  decimal.Decimal `json:"amount"`
}

// ResolveRequest is the JSON body for POST /scenarios/{id}/resolve.
// Winner accepts a single outcome key or an array of keys (a tie); poll
// rooms ignore it and tally votes instead.
type ResolveRequest struct {
	Player string          `json:"player"`
	Winner json.RawMessage `json:"winner,omitempty"`
}

// ResolveResponse reports the resolved scenario plus the settlement
// transactions on record for it. Replayed resolves return the same
// winner with the original settlement, and apply nothing.
type ResolveResponse struct {
	Scenario        *model.Scenario     `json:"scenario"`
	AlreadyResolved bool                `json:"already_resolved"`
	Settlement      []model.Transaction `json:"settlement"`
}

// TransferRequest is the JSON body for POST /transfer.
type TransferRequest struct {
	Player string          `json:"player"` // sender
	To     string          `json:"to"`
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note,omitempty"`
}

// LoanRequest is the JSON body for POST /players/{id}/loan.
type LoanRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Repay  bool            `json:"repay,omitempty"`
}

// --- Room handlers ---

// CreateRoom handles POST /api/v1/rooms.
func (s *Service) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	player, err := s.player(req.Player)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if req.Name == "" {
		writeError(w, "room name is required", http.StatusBadRequest)
		return
	}
	kind := req.Kind
	if kind == "" {
		kind = model.RoomProp
	}
	if kind != model.RoomProp && kind != model.RoomPoll {
		writeError(w, "kind must be prop or poll", http.StatusBadRequest)
		return
	}

	room := &model.Room{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Kind:      kind,
		Creator:   player,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateRoom(r.Context(), room); err != nil {
		writeDomainError(w, err)
		return
	}

	slog.Info("room created", "id", room.ID, "name", room.Name, "kind", kind, "creator", player)
	writeJSON(w, http.StatusCreated, room)
}

// ListRooms handles GET /api/v1/rooms.
func (s *Service) ListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.store.ListRooms(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if rooms == nil {
		rooms = []model.Room{}
	}
	writeJSON(w, http.StatusOK, rooms)
}

// GetRoom handles GET /api/v1/rooms/{roomID}.
func (s *Service) GetRoom(w http.ResponseWriter, r *http.Request) {
	room, err := s.store.GetRoom(r.Context(), chi.URLParam(r, "roomID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// DeleteRoom handles DELETE /api/v1/rooms/{roomID}. Admin-only: clearing
// a room discards its scenarios, the one sanctioned deletion path.
func (s *Service) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	var req CallerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	player, err := s.player(req.Player)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if player != s.admin {
		writeDomainError(w, fmt.Errorf("%w: only %s may delete rooms", ErrUnauthorized, s.admin))
		return
	}

	roomID := chi.URLParam(r, "roomID")
	if err := s.store.DeleteRoom(r.Context(), roomID); err != nil {
		writeDomainError(w, err)
		return
	}

	slog.Info("room deleted", "id", roomID, "by", player)
	if s.hub != nil {
		s.hub.Broadcast(WSMessage{Type: "room_deleted", RoomID: roomID})
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Scenario handlers ---

// CreateScenario handles POST /api/v1/rooms/{roomID}/scenarios.
// The scenario starts in draft; outcomes may be supplied here or added
// one at a time before launch.
func (s *Service) CreateScenario(w http.ResponseWriter, r *http.Request) {
	var req CreateScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	player, err := s.player(req.Player)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if req.Description == "" {
		writeError(w, "description is required", http.StatusBadRequest)
		return
	}

	mode := req.Mode
	if mode == "" {
		mode = model.ModeFlat
	}

	var minBet, maxBet decimal.Decimal
	switch mode {
	case model.ModeFlat:
		if req.BetAmount.LessThanOrEqual(decimal.Zero) {
			writeError(w, "bet_amount must be positive for flat scenarios", http.StatusBadRequest)
			return
		}
		minBet, maxBet = req.BetAmount, req.BetAmount
	case model.ModePari, model.ModeHouse:
		if req.MinBet.LessThanOrEqual(decimal.Zero) || req.MaxBet.LessThan(req.MinBet) {
			writeError(w, "require 0 < min_bet <= max_bet", http.StatusBadRequest)
			return
		}
		minBet, maxBet = req.MinBet, req.MaxBet
	default:
		writeError(w, "mode must be flat, pari, or house", http.StatusBadRequest)
		return
	}

	roomID := chi.URLParam(r, "roomID")
	if _, err := s.store.GetRoom(r.Context(), roomID); err != nil {
		writeDomainError(w, err)
		return
	}

	sc := &model.Scenario{
		ID:          uuid.New().String(),
		RoomID:      roomID,
		Creator:     player,
		Description: req.Description,
		Mode:        mode,
		Outcomes:    make(map[string]string),
		Order:       []string{},
		MinBet:      minBet,
		MaxBet:      maxBet,
		Votes:       make(map[string]model.Vote),
		State:       model.StateDraft,
		CreatedAt:   time.Now().UTC(),
	}
	for i, out := range req.Outcomes {
		key := out.Key
		if key == "" {
			key = fmt.Sprintf("opt%d", i)
		}
		if err := addOutcome(sc, player, key, out.Label); err != nil {
			writeDomainError(w, err)
			return
		}
	}
	if mode == model.ModeHouse {
		if req.HouseOutcome == "" {
			writeError(w, "house_outcome is required for house scenarios", http.StatusBadRequest)
			return
		}
		sc.HousePlayer = player
		sc.HouseOutcome = req.HouseOutcome
	}

	if err := s.store.CreateScenario(r.Context(), sc); err != nil {
		writeDomainError(w, err)
		return
	}

	slog.Info("scenario created",
		"id", sc.ID,
		"room", roomID,
		"creator", player,
		"mode", mode,
		"min_bet", minBet.String(),
		"max_bet", maxBet.String(),
	)
	s.broadcast(sc)
	writeJSON(w, http.StatusCreated, sc)
}

// GetScenario handles GET /api/v1/scenarios/{scenarioID}.
func (s *Service) GetScenario(w http.ResponseWriter, r *http.Request) {
	sc, err := s.store.GetScenario(r.Context(), chi.URLParam(r, "scenarioID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

// ListScenarios handles GET /api/v1/rooms/{roomID}/scenarios.
func (s *Service) ListScenarios(w http.ResponseWriter, r *http.Request) {
	scenarios, err := s.store.ListScenarios(r.Context(), chi.URLParam(r, "roomID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if scenarios == nil {
		scenarios = []model.Scenario{}
	}
	writeJSON(w, http.StatusOK, scenarios)
}

// AddOutcome handles POST /api/v1/scenarios/{scenarioID}/outcomes.
func (s *Service) AddOutcome(w http.ResponseWriter, r *http.Request) {
	var req OutcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	player, err := s.player(req.Player)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	sc, err := s.store.UpdateScenario(r.Context(), chi.URLParam(r, "scenarioID"),
		func(sc *model.Scenario) ([]model.Transaction, error) {
			return nil, addOutcome(sc, player, req.Key, req.Label)
		})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.broadcast(sc)
	writeJSON(w, http.StatusOK, sc)
}

// Launch handles POST /api/v1/scenarios/{scenarioID}/launch.
func (s *Service) Launch(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, launch)
}

// CloseBets handles POST /api/v1/scenarios/{scenarioID}/close. Freezing
// bets ahead of resolution is a prop-room feature; poll rooms go straight
// from open to tallied.
func (s *Service) CloseBets(w http.ResponseWriter, r *http.Request) {
	var req CallerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	player, err := s.player(req.Player)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	room, err := s.roomForScenario(r, chi.URLParam(r, "scenarioID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if room.Kind != model.RoomProp {
		writeDomainError(w, fmt.Errorf("%w: bets close only in prop rooms", ErrInvalidState))
		return
	}

	sc, err := s.store.UpdateScenario(r.Context(), chi.URLParam(r, "scenarioID"),
		func(sc *model.Scenario) ([]model.Transaction, error) {
			return nil, closeBets(sc, player)
		})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	slog.Info("bets closed", "scenario", sc.ID, "by", player)
	s.broadcast(sc)
	writeJSON(w, http.StatusOK, sc)
}

// CastVote handles POST /api/v1/scenarios/{scenarioID}/votes.
// An admitted vote and its escrow debit commit in one transaction: the
// stake leaves the balance at vote time, so balances already carry
// outstanding exposure.
func (s *Service) CastVote(w http.ResponseWriter, r *http.Request) {
	var req VoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	player, err := s.player(req.Player)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var admitted model.Vote
	sc, err := s.store.UpdateScenario(r.Context(), chi.URLParam(r, "scenarioID"),
		func(sc *model.Scenario) ([]model.Transaction, error) {
			vote, err := validateVote(sc, player, req.Outcome, req.Amount)
			if err != nil {
				return nil, err
			}
			admitted = vote
			sc.Votes[player] = vote
			wager := ledger.NewTransaction(player, model.TxWager, vote.Amount.Neg(), sc.ID, "")
			return []model.Transaction{*wager}, nil
		})
	if err != nil {
		metrics.VoteRejections.WithLabelValues(rejectionReason(err)).Inc()
		writeDomainError(w, err)
		return
	}

	metrics.VotesTotal.WithLabelValues(sc.Mode).Inc()
	slog.Info("vote cast",
		"scenario", sc.ID,
		"player", player,
		"choice", admitted.Choice,
		"amount", admitted.Amount.String(),
	)
	s.broadcast(sc)
	writeJSON(w, http.StatusOK, sc)
}

// Resolve handles POST /api/v1/scenarios/{scenarioID}/resolve.
// This is the atomic boundary: the transition to resolved and the
// settlement payouts commit together or not at all. Resolving an
// already-resolved scenario is a successful no-op that reports the
// existing winner and settlement.
func (s *Service) Resolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	player, err := s.player(req.Player)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	scenarioID := chi.URLParam(r, "scenarioID")
	// Room kind decides declared-winner vs tally resolution. Kind is
	// immutable, so reading it outside the scenario transaction is safe.
	room, err := s.roomForScenario(r, scenarioID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var already bool
	sc, err := s.store.UpdateScenario(r.Context(), scenarioID,
		func(sc *model.Scenario) ([]model.Transaction, error) {
			if sc.Resolved() {
				already = true
				return nil, nil
			}
			if err := authorizeResolve(sc, player); err != nil {
				return nil, err
			}
			if sc.State != model.StateOpen && sc.State != model.StateClosed {
				return nil, fmt.Errorf("%w: scenario is %s", ErrInvalidState, sc.State)
			}

			var winners []string
			var err error
			if room.Kind == model.RoomPoll {
				winners, err = tallyWinner(sc)
			} else {
				winners, err = parseWinner(req.Winner, sc)
			}
			if err != nil {
				return nil, err
			}

			sc.Winner = winners
			sc.State = model.StateResolved

			entries, err := settle.Settle(sc)
			if err != nil {
				return nil, err
			}
			txs := make([]model.Transaction, 0, len(entries))
			for _, e := range entries {
				txs = append(txs, *ledger.NewTransaction(e.Player, e.Kind, e.Amount, sc.ID, ""))
			}
			return txs, nil
		})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	settlement, err := s.settlementFor(r, sc.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if !already {
		metrics.SettlementsTotal.WithLabelValues(sc.Mode).Inc()
		metrics.SettledTokens.WithLabelValues(sc.Mode).Add(sc.Pot().InexactFloat64())
		slog.Info("scenario resolved",
			"scenario", sc.ID,
			"by", player,
			"winner", sc.Winner,
			"pot", sc.Pot().String(),
			"entries", len(settlement),
		)
		s.broadcast(sc)
	}

	writeJSON(w, http.StatusOK, ResolveResponse{
		Scenario:        sc,
		AlreadyResolved: already,
		Settlement:      settlement,
	})
}

// --- Player handlers ---

// ListPlayers handles GET /api/v1/players.
func (s *Service) ListPlayers(w http.ResponseWriter, r *http.Request) {
	players, err := s.store.ListPlayers(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if players == nil {
		players = []model.Player{}
	}
	writeJSON(w, http.StatusOK, players)
}

// GetPlayer handles GET /api/v1/players/{playerID}.
func (s *Service) GetPlayer(w http.ResponseWriter, r *http.Request) {
	player, err := s.player(chi.URLParam(r, "playerID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	p, err := s.store.GetPlayer(r.Context(), player)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GetHistory handles GET /api/v1/players/{playerID}/transactions.
func (s *Service) GetHistory(w http.ResponseWriter, r *http.Request) {
	player, err := s.player(chi.URLParam(r, "playerID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	txs, err := s.ledger.History(r.Context(), player)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if txs == nil {
		txs = []model.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

// Loan handles POST /api/v1/players/{playerID}/loan. Draws credit tokens
// against the player's loan balance; repayments reverse them.
func (s *Service) Loan(w http.ResponseWriter, r *http.Request) {
	var req LoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	player, err := s.player(chi.URLParam(r, "playerID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if req.Repay {
		err = s.ledger.Repay(r.Context(), player, req.Amount)
	} else {
		err = s.ledger.DrawLoan(r.Context(), player, req.Amount)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}

	slog.Info("loan updated", "player", player, "amount", req.Amount.String(), "repay", req.Repay)
	p, err := s.store.GetPlayer(r.Context(), player)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Transfer handles POST /api/v1/transfer — peer-to-peer token movement.
func (s *Service) Transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	from, err := s.player(req.Player)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if err := s.ledger.Transfer(r.Context(), from, req.To, req.Amount, req.Note); err != nil {
		writeDomainError(w, err)
		return
	}

	metrics.TransfersTotal.Inc()
	p, err := s.store.GetPlayer(r.Context(), from)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// --- Helpers ---

// player canonicalizes a free-text name against the roster.
func (s *Service) player(input string) (string, error) {
	id, ok := s.roster.Canonical(input)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnauthorizedPlayer, input)
	}
	return id, nil
}

// transition runs a simple caller-authorized lifecycle change.
func (s *Service) transition(w http.ResponseWriter, r *http.Request, fn func(*model.Scenario, string) error) {
	var req CallerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	player, err := s.player(req.Player)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	sc, err := s.store.UpdateScenario(r.Context(), chi.URLParam(r, "scenarioID"),
		func(sc *model.Scenario) ([]model.Transaction, error) {
			return nil, fn(sc, player)
		})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	slog.Info("scenario state changed", "scenario", sc.ID, "state", sc.State, "by", player)
	s.broadcast(sc)
	writeJSON(w, http.StatusOK, sc)
}

// roomForScenario loads the room containing a scenario.
func (s *Service) roomForScenario(r *http.Request, scenarioID string) (*model.Room, error) {
	sc, err := s.store.GetScenario(r.Context(), scenarioID)
	if err != nil {
		return nil, err
	}
	return s.store.GetRoom(r.Context(), sc.RoomID)
}

// settlementFor returns the payout and refund transactions on record for
// a scenario — the idempotent settlement view served on resolve replays.
func (s *Service) settlementFor(r *http.Request, scenarioID string) ([]model.Transaction, error) {
	txs, err := s.store.TransactionsByScenario(r.Context(), scenarioID)
	if err != nil {
		return nil, err
	}
	settlement := make([]model.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.Kind == model.TxPayout || tx.Kind == model.TxRefund {
			settlement = append(settlement, tx)
		}
	}
	return settlement, nil
}

// parseWinner accepts a winner as a single key or an array of keys and
// validates each against the scenario's outcomes.
func parseWinner(raw json.RawMessage, sc *model.Scenario) ([]string, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: winner is required", ErrPreconditionFailed)
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		raw, _ = json.Marshal([]string{single})
	}
	var keys []string
	if err := json.Unmarshal(raw, &keys); err != nil || len(keys) == 0 {
		return nil, fmt.Errorf("%w: winner must be a key or array of keys", ErrPreconditionFailed)
	}
	for _, key := range keys {
		if !sc.HasOutcome(key) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownOutcome, key)
		}
	}
	return keys, nil
}

func (s *Service) broadcast(sc *model.Scenario) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(WSMessage{Type: "scenario_updated", RoomID: sc.RoomID, Scenario: sc})
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeDomainError maps a domain error to its HTTP status.
func writeDomainError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrUnavailable) {
		slog.Error("store unavailable", "err", err)
	}
	writeError(w, err.Error(), errStatus(err))
}
