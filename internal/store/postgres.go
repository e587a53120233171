package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/BroHamJenkins/friendsbet/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Token amounts are stored as NUMERIC for exact decimal precision; the
// scenario's outcome map, order, votes, and winner are stored as JSONB.
//
// UpdateScenario takes a FOR UPDATE row lock on the scenario, so two
// concurrent votes (or a resolve racing a late vote) serialize on the row
// and each fn sees the other's committed state.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Schema for reference; applied out of band.
//
//	CREATE TABLE rooms (
//	    id TEXT PRIMARY KEY, name TEXT NOT NULL, kind TEXT NOT NULL,
//	    creator TEXT NOT NULL, created_at TIMESTAMPTZ NOT NULL);
//	CREATE TABLE scenarios (
//	    id TEXT PRIMARY KEY,
//	    room_id TEXT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
//	    creator TEXT NOT NULL, description TEXT NOT NULL, mode TEXT NOT NULL,
//	    outcomes JSONB NOT NULL, outcome_order JSONB NOT NULL,
//	    min_bet NUMERIC NOT NULL, max_bet NUMERIC NOT NULL,
//	    votes JSONB NOT NULL, state TEXT NOT NULL, winner JSONB,
//	    house_player TEXT NOT NULL DEFAULT '',
//	    house_outcome TEXT NOT NULL DEFAULT '',
//	    created_at TIMESTAMPTZ NOT NULL);
//	CREATE TABLE players (
//	    id TEXT PRIMARY KEY,
//	    tokens NUMERIC NOT NULL DEFAULT 0,
//	    loan NUMERIC NOT NULL DEFAULT 0);
//	CREATE TABLE transactions (
//	    id TEXT PRIMARY KEY,
//	    player TEXT NOT NULL REFERENCES players(id),
//	    kind TEXT NOT NULL, amount NUMERIC NOT NULL,
//	    scenario_id TEXT NOT NULL DEFAULT '', note TEXT NOT NULL DEFAULT '',
//	    timestamp TIMESTAMPTZ NOT NULL);

// --- Rooms ---

func (s *PostgresStore) CreateRoom(ctx context.Context, room *model.Room) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO rooms (id, name, kind, creator, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		room.ID, room.Name, room.Kind, room.Creator, room.CreatedAt)
	return wrapPgErr(err)
}

func (s *PostgresStore) GetRoom(ctx context.Context, id string) (*model.Room, error) {
	var r model.Room
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, kind, creator, created_at FROM rooms WHERE id = $1`, id).
		Scan(&r.ID, &r.Name, &r.Kind, &r.Creator, &r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get room %s: %w", id, notFoundOr(err))
	}
	return &r, nil
}

func (s *PostgresStore) ListRooms(ctx context.Context) ([]model.Room, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, kind, creator, created_at FROM rooms ORDER BY created_at`)
	if err != nil {
		return nil, wrapPgErr(err)
	}
	defer rows.Close()

	var rooms []model.Room
	for rows.Next() {
		var r model.Room
		if err := rows.Scan(&r.ID, &r.Name, &r.Kind, &r.Creator, &r.CreatedAt); err != nil {
			return nil, err
		}
		rooms = append(rooms, r)
	}
	return rooms, rows.Err()
}

func (s *PostgresStore) DeleteRoom(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, id)
	if err != nil {
		return wrapPgErr(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("room %s: %w", id, ErrNotFound)
	}
	return nil
}

// --- Scenarios ---

func (s *PostgresStore) CreateScenario(ctx context.Context, sc *model.Scenario) error {
	outcomes, order, votes, winner, err := marshalScenarioDocs(sc)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO scenarios
		 (id, room_id, creator, description, mode, outcomes, outcome_order,
		  min_bet, max_bet, votes, state, winner, house_player, house_outcome, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8::NUMERIC, $9::NUMERIC, $10, $11, $12, $13, $14, $15)`,
		sc.ID, sc.RoomID, sc.Creator, sc.Description, sc.Mode,
		outcomes, order, sc.MinBet.String(), sc.MaxBet.String(),
		votes, sc.State, winner, sc.HousePlayer, sc.HouseOutcome, sc.CreatedAt)
	return wrapPgErr(err)
}

func (s *PostgresStore) GetScenario(ctx context.Context, id string) (*model.Scenario, error) {
	sc, err := scanScenario(s.pool.QueryRow(ctx, selectScenario+` WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get scenario %s: %w", id, notFoundOr(err))
	}
	return sc, nil
}

func (s *PostgresStore) ListScenarios(ctx context.Context, roomID string) ([]model.Scenario, error) {
	rows, err := s.pool.Query(ctx,
		selectScenario+` WHERE room_id = $1 ORDER BY created_at`, roomID)
	if err != nil {
		return nil, wrapPgErr(err)
	}
	defer rows.Close()

	var scenarios []model.Scenario
	for rows.Next() {
		sc, err := scanScenario(rows)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, *sc)
	}
	return scenarios, rows.Err()
}

func (s *PostgresStore) UpdateScenario(ctx context.Context, id string, fn UpdateFunc) (*model.Scenario, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, wrapPgErr(err)
	}
	defer tx.Rollback(ctx)

	sc, err := scanScenario(tx.QueryRow(ctx, selectScenario+` WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, fmt.Errorf("lock scenario %s: %w", id, notFoundOr(err))
	}

	ledgerTxs, err := fn(sc)
	if err != nil {
		return nil, err
	}

	outcomes, order, votes, winner, err := marshalScenarioDocs(sc)
	if err != nil {
		return nil, err
	}
	_, err = tx.Exec(ctx,
		`UPDATE scenarios
		 SET outcomes = $2, outcome_order = $3, min_bet = $4::NUMERIC,
		     max_bet = $5::NUMERIC, votes = $6, state = $7, winner = $8
		 WHERE id = $1`,
		id, outcomes, order, sc.MinBet.String(), sc.MaxBet.String(),
		votes, sc.State, winner)
	if err != nil {
		return nil, wrapPgErr(err)
	}

	for i := range ledgerTxs {
		if err := applyTransactionTx(ctx, tx, &ledgerTxs[i]); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, wrapPgErr(err)
	}
	return sc, nil
}

// --- Players and ledger ---

func (s *PostgresStore) EnsurePlayer(ctx context.Context, id string, grant decimal.Decimal) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return wrapPgErr(err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`INSERT INTO players (id, tokens, loan) VALUES ($1, 0, 0)
		 ON CONFLICT (id) DO NOTHING`, id)
	if err != nil {
		return wrapPgErr(err)
	}
	if tag.RowsAffected() == 1 && !grant.IsZero() {
		grantTx := model.Transaction{
			ID:        newTxID(),
			Player:    id,
			Kind:      model.TxTransfer,
			Amount:    grant,
			Note:      "opening grant",
			Timestamp: nowUTC(),
		}
		if err := applyTransactionTx(ctx, tx, &grantTx); err != nil {
			return err
		}
	}
	return wrapPgErr(tx.Commit(ctx))
}

func (s *PostgresStore) GetPlayer(ctx context.Context, id string) (*model.Player, error) {
	var p model.Player
	var tokens, loan string
	err := s.pool.QueryRow(ctx,
		`SELECT id, tokens::TEXT, loan::TEXT FROM players WHERE id = $1`, id).
		Scan(&p.ID, &tokens, &loan)
	if err != nil {
		return nil, fmt.Errorf("get player %s: %w", id, notFoundOr(err))
	}
	p.Tokens, _ = decimal.NewFromString(tokens)
	p.Loan, _ = decimal.NewFromString(loan)
	return &p, nil
}

func (s *PostgresStore) ListPlayers(ctx context.Context) ([]model.Player, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tokens::TEXT, loan::TEXT FROM players ORDER BY id`)
	if err != nil {
		return nil, wrapPgErr(err)
	}
	defer rows.Close()

	var players []model.Player
	for rows.Next() {
		var p model.Player
		var tokens, loan string
		if err := rows.Scan(&p.ID, &tokens, &loan); err != nil {
			return nil, err
		}
		p.Tokens, _ = decimal.NewFromString(tokens)
		p.Loan, _ = decimal.NewFromString(loan)
		players = append(players, p)
	}
	return players, rows.Err()
}

func (s *PostgresStore) ApplyTransaction(ctx context.Context, ledgerTx *model.Transaction) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return wrapPgErr(err)
	}
	defer tx.Rollback(ctx)

	if err := applyTransactionTx(ctx, tx, ledgerTx); err != nil {
		return err
	}
	return wrapPgErr(tx.Commit(ctx))
}

func (s *PostgresStore) Transfer(ctx context.Context, debit, credit *model.Transaction) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return wrapPgErr(err)
	}
	defer tx.Rollback(ctx)

	if err := applyTransactionTx(ctx, tx, debit); err != nil {
		return err
	}
	if err := applyTransactionTx(ctx, tx, credit); err != nil {
		return err
	}
	return wrapPgErr(tx.Commit(ctx))
}

func (s *PostgresStore) TransactionsByPlayer(ctx context.Context, playerID string) ([]model.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, player, kind, amount::TEXT, scenario_id, note, timestamp
		 FROM transactions WHERE player = $1 ORDER BY timestamp`, playerID)
	if err != nil {
		return nil, wrapPgErr(err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

func (s *PostgresStore) TransactionsByScenario(ctx context.Context, scenarioID string) ([]model.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, player, kind, amount::TEXT, scenario_id, note, timestamp
		 FROM transactions WHERE scenario_id = $1 ORDER BY timestamp`, scenarioID)
	if err != nil {
		return nil, wrapPgErr(err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

// applyTransactionTx runs the atomic increment and the append inside an
// open transaction. The balance change is an in-database increment, never
// a read-then-write, so concurrent wagers and payouts cannot lose updates.
func applyTransactionTx(ctx context.Context, tx pgx.Tx, ledgerTx *model.Transaction) error {
	loanDelta := "0"
	if ledgerTx.Kind == model.TxLoan {
		loanDelta = ledgerTx.Amount.String()
	}
	tag, err := tx.Exec(ctx,
		`UPDATE players
		 SET tokens = tokens + $2::NUMERIC, loan = loan + $3::NUMERIC
		 WHERE id = $1`,
		ledgerTx.Player, ledgerTx.Amount.String(), loanDelta)
	if err != nil {
		return wrapPgErr(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("player %s: %w", ledgerTx.Player, ErrNotFound)
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO transactions (id, player, kind, amount, scenario_id, note, timestamp)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5, $6, $7)`,
		ledgerTx.ID, ledgerTx.Player, ledgerTx.Kind, ledgerTx.Amount.String(),
		ledgerTx.ScenarioID, ledgerTx.Note, ledgerTx.Timestamp)
	return wrapPgErr(err)
}

// --- Row scanning ---

const selectScenario = `
	SELECT id, room_id, creator, description, mode, outcomes, outcome_order,
	       min_bet::TEXT, max_bet::TEXT, votes, state, winner,
	       house_player, house_outcome, created_at
	FROM scenarios`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScenario(row rowScanner) (*model.Scenario, error) {
	var sc model.Scenario
	var minBet, maxBet string
	var outcomes, order, votes, winner []byte

	err := row.Scan(&sc.ID, &sc.RoomID, &sc.Creator, &sc.Description, &sc.Mode,
		&outcomes, &order, &minBet, &maxBet, &votes, &sc.State, &winner,
		&sc.HousePlayer, &sc.HouseOutcome, &sc.CreatedAt)
	if err != nil {
		return nil, err
	}

	sc.MinBet, _ = decimal.NewFromString(minBet)
	sc.MaxBet, _ = decimal.NewFromString(maxBet)
	if err := json.Unmarshal(outcomes, &sc.Outcomes); err != nil {
		return nil, fmt.Errorf("scenario %s outcomes: %w", sc.ID, err)
	}
	if err := json.Unmarshal(order, &sc.Order); err != nil {
		return nil, fmt.Errorf("scenario %s order: %w", sc.ID, err)
	}
	if err := json.Unmarshal(votes, &sc.Votes); err != nil {
		return nil, fmt.Errorf("scenario %s votes: %w", sc.ID, err)
	}
	if len(winner) > 0 {
		if err := json.Unmarshal(winner, &sc.Winner); err != nil {
			return nil, fmt.Errorf("scenario %s winner: %w", sc.ID, err)
		}
	}
	return &sc, nil
}

func marshalScenarioDocs(sc *model.Scenario) (outcomes, order, votes, winner []byte, err error) {
	if sc.Outcomes == nil {
		sc.Outcomes = map[string]string{}
	}
	if sc.Votes == nil {
		sc.Votes = map[string]model.Vote{}
	}
	if sc.Order == nil {
		sc.Order = []string{}
	}
	if outcomes, err = json.Marshal(sc.Outcomes); err != nil {
		return
	}
	if order, err = json.Marshal(sc.Order); err != nil {
		return
	}
	if votes, err = json.Marshal(sc.Votes); err != nil {
		return
	}
	if len(sc.Winner) > 0 {
		winner, err = json.Marshal(sc.Winner)
	}
	return
}

func scanTransactions(rows pgx.Rows) ([]model.Transaction, error) {
	var txs []model.Transaction
	for rows.Next() {
		var tx model.Transaction
		var amount string
		if err := rows.Scan(&tx.ID, &tx.Player, &tx.Kind, &amount,
			&tx.ScenarioID, &tx.Note, &tx.Timestamp); err != nil {
			return nil, err
		}
		tx.Amount, _ = decimal.NewFromString(amount)
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func notFoundOr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// wrapPgErr marks backend failures as transient. Domain validation runs
// before any write, so an error surfacing from Postgres here is a broken
// round trip, not a rule violation; callers may retry the whole operation.
func wrapPgErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func newTxID() string { return uuid.New().String() }
