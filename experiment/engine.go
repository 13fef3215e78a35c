// Package experiment implements the simulation engine at the heart of the
// platform: the session/episode state machine that advances a participant
// through ten stocks and ten days each, applies BUY/SELL/HOLD decisions to a
// capital+shares account, enforces the wall-clock time limit, liquidates
// positions at episode boundaries, and produces the per-episode and
// per-session summaries used for analysis.
//
// The engine is deliberately free of transport and storage concerns: it
// depends on a SessionStore for atomic persistence, a StockCatalog for
// read-only stock lookups, and an injected Clock. Prices are resolved by the
// caller before MakeDecision is invoked; the engine never fetches market data.
package experiment

import (
	"fmt"
	"strings"

	models "tradelab/database/models_pkg"
)

// Action is a participant's trading decision for one day.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// ParseAction validates a raw action token at the boundary. Matching is
// case-insensitive; anything outside the closed BUY/SELL/HOLD set fails with
// InvalidActionError.
func ParseAction(raw string) (Action, error) {
	switch Action(strings.ToUpper(strings.TrimSpace(raw))) {
	case ActionBuy:
		return ActionBuy, nil
	case ActionSell:
		return ActionSell, nil
	case ActionHold:
		return ActionHold, nil
	default:
		return "", &InvalidActionError{Action: raw}
	}
}

// SessionStore persists sessions and the append-only decision ledger.
// CommitDecision must apply the session update and the decision insert as one
// atomic transaction, and must serialize concurrent commits for the same
// session so that only the first writer for a given (stock index, day)
// succeeds; the loser fails with DuplicateDecisionError.
type SessionStore interface {
	FindIncompleteByUser(userID int64) (*models.ExperimentSession, error)
	Create(session *models.ExperimentSession) error
	Save(session *models.ExperimentSession) error
	CommitDecision(session *models.ExperimentSession, decision *models.ExperimentDecision) error
	DecisionsBySession(sessionID int64) ([]models.ExperimentDecision, error)
	DecisionsByStock(sessionID int64, stockIndex int) ([]models.ExperimentDecision, error)
}

// StockCatalog resolves experiment stocks by sequence position. Lookups return
// (nil, nil) when no entry exists for the index.
type StockCatalog interface {
	BySequenceOrder(order int) (*models.ExperimentStock, error)
}

// Engine orchestrates the experiment session lifecycle.
type Engine struct {
	store   SessionStore
	catalog StockCatalog
	clock   Clock
}

// NewEngine creates an engine. A nil clock defaults to the system clock.
func NewEngine(store SessionStore, catalog StockCatalog, clock Clock) *Engine {
	if clock == nil {
		clock = SystemClock()
	}
	return &Engine{store: store, catalog: catalog, clock: clock}
}

// StartExperiment returns the user's incomplete session if one exists,
// otherwise creates a fresh session at stock 0, day 0 with the initial
// capital. Idempotent: two start requests observe the same session.
func (e *Engine) StartExperiment(userID int64) (*models.ExperimentSession, error) {
	existing, err := e.store.FindIncompleteByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("StartExperiment: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	session := &models.ExperimentSession{
		UserID:         userID,
		StartTime:      e.clock.Now(),
		CurrentCapital: InitialCapital,
	}
	if err := e.store.Create(session); err != nil {
		return nil, fmt.Errorf("StartExperiment: %w", err)
	}
	return session, nil
}

// CurrentSession returns the user's incomplete session, or (nil, nil) when the
// user has none.
func (e *Engine) CurrentSession(userID int64) (*models.ExperimentSession, error) {
	session, err := e.store.FindIncompleteByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("CurrentSession: %w", err)
	}
	return session, nil
}

// IsExpired reports whether the session has crossed the time limit. Evaluated
// fresh against the clock on every call; sessions with no start time never
// expire.
func (e *Engine) IsExpired(session *models.ExperimentSession) bool {
	if session.StartTime.IsZero() {
		return false
	}
	return e.clock.Now().Sub(session.StartTime) >= TimeLimit
}

// CurrentStock resolves the catalog entry for the session's stock index. A
// missing entry is a ConfigurationError the caller must surface, not default.
func (e *Engine) CurrentStock(session *models.ExperimentSession) (*models.ExperimentStock, error) {
	stock, err := e.catalog.BySequenceOrder(session.CurrentStockIndex)
	if err != nil {
		return nil, fmt.Errorf("CurrentStock: %w", err)
	}
	if stock == nil {
		return nil, &ConfigurationError{
			Detail: fmt.Sprintf("no experiment stock at sequence %d", session.CurrentStockIndex),
		}
	}
	return stock, nil
}

// MakeDecision validates and applies one BUY/SELL/HOLD against the session's
// account at the given close price, appends the decision to the ledger, and
// advances the day counter. At an episode boundary any remaining shares are
// liquidated at the same price (no look-ahead) before the next stock starts
// with a fresh capital allocation; after the tenth stock the session is
// completed. All failure paths leave session and ledger untouched.
func (e *Engine) MakeDecision(session *models.ExperimentSession, action Action, price float64) (*models.ExperimentDecision, error) {
	if session.Completed {
		return nil, &AlreadyCompletedError{SessionID: session.ID}
	}

	if e.IsExpired(session) {
		now := e.clock.Now()
		session.Completed = true
		session.EndTime = &now
		if err := e.store.Save(session); err != nil {
			return nil, fmt.Errorf("MakeDecision: completing expired session: %w", err)
		}
		return nil, &ExpiredError{SessionID: session.ID}
	}

	capital := session.CurrentCapital
	shares := session.CurrentShares
	quantity := 0

	switch action {
	case ActionBuy:
		cost := price * SharesPerTrade
		if capital < cost {
			return nil, &InsufficientCapitalError{Capital: capital, Cost: cost}
		}
		capital -= cost
		shares += SharesPerTrade
		quantity = SharesPerTrade

	case ActionSell:
		if shares < SharesPerTrade {
			return nil, &InsufficientSharesError{Shares: shares, Required: SharesPerTrade}
		}
		capital += price * SharesPerTrade
		shares -= SharesPerTrade
		quantity = SharesPerTrade

	case ActionHold:
		// account unchanged

	default:
		return nil, &InvalidActionError{Action: string(action)}
	}

	// Snapshot before the day counter advances; the ledger records the step
	// the decision was taken on, not the step it produced.
	decision := &models.ExperimentDecision{
		SessionID:     session.ID,
		StockIndex:    session.CurrentStockIndex,
		DayNumber:     session.CurrentDay,
		Action:        string(action),
		Price:         price,
		Quantity:      quantity,
		CapitalBefore: session.CurrentCapital,
		CapitalAfter:  capital,
		SharesBefore:  session.CurrentShares,
		SharesAfter:   shares,
	}

	session.CurrentCapital = capital
	session.CurrentShares = shares
	session.CurrentDay++

	if session.CurrentDay >= DaysPerStock {
		// Episode over. Settle at the same close used for the final decision.
		if session.CurrentShares > 0 {
			session.CurrentCapital += float64(session.CurrentShares) * price
			session.CurrentShares = 0
		}

		session.CurrentStockIndex++
		session.CurrentDay = 0

		if session.CurrentStockIndex >= TotalStocks {
			now := e.clock.Now()
			session.Completed = true
			session.EndTime = &now
		} else {
			// Each episode is an independent trial; returns do not compound.
			session.CurrentCapital = InitialCapital
			session.CurrentShares = 0
		}
	}

	if err := e.store.CommitDecision(session, decision); err != nil {
		return nil, err
	}
	return decision, nil
}

// CurrentState is the read-side projection served to the trading UI.
type CurrentState struct {
	SessionID            int64   `json:"session_id"`
	StockIndex           int     `json:"stock_index"`
	DayNumber            int     `json:"day_number"`
	TotalStocks          int     `json:"total_stocks"`
	DaysPerStock         int     `json:"days_per_stock"`
	CurrentCapital       float64 `json:"current_capital"`
	CurrentShares        int     `json:"current_shares"`
	Completed            bool    `json:"completed"`
	StockSymbol          *string `json:"stock_symbol"`
	ProgressPercent      float64 `json:"progress_percent"`
	TimeRemainingMinutes int64   `json:"time_remaining_minutes"`
}

// CurrentState projects the session for display. Unlike CurrentStock, an
// out-of-range stock index yields a null symbol here rather than an error, so
// a finished session still renders.
func (e *Engine) CurrentState(session *models.ExperimentSession) (*CurrentState, error) {
	stock, err := e.catalog.BySequenceOrder(session.CurrentStockIndex)
	if err != nil {
		return nil, fmt.Errorf("CurrentState: %w", err)
	}

	var symbol *string
	if stock != nil {
		symbol = &stock.StockSymbol
	}

	step := session.CurrentStockIndex*DaysPerStock + session.CurrentDay
	progress := float64(step) * 100.0 / float64(TotalStocks*DaysPerStock)

	var remaining int64
	if !session.StartTime.IsZero() {
		elapsed := e.clock.Now().Sub(session.StartTime)
		remaining = int64(TimeLimit.Minutes()) - int64(elapsed.Minutes())
		if remaining < 0 {
			remaining = 0
		}
	}

	return &CurrentState{
		SessionID:            session.ID,
		StockIndex:           session.CurrentStockIndex,
		DayNumber:            session.CurrentDay,
		TotalStocks:          TotalStocks,
		DaysPerStock:         DaysPerStock,
		CurrentCapital:       session.CurrentCapital,
		CurrentShares:        session.CurrentShares,
		Completed:            session.Completed,
		StockSymbol:          symbol,
		ProgressPercent:      progress,
		TimeRemainingMinutes: remaining,
	}, nil
}
