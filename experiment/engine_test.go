package experiment

import (
	"errors"
	"fmt"
	"testing"
	"time"

	models "tradelab/database/models_pkg"
)

// fakeStore keeps sessions and decisions in memory and enforces the same
// duplicate-step rule as the real repository.
type fakeStore struct {
	sessions  map[int64]*models.ExperimentSession
	decisions []models.ExperimentDecision
	nextID    int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: make(map[int64]*models.ExperimentSession), nextID: 1}
}

func (f *fakeStore) FindIncompleteByUser(userID int64) (*models.ExperimentSession, error) {
	for _, s := range f.sessions {
		if s.UserID == userID && !s.Completed {
			copied := *s
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) Create(session *models.ExperimentSession) error {
	session.ID = f.nextID
	f.nextID++
	copied := *session
	f.sessions[session.ID] = &copied
	return nil
}

func (f *fakeStore) Save(session *models.ExperimentSession) error {
	copied := *session
	f.sessions[session.ID] = &copied
	return nil
}

func (f *fakeStore) CommitDecision(session *models.ExperimentSession, decision *models.ExperimentDecision) error {
	for _, d := range f.decisions {
		if d.SessionID == decision.SessionID && d.StockIndex == decision.StockIndex && d.DayNumber == decision.DayNumber {
			return &DuplicateDecisionError{
				SessionID:  decision.SessionID,
				StockIndex: decision.StockIndex,
				DayNumber:  decision.DayNumber,
			}
		}
	}
	f.decisions = append(f.decisions, *decision)
	copied := *session
	f.sessions[session.ID] = &copied
	return nil
}

func (f *fakeStore) DecisionsBySession(sessionID int64) ([]models.ExperimentDecision, error) {
	var out []models.ExperimentDecision
	for _, d := range f.decisions {
		if d.SessionID == sessionID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeStore) DecisionsByStock(sessionID int64, stockIndex int) ([]models.ExperimentDecision, error) {
	var out []models.ExperimentDecision
	for _, d := range f.decisions {
		if d.SessionID == sessionID && d.StockIndex == stockIndex {
			out = append(out, d)
		}
	}
	return out, nil
}

type fakeCatalog struct {
	stocks map[int]*models.ExperimentStock
}

func newFakeCatalog() *fakeCatalog {
	c := &fakeCatalog{stocks: make(map[int]*models.ExperimentStock)}
	for i := 0; i < TotalStocks; i++ {
		c.stocks[i] = &models.ExperimentStock{
			ID:              int64(i + 1),
			SequenceOrder:   i,
			StockSymbol:     fmt.Sprintf("STOCK_%d", i+1),
			SegmentStartDay: 0,
			SegmentEndDay:   DaysPerStock - 1,
		}
	}
	return c
}

func (c *fakeCatalog) BySequenceOrder(order int) (*models.ExperimentStock, error) {
	return c.stocks[order], nil
}

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

func (c *fixedClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestEngine() (*Engine, *fakeStore, *fixedClock) {
	store := newFakeStore()
	clock := &fixedClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	return NewEngine(store, newFakeCatalog(), clock), store, clock
}

func TestStartExperimentIsIdempotent(t *testing.T) {
	engine, _, _ := newTestEngine()

	first, err := engine.StartExperiment(7)
	if err != nil {
		t.Fatalf("StartExperiment: %v", err)
	}
	second, err := engine.StartExperiment(7)
	if err != nil {
		t.Fatalf("StartExperiment (repeat): %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("Expected same session on repeat start, got %d and %d", first.ID, second.ID)
	}
	if first.CurrentCapital != InitialCapital {
		t.Errorf("Expected initial capital %.2f, got %.2f", InitialCapital, first.CurrentCapital)
	}
	if first.CurrentStockIndex != 0 || first.CurrentDay != 0 {
		t.Errorf("Expected fresh session at stock 0 day 0, got stock %d day %d", first.CurrentStockIndex, first.CurrentDay)
	}
}

func TestBuyThenSellUpdatesAccount(t *testing.T) {
	engine, _, _ := newTestEngine()
	session, _ := engine.StartExperiment(1)

	buy, err := engine.MakeDecision(session, ActionBuy, 50.0)
	if err != nil {
		t.Fatalf("BUY: %v", err)
	}
	if session.CurrentCapital != 99500.0 {
		t.Errorf("Expected capital 99500 after BUY at 50, got %.2f", session.CurrentCapital)
	}
	if session.CurrentShares != SharesPerTrade {
		t.Errorf("Expected %d shares after BUY, got %d", SharesPerTrade, session.CurrentShares)
	}
	if buy.CapitalBefore != InitialCapital || buy.CapitalAfter != 99500.0 {
		t.Errorf("BUY snapshot wrong: before %.2f after %.2f", buy.CapitalBefore, buy.CapitalAfter)
	}

	sell, err := engine.MakeDecision(session, ActionSell, 55.0)
	if err != nil {
		t.Fatalf("SELL: %v", err)
	}
	if session.CurrentCapital != 100050.0 {
		t.Errorf("Expected capital 100050 after SELL at 55, got %.2f", session.CurrentCapital)
	}
	if session.CurrentShares != 0 {
		t.Errorf("Expected 0 shares after SELL, got %d", session.CurrentShares)
	}
	if sell.SharesBefore != SharesPerTrade || sell.SharesAfter != 0 {
		t.Errorf("SELL snapshot wrong: before %d after %d", sell.SharesBefore, sell.SharesAfter)
	}
	if session.CurrentDay != 2 {
		t.Errorf("Expected day 2 after two decisions, got %d", session.CurrentDay)
	}
}

func TestInsufficientCapitalLeavesStateUntouched(t *testing.T) {
	engine, store, _ := newTestEngine()
	session, _ := engine.StartExperiment(1)
	session.CurrentCapital = 400.0

	_, err := engine.MakeDecision(session, ActionBuy, 50.0)
	var insufficient *InsufficientCapitalError
	if !errors.As(err, &insufficient) {
		t.Fatalf("Expected InsufficientCapitalError, got %v", err)
	}
	if insufficient.Capital != 400.0 || insufficient.Cost != 500.0 {
		t.Errorf("Error detail wrong: capital %.2f cost %.2f", insufficient.Capital, insufficient.Cost)
	}
	if session.CurrentCapital != 400.0 || session.CurrentShares != 0 || session.CurrentDay != 0 {
		t.Errorf("Rejected decision mutated session: %+v", session)
	}
	if len(store.decisions) != 0 {
		t.Errorf("Rejected decision reached the ledger: %d entries", len(store.decisions))
	}
}

func TestSellWithoutSharesFails(t *testing.T) {
	engine, _, _ := newTestEngine()
	session, _ := engine.StartExperiment(1)

	_, err := engine.MakeDecision(session, ActionSell, 50.0)
	var insufficient *InsufficientSharesError
	if !errors.As(err, &insufficient) {
		t.Fatalf("Expected InsufficientSharesError, got %v", err)
	}
	if session.CurrentDay != 0 {
		t.Errorf("Rejected SELL advanced the day to %d", session.CurrentDay)
	}
}

func TestInvalidActionRejected(t *testing.T) {
	if _, err := ParseAction("SHORT"); err == nil {
		t.Error("Expected error for SHORT")
	}
	if _, err := ParseAction(""); err == nil {
		t.Error("Expected error for empty action")
	}

	action, err := ParseAction(" buy ")
	if err != nil || action != ActionBuy {
		t.Errorf("Expected lenient parse of ' buy ', got %v %v", action, err)
	}

	engine, _, _ := newTestEngine()
	session, _ := engine.StartExperiment(1)
	_, err = engine.MakeDecision(session, Action("MARGIN"), 50.0)
	var invalid *InvalidActionError
	if !errors.As(err, &invalid) {
		t.Fatalf("Expected InvalidActionError, got %v", err)
	}
}

func TestExpiryForcesCompletion(t *testing.T) {
	engine, store, clock := newTestEngine()
	session, _ := engine.StartExperiment(1)

	clock.advance(TimeLimit + time.Minute)

	_, err := engine.MakeDecision(session, ActionHold, 50.0)
	var expired *ExpiredError
	if !errors.As(err, &expired) {
		t.Fatalf("Expected ExpiredError, got %v", err)
	}
	if !session.Completed || session.EndTime == nil {
		t.Error("Expired session not marked completed")
	}

	stored := store.sessions[session.ID]
	if !stored.Completed {
		t.Error("Expired completion not persisted")
	}
	if len(store.decisions) != 0 {
		t.Errorf("Expired decision reached the ledger: %d entries", len(store.decisions))
	}
}

func TestExpiryBoundaryIsInclusive(t *testing.T) {
	engine, _, clock := newTestEngine()
	session, _ := engine.StartExperiment(1)

	clock.advance(TimeLimit - time.Second)
	if engine.IsExpired(session) {
		t.Error("Session expired one second early")
	}

	clock.advance(time.Second)
	if !engine.IsExpired(session) {
		t.Error("Session not expired exactly at the limit")
	}
}

func TestEpisodeBoundaryLiquidatesAndResets(t *testing.T) {
	engine, _, _ := newTestEngine()
	session, _ := engine.StartExperiment(1)

	// Day 0: buy at 40, then hold through day 8.
	if _, err := engine.MakeDecision(session, ActionBuy, 40.0); err != nil {
		t.Fatalf("BUY: %v", err)
	}
	for day := 1; day < DaysPerStock-1; day++ {
		if _, err := engine.MakeDecision(session, ActionHold, 50.0); err != nil {
			t.Fatalf("HOLD day %d: %v", day, err)
		}
	}

	// Day 9 HOLD at 60: shares liquidate at 60, then capital resets.
	if _, err := engine.MakeDecision(session, ActionHold, 60.0); err != nil {
		t.Fatalf("final HOLD: %v", err)
	}

	if session.CurrentStockIndex != 1 || session.CurrentDay != 0 {
		t.Errorf("Expected stock 1 day 0 after boundary, got stock %d day %d", session.CurrentStockIndex, session.CurrentDay)
	}
	if session.CurrentCapital != InitialCapital {
		t.Errorf("Expected capital reset to %.2f, got %.2f", InitialCapital, session.CurrentCapital)
	}
	if session.CurrentShares != 0 {
		t.Errorf("Expected 0 shares after liquidation, got %d", session.CurrentShares)
	}

	// The ledger snapshot is taken before liquidation, so the episode's final
	// capital is the day-9 cash balance, not the liquidated value.
	summary, err := engine.EpisodeSummary(session, 0)
	if err != nil {
		t.Fatalf("EpisodeSummary: %v", err)
	}
	if summary.FinalCapital != 99600.0 {
		t.Errorf("Expected final capital 99600, got %.2f", summary.FinalCapital)
	}
}

func TestSessionCompletesAfterTenthStock(t *testing.T) {
	engine, store, _ := newTestEngine()
	session, _ := engine.StartExperiment(1)

	for stock := 0; stock < TotalStocks; stock++ {
		for day := 0; day < DaysPerStock; day++ {
			if _, err := engine.MakeDecision(session, ActionHold, 10.0); err != nil {
				t.Fatalf("HOLD stock %d day %d: %v", stock, day, err)
			}
		}
	}

	if !session.Completed || session.EndTime == nil {
		t.Error("Session not completed after tenth stock")
	}
	if session.CurrentStockIndex != TotalStocks {
		t.Errorf("Expected stock index %d at completion, got %d", TotalStocks, session.CurrentStockIndex)
	}
	if len(store.decisions) != TotalStocks*DaysPerStock {
		t.Errorf("Expected %d ledger entries, got %d", TotalStocks*DaysPerStock, len(store.decisions))
	}

	// Every (stock, day) pair appears exactly once.
	seen := make(map[[2]int]bool)
	for _, d := range store.decisions {
		key := [2]int{d.StockIndex, d.DayNumber}
		if seen[key] {
			t.Errorf("Duplicate ledger entry for stock %d day %d", d.StockIndex, d.DayNumber)
		}
		seen[key] = true
	}

	_, err := engine.MakeDecision(session, ActionHold, 10.0)
	var completed *AlreadyCompletedError
	if !errors.As(err, &completed) {
		t.Fatalf("Expected AlreadyCompletedError after completion, got %v", err)
	}
}

func TestDuplicateStepRejectedByStore(t *testing.T) {
	engine, store, _ := newTestEngine()
	session, _ := engine.StartExperiment(1)

	if _, err := engine.MakeDecision(session, ActionHold, 50.0); err != nil {
		t.Fatalf("HOLD: %v", err)
	}

	// A stale copy of the session replays the same step.
	stale := *store.sessions[session.ID]
	stale.CurrentDay = 0
	_, err := engine.MakeDecision(&stale, ActionHold, 50.0)
	var duplicate *DuplicateDecisionError
	if !errors.As(err, &duplicate) {
		t.Fatalf("Expected DuplicateDecisionError, got %v", err)
	}
}

func TestCurrentStateProjection(t *testing.T) {
	engine, _, clock := newTestEngine()
	session, _ := engine.StartExperiment(1)

	for day := 0; day < 5; day++ {
		if _, err := engine.MakeDecision(session, ActionHold, 50.0); err != nil {
			t.Fatalf("HOLD day %d: %v", day, err)
		}
	}
	clock.advance(30 * time.Minute)

	state, err := engine.CurrentState(session)
	if err != nil {
		t.Fatalf("CurrentState: %v", err)
	}
	if state.ProgressPercent != 5.0 {
		t.Errorf("Expected progress 5%%, got %.2f", state.ProgressPercent)
	}
	if state.TimeRemainingMinutes != 120 {
		t.Errorf("Expected 120 minutes remaining, got %d", state.TimeRemainingMinutes)
	}
	if state.StockSymbol == nil || *state.StockSymbol != "STOCK_1" {
		t.Errorf("Expected symbol STOCK_1, got %v", state.StockSymbol)
	}
}

func TestCurrentStateAfterCompletionHasNullSymbol(t *testing.T) {
	engine, _, _ := newTestEngine()
	session, _ := engine.StartExperiment(1)

	for stock := 0; stock < TotalStocks; stock++ {
		for day := 0; day < DaysPerStock; day++ {
			if _, err := engine.MakeDecision(session, ActionHold, 10.0); err != nil {
				t.Fatalf("HOLD: %v", err)
			}
		}
	}

	state, err := engine.CurrentState(session)
	if err != nil {
		t.Fatalf("CurrentState: %v", err)
	}
	if state.StockSymbol != nil {
		t.Errorf("Expected null symbol for finished session, got %q", *state.StockSymbol)
	}
	if state.ProgressPercent != 100.0 {
		t.Errorf("Expected progress 100%%, got %.2f", state.ProgressPercent)
	}
}
