package experiment

import "fmt"

// ExpiredError reports a decision attempted after the session's time limit.
// By the time the caller sees it the session has already been force-completed
// and persisted.
type ExpiredError struct {
	SessionID int64
}

// Error implements the error interface
func (e *ExpiredError) Error() string {
	return fmt.Sprintf("session %d time limit exceeded", e.SessionID)
}

// AlreadyCompletedError reports a decision attempted on a completed session.
type AlreadyCompletedError struct {
	SessionID int64
}

// Error implements the error interface
func (e *AlreadyCompletedError) Error() string {
	return fmt.Sprintf("session %d is already completed", e.SessionID)
}

// InvalidActionError reports an action token outside BUY/SELL/HOLD.
type InvalidActionError struct {
	Action string
}

// Error implements the error interface
func (e *InvalidActionError) Error() string {
	return fmt.Sprintf("invalid action: %s", e.Action)
}

// InsufficientCapitalError reports a BUY the account cannot cover.
type InsufficientCapitalError struct {
	Capital float64
	Cost    float64
}

// Error implements the error interface
func (e *InsufficientCapitalError) Error() string {
	return fmt.Sprintf("insufficient capital to buy: have %.2f, need %.2f", e.Capital, e.Cost)
}

// InsufficientSharesError reports a SELL without enough shares held.
type InsufficientSharesError struct {
	Shares   int
	Required int
}

// Error implements the error interface
func (e *InsufficientSharesError) Error() string {
	return fmt.Sprintf("insufficient shares to sell: have %d, need %d", e.Shares, e.Required)
}

// ConfigurationError reports a catalog entry missing for a stock index the
// session expects to exist. This is an operator problem, never a participant
// one, and must not be silently defaulted.
type ConfigurationError struct {
	Detail string
}

// Error implements the error interface
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("experiment configuration error: %s", e.Detail)
}

// DuplicateDecisionError reports a commit whose (stock index, day) snapshot no
// longer matches the stored session: a concurrent submission already applied
// a decision for that step.
type DuplicateDecisionError struct {
	SessionID  int64
	StockIndex int
	DayNumber  int
}

// Error implements the error interface
func (e *DuplicateDecisionError) Error() string {
	return fmt.Sprintf("decision already recorded for session %d stock %d day %d",
		e.SessionID, e.StockIndex, e.DayNumber)
}
