package experiment

import (
	"fmt"
	"sort"
	"time"

	models "tradelab/database/models_pkg"
)

// EpisodeSummary aggregates one stock's decisions. A stock the participant
// never traded yields a summary with zero decisions and zero return.
type EpisodeSummary struct {
	StockIndex     int                         `json:"stock_index"`
	InitialCapital float64                     `json:"initial_capital"`
	FinalCapital   float64                     `json:"final_capital"`
	ReturnAmount   float64                     `json:"return_amount"`
	ReturnPercent  float64                     `json:"return_percent"`
	TotalDecisions int                         `json:"total_decisions"`
	BuyCount       int                         `json:"buy_count"`
	SellCount      int                         `json:"sell_count"`
	HoldCount      int                         `json:"hold_count"`
	Decisions      []models.ExperimentDecision `json:"decisions"`
}

// SessionSummary aggregates a whole session: totals over every decision plus
// per-episode summaries for the episodes already finished.
type SessionSummary struct {
	SessionID      int64            `json:"session_id"`
	UserID         int64            `json:"user_id"`
	StartTime      time.Time        `json:"start_time"`
	EndTime        *time.Time       `json:"end_time,omitempty"`
	Completed      bool             `json:"completed"`
	TotalDecisions int              `json:"total_decisions"`
	TotalBuys      int              `json:"total_buys"`
	TotalSells     int              `json:"total_sells"`
	TotalHolds     int              `json:"total_holds"`
	StockSummaries []EpisodeSummary `json:"stock_summaries"`
	AverageReturn  float64          `json:"average_return"`
}

// EpisodeSummary folds the session's decisions for one stock index, ordered by
// day, into counts and return figures. Pure read; no mutation.
func (e *Engine) EpisodeSummary(session *models.ExperimentSession, stockIndex int) (*EpisodeSummary, error) {
	decisions, err := e.store.DecisionsByStock(session.ID, stockIndex)
	if err != nil {
		return nil, fmt.Errorf("EpisodeSummary: %w", err)
	}
	return buildEpisodeSummary(stockIndex, decisions), nil
}

// SessionSummary aggregates every decision ordered by (stock, day), builds an
// episode summary for each stock index strictly below the session's current
// one, and averages their return percents. Zero finished episodes averages to
// 0.0 rather than failing.
func (e *Engine) SessionSummary(session *models.ExperimentSession) (*SessionSummary, error) {
	all, err := e.store.DecisionsBySession(session.ID)
	if err != nil {
		return nil, fmt.Errorf("SessionSummary: %w", err)
	}

	summary := &SessionSummary{
		SessionID:      session.ID,
		UserID:         session.UserID,
		StartTime:      session.StartTime,
		EndTime:        session.EndTime,
		Completed:      session.Completed,
		TotalDecisions: len(all),
		StockSummaries: []EpisodeSummary{},
	}

	byStock := make(map[int][]models.ExperimentDecision)
	for _, d := range all {
		switch d.Action {
		case string(ActionBuy):
			summary.TotalBuys++
		case string(ActionSell):
			summary.TotalSells++
		case string(ActionHold):
			summary.TotalHolds++
		}
		byStock[d.StockIndex] = append(byStock[d.StockIndex], d)
	}

	var returnSum float64
	for i := 0; i < session.CurrentStockIndex; i++ {
		episode := buildEpisodeSummary(i, byStock[i])
		summary.StockSummaries = append(summary.StockSummaries, *episode)
		returnSum += episode.ReturnPercent
	}
	if n := len(summary.StockSummaries); n > 0 {
		summary.AverageReturn = returnSum / float64(n)
	}

	return summary, nil
}

func buildEpisodeSummary(stockIndex int, decisions []models.ExperimentDecision) *EpisodeSummary {
	summary := &EpisodeSummary{
		StockIndex: stockIndex,
		Decisions:  []models.ExperimentDecision{},
	}
	if len(decisions) == 0 {
		return summary
	}

	sorted := make([]models.ExperimentDecision, len(decisions))
	copy(sorted, decisions)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].DayNumber < sorted[j].DayNumber
	})

	for _, d := range sorted {
		switch d.Action {
		case string(ActionBuy):
			summary.BuyCount++
		case string(ActionSell):
			summary.SellCount++
		case string(ActionHold):
			summary.HoldCount++
		}
	}

	last := sorted[len(sorted)-1]
	summary.InitialCapital = InitialCapital
	summary.FinalCapital = last.CapitalAfter
	summary.ReturnAmount = last.CapitalAfter - InitialCapital
	summary.ReturnPercent = (last.CapitalAfter - InitialCapital) / InitialCapital * 100
	summary.TotalDecisions = len(sorted)
	summary.Decisions = sorted

	return summary
}
