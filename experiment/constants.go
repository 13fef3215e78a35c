package experiment

import "time"

// Experiment parameters. Fixed for every participant so sessions are directly
// comparable; changing any of these invalidates cross-session analysis.
const (
	// InitialCapital is the starting (and per-episode reset) account balance.
	InitialCapital = 100000.0

	// SharesPerTrade is the fixed quantity moved by a single BUY or SELL.
	SharesPerTrade = 10

	// TotalStocks is the number of episodes in one session.
	TotalStocks = 10

	// DaysPerStock is the number of trading days in one episode.
	DaysPerStock = 10

	// TimeLimit bounds a session's wall-clock duration.
	TimeLimit = 150 * time.Minute
)
