package marketdata

import (
	"math"
	"sort"
)

// WindowStat describes one contiguous window of a close series. StartDay and
// EndDay are absolute row indexes, EndDay-StartDay == windowLen-1.
type WindowStat struct {
	StartDay   int
	EndDay     int
	Volatility float64
}

// SymbolVolatility ranks one symbol: its average window volatility and the
// single most volatile window, which becomes the experiment segment.
type SymbolVolatility struct {
	Symbol        string
	AvgVolatility float64
	Best          WindowStat
}

// windowVolatility is the population standard deviation of the day-over-day
// returns inside the window.
func windowVolatility(closes []float64) float64 {
	if len(closes) < 2 {
		return 0
	}

	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		returns = append(returns, (closes[i]-closes[i-1])/closes[i-1])
	}
	if len(returns) == 0 {
		return 0
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))

	return math.Sqrt(variance)
}

// AnalyzeWindows slides a windowLen-day window over the close series and
// scores each position. An input shorter than the window yields no stats.
func AnalyzeWindows(closes []float64, windowLen int) []WindowStat {
	if windowLen < 2 || len(closes) < windowLen {
		return nil
	}

	stats := make([]WindowStat, 0, len(closes)-windowLen+1)
	for start := 0; start+windowLen <= len(closes); start++ {
		stats = append(stats, WindowStat{
			StartDay:   start,
			EndDay:     start + windowLen - 1,
			Volatility: windowVolatility(closes[start : start+windowLen]),
		})
	}
	return stats
}

// RankByVolatility scores every symbol's close series with windowLen-day
// windows and returns the top symbols by average window volatility, most
// volatile first. Ties break on symbol name so selection is deterministic
// across runs. Symbols with too little history are skipped.
func RankByVolatility(series map[string][]float64, windowLen, top int) []SymbolVolatility {
	ranked := make([]SymbolVolatility, 0, len(series))

	for symbol, closes := range series {
		windows := AnalyzeWindows(closes, windowLen)
		if len(windows) == 0 {
			continue
		}

		var sum float64
		best := windows[0]
		for _, w := range windows {
			sum += w.Volatility
			if w.Volatility > best.Volatility {
				best = w
			}
		}

		ranked = append(ranked, SymbolVolatility{
			Symbol:        symbol,
			AvgVolatility: sum / float64(len(windows)),
			Best:          best,
		})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].AvgVolatility != ranked[j].AvgVolatility {
			return ranked[i].AvgVolatility > ranked[j].AvgVolatility
		}
		return ranked[i].Symbol < ranked[j].Symbol
	})

	if len(ranked) > top {
		ranked = ranked[:top]
	}
	return ranked
}
