package marketdata

import (
	"os"
	"path/filepath"
	"testing"
)

func writeCSV(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestReadPriceCSV(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "stock_1.csv",
		"open,high,low,close,volume,sma,rsi\n"+
			"10.0,12.0,9.5,11.0,1000,10.5,55.2\n"+
			"11.0,13.0,10.5,12.5,2000,11.0,60.1\n")

	rows, err := readPriceCSV(path, "STOCK_1")
	if err != nil {
		t.Fatalf("readPriceCSV: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(rows))
	}

	first := rows[0]
	if first.StockSymbol != "STOCK_1" || first.DayIndex != 0 {
		t.Errorf("First row identity wrong: %s day %d", first.StockSymbol, first.DayIndex)
	}
	if first.Open != 10.0 || first.Close != 11.0 || first.Volume != 1000 {
		t.Errorf("First row values wrong: %+v", first)
	}
	if first.SMA != 10.5 || first.RSI != 55.2 {
		t.Errorf("Indicator columns wrong: sma %f rsi %f", first.SMA, first.RSI)
	}
	if rows[1].DayIndex != 1 {
		t.Errorf("Day index not sequential: %d", rows[1].DayIndex)
	}
}

func TestReadPriceCSVOptionalIndicators(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "stock_2.csv",
		"open,high,low,close,volume\n"+
			"10,12,9,11,500\n")

	rows, err := readPriceCSV(path, "STOCK_2")
	if err != nil {
		t.Fatalf("readPriceCSV: %v", err)
	}
	if rows[0].SMA != 0 || rows[0].RSI != 0 {
		t.Errorf("Expected zero indicators when columns absent, got %+v", rows[0])
	}
}

func TestReadPriceCSVMissingColumn(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "stock_3.csv", "open,high,low,volume\n10,12,9,500\n")

	if _, err := readPriceCSV(path, "STOCK_3"); err == nil {
		t.Error("Expected error for missing close column")
	}
}

func TestReadPriceCSVBadNumber(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "stock_4.csv",
		"open,high,low,close,volume\nten,12,9,11,500\n")

	if _, err := readPriceCSV(path, "STOCK_4"); err == nil {
		t.Error("Expected error for non-numeric open")
	}
}

func TestStockFilePattern(t *testing.T) {
	cases := map[string]bool{
		"stock_1.csv":    true,
		"stock_110.csv":  true,
		"stock_.csv":     false,
		"stock_1.csv.gz": false,
		"prices.csv":     false,
		"Stock_1.csv":    false,
	}
	for name, want := range cases {
		if got := stockFilePattern.MatchString(name); got != want {
			t.Errorf("pattern match %q: expected %v, got %v", name, want, got)
		}
	}
}
