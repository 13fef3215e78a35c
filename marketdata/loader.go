// Package marketdata ingests the historical price CSVs, scores symbols by
// volatility and seeds the database for a fresh deployment: price rows,
// participant accounts and the ten-stock experiment lineup.
package marketdata

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"tradelab/database"
	models "tradelab/database/models_pkg"
)

const (
	windowLen      = 10
	stocksToSelect = 10
	adminPassword  = "admin123"
	userPassword   = "user123"
	adminCount     = 2
	userCount      = 30
)

var stockFilePattern = regexp.MustCompile(`^stock_(\d+)\.csv$`)

// Loader runs the one-time data bootstrap against an initialized schema.
type Loader struct {
	db      *database.Database
	dataDir string
}

func NewLoader(db *database.Database, dataDir string) *Loader {
	return &Loader{db: db, dataDir: dataDir}
}

// Bootstrap performs the full seeding sequence. Every step is a no-op when
// its target table is already populated, so restarting the service is safe.
func (l *Loader) Bootstrap() error {
	if err := l.LoadPriceData(); err != nil {
		return fmt.Errorf("Bootstrap: %w", err)
	}
	if err := l.SeedUsers(); err != nil {
		return fmt.Errorf("Bootstrap: %w", err)
	}
	if err := l.SelectExperimentStocks(); err != nil {
		return fmt.Errorf("Bootstrap: %w", err)
	}
	return nil
}

// LoadPriceData reads every stock_N.csv under the data directory into
// price_rows and registers the symbol in stocks. Symbols already present in
// the database are skipped.
func (l *Loader) LoadPriceData() error {
	entries, err := os.ReadDir(l.dataDir)
	if err != nil {
		return fmt.Errorf("LoadPriceData: reading %s: %w", l.dataDir, err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := stockFilePattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		symbol := "STOCK_" + m[1]

		var count int64
		if err := l.db.DB().Model(&models.PriceRow{}).Where("stock_symbol = ?", symbol).Count(&count).Error; err != nil {
			return fmt.Errorf("LoadPriceData: counting %s: %w", symbol, err)
		}
		if count > 0 {
			continue
		}

		path := filepath.Join(l.dataDir, entry.Name())
		rows, err := readPriceCSV(path, symbol)
		if err != nil {
			return fmt.Errorf("LoadPriceData: %w", err)
		}
		if len(rows) == 0 {
			log.Printf("⚠️ Skipping %s: no data rows", entry.Name())
			continue
		}

		first := rows[0]
		err = l.db.DB().Transaction(func(tx *gorm.DB) error {
			if err := tx.CreateInBatches(rows, 500).Error; err != nil {
				return err
			}
			stock := models.Stock{
				Symbol:       symbol,
				Name:         symbol,
				OpeningPrice: first.Open,
				HighPrice:    first.High,
				LowPrice:     first.Low,
				ClosePrice:   first.Close,
				Active:       true,
				LastUpdated:  time.Now(),
			}
			return tx.Create(&stock).Error
		})
		if err != nil {
			return fmt.Errorf("LoadPriceData: inserting %s: %w", symbol, err)
		}
		loaded++
	}

	if loaded > 0 {
		log.Printf("✅ Loaded price data for %d stocks from %s", loaded, l.dataDir)
	} else {
		log.Println("🔄 Price data already loaded, skipping")
	}
	return nil
}

// readPriceCSV parses one historical file. Expected header:
// open,high,low,close,volume,sma,rsi. Day indexes follow row order.
func readPriceCSV(path, symbol string) ([]models.PriceRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("readPriceCSV: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("readPriceCSV: %s: reading header: %w", path, err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"open", "high", "low", "close", "volume"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("readPriceCSV: %s: missing column %q", path, required)
		}
	}

	var rows []models.PriceRow
	day := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("readPriceCSV: %s row %d: %w", path, day, err)
		}

		row := models.PriceRow{StockSymbol: symbol, DayIndex: day}
		if row.Open, err = parseField(record, col, "open"); err != nil {
			return nil, fmt.Errorf("readPriceCSV: %s row %d: %w", path, day, err)
		}
		if row.High, err = parseField(record, col, "high"); err != nil {
			return nil, fmt.Errorf("readPriceCSV: %s row %d: %w", path, day, err)
		}
		if row.Low, err = parseField(record, col, "low"); err != nil {
			return nil, fmt.Errorf("readPriceCSV: %s row %d: %w", path, day, err)
		}
		if row.Close, err = parseField(record, col, "close"); err != nil {
			return nil, fmt.Errorf("readPriceCSV: %s row %d: %w", path, day, err)
		}
		volume, err := parseField(record, col, "volume")
		if err != nil {
			return nil, fmt.Errorf("readPriceCSV: %s row %d: %w", path, day, err)
		}
		row.Volume = int64(volume)
		// Indicator columns are optional, older exports omit them.
		if idx, ok := col["sma"]; ok && idx < len(record) && record[idx] != "" {
			if row.SMA, err = strconv.ParseFloat(record[idx], 64); err != nil {
				return nil, fmt.Errorf("readPriceCSV: %s row %d: sma: %w", path, day, err)
			}
		}
		if idx, ok := col["rsi"]; ok && idx < len(record) && record[idx] != "" {
			if row.RSI, err = strconv.ParseFloat(record[idx], 64); err != nil {
				return nil, fmt.Errorf("readPriceCSV: %s row %d: rsi: %w", path, day, err)
			}
		}

		rows = append(rows, row)
		day++
	}
	return rows, nil
}

func parseField(record []string, col map[string]int, name string) (float64, error) {
	idx := col[name]
	if idx >= len(record) {
		return 0, fmt.Errorf("parseField: short record, missing %q", name)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(record[idx]), 64)
	if err != nil {
		return 0, fmt.Errorf("parseField: %s: %w", name, err)
	}
	return v, nil
}

// SeedUsers creates the fixed account roster when the users table is empty:
// two admins and thirty numbered participants.
func (l *Loader) SeedUsers() error {
	var count int64
	if err := l.db.DB().Model(&models.User{}).Count(&count).Error; err != nil {
		return fmt.Errorf("SeedUsers: %w", err)
	}
	if count > 0 {
		log.Println("🔄 Users already seeded, skipping")
		return nil
	}

	adminHash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("SeedUsers: hashing admin password: %w", err)
	}
	userHash, err := bcrypt.GenerateFromPassword([]byte(userPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("SeedUsers: hashing user password: %w", err)
	}

	users := make([]models.User, 0, adminCount+userCount)
	for i := 1; i <= adminCount; i++ {
		users = append(users, models.User{
			Username:     fmt.Sprintf("admin%d", i),
			FullName:     fmt.Sprintf("Administrator %d", i),
			PasswordHash: string(adminHash),
			Role:         models.RoleAdmin,
			Active:       true,
		})
	}
	for i := 1; i <= userCount; i++ {
		users = append(users, models.User{
			Username:     fmt.Sprintf("user%d", i),
			FullName:     fmt.Sprintf("Participant %d", i),
			PasswordHash: string(userHash),
			Role:         models.RoleUser,
			Active:       true,
		})
	}

	if err := l.db.DB().CreateInBatches(users, 50).Error; err != nil {
		return fmt.Errorf("SeedUsers: %w", err)
	}
	log.Printf("✅ Seeded %d users (%d admins, %d participants)", len(users), adminCount, userCount)
	return nil
}

// SelectExperimentStocks fills experiment_stocks with the ten most volatile
// symbols when the table is empty. Each entry pins the symbol's most volatile
// ten-day window as the segment participants will trade.
func (l *Loader) SelectExperimentStocks() error {
	var count int64
	if err := l.db.DB().Model(&models.ExperimentStock{}).Count(&count).Error; err != nil {
		return fmt.Errorf("SelectExperimentStocks: %w", err)
	}
	if count > 0 {
		log.Println("🔄 Experiment stocks already selected, skipping")
		return nil
	}

	var stocks []models.Stock
	if err := l.db.DB().Where("active = ?", true).Order("symbol").Find(&stocks).Error; err != nil {
		return fmt.Errorf("SelectExperimentStocks: %w", err)
	}
	if len(stocks) < stocksToSelect {
		return fmt.Errorf("SelectExperimentStocks: need at least %d stocks, have %d", stocksToSelect, len(stocks))
	}

	series := make(map[string][]float64, len(stocks))
	for _, s := range stocks {
		var rows []models.PriceRow
		err := l.db.DB().
			Where("stock_symbol = ?", s.Symbol).
			Order("day_index").
			Find(&rows).Error
		if err != nil {
			return fmt.Errorf("SelectExperimentStocks: loading %s: %w", s.Symbol, err)
		}
		closes := make([]float64, len(rows))
		for i, r := range rows {
			closes[i] = r.Close
		}
		series[s.Symbol] = closes
	}

	ranked := RankByVolatility(series, windowLen, stocksToSelect)
	if len(ranked) < stocksToSelect {
		return fmt.Errorf("SelectExperimentStocks: only %d symbols have enough history", len(ranked))
	}

	// Participants see the lineup in symbol order, not volatility order, so
	// the wildest stock is not always episode one.
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].Symbol < ranked[j].Symbol })

	selection := make([]models.ExperimentStock, 0, stocksToSelect)
	for i, sv := range ranked {
		selection = append(selection, models.ExperimentStock{
			StockSymbol:     sv.Symbol,
			SequenceOrder:   i,
			SegmentStartDay: sv.Best.StartDay,
			SegmentEndDay:   sv.Best.EndDay,
			AvgVolatility:   sv.AvgVolatility,
			CSVPath:         filepath.Join(l.dataDir, strings.ToLower(sv.Symbol)+".csv"),
		})
	}

	if err := l.db.DB().Create(&selection).Error; err != nil {
		return fmt.Errorf("SelectExperimentStocks: %w", err)
	}
	log.Printf("✅ Selected %d experiment stocks by volatility", len(selection))
	return nil
}
