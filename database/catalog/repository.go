// Package catalog provides read access to the stock catalog: the ten selected
// experiment stocks with their segment boundaries, and the pre-recorded price
// rows behind them. Everything here is written once by the ingestion pipeline
// and read-only afterwards.
package catalog

import (
	"errors"
	"fmt"

	"tradelab/database"
	models "tradelab/database/models_pkg"

	"gorm.io/gorm"
)

// Repository handles database operations for experiment stocks and price rows
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new catalog repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// BySequenceOrder resolves the experiment stock at a sequence position,
// (nil, nil) when no entry exists.
func (r *Repository) BySequenceOrder(order int) (*models.ExperimentStock, error) {
	var stock models.ExperimentStock
	err := r.db.Where("sequence_order = ?", order).First(&stock).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("BySequenceOrder: %w", err)
	}
	return &stock, nil
}

// All returns the full experiment selection in presentation order.
func (r *Repository) All() ([]models.ExperimentStock, error) {
	var stocks []models.ExperimentStock
	if err := r.db.Order("sequence_order ASC").Find(&stocks).Error; err != nil {
		return nil, fmt.Errorf("All: %w", err)
	}
	return stocks, nil
}

// Save inserts an experiment stock. Entries are immutable once written.
func (r *Repository) Save(stock *models.ExperimentStock) error {
	if err := r.db.Create(stock).Error; err != nil {
		return fmt.Errorf("Save: %w", err)
	}
	return nil
}

// Count returns the number of selected experiment stocks.
func (r *Repository) Count() (int64, error) {
	var count int64
	if err := r.db.Model(&models.ExperimentStock{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("Count: %w", err)
	}
	return count, nil
}

// SegmentRows returns the stock's segment rows from its first day through the
// given relative day (clamped to the segment end), ordered by day index. The
// trading view renders exactly this slice: days the participant has already
// seen, never future ones.
func (r *Repository) SegmentRows(stock *models.ExperimentStock, throughDay int) ([]models.PriceRow, error) {
	endDay := stock.SegmentStartDay + throughDay
	if endDay > stock.SegmentEndDay {
		endDay = stock.SegmentEndDay
	}

	var rows []models.PriceRow
	err := r.db.Where("stock_symbol = ? AND day_index >= ? AND day_index <= ?",
		stock.StockSymbol, stock.SegmentStartDay, endDay).
		Order("day_index ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("SegmentRows: %w", err)
	}
	return rows, nil
}

// ClosePrice returns the close of the segment's relativeDay-th trading day.
// Absence means the catalog and price data disagree, which the caller must
// treat as a configuration problem.
func (r *Repository) ClosePrice(stock *models.ExperimentStock, relativeDay int) (float64, error) {
	var row models.PriceRow
	err := r.db.Where("stock_symbol = ? AND day_index = ?",
		stock.StockSymbol, stock.SegmentStartDay+relativeDay).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, database.NewNotFoundErrorWithID("price row",
			fmt.Sprintf("%s day %d", stock.StockSymbol, stock.SegmentStartDay+relativeDay))
	}
	if err != nil {
		return 0, fmt.Errorf("ClosePrice: %w", err)
	}
	return row.Close, nil
}
