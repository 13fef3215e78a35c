package models

import "time"

// Account roles.
const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

// User is a participant or administrator account.
// Accounts are seeded at startup (2 admins, 30 participants) and managed
// through the admin API afterwards. The password hash is never serialized.
type User struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string    `gorm:"size:50;uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"size:100;not null" json:"-"`
	FullName     string    `gorm:"size:100" json:"full_name"`
	Email        string    `gorm:"size:100" json:"email"`
	Role         string    `gorm:"size:10;not null;default:USER" json:"role"` // ADMIN, USER
	Active       bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "users"
}

// Stock is one entry in the raw price catalog, created from the first row of
// its CSV file during ingestion. The full history lives in price_rows; this
// record exists so the catalog can be listed and toggled without scanning rows.
type Stock struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Symbol       string    `gorm:"size:20;uniqueIndex;not null" json:"symbol"`
	Name         string    `gorm:"size:100;not null" json:"name"`
	OpeningPrice float64   `gorm:"type:decimal(15,2)" json:"opening_price"`
	HighPrice    float64   `gorm:"type:decimal(15,2)" json:"high_price"`
	LowPrice     float64   `gorm:"type:decimal(15,2)" json:"low_price"`
	ClosePrice   float64   `gorm:"type:decimal(15,2)" json:"close_price"`
	Active       bool      `gorm:"not null;default:true" json:"active"`
	LastUpdated  time.Time `json:"last_updated"`
}

// TableName specifies the table name for Stock
func (Stock) TableName() string {
	return "stocks"
}

// PriceRow is one day of a stock's pre-recorded history: OHLCV plus the
// simple moving average and RSI columns shipped in the source CSVs.
// DayIndex is the absolute row position within that symbol's history; the
// experiment segments reference these indexes directly.
type PriceRow struct {
	ID          int64   `gorm:"primaryKey;autoIncrement" json:"id"`
	StockSymbol string  `gorm:"size:20;not null;uniqueIndex:idx_price_rows_symbol_day,priority:1" json:"stock_symbol"`
	DayIndex    int     `gorm:"not null;uniqueIndex:idx_price_rows_symbol_day,priority:2" json:"day_index"`
	Open        float64 `gorm:"type:decimal(15,2);not null" json:"open"`
	High        float64 `gorm:"type:decimal(15,2);not null" json:"high"`
	Low         float64 `gorm:"type:decimal(15,2);not null" json:"low"`
	Close       float64 `gorm:"type:decimal(15,2);not null" json:"close"`
	Volume      int64   `gorm:"not null" json:"volume"`
	SMA         float64 `gorm:"column:sma;type:decimal(15,4)" json:"sma"`
	RSI         float64 `gorm:"column:rsi;type:decimal(10,4)" json:"rsi"`
}

// TableName specifies the table name for PriceRow
func (PriceRow) TableName() string {
	return "price_rows"
}

// ExperimentStock maps an episode sequence position (0..9) to the symbol a
// participant trades in that episode and the fixed ten-day slice of its price
// history (SegmentEndDay - SegmentStartDay == 9). Selected once by the
// volatility analyzer and immutable afterwards.
type ExperimentStock struct {
	ID              int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SequenceOrder   int       `gorm:"uniqueIndex;not null" json:"sequence_order"`
	StockSymbol     string    `gorm:"size:20;not null" json:"stock_symbol"`
	SegmentStartDay int       `gorm:"not null" json:"segment_start_day"`
	SegmentEndDay   int       `gorm:"not null" json:"segment_end_day"`
	CSVPath         string    `gorm:"size:255" json:"csv_path"`
	AvgVolatility   float64   `gorm:"type:decimal(10,6)" json:"avg_volatility"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for ExperimentStock
func (ExperimentStock) TableName() string {
	return "experiment_stocks"
}

// ExperimentSession is one participant's run through the experiment.
// CurrentStockIndex ranges 0..10 (10 means finished); CurrentDay ranges 0..9
// and resets to 0 whenever the stock index advances. A partial unique index
// (created in InitSchema) guarantees at most one incomplete session per user.
// Sessions are never deleted and become immutable once Completed is set.
type ExperimentSession struct {
	ID                int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID            int64      `gorm:"index;not null" json:"user_id"`
	StartTime         time.Time  `gorm:"not null" json:"start_time"`
	EndTime           *time.Time `json:"end_time,omitempty"`
	Completed         bool       `gorm:"not null;default:false" json:"completed"`
	CurrentStockIndex int        `gorm:"not null;default:0" json:"current_stock_index"`
	CurrentDay        int        `gorm:"not null;default:0" json:"current_day"`
	CurrentCapital    float64    `gorm:"type:decimal(15,2);not null" json:"current_capital"`
	CurrentShares     int        `gorm:"not null;default:0" json:"current_shares"`
}

// TableName specifies the table name for ExperimentSession
func (ExperimentSession) TableName() string {
	return "experiment_sessions"
}

// ExperimentDecision is one immutable ledger entry: a BUY/SELL/HOLD taken on a
// specific stock/day with before/after snapshots of the account. The
// (session, stock index, day number) natural key is unique; a duplicate insert
// indicates a concurrency bug, never valid data. Rows are append-only.
type ExperimentDecision struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID     int64     `gorm:"not null;index;uniqueIndex:idx_decisions_session_step,priority:1" json:"session_id"`
	StockIndex    int       `gorm:"not null;uniqueIndex:idx_decisions_session_step,priority:2" json:"stock_index"`
	DayNumber     int       `gorm:"not null;uniqueIndex:idx_decisions_session_step,priority:3" json:"day_number"`
	Action        string    `gorm:"size:10;not null" json:"action"` // BUY, SELL, HOLD
	Price         float64   `gorm:"type:decimal(15,2);not null" json:"price"`
	Quantity      int       `gorm:"not null" json:"quantity"`
	CapitalBefore float64   `gorm:"type:decimal(15,2);not null" json:"capital_before"`
	CapitalAfter  float64   `gorm:"type:decimal(15,2);not null" json:"capital_after"`
	SharesBefore  int       `gorm:"not null" json:"shares_before"`
	SharesAfter   int       `gorm:"not null" json:"shares_after"`
	DecidedAt     time.Time `gorm:"autoCreateTime" json:"decided_at"`
}

// TableName specifies the table name for ExperimentDecision
func (ExperimentDecision) TableName() string {
	return "experiment_decisions"
}
