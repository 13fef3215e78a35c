package database

import (
	"fmt"
	"time"

	models "tradelab/database/models_pkg"
)

// Repository handles schema management and the cross-aggregate queries used by
// the researcher dashboard. Per-aggregate operations live in the sessions,
// catalog, and users subpackages.
type Repository struct {
	db *Database
}

// NewRepository creates a new platform repository
func NewRepository(db *Database) *Repository {
	return &Repository{db: db}
}

// InitSchema performs auto-migration plus the constraints AutoMigrate cannot
// express.
func (r *Repository) InitSchema() error {
	fmt.Println("🔄 Starting database schema initialization...")

	err := r.db.db.AutoMigrate(
		&models.User{},
		&models.Stock{},
		&models.PriceRow{},
		&models.ExperimentStock{},
		&models.ExperimentSession{},
		&models.ExperimentDecision{},
	)
	if err != nil {
		return fmt.Errorf("auto-migration failed: %w", err)
	}

	// At most one incomplete session per participant. GORM cannot declare a
	// partial unique index through tags, so it is managed manually.
	if err := r.db.db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_one_active_per_user
		ON experiment_sessions (user_id)
		WHERE completed = false
	`).Error; err != nil {
		return fmt.Errorf("failed to create active-session index: %w", err)
	}

	fmt.Println("✅ Database schema ready")
	return nil
}

// SessionOverview is one row of the researcher's experiment listing.
type SessionOverview struct {
	SessionID     int64      `json:"session_id"`
	Username      string     `json:"username"`
	FullName      string     `json:"full_name"`
	StartTime     time.Time  `json:"start_time"`
	EndTime       *time.Time `json:"end_time,omitempty"`
	Completed     bool       `json:"completed"`
	StockIndex    int        `json:"stock_index"`
	DayNumber     int        `json:"day_number"`
	DecisionCount int64      `json:"decision_count"`
}

// ListSessionOverviews returns every session joined with its owner and
// decision count, newest first.
func (r *Repository) ListSessionOverviews(limit int) ([]SessionOverview, error) {
	var rows []SessionOverview
	query := `
		SELECT
			s.id AS session_id,
			u.username,
			u.full_name,
			s.start_time,
			s.end_time,
			s.completed,
			s.current_stock_index AS stock_index,
			s.current_day AS day_number,
			COUNT(d.id) AS decision_count
		FROM experiment_sessions s
		JOIN users u ON u.id = s.user_id
		LEFT JOIN experiment_decisions d ON d.session_id = s.id
		GROUP BY s.id, u.username, u.full_name
		ORDER BY s.start_time DESC
		LIMIT ?
	`
	if err := r.db.db.Raw(query, limit).Scan(&rows).Error; err != nil {
		return nil, WrapDBError("ListSessionOverviews", err)
	}
	return rows, nil
}

// PlatformStats aggregates the counters shown on the admin dashboard.
type PlatformStats struct {
	TotalUsers        int64 `json:"total_users"`
	ActiveUsers       int64 `json:"active_users"`
	TotalStocks       int64 `json:"total_stocks"`
	TotalSessions     int64 `json:"total_sessions"`
	CompletedSessions int64 `json:"completed_sessions"`
	TotalDecisions    int64 `json:"total_decisions"`
}

// GetPlatformStats collects the top-level counters in one round trip each.
func (r *Repository) GetPlatformStats() (*PlatformStats, error) {
	var stats PlatformStats

	counts := []struct {
		dest  *int64
		model interface{}
		where []interface{}
	}{
		{&stats.TotalUsers, &models.User{}, []interface{}{"role = ?", models.RoleUser}},
		{&stats.ActiveUsers, &models.User{}, []interface{}{"role = ? AND active = ?", models.RoleUser, true}},
		{&stats.TotalStocks, &models.Stock{}, nil},
		{&stats.TotalSessions, &models.ExperimentSession{}, nil},
		{&stats.CompletedSessions, &models.ExperimentSession{}, []interface{}{"completed = ?", true}},
		{&stats.TotalDecisions, &models.ExperimentDecision{}, nil},
	}

	for _, c := range counts {
		query := r.db.db.Model(c.model)
		if c.where != nil {
			query = query.Where(c.where[0], c.where[1:]...)
		}
		if err := query.Count(c.dest).Error; err != nil {
			return nil, WrapDBError("GetPlatformStats", err)
		}
	}

	return &stats, nil
}
