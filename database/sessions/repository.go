// Package sessions persists experiment sessions and their append-only
// decision ledger. CommitDecision is the only write path a trading step may
// use: it applies the session update and the decision insert in one
// transaction, serialized per session by a row lock.
package sessions

import (
	"errors"
	"fmt"
	"strings"

	models "tradelab/database/models_pkg"
	"tradelab/experiment"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository handles database operations for sessions and decisions
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new session repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindIncompleteByUser returns the user's active session, or (nil, nil) when
// the user has none. The partial unique index guarantees at most one row.
func (r *Repository) FindIncompleteByUser(userID int64) (*models.ExperimentSession, error) {
	var session models.ExperimentSession
	err := r.db.Where("user_id = ? AND completed = ?", userID, false).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindIncompleteByUser: %w", err)
	}
	return &session, nil
}

// ByID returns a session by primary key, (nil, nil) when absent.
func (r *Repository) ByID(id int64) (*models.ExperimentSession, error) {
	var session models.ExperimentSession
	err := r.db.First(&session, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ByID: %w", err)
	}
	return &session, nil
}

// Create inserts a new session.
func (r *Repository) Create(session *models.ExperimentSession) error {
	if err := r.db.Create(session).Error; err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// Save writes the session's mutable fields. Used outside decision processing
// only for the expiry force-complete path.
func (r *Repository) Save(session *models.ExperimentSession) error {
	if err := r.db.Save(session).Error; err != nil {
		return fmt.Errorf("Save: %w", err)
	}
	return nil
}

// CommitDecision applies one trading step atomically: lock the session row,
// verify the stored (stock index, day) still equals the decision's snapshot,
// then write the advanced session state and append the decision. Two
// concurrent submissions for the same day are strictly ordered by the lock;
// the loser observes the advanced row and fails with DuplicateDecisionError
// before touching anything. The ledger's unique natural key backs the guard.
func (r *Repository) CommitDecision(session *models.ExperimentSession, decision *models.ExperimentDecision) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var stored models.ExperimentSession
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&stored, session.ID).Error; err != nil {
			return fmt.Errorf("lock session %d: %w", session.ID, err)
		}

		if stored.Completed ||
			stored.CurrentStockIndex != decision.StockIndex ||
			stored.CurrentDay != decision.DayNumber {
			return &experiment.DuplicateDecisionError{
				SessionID:  session.ID,
				StockIndex: decision.StockIndex,
				DayNumber:  decision.DayNumber,
			}
		}

		updates := map[string]interface{}{
			"current_stock_index": session.CurrentStockIndex,
			"current_day":         session.CurrentDay,
			"current_capital":     session.CurrentCapital,
			"current_shares":      session.CurrentShares,
			"completed":           session.Completed,
			"end_time":            session.EndTime,
		}
		if err := tx.Model(&models.ExperimentSession{}).
			Where("id = ?", session.ID).
			Updates(updates).Error; err != nil {
			return fmt.Errorf("update session %d: %w", session.ID, err)
		}

		if err := tx.Create(decision).Error; err != nil {
			if strings.Contains(err.Error(), "duplicate key value violates unique constraint") {
				return &experiment.DuplicateDecisionError{
					SessionID:  session.ID,
					StockIndex: decision.StockIndex,
					DayNumber:  decision.DayNumber,
				}
			}
			return fmt.Errorf("insert decision: %w", err)
		}

		return nil
	})
	if err != nil {
		var dup *experiment.DuplicateDecisionError
		if errors.As(err, &dup) {
			return dup
		}
		return fmt.Errorf("CommitDecision: %w", err)
	}
	return nil
}

// DecisionsBySession returns the session's full ledger ordered by
// (stock index, day number).
func (r *Repository) DecisionsBySession(sessionID int64) ([]models.ExperimentDecision, error) {
	var decisions []models.ExperimentDecision
	err := r.db.Where("session_id = ?", sessionID).
		Order("stock_index ASC, day_number ASC").
		Find(&decisions).Error
	if err != nil {
		return nil, fmt.Errorf("DecisionsBySession: %w", err)
	}
	return decisions, nil
}

// DecisionsByStock returns one episode's decisions ordered by day.
func (r *Repository) DecisionsByStock(sessionID int64, stockIndex int) ([]models.ExperimentDecision, error) {
	var decisions []models.ExperimentDecision
	err := r.db.Where("session_id = ? AND stock_index = ?", sessionID, stockIndex).
		Order("day_number ASC").
		Find(&decisions).Error
	if err != nil {
		return nil, fmt.Errorf("DecisionsByStock: %w", err)
	}
	return decisions, nil
}

// BySessionForUser returns every session a user has ever run, newest first.
// Serves the admin detail view and post-completion summary lookups.
func (r *Repository) BySessionForUser(userID int64) ([]models.ExperimentSession, error) {
	var sessions []models.ExperimentSession
	err := r.db.Where("user_id = ?", userID).
		Order("start_time DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("BySessionForUser: %w", err)
	}
	return sessions, nil
}
