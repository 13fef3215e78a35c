package api

import (
	"net/http"
	"strconv"

	models "tradelab/database/models_pkg"
	"tradelab/experiment"
)

func (s *Server) handleAdminOverview(w http.ResponseWriter, r *http.Request) {
	stats, err := s.repo.GetPlatformStats()
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"stats":              stats,
		"connected_monitors": s.hub.Count(),
	})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	list, err := s.users.ListParticipants()
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

// userDetail pairs an account with its session history.
type userDetail struct {
	User     models.User                `json:"user"`
	Sessions []models.ExperimentSession `json:"sessions"`
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, ok := s.pathUser(w, r)
	if !ok {
		return
	}

	history, err := s.sessions.BySessionForUser(user.ID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, userDetail{User: *user, Sessions: history})
}

func (s *Server) handleToggleUser(w http.ResponseWriter, r *http.Request) {
	user, ok := s.pathUser(w, r)
	if !ok {
		return
	}
	if user.Role == models.RoleAdmin {
		respondWithError(w, http.StatusForbidden, "cannot modify admin accounts", nil)
		return
	}

	user.Active = !user.Active
	if err := s.users.Update(user); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	user, ok := s.pathUser(w, r)
	if !ok {
		return
	}
	if user.Role == models.RoleAdmin {
		respondWithError(w, http.StatusForbidden, "cannot delete admin accounts", nil)
		return
	}

	if err := s.users.Delete(user.ID); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleListExperiments(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}

	overviews, err := s.repo.ListSessionOverviews(limit)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, overviews)
}

// experimentDetail is the full researcher view of one session: the raw record,
// the computed summary and the complete decision ledger.
type experimentDetail struct {
	Session   models.ExperimentSession    `json:"session"`
	Summary   *experiment.SessionSummary  `json:"summary"`
	Decisions []models.ExperimentDecision `json:"decisions"`
}

func (s *Server) handleExperimentDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid session id", err)
		return
	}

	session, err := s.sessions.ByID(id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if session == nil {
		respondWithError(w, http.StatusNotFound, "session not found", nil)
		return
	}

	summary, err := s.engine.SessionSummary(session)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	decisions, err := s.sessions.DecisionsBySession(session.ID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, experimentDetail{
		Session:   *session,
		Summary:   summary,
		Decisions: decisions,
	})
}

func (s *Server) pathUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid user id", err)
		return nil, false
	}

	user, err := s.users.ByID(id)
	if err != nil {
		respondDomainError(w, err)
		return nil, false
	}
	return user, true
}
