package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	models "tradelab/database/models_pkg"
	"tradelab/experiment"
	"tradelab/realtime"
)

func (s *Server) handleStartExperiment(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	existing, err := s.engine.CurrentSession(user.ID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	session, err := s.engine.StartExperiment(user.ID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	if existing == nil {
		s.publish(realtime.EventSessionStarted, map[string]interface{}{
			"session_id": session.ID,
			"username":   user.Username,
		})
	}

	state, err := s.engine.CurrentState(session)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, state)
}

func (s *Server) handleExperimentState(w http.ResponseWriter, r *http.Request) {
	session, ok := s.activeSession(w, r)
	if !ok {
		return
	}

	state, err := s.engine.CurrentState(session)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, state)
}

// stockView is the price window a participant sees: the rows of the current
// segment up to and including today. Future days are never exposed.
type stockView struct {
	StockIndex  int               `json:"stock_index"`
	DayNumber   int               `json:"day_number"`
	StockSymbol string            `json:"stock_symbol"`
	Rows        []models.PriceRow `json:"rows"`
}

func (s *Server) handleCurrentStock(w http.ResponseWriter, r *http.Request) {
	session, ok := s.activeSession(w, r)
	if !ok {
		return
	}

	stock, err := s.engine.CurrentStock(session)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	rows, err := s.catalog.SegmentRows(stock, session.CurrentDay)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, stockView{
		StockIndex:  session.CurrentStockIndex,
		DayNumber:   session.CurrentDay,
		StockSymbol: stock.StockSymbol,
		Rows:        rows,
	})
}

type decisionRequest struct {
	Action string `json:"action"`
}

type decisionResponse struct {
	Decision *models.ExperimentDecision `json:"decision"`
	State    *experiment.CurrentState   `json:"state"`
}

func (s *Server) handleDecision(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	session, ok := s.activeSession(w, r)
	if !ok {
		return
	}

	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	action, err := experiment.ParseAction(req.Action)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	stock, err := s.engine.CurrentStock(session)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	price, err := s.catalog.ClosePrice(stock, session.CurrentDay)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	decision, err := s.engine.MakeDecision(session, action, price)
	if err != nil {
		var expired *experiment.ExpiredError
		if errors.As(err, &expired) {
			s.publish(realtime.EventSessionExpired, map[string]interface{}{
				"session_id": session.ID,
				"username":   user.Username,
			})
			s.notifyCompletion(user, session, true)
		}
		respondDomainError(w, err)
		return
	}

	s.publish(realtime.EventDecision, map[string]interface{}{
		"session_id":  session.ID,
		"username":    user.Username,
		"stock_index": decision.StockIndex,
		"day_number":  decision.DayNumber,
		"action":      decision.Action,
		"price":       decision.Price,
	})

	// The day counter reset means the decision closed out an episode.
	if session.CurrentDay == 0 {
		s.publish(realtime.EventEpisodeCompleted, map[string]interface{}{
			"session_id":  session.ID,
			"username":    user.Username,
			"stock_index": decision.StockIndex,
		})
	}

	if session.Completed {
		s.publish(realtime.EventSessionCompleted, map[string]interface{}{
			"session_id": session.ID,
			"username":   user.Username,
		})
		s.notifyCompletion(user, session, false)
	}

	state, err := s.engine.CurrentState(session)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, decisionResponse{Decision: decision, State: state})
}

func (s *Server) handleEpisodeSummary(w http.ResponseWriter, r *http.Request) {
	session, ok := s.anySession(w, r)
	if !ok {
		return
	}

	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || index < 0 || index >= experiment.TotalStocks {
		respondWithError(w, http.StatusBadRequest, "invalid stock index", err)
		return
	}

	summary, err := s.engine.EpisodeSummary(session, index)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (s *Server) handleSessionSummary(w http.ResponseWriter, r *http.Request) {
	session, ok := s.anySession(w, r)
	if !ok {
		return
	}

	summary, err := s.engine.SessionSummary(session)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// activeSession loads the caller's incomplete session or responds 404.
func (s *Server) activeSession(w http.ResponseWriter, r *http.Request) (*models.ExperimentSession, bool) {
	user := currentUser(r)
	session, err := s.engine.CurrentSession(user.ID)
	if err != nil {
		respondDomainError(w, err)
		return nil, false
	}
	if session == nil {
		respondWithError(w, http.StatusNotFound, "no active experiment session", nil)
		return nil, false
	}
	return session, true
}

// anySession prefers the incomplete session but falls back to the caller's
// most recent one, so summaries stay reachable after completion.
func (s *Server) anySession(w http.ResponseWriter, r *http.Request) (*models.ExperimentSession, bool) {
	user := currentUser(r)
	session, err := s.engine.CurrentSession(user.ID)
	if err != nil {
		respondDomainError(w, err)
		return nil, false
	}
	if session != nil {
		return session, true
	}

	all, err := s.sessions.BySessionForUser(user.ID)
	if err != nil {
		respondDomainError(w, err)
		return nil, false
	}
	if len(all) == 0 {
		respondWithError(w, http.StatusNotFound, "no experiment session", nil)
		return nil, false
	}
	return &all[0], true
}

func (s *Server) publish(event string, payload interface{}) {
	s.broker.Broadcast(event, payload)
	s.hub.Broadcast(event, payload)
}

func (s *Server) notifyCompletion(user *models.User, session *models.ExperimentSession, expired bool) {
	if s.notifier == nil {
		return
	}
	summary, err := s.engine.SessionSummary(session)
	if err != nil {
		return
	}
	s.notifier.NotifySessionCompleted(user.Username, summary, expired)
}
