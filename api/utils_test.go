package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"tradelab/auth"
	"tradelab/database"
	"tradelab/experiment"
)

func TestRespondDomainErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid action", &experiment.InvalidActionError{Action: "SHORT"}, http.StatusBadRequest},
		{"validation", database.NewValidationError("username", "must not be empty"), http.StatusBadRequest},
		{"auth", &auth.AuthError{Reason: "invalid session token"}, http.StatusUnauthorized},
		{"not found", database.NewNotFoundError("session"), http.StatusNotFound},
		{"expired", &experiment.ExpiredError{SessionID: 1}, http.StatusConflict},
		{"already completed", &experiment.AlreadyCompletedError{SessionID: 1}, http.StatusConflict},
		{"duplicate decision", &experiment.DuplicateDecisionError{SessionID: 1, StockIndex: 2, DayNumber: 3}, http.StatusConflict},
		{"insufficient capital", &experiment.InsufficientCapitalError{Capital: 400, Cost: 500}, http.StatusUnprocessableEntity},
		{"insufficient shares", &experiment.InsufficientSharesError{Shares: 0, Required: 10}, http.StatusUnprocessableEntity},
		{"configuration", &experiment.ConfigurationError{Detail: "no stock at sequence 3"}, http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		respondDomainError(rec, tc.err)
		if rec.Code != tc.want {
			t.Errorf("%s: expected status %d, got %d", tc.name, tc.want, rec.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Errorf("%s: response is not JSON: %v", tc.name, err)
			continue
		}
		if body["error"] == "" {
			t.Errorf("%s: missing error message in body", tc.name)
		}
	}
}

func TestRespondDomainErrorUnwrapsWrappedErrors(t *testing.T) {
	wrapped := errors.Join(errors.New("CommitDecision failed"),
		&experiment.DuplicateDecisionError{SessionID: 1, StockIndex: 0, DayNumber: 0})

	rec := httptest.NewRecorder()
	respondDomainError(rec, wrapped)
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected wrapped duplicate to map to 409, got %d", rec.Code)
	}
}

func TestRespondDomainErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	respondDomainError(rec, errors.New("pq: connection refused"))

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if body["error"] != "internal server error" {
		t.Errorf("Internal error leaked to client: %q", body["error"])
	}
}
