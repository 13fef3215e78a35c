package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"tradelab/auth"
	"tradelab/database"
	"tradelab/experiment"
)

// respondJSON writes a JSON body with the given status code
func respondJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// respondWithError logs the error and sends a JSON error response
// Use this to avoid exposing internal errors while still logging them
func respondWithError(w http.ResponseWriter, code int, message string, err error) {
	if err != nil {
		log.Printf("API Error [%d]: %s - %v", code, message, err)
	} else {
		log.Printf("API Error [%d]: %s", code, message)
	}
	respondJSON(w, code, map[string]string{"error": message})
}

// respondDomainError maps engine and storage errors onto HTTP statuses. The
// client-facing message is the error's own text for domain errors; anything
// unrecognized becomes an opaque 500.
func respondDomainError(w http.ResponseWriter, err error) {
	var (
		invalidAction    *experiment.InvalidActionError
		expired          *experiment.ExpiredError
		alreadyCompleted *experiment.AlreadyCompletedError
		duplicate        *experiment.DuplicateDecisionError
		noCapital        *experiment.InsufficientCapitalError
		noShares         *experiment.InsufficientSharesError
		misconfigured    *experiment.ConfigurationError
		notFound         *database.NotFoundError
		validation       *database.ValidationError
		authErr          *auth.AuthError
	)

	switch {
	case errors.As(err, &invalidAction):
		respondWithError(w, http.StatusBadRequest, invalidAction.Error(), nil)
	case errors.As(err, &validation):
		respondWithError(w, http.StatusBadRequest, validation.Error(), nil)
	case errors.As(err, &authErr):
		respondWithError(w, http.StatusUnauthorized, authErr.Error(), nil)
	case errors.As(err, &notFound):
		respondWithError(w, http.StatusNotFound, notFound.Error(), nil)
	case errors.As(err, &expired):
		respondWithError(w, http.StatusConflict, expired.Error(), nil)
	case errors.As(err, &alreadyCompleted):
		respondWithError(w, http.StatusConflict, alreadyCompleted.Error(), nil)
	case errors.As(err, &duplicate):
		respondWithError(w, http.StatusConflict, duplicate.Error(), nil)
	case errors.As(err, &noCapital):
		respondWithError(w, http.StatusUnprocessableEntity, noCapital.Error(), nil)
	case errors.As(err, &noShares):
		respondWithError(w, http.StatusUnprocessableEntity, noShares.Error(), nil)
	case errors.As(err, &misconfigured):
		respondWithError(w, http.StatusInternalServerError, misconfigured.Error(), err)
	default:
		respondWithError(w, http.StatusInternalServerError, "internal server error", err)
	}
}
