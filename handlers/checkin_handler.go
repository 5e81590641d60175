package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"habitPactAPI/internal/types/checkin"
	"habitPactAPI/middleware"
	"habitPactAPI/services"

	"github.com/google/uuid"
)

type CheckInHandler struct {
	checkInService *services.CheckInService
}

func NewCheckInHandler(checkInService *services.CheckInService) *CheckInHandler {
	return &CheckInHandler{
		checkInService: checkInService,
	}
}

// SubmitCheckIn handles POST /checkins. Rejections the user can correct map
// to 409/403/410; anything else is a 500 and means nothing was recorded.
func (h *CheckInHandler) SubmitCheckIn(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req checkin.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ChallengeID == uuid.Nil {
		respondWithError(w, http.StatusBadRequest, "challenge_id is required")
		return
	}

	result, err := h.checkInService.SubmitCheckIn(ctx, clerkID, &req)
	if err != nil {
		middleware.RecordCheckInSubmission(outcomeOf(err))
		respondWithError(w, statusForSubmitError(err), err.Error())
		return
	}

	middleware.RecordCheckInSubmission("completed")
	log.Printf("SubmitCheckIn Handler: %s checked in to %s for period %s", clerkID, req.ChallengeID, result.CheckIn.PeriodKey)

	respondWithJSON(w, http.StatusCreated, result)
}

func statusForSubmitError(err error) int {
	switch {
	case errors.Is(err, checkin.ErrAlreadyCheckedIn):
		return http.StatusConflict
	case errors.Is(err, checkin.ErrChallengeEnded), errors.Is(err, checkin.ErrDeadlinePassed):
		return http.StatusGone
	case errors.Is(err, checkin.ErrEliminated):
		return http.StatusForbidden
	case errors.Is(err, checkin.ErrNotMember):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, checkin.ErrAlreadyCheckedIn),
		errors.Is(err, checkin.ErrChallengeEnded),
		errors.Is(err, checkin.ErrDeadlinePassed),
		errors.Is(err, checkin.ErrEliminated),
		errors.Is(err, checkin.ErrNotMember):
		return "rejected"
	}
	return "error"
}
