package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/nerrad567/gray-logic-lights/internal/schedule"
)

// defaultRunsLimit caps GET /schedules/{id}/runs without a limit.
const defaultRunsLimit = 50

// CreateScheduleRequest is the body of POST /schedules.
type CreateScheduleRequest struct {
	Time   string `json:"time"`
	Action string `json:"action"`
}

// DeleteScheduleResponse is the body of a successful DELETE.
type DeleteScheduleResponse struct {
	Success bool  `json:"success"`
	ID      int64 `json:"id"`
}

func (s *Server) handleListSchedules(r *http.Request) Result {
	return ok(s.schedules.List(r.Context()))
}

func (s *Server) handleCreateSchedule(r *http.Request) Result {
	var req CreateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return badRequest("invalid JSON body")
	}

	sc, err := s.schedules.Create(r.Context(), req.Time, req.Action)
	if err != nil {
		return scheduleError(err, "failed to create schedule")
	}
	return created(sc)
}

func (s *Server) handleDeleteSchedule(r *http.Request) Result {
	id, res, valid := scheduleID(r)
	if !valid {
		return res
	}
	if err := s.schedules.Delete(r.Context(), id); err != nil {
		return scheduleError(err, "failed to delete schedule")
	}
	return ok(DeleteScheduleResponse{Success: true, ID: id})
}

func (s *Server) handleToggleSchedule(r *http.Request) Result {
	id, res, valid := scheduleID(r)
	if !valid {
		return res
	}
	sc, err := s.schedules.ToggleEnabled(r.Context(), id)
	if err != nil {
		return scheduleError(err, "failed to toggle schedule")
	}
	return ok(sc)
}

func (s *Server) handleListScheduleRuns(r *http.Request) Result {
	id, res, valid := scheduleID(r)
	if !valid {
		return res
	}

	limit := defaultRunsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return badRequest("limit must be a positive integer")
		}
		limit = n
	}

	runs, err := s.schedules.ListRuns(r.Context(), id, limit)
	if err != nil {
		return scheduleError(err, "failed to list schedule runs")
	}
	return ok(runs)
}

func scheduleID(r *http.Request) (int64, Result, bool) {
	id, err := strconv.ParseInt(pathParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		return 0, notFound("schedule not found"), false
	}
	return id, Result{}, true
}

// scheduleError maps store errors onto responses. Validation errors
// carry their message; anything else is an internal error.
func scheduleError(err error, internalMsg string) Result {
	switch {
	case errors.Is(err, schedule.ErrNotFound):
		return notFound("schedule not found")
	case errors.Is(err, schedule.ErrInvalidTime), errors.Is(err, schedule.ErrInvalidAction):
		return fail(http.StatusBadRequest, ErrCodeValidation, err.Error())
	default:
		return internalError(internalMsg)
	}
}
