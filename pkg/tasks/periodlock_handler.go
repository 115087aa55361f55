package tasks

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/worklane-app/worklane-backend/pkg/auth"
	"github.com/worklane-app/worklane-backend/pkg/communication"
	"github.com/worklane-app/worklane-backend/pkg/date"
	"github.com/worklane-app/worklane-backend/pkg/logger"
)

// PeriodLockHandler handles the work period lock API calls
type PeriodLockHandler struct {
	Engine          *TaskEngine
	Logger          logger.Interface
	ResponseManager *communication.ResponseManager
}

// PeriodLockList lists the lock windows of a project
func (handler *PeriodLockHandler) PeriodLockList(writer http.ResponseWriter, request *http.Request) {
	actor, ok := auth.ActorFromContext(request.Context())
	if !ok {
		handler.ResponseManager.RespondWithError(writer, http.StatusUnauthorized, "No actor", nil)
		return
	}
	projectID := mux.Vars(request)["projectID"]

	locks, err := handler.Engine.ListPeriodLocks(request.Context(), actor, projectID)
	if err != nil {
		handler.ResponseManager.RespondWithEngineError(writer, err)
		return
	}

	handler.ResponseManager.Respond(writer, locks)
}

// PeriodLockAdd creates a lock window
func (handler *PeriodLockHandler) PeriodLockAdd(writer http.ResponseWriter, request *http.Request) {
	actor, ok := auth.ActorFromContext(request.Context())
	if !ok {
		handler.ResponseManager.RespondWithError(writer, http.StatusUnauthorized, "No actor", nil)
		return
	}
	projectID := mux.Vars(request)["projectID"]

	payload := struct {
		Start  time.Time `json:"start" validate:"required"`
		End    time.Time `json:"end" validate:"required"`
		Locked bool      `json:"locked"`
	}{}
	err := json.NewDecoder(request.Body).Decode(&payload)
	if err != nil {
		handler.ResponseManager.RespondWithError(writer, http.StatusBadRequest, "Wrong format", err)
		return
	}

	v := validator.New()
	err = v.Struct(payload)
	if err != nil {
		for _, e := range err.(validator.ValidationErrors) {
			handler.ResponseManager.RespondWithError(writer, http.StatusBadRequest, e.Error(), e)
			return
		}
	}

	lock, err := handler.Engine.SetPeriodLock(request.Context(), actor, projectID, WorkPeriodLock{
		Period: date.NewSpan(payload.Start, payload.End),
		Locked: payload.Locked,
	})
	if err != nil {
		handler.ResponseManager.RespondWithEngineError(writer, err)
		return
	}

	handler.ResponseManager.RespondWithStatus(writer, lock, http.StatusCreated)
}

// PeriodLockToggle flips a window between locked and open
func (handler *PeriodLockHandler) PeriodLockToggle(writer http.ResponseWriter, request *http.Request) {
	actor, ok := auth.ActorFromContext(request.Context())
	if !ok {
		handler.ResponseManager.RespondWithError(writer, http.StatusUnauthorized, "No actor", nil)
		return
	}
	projectID := mux.Vars(request)["projectID"]
	lockID := mux.Vars(request)["lockID"]

	payload := struct {
		Locked bool `json:"locked"`
	}{}
	err := json.NewDecoder(request.Body).Decode(&payload)
	if err != nil {
		handler.ResponseManager.RespondWithError(writer, http.StatusBadRequest, "Wrong format", err)
		return
	}

	lock, err := handler.Engine.TogglePeriodLock(request.Context(), actor, projectID, lockID, payload.Locked)
	if err != nil {
		handler.ResponseManager.RespondWithEngineError(writer, err)
		return
	}

	handler.ResponseManager.Respond(writer, lock)
}
