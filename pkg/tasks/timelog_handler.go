package tasks

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/worklane-app/worklane-backend/pkg/auth"
	"github.com/worklane-app/worklane-backend/pkg/communication"
	"github.com/worklane-app/worklane-backend/pkg/logger"
)

// TimeLogHandler handles all time log related API calls
type TimeLogHandler struct {
	Engine          *TaskEngine
	Logger          logger.Interface
	ResponseManager *communication.ResponseManager
}

// TimeLogAdd records effort against a task or one of its subtasks
func (handler *TimeLogHandler) TimeLogAdd(writer http.ResponseWriter, request *http.Request) {
	actor, ok := auth.ActorFromContext(request.Context())
	if !ok {
		handler.ResponseManager.RespondWithError(writer, http.StatusUnauthorized, "No actor", nil)
		return
	}
	taskID := mux.Vars(request)["taskID"]

	payload := TimeLogCreate{}
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

	entry, err := handler.Engine.RecordTime(request.Context(), actor, taskID, &payload)
	if err != nil {
		handler.ResponseManager.RespondWithEngineError(writer, err)
		return
	}

	handler.ResponseManager.RespondWithStatus(writer, entry, http.StatusCreated)
}

// TimeLogUpdate edits an existing entry
func (handler *TimeLogHandler) TimeLogUpdate(writer http.ResponseWriter, request *http.Request) {
	actor, ok := auth.ActorFromContext(request.Context())
	if !ok {
		handler.ResponseManager.RespondWithError(writer, http.StatusUnauthorized, "No actor", nil)
		return
	}
	timeLogID := mux.Vars(request)["timeLogID"]

	patch := TimeLogPatch{}
	err := json.NewDecoder(request.Body).Decode(&patch)
	if err != nil {
		handler.ResponseManager.RespondWithError(writer, http.StatusBadRequest, "Wrong format", err)
		return
	}

	entry, err := handler.Engine.UpdateTimeLog(request.Context(), actor, timeLogID, &patch)
	if err != nil {
		handler.ResponseManager.RespondWithEngineError(writer, err)
		return
	}

	handler.ResponseManager.Respond(writer, entry)
}

// TimeLogDelete removes an entry
func (handler *TimeLogHandler) TimeLogDelete(writer http.ResponseWriter, request *http.Request) {
	actor, ok := auth.ActorFromContext(request.Context())
	if !ok {
		handler.ResponseManager.RespondWithError(writer, http.StatusUnauthorized, "No actor", nil)
		return
	}
	timeLogID := mux.Vars(request)["timeLogID"]

	err := handler.Engine.DeleteTimeLog(request.Context(), actor, timeLogID)
	if err != nil {
		handler.ResponseManager.RespondWithEngineError(writer, err)
		return
	}

	handler.ResponseManager.RespondWithNoContent(writer)
}
