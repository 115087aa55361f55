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

// Handler handles all task related API calls
type Handler struct {
	Engine          *TaskEngine
	Logger          logger.Interface
	ResponseManager *communication.ResponseManager
}

// TaskAdd is the route for adding a task
func (handler *Handler) TaskAdd(writer http.ResponseWriter, request *http.Request) {
	actor, ok := auth.ActorFromContext(request.Context())
	if !ok {
		handler.ResponseManager.RespondWithError(writer, http.StatusUnauthorized, "No actor", nil)
		return
	}

	task := Task{}
	err := json.NewDecoder(request.Body).Decode(&task)
	if err != nil {
		handler.ResponseManager.RespondWithError(writer, http.StatusBadRequest, "Wrong format", err)
		return
	}

	v := validator.New()
	err = v.Struct(task)
	if err != nil {
		for _, e := range err.(validator.ValidationErrors) {
			handler.ResponseManager.RespondWithError(writer, http.StatusBadRequest, e.Error(), e)
			return
		}
	}

	err = handler.Engine.CreateTask(request.Context(), actor, &task)
	if err != nil {
		handler.ResponseManager.RespondWithEngineError(writer, err)
		return
	}

	handler.ResponseManager.RespondWithStatus(writer, &task, http.StatusCreated)
}

// TaskGet returns the task aggregate with its subtasks, roll-ups and the
// capability computed for the requesting actor
func (handler *Handler) TaskGet(writer http.ResponseWriter, request *http.Request) {
	actor, ok := auth.ActorFromContext(request.Context())
	if !ok {
		handler.ResponseManager.RespondWithError(writer, http.StatusUnauthorized, "No actor", nil)
		return
	}
	taskID := mux.Vars(request)["taskID"]

	view, err := handler.Engine.GetTask(request.Context(), actor, taskID)
	if err != nil {
		handler.ResponseManager.RespondWithEngineError(writer, err)
		return
	}

	handler.ResponseManager.Respond(writer, view)
}

// TaskUpdate is the route for updating a task
func (handler *Handler) TaskUpdate(writer http.ResponseWriter, request *http.Request) {
	actor, ok := auth.ActorFromContext(request.Context())
	if !ok {
		handler.ResponseManager.RespondWithError(writer, http.StatusUnauthorized, "No actor", nil)
		return
	}
	taskID := mux.Vars(request)["taskID"]

	patch := TaskPatch{}
	err := json.NewDecoder(request.Body).Decode(&patch)
	if err != nil {
		handler.ResponseManager.RespondWithError(writer, http.StatusBadRequest, "Wrong format", err)
		return
	}

	view, err := handler.Engine.UpdateTask(request.Context(), actor, taskID, &patch)
	if err != nil {
		handler.ResponseManager.RespondWithEngineError(writer, err)
		return
	}

	handler.ResponseManager.Respond(writer, view)
}

// TaskDelete moves a task into the recycle bin
func (handler *Handler) TaskDelete(writer http.ResponseWriter, request *http.Request) {
	actor, ok := auth.ActorFromContext(request.Context())
	if !ok {
		handler.ResponseManager.RespondWithError(writer, http.StatusUnauthorized, "No actor", nil)
		return
	}
	taskID := mux.Vars(request)["taskID"]

	var clientVersion *int64
	versionPayload := struct {
		Version *int64 `json:"version"`
	}{}
	if request.Body != nil {
		// the body is optional for deletes
		_ = json.NewDecoder(request.Body).Decode(&versionPayload)
		clientVersion = versionPayload.Version
	}

	err := handler.Engine.DeleteTask(request.Context(), actor, taskID, clientVersion)
	if err != nil {
		handler.ResponseManager.RespondWithEngineError(writer, err)
		return
	}

	handler.ResponseManager.RespondWithNoContent(writer)
}

// SubtaskAdd appends a subtask to a task
func (handler *Handler) SubtaskAdd(writer http.ResponseWriter, request *http.Request) {
	actor, ok := auth.ActorFromContext(request.Context())
	if !ok {
		handler.ResponseManager.RespondWithError(writer, http.StatusUnauthorized, "No actor", nil)
		return
	}
	taskID := mux.Vars(request)["taskID"]

	payload := SubtaskCreate{}
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

	view, err := handler.Engine.AddSubtask(request.Context(), actor, taskID, &payload)
	if err != nil {
		handler.ResponseManager.RespondWithEngineError(writer, err)
		return
	}

	handler.ResponseManager.RespondWithStatus(writer, view, http.StatusCreated)
}

// SubtaskUpdate edits a subtask
func (handler *Handler) SubtaskUpdate(writer http.ResponseWriter, request *http.Request) {
	actor, ok := auth.ActorFromContext(request.Context())
	if !ok {
		handler.ResponseManager.RespondWithError(writer, http.StatusUnauthorized, "No actor", nil)
		return
	}
	taskID := mux.Vars(request)["taskID"]
	subtaskID := mux.Vars(request)["subtaskID"]

	patch := SubtaskPatch{}
	err := json.NewDecoder(request.Body).Decode(&patch)
	if err != nil {
		handler.ResponseManager.RespondWithError(writer, http.StatusBadRequest, "Wrong format", err)
		return
	}

	view, err := handler.Engine.UpdateSubtask(request.Context(), actor, taskID, subtaskID, &patch)
	if err != nil {
		handler.ResponseManager.RespondWithEngineError(writer, err)
		return
	}

	handler.ResponseManager.Respond(writer, view)
}

// SubtaskDelete removes a subtask without time logged against it
func (handler *Handler) SubtaskDelete(writer http.ResponseWriter, request *http.Request) {
	actor, ok := auth.ActorFromContext(request.Context())
	if !ok {
		handler.ResponseManager.RespondWithError(writer, http.StatusUnauthorized, "No actor", nil)
		return
	}
	taskID := mux.Vars(request)["taskID"]
	subtaskID := mux.Vars(request)["subtaskID"]

	var clientVersion *int64
	versionPayload := struct {
		Version *int64 `json:"version"`
	}{}
	if request.Body != nil {
		_ = json.NewDecoder(request.Body).Decode(&versionPayload)
		clientVersion = versionPayload.Version
	}

	view, err := handler.Engine.DeleteSubtask(request.Context(), actor, taskID, subtaskID, clientVersion)
	if err != nil {
		handler.ResponseManager.RespondWithEngineError(writer, err)
		return
	}

	handler.ResponseManager.Respond(writer, view)
}

// SubtaskReorder moves a subtask one step up or down
func (handler *Handler) SubtaskReorder(writer http.ResponseWriter, request *http.Request) {
	actor, ok := auth.ActorFromContext(request.Context())
	if !ok {
		handler.ResponseManager.RespondWithError(writer, http.StatusUnauthorized, "No actor", nil)
		return
	}
	taskID := mux.Vars(request)["taskID"]
	subtaskID := mux.Vars(request)["subtaskID"]

	payload := struct {
		Direction ReorderDirection `json:"direction" validate:"required"`
		Version   *int64           `json:"version"`
	}{}
	err := json.NewDecoder(request.Body).Decode(&payload)
	if err != nil {
		handler.ResponseManager.RespondWithError(writer, http.StatusBadRequest, "Wrong format", err)
		return
	}

	view, err := handler.Engine.MoveSubtask(request.Context(), actor, taskID, subtaskID, payload.Direction, payload.Version)
	if err != nil {
		handler.ResponseManager.RespondWithEngineError(writer, err)
		return
	}

	handler.ResponseManager.Respond(writer, view)
}
