package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/lorrc/taskboard-backend/internal/adapters/primary/http/middleware"
	"github.com/lorrc/taskboard-backend/internal/adapters/primary/validation"
	"github.com/lorrc/taskboard-backend/internal/auth"
	"github.com/lorrc/taskboard-backend/internal/core/domain"
	"github.com/lorrc/taskboard-backend/internal/core/ports"
)

// TaskHandler handles HTTP requests for tasks
type TaskHandler struct {
	taskService  ports.TaskService
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(
	taskService ports.TaskService,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *TaskHandler {
	return &TaskHandler{
		taskService:  taskService,
		errorHandler: errorHandler,
		logger:       logger.With("handler", "task"),
	}
}

// RegisterTeamRoutes mounts the team-scoped task collection.
func (h *TaskHandler) RegisterTeamRoutes(r chi.Router) {
	r.Get("/{teamID}/tasks", h.HandleListTasks)
	r.Post("/{teamID}/tasks", h.HandleCreateTask)
}

// RegisterRoutes sets up the routing for single-task endpoints.
func (h *TaskHandler) RegisterRoutes(r chi.Router) {
	r.Route("/{taskID}", func(r chi.Router) {
		r.Get("/", h.HandleGetTask)
		r.Patch("/", h.HandleUpdateTask)
		r.Delete("/", h.HandleDeleteTask)
	})
}

// --- Request DTOs ---

// CreateTaskRequest defines the expected JSON body for creating a task
type CreateTaskRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
	EpicID      *string `json:"epicId"`
}

// Validate validates the create task request
func (r *CreateTaskRequest) Validate() error {
	v := validation.NewValidator()

	v.Required("title", r.Title).
		MaxLength("title", r.Title, domain.MaxTitleLength)
	v.MaxLength("description", r.Description, domain.MaxDescriptionLength)
	v.OneOf("status", r.Status, statusNames())
	if r.EpicID != nil {
		v.Required("epicId", *r.EpicID).UUID("epicId", *r.EpicID)
	}

	if v.HasErrors() {
		return v.Errors()
	}
	return nil
}

// UpdateTaskRequest carries the fields to change; omitted fields stay as they are.
type UpdateTaskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
}

// Validate validates the update task request
func (r *UpdateTaskRequest) Validate() error {
	v := validation.NewValidator()

	if r.Title != nil {
		v.Required("title", *r.Title).MaxLength("title", *r.Title, domain.MaxTitleLength)
	}
	if r.Description != nil {
		v.MaxLength("description", *r.Description, domain.MaxDescriptionLength)
	}
	if r.Status != nil {
		v.Required("status", *r.Status).OneOf("status", *r.Status, statusNames())
	}

	if v.HasErrors() {
		return v.Errors()
	}
	return nil
}

func (r *UpdateTaskRequest) changes() domain.TaskChanges {
	changes := domain.TaskChanges{Title: r.Title, Description: r.Description}
	if r.Status != nil {
		status := domain.TaskStatus(*r.Status)
		changes.Status = &status
	}
	return changes
}

func statusNames() []string {
	names := make([]string, len(domain.TaskStatuses))
	for i, s := range domain.TaskStatuses {
		names[i] = string(s)
	}
	return names
}

func toTaskDTOs(tasks []*domain.Task) []domain.TaskSnapshot {
	out := make([]domain.TaskSnapshot, len(tasks))
	for i, t := range tasks {
		out[i] = t.Snapshot()
	}
	return out
}

// --- Handlers ---

// HandleListTasks handles GET /teams/{teamID}/tasks. Clients call it after
// every reconnect to catch up on changes missed while offline.
func (h *TaskHandler) HandleListTasks(w http.ResponseWriter, r *http.Request) {
	claims, ok := getClaims(w, r)
	if !ok {
		return
	}

	tasks, err := h.taskService.ListTeamTasks(r.Context(), chi.URLParam(r, "teamID"), claims.UserID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteList(w, toTaskDTOs(tasks))
}

// HandleCreateTask handles POST /teams/{teamID}/tasks
func (h *TaskHandler) HandleCreateTask(w http.ResponseWriter, r *http.Request) {
	claims, ok := getClaims(w, r)
	if !ok {
		return
	}

	req, err := validation.DecodeJSON[CreateTaskRequest](w, r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	task, err := h.taskService.CreateTask(r.Context(), ports.CreateTaskParams{
		TeamID:      chi.URLParam(r, "teamID"),
		EpicID:      req.EpicID,
		Title:       req.Title,
		Description: req.Description,
		Status:      domain.TaskStatus(req.Status),
		ActorID:     claims.UserID,
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "task created", "task_id", task.ID, "team_id", task.TeamID)

	WriteCreated(w, task.Snapshot())
}

// HandleGetTask handles GET /tasks/{taskID}
func (h *TaskHandler) HandleGetTask(w http.ResponseWriter, r *http.Request) {
	claims, ok := getClaims(w, r)
	if !ok {
		return
	}

	task, err := h.taskService.GetTask(r.Context(), chi.URLParam(r, "taskID"), claims.UserID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, task.Snapshot())
}

// HandleUpdateTask handles PATCH /tasks/{taskID}
func (h *TaskHandler) HandleUpdateTask(w http.ResponseWriter, r *http.Request) {
	claims, ok := getClaims(w, r)
	if !ok {
		return
	}

	req, err := validation.DecodeJSON[UpdateTaskRequest](w, r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	task, err := h.taskService.UpdateTask(r.Context(), ports.UpdateTaskParams{
		TaskID:  chi.URLParam(r, "taskID"),
		ActorID: claims.UserID,
		Changes: req.changes(),
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "task updated", "task_id", task.ID, "status", task.Status)

	WriteJSON(w, http.StatusOK, task.Snapshot())
}

// HandleDeleteTask handles DELETE /tasks/{taskID}
func (h *TaskHandler) HandleDeleteTask(w http.ResponseWriter, r *http.Request) {
	claims, ok := getClaims(w, r)
	if !ok {
		return
	}

	taskID := chi.URLParam(r, "taskID")
	if err := h.taskService.DeleteTask(r.Context(), taskID, claims.UserID); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "task deleted", "task_id", taskID)

	WriteNoContent(w)
}

// getClaims extracts user claims from the request context
func getClaims(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	claims, ok := mw.ClaimsFromContext(r.Context())
	if !ok {
		WriteJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error: "Not authorized",
			Code:  "UNAUTHORIZED",
		})
		return nil, false
	}
	return claims, true
}
