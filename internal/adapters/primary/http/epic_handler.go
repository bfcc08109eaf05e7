package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lorrc/taskboard-backend/internal/adapters/primary/validation"
	"github.com/lorrc/taskboard-backend/internal/core/domain"
	"github.com/lorrc/taskboard-backend/internal/core/ports"
)

// EpicHandler handles HTTP requests for epics
type EpicHandler struct {
	epicService  ports.EpicService
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

func NewEpicHandler(epicService ports.EpicService, errorHandler *ErrorHandler, logger *slog.Logger) *EpicHandler {
	return &EpicHandler{
		epicService:  epicService,
		errorHandler: errorHandler,
		logger:       logger.With("handler", "epic"),
	}
}

func (h *EpicHandler) RegisterRoutes(r chi.Router) {
	r.Get("/{epicID}", h.HandleGetEpic)
	r.Patch("/{epicID}", h.HandleUpdateEpic)
}

// EpicDTO defines the JSON response for epics.
type EpicDTO struct {
	ID             string            `json:"id"`
	OrganizationID string            `json:"organizationId"`
	TeamID         *string           `json:"teamId,omitempty"`
	Title          string            `json:"title"`
	Status         domain.TaskStatus `json:"status"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      *time.Time        `json:"updatedAt,omitempty"`
}

func toEpicDTO(e *domain.Epic) EpicDTO {
	return EpicDTO{
		ID:             e.ID,
		OrganizationID: e.OrganizationID,
		TeamID:         e.TeamID,
		Title:          e.Title,
		Status:         e.Status,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

type UpdateEpicRequest struct {
	Title  *string `json:"title"`
	Status *string `json:"status"`
}

func (r *UpdateEpicRequest) Validate() error {
	v := validation.NewValidator()
	if r.Title != nil {
		v.Required("title", *r.Title).MaxLength("title", *r.Title, domain.MaxTitleLength)
	}
	if r.Status != nil {
		v.Required("status", *r.Status).OneOf("status", *r.Status, statusNames())
	}
	v.Custom("body", r.Title != nil || r.Status != nil, "At least one of title or status is required")
	if v.HasErrors() {
		return v.Errors()
	}
	return nil
}

// HandleGetEpic handles GET /epics/{epicID}
func (h *EpicHandler) HandleGetEpic(w http.ResponseWriter, r *http.Request) {
	claims, ok := getClaims(w, r)
	if !ok {
		return
	}

	epic, err := h.epicService.GetEpic(r.Context(), chi.URLParam(r, "epicID"), claims.UserID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, toEpicDTO(epic))
}

// HandleUpdateEpic handles PATCH /epics/{epicID}
func (h *EpicHandler) HandleUpdateEpic(w http.ResponseWriter, r *http.Request) {
	claims, ok := getClaims(w, r)
	if !ok {
		return
	}

	req, err := validation.DecodeJSON[UpdateEpicRequest](w, r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	changes := domain.EpicChanges{Title: req.Title}
	if req.Status != nil {
		status := domain.TaskStatus(*req.Status)
		changes.Status = &status
	}

	epic, err := h.epicService.UpdateEpic(r.Context(), ports.UpdateEpicParams{
		EpicID:  chi.URLParam(r, "epicID"),
		ActorID: claims.UserID,
		Changes: changes,
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "epic updated", "epic_id", epic.ID)

	WriteJSON(w, http.StatusOK, toEpicDTO(epic))
}
