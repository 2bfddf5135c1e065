// Package dose exposes the dose engine's mutation entry points to the
// route layer: materialize, log, skip, snooze, and the agenda read. No
// scheduling logic lives here.
package dose

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/pawdose/medtrack-api/internal/handler"
	"github.com/pawdose/medtrack-api/internal/middleware"
	"github.com/pawdose/medtrack-api/internal/repository"
	"github.com/pawdose/medtrack-api/internal/service/dosing"
	"github.com/pawdose/medtrack-api/internal/service/materializer"
)

type Handler struct {
	dosing      *dosing.Service
	materialize *materializer.Service
	events      repository.DoseEventRepository
	validate    *validator.Validate
	horizon     time.Duration
}

func NewHandler(dosingSvc *dosing.Service, materializeSvc *materializer.Service, events repository.DoseEventRepository, horizon time.Duration) *Handler {
	return &Handler{
		dosing:      dosingSvc,
		materialize: materializeSvc,
		events:      events,
		validate:    validator.New(),
		horizon:     horizon,
	}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/medications/:id/doses", h.LogDose)
	rg.POST("/medications/:id/materialize", h.Materialize)
	rg.POST("/dose-events/:id/skip", h.SkipDose)
	rg.POST("/dose-events/:id/snooze", h.SnoozeDose)
	rg.GET("/agenda", h.Agenda)
}

type logDoseRequest struct {
	DoseEventID    *uuid.UUID `json:"dose_event_id"`
	LogEntryID     uuid.UUID  `json:"log_entry_id" validate:"required"`
	AdministeredAt *time.Time `json:"administered_at"`
}

func (h *Handler) LogDose(c *gin.Context) {
	medicationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid medication id"))
		return
	}

	var req logDoseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid request body"))
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	administeredAt := time.Now()
	if req.AdministeredAt != nil {
		administeredAt = *req.AdministeredAt
	}

	event, err := h.dosing.LogDose(c.Request.Context(), medicationID, req.DoseEventID, req.LogEntryID, administeredAt)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(event))
}

type materializeRequest struct {
	WindowDays int `json:"window_days" validate:"omitempty,min=1,max=90"`
}

func (h *Handler) Materialize(c *gin.Context) {
	medicationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid medication id"))
		return
	}

	var req materializeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid request body"))
			return
		}
		if err := h.validate.Struct(&req); err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
			return
		}
	}

	window := h.horizon
	if req.WindowDays > 0 {
		window = time.Duration(req.WindowDays) * 24 * time.Hour
	}

	now := time.Now()
	created, err := h.materialize.MaterializeByID(c.Request.Context(), medicationID, now, now.Add(window))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"events_created": created}))
}

func (h *Handler) SkipDose(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid dose event id"))
		return
	}

	event, err := h.dosing.SkipDose(c.Request.Context(), eventID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(event))
}

func (h *Handler) SnoozeDose(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid dose event id"))
		return
	}

	event, err := h.dosing.SnoozeDose(c.Request.Context(), eventID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(event))
}

func (h *Handler) Agenda(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthorized"))
		return
	}

	now := time.Now()
	from, to := now, now.Add(7*24*time.Hour)
	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid from timestamp"))
			return
		}
		from = parsed
	}
	if raw := c.Query("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid to timestamp"))
			return
		}
		to = parsed
	}

	events, err := h.events.ListAgenda(c.Request.Context(), userID, from, to)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(events))
}
