package handlers

import (
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	pipelinesvc "github.com/Ramsey-B/aster/internal/services/pipeline"
	"github.com/Ramsey-B/aster/pkg/models"
	"github.com/Ramsey-B/aster/pkg/utils"
)

// StageHandler handles operations addressed to a single stage
type StageHandler struct {
	service *pipelinesvc.Service
	logger  ectologger.Logger
}

// NewStageHandler creates a new stage handler
func NewStageHandler(service *pipelinesvc.Service, logger ectologger.Logger) *StageHandler {
	return &StageHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers stage routes
func (h *StageHandler) RegisterRoutes(g *echo.Group) {
	g.PATCH("/stages/:stage_id", h.UpdateStage)
	g.DELETE("/stages/:stage_id", h.DeleteStage)
}

// UpdateStageRequest is the request body for updating a stage. Omitted fields
// are left untouched.
type UpdateStageRequest struct {
	Name  *string           `json:"name" validate:"omitempty,min=1"`
	Order *int              `json:"order" validate:"omitempty,gte=0"`
	Color *string           `json:"color"`
	Type  *models.StageType `json:"type" validate:"omitempty,oneof=OPEN WON LOST"`
}

// UpdateStage applies a partial update to a stage
func (h *StageHandler) UpdateStage(c echo.Context) error {
	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	stageID, err := ParseUUID(c, "stage_id")
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[UpdateStageRequest](c)
	if err != nil {
		return err
	}

	updated, err := h.service.UpdateStage(c.Request().Context(), tenantID, stageID, &models.StagePatch{
		Name:  req.Name,
		Order: req.Order,
		Color: req.Color,
		Type:  req.Type,
	})
	if err != nil {
		return err
	}

	return SuccessResponse(c, updated)
}

// DeleteStage deletes a stage. Stages still holding deals are rejected.
func (h *StageHandler) DeleteStage(c echo.Context) error {
	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	stageID, err := ParseUUID(c, "stage_id")
	if err != nil {
		return err
	}

	if err := h.service.DeleteStage(c.Request().Context(), tenantID, stageID); err != nil {
		return err
	}

	return NoContentResponse(c)
}
