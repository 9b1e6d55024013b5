package handlers

import (
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	dealsvc "github.com/Ramsey-B/aster/internal/services/deal"
	"github.com/Ramsey-B/aster/pkg/models"
	"github.com/Ramsey-B/aster/pkg/utils"
)

// DealHandler handles deal operations
type DealHandler struct {
	service *dealsvc.Service
	logger  ectologger.Logger
}

// NewDealHandler creates a new deal handler
func NewDealHandler(service *dealsvc.Service, logger ectologger.Logger) *DealHandler {
	return &DealHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers deal routes
func (h *DealHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/pipelines/:pipeline_id/deals", h.ListDeals)
	g.POST("/deals", h.CreateDeal)
	g.GET("/deals/:deal_id", h.GetDeal)
	g.PATCH("/deals/:deal_id", h.UpdateDeal)
	g.DELETE("/deals/:deal_id", h.DeleteDeal)
	g.GET("/deals/:deal_id/activities", h.ListActivities)
}

// CreateDealRequest is the request body for creating a deal
type CreateDealRequest struct {
	Title           string               `json:"title" validate:"required"`
	Amount          float64              `json:"amount" validate:"gte=0"`
	StageID         string               `json:"stage_id" validate:"required,uuid"`
	AssignedTo      string               `json:"assigned_to" validate:"omitempty,uuid"`
	ContactID       string               `json:"contact_id" validate:"omitempty,uuid"`
	CompanyID       string               `json:"company_id" validate:"omitempty,uuid"`
	Tags            []string             `json:"tags"`
	Tasks           []models.TaskSummary `json:"tasks"`
	ExpectedCloseAt *time.Time           `json:"expected_close_at"`
}

// ListDeals returns every deal on a pipeline's board
func (h *DealHandler) ListDeals(c echo.Context) error {
	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	pipelineID, err := ParseUUID(c, "pipeline_id")
	if err != nil {
		return err
	}

	deals, err := h.service.ListByPipeline(c.Request().Context(), tenantID, pipelineID)
	if err != nil {
		return err
	}

	return SuccessResponse(c, deals)
}

// GetDeal returns a single deal
func (h *DealHandler) GetDeal(c echo.Context) error {
	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	dealID, err := ParseUUID(c, "deal_id")
	if err != nil {
		return err
	}

	deal, err := h.service.GetDeal(c.Request().Context(), tenantID, dealID)
	if err != nil {
		return err
	}

	return SuccessResponse(c, deal)
}

// CreateDeal creates a deal in its starting stage
func (h *DealHandler) CreateDeal(c echo.Context) error {
	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[CreateDealRequest](c)
	if err != nil {
		return err
	}

	created, err := h.service.CreateDeal(c.Request().Context(), GetUserID(c), &models.Deal{
		TenantID:        tenantID,
		Title:           req.Title,
		Amount:          req.Amount,
		StageID:         req.StageID,
		AssignedTo:      req.AssignedTo,
		ContactID:       req.ContactID,
		CompanyID:       req.CompanyID,
		Tags:            req.Tags,
		Tasks:           req.Tasks,
		ExpectedCloseAt: req.ExpectedCloseAt,
	})
	if err != nil {
		return err
	}

	return CreatedResponse(c, created)
}

// UpdateDeal applies a partial update, including stage moves
func (h *DealHandler) UpdateDeal(c echo.Context) error {
	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	dealID, err := ParseUUID(c, "deal_id")
	if err != nil {
		return err
	}

	patch, err := utils.BindRequest[models.DealPatch](c)
	if err != nil {
		return err
	}

	updated, err := h.service.UpdateDeal(c.Request().Context(), tenantID, GetUserID(c), dealID, patch)
	if err != nil {
		return err
	}

	return SuccessResponse(c, updated)
}

// DeleteDeal removes a deal from the board
func (h *DealHandler) DeleteDeal(c echo.Context) error {
	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	dealID, err := ParseUUID(c, "deal_id")
	if err != nil {
		return err
	}

	if err := h.service.DeleteDeal(c.Request().Context(), tenantID, dealID); err != nil {
		return err
	}

	return NoContentResponse(c)
}

// ListActivities returns a deal's timeline, newest first
func (h *DealHandler) ListActivities(c echo.Context) error {
	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	dealID, err := ParseUUID(c, "deal_id")
	if err != nil {
		return err
	}

	activities, err := h.service.ListActivities(c.Request().Context(), tenantID, dealID)
	if err != nil {
		return err
	}

	return SuccessResponse(c, activities)
}
