package handlers

import (
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	pipelinesvc "github.com/Ramsey-B/aster/internal/services/pipeline"
	"github.com/Ramsey-B/aster/pkg/models"
	"github.com/Ramsey-B/aster/pkg/utils"
)

// PipelineHandler handles pipeline and stage arrangement operations
type PipelineHandler struct {
	service *pipelinesvc.Service
	logger  ectologger.Logger
}

// NewPipelineHandler creates a new pipeline handler
func NewPipelineHandler(service *pipelinesvc.Service, logger ectologger.Logger) *PipelineHandler {
	return &PipelineHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers pipeline routes
func (h *PipelineHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/pipelines", h.ListPipelines)
	g.POST("/pipelines", h.CreatePipeline)
	g.GET("/pipelines/:pipeline_id", h.GetPipeline)
	g.PATCH("/pipelines/:pipeline_id", h.UpdatePipeline)
	g.DELETE("/pipelines/:pipeline_id", h.DeletePipeline)

	g.POST("/pipelines/:pipeline_id/stages", h.CreateStage)
	g.POST("/pipelines/:pipeline_id/stages/insert-after", h.InsertStageAfter)
	g.PATCH("/pipelines/:pipeline_id/stages/reorder", h.ReorderStages)
}

// CreatePipelineRequest is the request body for creating a pipeline
type CreatePipelineRequest struct {
	Name        string               `json:"name" validate:"required"`
	Description string               `json:"description"`
	IsDefault   bool                 `json:"is_default"`
	Stages      []CreateStageRequest `json:"stages" validate:"omitempty,dive"`
}

// CreateStageRequest is the request body for creating a stage
type CreateStageRequest struct {
	Name  string           `json:"name" validate:"required"`
	Order int              `json:"order" validate:"gte=0"`
	Color string           `json:"color"`
	Type  models.StageType `json:"type" validate:"omitempty,oneof=OPEN WON LOST"`
}

// InsertStageAfterRequest is the request body for inserting a stage after another
type InsertStageAfterRequest struct {
	AfterStageID string           `json:"after_stage_id" validate:"required,uuid"`
	Name         string           `json:"name" validate:"required"`
	Color        string           `json:"color"`
	Type         models.StageType `json:"type" validate:"omitempty,oneof=OPEN WON LOST"`
}

// ReorderStagesRequest is the request body for reordering a pipeline's stages
type ReorderStagesRequest struct {
	Stages []models.StageOrder `json:"stages" validate:"required,min=1,dive"`
}

// UpdatePipelineRequest is the request body for updating a pipeline
type UpdatePipelineRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	IsDefault   bool   `json:"is_default"`
	IsActive    *bool  `json:"is_active"`
}

// ListPipelines returns the tenant's pipelines with their stages.
// Pass ?active=true to omit archived pipelines.
func (h *PipelineHandler) ListPipelines(c echo.Context) error {
	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	activeOnly := c.QueryParam("active") == "true"

	pipelines, err := h.service.ListPipelines(c.Request().Context(), tenantID, activeOnly)
	if err != nil {
		return err
	}

	return SuccessResponse(c, pipelines)
}

// GetPipeline returns a single pipeline with its stages
func (h *PipelineHandler) GetPipeline(c echo.Context) error {
	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	pipelineID, err := ParseUUID(c, "pipeline_id")
	if err != nil {
		return err
	}

	pipeline, err := h.service.GetPipeline(c.Request().Context(), tenantID, pipelineID)
	if err != nil {
		return err
	}

	return SuccessResponse(c, pipeline)
}

// CreatePipeline creates a pipeline, optionally with its initial stages
func (h *PipelineHandler) CreatePipeline(c echo.Context) error {
	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[CreatePipelineRequest](c)
	if err != nil {
		return err
	}

	pipeline := &models.Pipeline{
		TenantID:    tenantID,
		Name:        req.Name,
		Description: req.Description,
		IsDefault:   req.IsDefault,
	}
	for _, st := range req.Stages {
		pipeline.Stages = append(pipeline.Stages, &models.Stage{
			Name:  st.Name,
			Color: st.Color,
			Type:  st.Type,
		})
	}

	created, err := h.service.CreatePipeline(c.Request().Context(), pipeline)
	if err != nil {
		return err
	}

	return CreatedResponse(c, created)
}

// UpdatePipeline updates a pipeline's own fields
func (h *PipelineHandler) UpdatePipeline(c echo.Context) error {
	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	pipelineID, err := ParseUUID(c, "pipeline_id")
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[UpdatePipelineRequest](c)
	if err != nil {
		return err
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	updated, err := h.service.UpdatePipeline(c.Request().Context(), &models.Pipeline{
		ID:          pipelineID,
		TenantID:    tenantID,
		Name:        req.Name,
		Description: req.Description,
		IsDefault:   req.IsDefault,
		IsActive:    isActive,
	})
	if err != nil {
		return err
	}

	return SuccessResponse(c, updated)
}

// DeletePipeline deletes a pipeline and its stages
func (h *PipelineHandler) DeletePipeline(c echo.Context) error {
	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	pipelineID, err := ParseUUID(c, "pipeline_id")
	if err != nil {
		return err
	}

	if err := h.service.DeletePipeline(c.Request().Context(), tenantID, pipelineID); err != nil {
		return err
	}

	return NoContentResponse(c)
}

// CreateStage adds a stage to a pipeline at an explicit order
func (h *PipelineHandler) CreateStage(c echo.Context) error {
	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	pipelineID, err := ParseUUID(c, "pipeline_id")
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[CreateStageRequest](c)
	if err != nil {
		return err
	}

	created, err := h.service.CreateStage(c.Request().Context(), &models.Stage{
		TenantID:   tenantID,
		PipelineID: pipelineID,
		Name:       req.Name,
		Order:      req.Order,
		Color:      req.Color,
		Type:       req.Type,
	})
	if err != nil {
		return err
	}

	return CreatedResponse(c, created)
}

// InsertStageAfter inserts a stage directly after an existing one
func (h *PipelineHandler) InsertStageAfter(c echo.Context) error {
	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	pipelineID, err := ParseUUID(c, "pipeline_id")
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[InsertStageAfterRequest](c)
	if err != nil {
		return err
	}

	created, err := h.service.InsertStageAfter(c.Request().Context(), &models.Stage{
		TenantID:   tenantID,
		PipelineID: pipelineID,
		Name:       req.Name,
		Color:      req.Color,
		Type:       req.Type,
	}, req.AfterStageID)
	if err != nil {
		return err
	}

	return CreatedResponse(c, created)
}

// ReorderStages rewrites the pipeline's stage arrangement atomically and
// returns the pipeline with its stages re-read in the final order
func (h *PipelineHandler) ReorderStages(c echo.Context) error {
	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	pipelineID, err := ParseUUID(c, "pipeline_id")
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[ReorderStagesRequest](c)
	if err != nil {
		return err
	}

	if err := h.service.ReorderStages(c.Request().Context(), tenantID, pipelineID, req.Stages); err != nil {
		return err
	}

	pipeline, err := h.service.GetPipeline(c.Request().Context(), tenantID, pipelineID)
	if err != nil {
		return err
	}

	return SuccessResponse(c, pipeline)
}
