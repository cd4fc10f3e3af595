package handler

import (
	"net/http"

	"github.com/dgappsadmin/OpEx-Main-sub000/internal/middleware"
	"github.com/dgappsadmin/OpEx-Main-sub000/internal/service"
	"github.com/dgappsadmin/OpEx-Main-sub000/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type MonitoringHandler struct {
	monitoringService service.MonitoringService
}

func NewMonitoringHandler(monitoringService service.MonitoringService) *MonitoringHandler {
	return &MonitoringHandler{monitoringService: monitoringService}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *MonitoringHandler) RegisterRoutes(router *gin.RouterGroup) {
	monitoring := router.Group("/monitoring", middleware.RequireAuth())
	{
		monitoring.GET("/initiatives/:id", h.ListEntries)
		monitoring.GET("/initiatives/:id/finalized", h.AreAllFinalized)
		monitoring.POST("/initiatives/:id", h.CreateEntry)
		monitoring.POST("/initiatives/:id/batch-approve", h.BatchApprove)
		monitoring.PUT("/:id", h.UpdateEntry)
		monitoring.PATCH("/:id/finalize", h.SetFinalized)
		monitoring.DELETE("/:id", h.DeleteEntry)
	}
}

// CreateEntry handles POST /monitoring/initiatives/:id
// @Summary      Create monitoring entry
// @Description  Adds a monthly KPI savings record to an initiative at the savings monitoring stage
// @Tags         monitoring
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                                true  "Initiative ID"
// @Param        payload  body      service.CreateMonitoringEntryRequest  true  "Create Entry Payload"
// @Success      201      {object}  response.Response{data=service.MonitoringEntryResponse}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /monitoring/initiatives/{id} [post]
func (h *MonitoringHandler) CreateEntry(c *gin.Context) {
	initiativeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid initiative ID"))
		return
	}

	actor, err := middleware.CurrentActor(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
		return
	}

	var req service.CreateMonitoringEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	entry, err := h.monitoringService.CreateEntry(c.Request.Context(), actor, initiativeID, req)
	if err != nil {
		mapWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, entry))
}

// ListEntries handles GET /monitoring/initiatives/:id
// @Summary      List monitoring entries
// @Description  Returns every monthly monitoring entry of an initiative ordered by month
// @Tags         monitoring
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Initiative ID"
// @Success      200  {object}  response.Response{data=[]service.MonitoringEntryResponse}
// @Router       /monitoring/initiatives/{id} [get]
func (h *MonitoringHandler) ListEntries(c *gin.Context) {
	initiativeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid initiative ID"))
		return
	}

	entries, err := h.monitoringService.ListEntries(c.Request.Context(), initiativeID)
	if err != nil {
		mapWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, entries))
}

// AreAllFinalized handles GET /monitoring/initiatives/:id/finalized
// @Summary      Monitoring gate status
// @Description  Reports whether every monitoring entry is finalized (the stage-9 approval gate)
// @Tags         monitoring
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Initiative ID"
// @Success      200  {object}  response.Response{data=object}
// @Router       /monitoring/initiatives/{id}/finalized [get]
func (h *MonitoringHandler) AreAllFinalized(c *gin.Context) {
	initiativeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid initiative ID"))
		return
	}

	finalized, err := h.monitoringService.AreAllEntriesFinalized(c.Request.Context(), initiativeID)
	if err != nil {
		mapWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"all_finalized": finalized,
	}))
}

// UpdateEntry handles PUT /monitoring/:id
// @Summary      Update monitoring entry
// @Description  Updates a non-finalized monitoring entry and recomputes its deviation fields
// @Tags         monitoring
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                                true  "Entry ID"
// @Param        payload  body      service.UpdateMonitoringEntryRequest  true  "Update Entry Payload"
// @Success      200      {object}  response.Response{data=service.MonitoringEntryResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /monitoring/{id} [put]
func (h *MonitoringHandler) UpdateEntry(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid entry ID"))
		return
	}

	actor, err := middleware.CurrentActor(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
		return
	}

	var req service.UpdateMonitoringEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	entry, err := h.monitoringService.UpdateEntry(c.Request.Context(), actor, id, req)
	if err != nil {
		mapWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, entry))
}

type setFinalizedRequest struct {
	Finalized *bool `json:"finalized" binding:"required"`
}

// SetFinalized handles PATCH /monitoring/:id/finalize
// @Summary      Finalize monitoring entry
// @Description  Marks an entry finalized (or reverts it while not yet F&A-approved)
// @Tags         monitoring
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string  true  "Entry ID"
// @Param        payload  body      object  true  "Finalized flag"
// @Success      200      {object}  response.Response{data=service.MonitoringEntryResponse}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /monitoring/{id}/finalize [patch]
func (h *MonitoringHandler) SetFinalized(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid entry ID"))
		return
	}

	actor, err := middleware.CurrentActor(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
		return
	}

	var req setFinalizedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	entry, err := h.monitoringService.SetFinalized(c.Request.Context(), actor, id, *req.Finalized)
	if err != nil {
		mapWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, entry))
}

// BatchApprove handles POST /monitoring/initiatives/:id/batch-approve
// @Summary      Batch F&A approval
// @Description  Applies F&A approval to a set of finalized monitoring entries ahead of the stage-10 action
// @Tags         monitoring
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                       true  "Initiative ID"
// @Param        payload  body      service.BatchApproveRequest  true  "Batch Approve Payload"
// @Success      200      {object}  response.Response{data=[]service.MonitoringEntryResponse}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /monitoring/initiatives/{id}/batch-approve [post]
func (h *MonitoringHandler) BatchApprove(c *gin.Context) {
	initiativeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid initiative ID"))
		return
	}

	actor, err := middleware.CurrentActor(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
		return
	}

	var req service.BatchApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	entries, err := h.monitoringService.BatchApprove(c.Request.Context(), actor, initiativeID, req)
	if err != nil {
		mapWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, entries))
}

// DeleteEntry handles DELETE /monitoring/:id
// @Summary      Delete monitoring entry
// @Description  Removes a non-finalized monitoring entry
// @Tags         monitoring
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Entry ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /monitoring/{id} [delete]
func (h *MonitoringHandler) DeleteEntry(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid entry ID"))
		return
	}

	actor, err := middleware.CurrentActor(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
		return
	}

	if err := h.monitoringService.DeleteEntry(c.Request.Context(), actor, id); err != nil {
		mapWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Monitoring entry deleted"))
}
