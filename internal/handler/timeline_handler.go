package handler

import (
	"net/http"

	"github.com/dgappsadmin/OpEx-Main-sub000/internal/middleware"
	"github.com/dgappsadmin/OpEx-Main-sub000/internal/service"
	"github.com/dgappsadmin/OpEx-Main-sub000/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type TimelineHandler struct {
	timelineService service.TimelineService
}

func NewTimelineHandler(timelineService service.TimelineService) *TimelineHandler {
	return &TimelineHandler{timelineService: timelineService}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *TimelineHandler) RegisterRoutes(router *gin.RouterGroup) {
	timeline := router.Group("/timeline", middleware.RequireAuth())
	{
		timeline.GET("/initiatives/:id", h.ListEntries)
		timeline.GET("/initiatives/:id/completed", h.AreAllCompleted)
		timeline.POST("/initiatives/:id", h.CreateEntry)
		timeline.PUT("/:id", h.UpdateEntry)
		timeline.DELETE("/:id", h.DeleteEntry)
	}
}

// CreateEntry handles POST /timeline/initiatives/:id
// @Summary      Create timeline entry
// @Description  Adds a planned activity to an initiative at the timeline stage
// @Tags         timeline
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                              true  "Initiative ID"
// @Param        payload  body      service.CreateTimelineEntryRequest  true  "Create Entry Payload"
// @Success      201      {object}  response.Response{data=service.TimelineEntryResponse}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /timeline/initiatives/{id} [post]
func (h *TimelineHandler) CreateEntry(c *gin.Context) {
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

	var req service.CreateTimelineEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	entry, err := h.timelineService.CreateEntry(c.Request.Context(), actor, initiativeID, req)
	if err != nil {
		mapWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, entry))
}

// ListEntries handles GET /timeline/initiatives/:id
// @Summary      List timeline entries
// @Description  Returns every timeline entry of an initiative
// @Tags         timeline
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Initiative ID"
// @Success      200  {object}  response.Response{data=[]service.TimelineEntryResponse}
// @Router       /timeline/initiatives/{id} [get]
func (h *TimelineHandler) ListEntries(c *gin.Context) {
	initiativeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid initiative ID"))
		return
	}

	entries, err := h.timelineService.ListEntries(c.Request.Context(), initiativeID)
	if err != nil {
		mapWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, entries))
}

// AreAllCompleted handles GET /timeline/initiatives/:id/completed
// @Summary      Timeline gate status
// @Description  Reports whether every timeline entry is completed (the stage-6 approval gate)
// @Tags         timeline
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Initiative ID"
// @Success      200  {object}  response.Response{data=object}
// @Router       /timeline/initiatives/{id}/completed [get]
func (h *TimelineHandler) AreAllCompleted(c *gin.Context) {
	initiativeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid initiative ID"))
		return
	}

	completed, err := h.timelineService.AreAllEntriesCompleted(c.Request.Context(), initiativeID)
	if err != nil {
		mapWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"all_completed": completed,
	}))
}

// UpdateEntry handles PUT /timeline/:id
// @Summary      Update timeline entry
// @Description  Updates a timeline entry's plan, actuals, status, or approvals
// @Tags         timeline
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                              true  "Entry ID"
// @Param        payload  body      service.UpdateTimelineEntryRequest  true  "Update Entry Payload"
// @Success      200      {object}  response.Response{data=service.TimelineEntryResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /timeline/{id} [put]
func (h *TimelineHandler) UpdateEntry(c *gin.Context) {
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

	var req service.UpdateTimelineEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	entry, err := h.timelineService.UpdateEntry(c.Request.Context(), actor, id, req)
	if err != nil {
		mapWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, entry))
}

// DeleteEntry handles DELETE /timeline/:id
// @Summary      Delete timeline entry
// @Description  Removes a timeline entry while the initiative is still at the timeline stage
// @Tags         timeline
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Entry ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /timeline/{id} [delete]
func (h *TimelineHandler) DeleteEntry(c *gin.Context) {
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

	if err := h.timelineService.DeleteEntry(c.Request.Context(), actor, id); err != nil {
		mapWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Timeline entry deleted"))
}
