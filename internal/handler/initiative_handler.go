package handler

import (
	"errors"
	"net/http"

	"github.com/dgappsadmin/OpEx-Main-sub000/internal/middleware"
	"github.com/dgappsadmin/OpEx-Main-sub000/internal/model"
	"github.com/dgappsadmin/OpEx-Main-sub000/internal/repository"
	"github.com/dgappsadmin/OpEx-Main-sub000/internal/service"
	"github.com/dgappsadmin/OpEx-Main-sub000/pkg/pagination"
	"github.com/dgappsadmin/OpEx-Main-sub000/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type InitiativeHandler struct {
	initiativeService service.InitiativeService
}

func NewInitiativeHandler(initiativeService service.InitiativeService) *InitiativeHandler {
	return &InitiativeHandler{initiativeService: initiativeService}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *InitiativeHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/stages", h.ListStages)

	initiatives := router.Group("/initiatives", middleware.RequireAuth())
	{
		initiatives.POST("", h.CreateInitiative)
		initiatives.GET("", h.ListInitiatives)
		initiatives.GET("/:id", h.GetInitiative)
	}
}

// mapWorkflowError translates workflow engine error kinds to HTTP statuses.
// Shared by every handler that calls into the engine.
func mapWorkflowError(c *gin.Context, err error) {
	var gateErr *service.GateError
	switch {
	case errors.As(err, &gateErr):
		c.JSON(http.StatusUnprocessableEntity, response.Error(http.StatusUnprocessableEntity, gateErr.Error()))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
	case errors.Is(err, service.ErrAlreadyProcessed):
		c.JSON(http.StatusConflict, response.Error(http.StatusConflict, err.Error()))
	case errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusForbidden, response.Error(http.StatusForbidden, err.Error()))
	case errors.Is(err, service.ErrCommentRequired), errors.Is(err, service.ErrInvalidPayload):
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
	default:
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
	}
}

// CreateInitiative handles POST /initiatives
// @Summary      Register an initiative
// @Description  Creates an initiative, auto-approves the registration stage, and routes it to the site HOD
// @Tags         initiatives
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateInitiativeRequest  true  "Create Initiative Payload"
// @Success      201      {object}  response.Response{data=service.InitiativeResponse}
// @Failure      400      {object}  response.Response
// @Router       /initiatives [post]
func (h *InitiativeHandler) CreateInitiative(c *gin.Context) {
	actor, err := middleware.CurrentActor(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
		return
	}

	var req service.CreateInitiativeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	initiative, err := h.initiativeService.CreateInitiative(c.Request.Context(), actor, req)
	if err != nil {
		mapWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, initiative))
}

// ListInitiatives handles GET /initiatives with filter and pagination controls
// @Summary      List initiatives
// @Description  Retrieves a paginated list of initiatives, optionally filtered by status, site, and discipline
// @Tags         initiatives
// @Produce      json
// @Security     BearerAuth
// @Param        status      query     string  false  "Status filter"
// @Param        site        query     string  false  "Site code filter"
// @Param        discipline  query     string  false  "Discipline code filter"
// @Param        page        query     int     false  "Page number (default 1)"
// @Param        limit       query     int     false  "Number of items per page (default 10)"
// @Success      200         {object}  response.Response{data=object}
// @Failure      500         {object}  response.Response
// @Router       /initiatives [get]
func (h *InitiativeHandler) ListInitiatives(c *gin.Context) {
	p := pagination.Parse(c)

	filter := repository.InitiativeFilter{
		Status:     c.Query("status"),
		Site:       c.Query("site"),
		Discipline: c.Query("discipline"),
		Page:       p.Page,
		Limit:      p.Limit,
	}

	initiatives, total, err := h.initiativeService.ListInitiatives(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to fetch initiatives"))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"initiatives": initiatives,
		"total":       total,
		"page":        p.Page,
		"limit":       p.Limit,
	}))
}

// GetInitiative handles GET /initiatives/:id
// @Summary      Get initiative by ID
// @Description  Fetch a single initiative's detail by its UUID
// @Tags         initiatives
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Initiative ID"
// @Success      200  {object}  response.Response{data=service.InitiativeResponse}
// @Failure      404  {object}  response.Response
// @Router       /initiatives/{id} [get]
func (h *InitiativeHandler) GetInitiative(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid initiative ID"))
		return
	}

	initiative, err := h.initiativeService.GetInitiative(c.Request.Context(), id)
	if err != nil {
		mapWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, initiative))
}

// ListStages handles GET /stages — the static stage catalog
// @Summary      List workflow stages
// @Description  Returns the ordered stage catalog with role and action availability per stage
// @Tags         initiatives
// @Produce      json
// @Success      200  {object}  response.Response{data=[]model.StageDefinition}
// @Router       /stages [get]
func (h *InitiativeHandler) ListStages(c *gin.Context) {
	c.JSON(http.StatusOK, response.Success(http.StatusOK, model.StageCatalog()))
}
