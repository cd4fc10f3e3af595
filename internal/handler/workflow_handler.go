package handler

import (
	"net/http"

	"github.com/dgappsadmin/OpEx-Main-sub000/internal/middleware"
	"github.com/dgappsadmin/OpEx-Main-sub000/internal/service"
	"github.com/dgappsadmin/OpEx-Main-sub000/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type WorkflowHandler struct {
	workflowService service.WorkflowService
}

func NewWorkflowHandler(workflowService service.WorkflowService) *WorkflowHandler {
	return &WorkflowHandler{workflowService: workflowService}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *WorkflowHandler) RegisterRoutes(router *gin.RouterGroup) {
	workflow := router.Group("/workflow", middleware.RequireAuth())
	{
		workflow.GET("/initiatives/:id/transactions", h.GetTransactions)
		workflow.GET("/initiatives/:id/pending", h.GetPendingTransaction)
		workflow.POST("/process", h.ProcessStageAction)
	}
}

// GetTransactions handles GET /workflow/initiatives/:id/transactions
// @Summary      Get workflow history
// @Description  Returns every workflow transaction of an initiative ordered by stage
// @Tags         workflow
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Initiative ID"
// @Success      200  {object}  response.Response{data=[]service.WorkflowTransactionResponse}
// @Failure      400  {object}  response.Response
// @Router       /workflow/initiatives/{id}/transactions [get]
func (h *WorkflowHandler) GetTransactions(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid initiative ID"))
		return
	}

	txns, err := h.workflowService.GetTransactions(c.Request.Context(), id)
	if err != nil {
		mapWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, txns))
}

// GetPendingTransaction handles GET /workflow/initiatives/:id/pending
// @Summary      Get pending transaction
// @Description  Returns the initiative's pending transaction if the caller may act on it, null otherwise
// @Tags         workflow
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Initiative ID"
// @Success      200  {object}  response.Response{data=service.WorkflowTransactionResponse}
// @Failure      400  {object}  response.Response
// @Router       /workflow/initiatives/{id}/pending [get]
func (h *WorkflowHandler) GetPendingTransaction(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid initiative ID"))
		return
	}

	actor, err := middleware.CurrentActor(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
		return
	}

	txn, err := h.workflowService.GetPendingTransaction(c.Request.Context(), id, actor)
	if err != nil {
		mapWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, txn))
}

// ProcessStageAction handles POST /workflow/process — the single mutating
// entry point of the workflow engine.
// @Summary      Process a stage action
// @Description  Approves, rejects, or drops the pending workflow transaction, advancing or terminating the initiative
// @Tags         workflow
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.ProcessStageActionRequest  true  "Stage Action Payload"
// @Success      200      {object}  response.Response{data=service.StageActionResult}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /workflow/process [post]
func (h *WorkflowHandler) ProcessStageAction(c *gin.Context) {
	actor, err := middleware.CurrentActor(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
		return
	}

	var req service.ProcessStageActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	result, err := h.workflowService.ProcessStageAction(c.Request.Context(), actor, req)
	if err != nil {
		mapWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}
