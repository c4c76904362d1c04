package handler

import (
	"net/http"

	"github.com/yashturmbekar/PMCRMS-sub002/internal/middleware"
	"github.com/yashturmbekar/PMCRMS-sub002/internal/model"
	"github.com/yashturmbekar/PMCRMS-sub002/internal/service"
	"github.com/yashturmbekar/PMCRMS-sub002/pkg/pagination"
	"github.com/yashturmbekar/PMCRMS-sub002/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ApplicationHandler struct {
	workflowService service.WorkflowService
}

// NewApplicationHandler sets up the routing dependencies for application endpoints
func NewApplicationHandler(workflowService service.WorkflowService) *ApplicationHandler {
	return &ApplicationHandler{workflowService: workflowService}
}

func (h *ApplicationHandler) RegisterRoutes(router *gin.RouterGroup) {
	apps := router.Group("/applications")
	{
		// Applicant-facing submission is unauthenticated
		apps.POST("", h.SubmitApplication)

		apps.GET("", middleware.RequireAuth(), h.ListApplications)
		apps.GET("/:id/stages", middleware.RequireAuth(), h.GetStageInfo)
		apps.POST("/:id/advance", middleware.RequireAuth(), h.Advance)
		apps.POST("/:id/reject", middleware.RequireAuth(), h.Reject)
		apps.POST("/:id/payment", middleware.RequireTier(model.TierClerk, model.TierJuniorEngineer), h.RecordPayment)
	}
}

// SubmitApplication handles POST /applications to open a new licence case
// @Summary      Submit application
// @Description  Registers a new licence application and assigns the first reviewer
// @Tags         applications
// @Accept       json
// @Produce      json
// @Param        payload  body      service.SubmitApplicationRequest  true  "Application Payload"
// @Success      201      {object}  response.Response{data=service.AdvanceResult}
// @Failure      400      {object}  response.Response
// @Router       /applications [post]
func (h *ApplicationHandler) SubmitApplication(c *gin.Context) {
	var req service.SubmitApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	result, err := h.workflowService.Submit(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, result))
}

// ListApplications returns applications, optionally filtered by status
// @Summary      List applications
// @Tags         applications
// @Produce      json
// @Security     BearerAuth
// @Param        status  query     string  false  "Filter by status"
// @Success      200     {object}  response.Response
// @Router       /applications [get]
func (h *ApplicationHandler) ListApplications(c *gin.Context) {
	params := pagination.Parse(c)

	apps, total, err := h.workflowService.ListApplications(c.Request.Context(), c.Query("status"), params.Page, params.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": http.StatusOK,
		"data":   apps,
		"total":  total,
		"page":   params.Page,
		"limit":  params.Limit,
	})
}

// GetStageInfo returns the per-stage review state of an application
// @Summary      Get stage info
// @Tags         applications
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Application ID"
// @Success      200  {object}  response.Response{data=service.CaseStageInfoResponse}
// @Failure      404  {object}  response.Response
// @Router       /applications/{id}/stages [get]
func (h *ApplicationHandler) GetStageInfo(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid application ID"))
		return
	}

	info, err := h.workflowService.GetCaseStageInfo(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, info))
}

type advanceRequest struct {
	Trigger string `json:"trigger" binding:"required"`
}

// Advance fires a workflow trigger against an application
// @Summary      Advance application
// @Description  Fires a workflow trigger, moving the application one step along the review chain
// @Tags         applications
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string          true  "Application ID"
// @Param        payload  body      advanceRequest  true  "Trigger Payload"
// @Success      200      {object}  response.Response{data=service.AdvanceResult}
// @Failure      409      {object}  response.Response
// @Router       /applications/{id}/advance [post]
func (h *ApplicationHandler) Advance(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid application ID"))
		return
	}

	var req advanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	result, err := h.workflowService.Advance(c.Request.Context(), id, req.Trigger, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

type rejectRequest struct {
	Comments string `json:"comments" binding:"required"`
}

// Reject rejects an application at its current stage
// @Summary      Reject application
// @Tags         applications
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string         true  "Application ID"
// @Param        payload  body      rejectRequest  true  "Rejection Payload"
// @Success      200      {object}  response.Response{data=service.AdvanceResult}
// @Failure      400      {object}  response.Response
// @Router       /applications/{id}/reject [post]
func (h *ApplicationHandler) Reject(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid application ID"))
		return
	}

	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Rejection comments are required"))
		return
	}

	result, err := h.workflowService.Reject(c.Request.Context(), id, req.Comments, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// RecordPayment marks the licence fee as paid and advances the case
// @Summary      Record payment
// @Tags         applications
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                        true  "Application ID"
// @Param        payload  body      service.RecordPaymentRequest  true  "Payment Payload"
// @Success      200      {object}  response.Response{data=service.AdvanceResult}
// @Failure      409      {object}  response.Response
// @Router       /applications/{id}/payment [post]
func (h *ApplicationHandler) RecordPayment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid application ID"))
		return
	}

	var req service.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	result, err := h.workflowService.RecordPayment(c.Request.Context(), id, req, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}
