package handler

import (
	"net/http"

	"github.com/yashturmbekar/PMCRMS-sub002/internal/middleware"
	"github.com/yashturmbekar/PMCRMS-sub002/internal/model"
	"github.com/yashturmbekar/PMCRMS-sub002/internal/service"
	"github.com/yashturmbekar/PMCRMS-sub002/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AssignmentHandler struct {
	assignmentService service.AssignmentService
}

func NewAssignmentHandler(assignmentService service.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{assignmentService: assignmentService}
}

func (h *AssignmentHandler) RegisterRoutes(router *gin.RouterGroup) {
	// Manual assignment operations are restricted to senior tiers.
	senior := middleware.RequireTier(model.TierExecutiveEngineer, model.TierCityEngineer)

	assignments := router.Group("/applications/:id")
	{
		assignments.POST("/assign", senior, h.Assign)
		assignments.POST("/reassign", senior, h.Reassign)
		assignments.POST("/escalate", senior, h.Escalate)
		assignments.GET("/assignments", middleware.RequireAuth(), h.History)
	}

	router.GET("/escalations/candidates", senior, h.EscalationCandidates)
}

type assignRequest struct {
	Tier   string `json:"tier" binding:"required"`
	Reason string `json:"reason"`
}

// Assign manually runs the assignment engine for an application at a tier
// @Summary      Assign reviewer
// @Tags         assignments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string         true  "Application ID"
// @Param        payload  body      assignRequest  true  "Assignment Payload"
// @Success      200      {object}  response.Response{data=model.AssignmentHistory}
// @Failure      409      {object}  response.Response
// @Router       /applications/{id}/assign [post]
func (h *AssignmentHandler) Assign(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid application ID"))
		return
	}

	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	history, err := h.assignmentService.Assign(c.Request.Context(), id, req.Tier, req.Reason, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, history))
}

type reassignRequest struct {
	OfficerID string `json:"officer_id" binding:"required"`
	Reason    string `json:"reason" binding:"required"`
}

// Reassign moves an application to a named officer
// @Summary      Reassign application
// @Tags         assignments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string           true  "Application ID"
// @Param        payload  body      reassignRequest  true  "Reassignment Payload"
// @Success      200      {object}  response.Response{data=model.AssignmentHistory}
// @Failure      403      {object}  response.Response
// @Router       /applications/{id}/reassign [post]
func (h *AssignmentHandler) Reassign(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid application ID"))
		return
	}

	var req reassignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	officerID, err := uuid.Parse(req.OfficerID)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid officer ID"))
		return
	}

	history, err := h.assignmentService.Reassign(c.Request.Context(), id, officerID, req.Reason, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, history))
}

type escalateRequest struct {
	Reason string `json:"reason"`
}

// Escalate moves an overdue application to the rule's escalation tier
// @Summary      Escalate application
// @Tags         assignments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string           true  "Application ID"
// @Param        payload  body      escalateRequest  false  "Escalation Payload"
// @Success      200      {object}  response.Response{data=model.AssignmentHistory}
// @Failure      409      {object}  response.Response
// @Router       /applications/{id}/escalate [post]
func (h *AssignmentHandler) Escalate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid application ID"))
		return
	}

	var req escalateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		req.Reason = ""
	}

	history, err := h.assignmentService.Escalate(c.Request.Context(), id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, history))
}

// History returns the full assignment trail of an application
// @Summary      Assignment history
// @Tags         assignments
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Application ID"
// @Success      200  {object}  response.Response{data=[]service.AssignmentHistoryResponse}
// @Router       /applications/{id}/assignments [get]
func (h *AssignmentHandler) History(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid application ID"))
		return
	}

	history, err := h.assignmentService.History(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, history))
}

// EscalationCandidates lists applications overdue in their current stage
// @Summary      Escalation candidates
// @Tags         assignments
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]string}
// @Router       /escalations/candidates [get]
func (h *AssignmentHandler) EscalationCandidates(c *gin.Context) {
	ids, err := h.assignmentService.FindEscalationCandidates(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, ids))
}
