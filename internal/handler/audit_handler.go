package handler

import (
	"net/http"

	"github.com/yashturmbekar/PMCRMS-sub002/internal/middleware"
	"github.com/yashturmbekar/PMCRMS-sub002/internal/model"
	"github.com/yashturmbekar/PMCRMS-sub002/internal/service"
	"github.com/yashturmbekar/PMCRMS-sub002/pkg/pagination"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	auditService service.AuditService
}

func NewAuditHandler(auditService service.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	audits := router.Group("/audit-logs")
	{
		audits.GET("", middleware.RequireTier(model.TierExecutiveEngineer, model.TierCityEngineer), h.ListAuditLogs)
	}
}

// ListAuditLogs returns audit log entries, optionally filtered by action
// @Summary      List audit logs
// @Tags         audit
// @Produce      json
// @Security     BearerAuth
// @Param        action  query     string  false  "Filter by action"
// @Success      200     {object}  response.Response
// @Router       /audit-logs [get]
func (h *AuditHandler) ListAuditLogs(c *gin.Context) {
	params := pagination.Parse(c)

	logs, total, err := h.auditService.List(c.Request.Context(), c.Query("action"), params.Page, params.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": http.StatusOK,
		"data":   logs,
		"total":  total,
		"page":   params.Page,
		"limit":  params.Limit,
	})
}
