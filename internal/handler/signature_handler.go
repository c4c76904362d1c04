package handler

import (
	"net/http"
	"strconv"

	"github.com/yashturmbekar/PMCRMS-sub002/internal/middleware"
	"github.com/yashturmbekar/PMCRMS-sub002/internal/repository"
	"github.com/yashturmbekar/PMCRMS-sub002/internal/service"
	"github.com/yashturmbekar/PMCRMS-sub002/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type SignatureHandler struct {
	signatureService service.SignatureService
	documents        repository.DocumentRepository
}

func NewSignatureHandler(signatureService service.SignatureService, documents repository.DocumentRepository) *SignatureHandler {
	return &SignatureHandler{signatureService: signatureService, documents: documents}
}

func (h *SignatureHandler) RegisterRoutes(router *gin.RouterGroup) {
	// Every review tier signs its own stage. The service checks that the
	// caller holds the stage assignment, so the routes only gate on a
	// valid token.
	auth := middleware.RequireAuth()

	apps := router.Group("/applications/:id")
	{
		apps.POST("/signature/otp", auth, h.RequestOtp)
		apps.POST("/signature", auth, h.Initiate)
		apps.GET("/signature/attempts", auth, h.ListAttempts)
		apps.GET("/documents/:type", auth, h.DownloadDocument)
	}

	attempts := router.Group("/signature-attempts/:attemptId")
	{
		attempts.POST("/complete", auth, h.Complete)
		attempts.POST("/retry", auth, h.Retry)
		attempts.POST("/abandon", auth, h.Abandon)
	}
}

// RequestOtp asks the HSM gateway to send an OTP to the signing officer
// @Summary      Request signing OTP
// @Tags         signatures
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Application ID"
// @Success      200  {object}  response.Response{data=service.OtpResponse}
// @Failure      412  {object}  response.Response
// @Router       /applications/{id}/signature/otp [post]
func (h *SignatureHandler) RequestOtp(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid application ID"))
		return
	}

	officer := actorID(c)
	if officer == nil {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Officer ID not found in context"))
		return
	}

	otp, err := h.signatureService.RequestOtp(c.Request.Context(), id, *officer)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, otp))
}

// Initiate opens a signature attempt for the application's current stage
// @Summary      Initiate signature
// @Tags         signatures
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                            true  "Application ID"
// @Param        payload  body      service.InitiateSignatureRequest  true  "Initiate Payload"
// @Success      201      {object}  response.Response{data=service.SignatureAttemptResponse}
// @Failure      409      {object}  response.Response
// @Router       /applications/{id}/signature [post]
func (h *SignatureHandler) Initiate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid application ID"))
		return
	}

	var req service.InitiateSignatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	attempt, err := h.signatureService.Initiate(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, attempt))
}

// Complete submits the OTP and applies the digital signature
// @Summary      Complete signature
// @Tags         signatures
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        attemptId  path      string                            true  "Attempt ID"
// @Param        payload    body      service.CompleteSignatureRequest  true  "Complete Payload"
// @Success      200        {object}  response.Response{data=service.CompleteSignatureResponse}
// @Failure      502        {object}  response.Response
// @Router       /signature-attempts/{attemptId}/complete [post]
func (h *SignatureHandler) Complete(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("attemptId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid attempt ID"))
		return
	}

	var req service.CompleteSignatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "OTP is required"))
		return
	}

	officer := actorID(c)
	if officer == nil {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Officer ID not found in context"))
		return
	}

	result, err := h.signatureService.Complete(c.Request.Context(), attemptID, req.Otp, *officer)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// Retry resets a failed attempt so Complete can be re-invoked
// @Summary      Retry signature
// @Tags         signatures
// @Produce      json
// @Security     BearerAuth
// @Param        attemptId  path      string  true  "Attempt ID"
// @Success      200        {object}  response.Response{data=service.SignatureAttemptResponse}
// @Failure      409        {object}  response.Response
// @Router       /signature-attempts/{attemptId}/retry [post]
func (h *SignatureHandler) Retry(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("attemptId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid attempt ID"))
		return
	}

	attempt, err := h.signatureService.Retry(c.Request.Context(), attemptID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, attempt))
}

// Abandon releases a stale in-progress attempt without consuming a retry
// @Summary      Abandon signature attempt
// @Tags         signatures
// @Produce      json
// @Security     BearerAuth
// @Param        attemptId  path      string  true  "Attempt ID"
// @Success      200        {object}  response.Response
// @Router       /signature-attempts/{attemptId}/abandon [post]
func (h *SignatureHandler) Abandon(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("attemptId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid attempt ID"))
		return
	}

	officer := actorID(c)
	if officer == nil {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Officer ID not found in context"))
		return
	}

	if err := h.signatureService.Abandon(c.Request.Context(), attemptID, *officer); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"abandoned": true}))
}

// ListAttempts returns the signature attempt trail for an application
// @Summary      List signature attempts
// @Tags         signatures
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Application ID"
// @Success      200  {object}  response.Response{data=[]service.SignatureAttemptResponse}
// @Router       /applications/{id}/signature/attempts [get]
func (h *SignatureHandler) ListAttempts(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid application ID"))
		return
	}

	attempts, err := h.signatureService.ListAttempts(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, attempts))
}

// DownloadDocument streams the current version of a case document
// @Summary      Download document
// @Tags         documents
// @Produce      application/pdf
// @Security     BearerAuth
// @Param        id    path  string  true  "Application ID"
// @Param        type  path  string  true  "Document type"  Enums(RECOMMENDATION_FORM, LICENCE_CERTIFICATE)
// @Success      200
// @Failure      404  {object}  response.Response
// @Router       /applications/{id}/documents/{type} [get]
func (h *SignatureHandler) DownloadDocument(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid application ID"))
		return
	}

	doc, err := h.documents.FindByType(c.Request.Context(), id, c.Param("type"))
	if err != nil {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, "Document not found"))
		return
	}

	c.Header("X-Document-Version", strconv.Itoa(doc.Version))
	c.Data(http.StatusOK, "application/pdf", doc.Content)
}
