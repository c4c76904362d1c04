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

type OfficerHandler struct {
	officerService service.OfficerService
}

// NewOfficerHandler sets up the routing dependencies for officer endpoints
func NewOfficerHandler(officerService service.OfficerService) *OfficerHandler {
	return &OfficerHandler{officerService: officerService}
}

func (h *OfficerHandler) RegisterRoutes(router *gin.RouterGroup) {
	// Public routes
	router.POST("/login", h.Login)
	router.POST("/refresh", h.RefreshToken)
	router.POST("/logout", h.Logout)

	// Me route (authenticated — any valid token)
	router.GET("/me", middleware.RequireAuth(), h.GetMe)

	// Officer administration is a City Engineer concern.
	admin := middleware.RequireTier(model.TierCityEngineer)
	officers := router.Group("/officers")
	{
		officers.GET("", middleware.RequireAuth(), h.ListOfficers)
		officers.GET("/:id", middleware.RequireAuth(), h.GetOfficerByID)
		officers.POST("", admin, h.CreateOfficer)
		officers.PUT("/:id", admin, h.UpdateOfficer)
		officers.DELETE("/:id", admin, h.DeactivateOfficer)
	}
}

// Login handles POST /login to authenticate and return a JWT token
// @Summary      Login officer
// @Description  Authenticates an officer by email and password, returning a JWT token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.LoginRequest  true  "Login Credentials"
// @Success      200      {object}  response.Response{data=service.TokenPairResponse}
// @Failure      401      {object}  response.Response
// @Router       /login [post]
func (h *OfficerHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload"))
		return
	}

	tokens, err := h.officerService.Login(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
		return
	}

	// Set tokens as HttpOnly cookies
	middleware.SetTokenCookies(c, tokens.AccessToken, tokens.RefreshToken)

	c.JSON(http.StatusOK, response.Success(http.StatusOK, tokens))
}

// RefreshToken handles POST /refresh to rotate the token pair
// @Summary      Refresh token
// @Tags         auth
// @Produce      json
// @Success      200  {object}  response.Response{data=service.TokenPairResponse}
// @Failure      401  {object}  response.Response
// @Router       /refresh [post]
func (h *OfficerHandler) RefreshToken(c *gin.Context) {
	refreshToken, err := c.Cookie("refresh_token")
	if err != nil || refreshToken == "" {
		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := c.ShouldBindJSON(&body); err != nil || body.RefreshToken == "" {
			c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Refresh token is missing"))
			return
		}
		refreshToken = body.RefreshToken
	}

	tokens, err := h.officerService.Refresh(c.Request.Context(), refreshToken)
	if err != nil {
		middleware.ClearTokenCookies(c)
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid refresh token"))
		return
	}

	middleware.SetTokenCookies(c, tokens.AccessToken, tokens.RefreshToken)

	c.JSON(http.StatusOK, response.Success(http.StatusOK, tokens))
}

// Logout handles POST /logout to revoke the refresh token
// @Summary      Logout officer
// @Tags         auth
// @Produce      json
// @Success      200  {object}  response.Response
// @Router       /logout [post]
func (h *OfficerHandler) Logout(c *gin.Context) {
	refreshToken, _ := c.Cookie("refresh_token")
	if refreshToken != "" {
		// Best effort: a missing row means the token was already revoked
		_ = h.officerService.Logout(c.Request.Context(), refreshToken)
	}

	middleware.ClearTokenCookies(c)

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Logged out"}))
}

// GetMe handles GET /me to return the current authenticated officer
// @Summary      Get current officer
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=service.OfficerResponse}
// @Failure      404  {object}  response.Response
// @Router       /me [get]
func (h *OfficerHandler) GetMe(c *gin.Context) {
	id := actorID(c)
	if id == nil {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Officer ID not found in context"))
		return
	}

	officer, err := h.officerService.GetOfficer(c.Request.Context(), *id)
	if err != nil {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, "Officer not found"))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, officer))
}

// CreateOfficer handles POST /officers
// @Summary      Create officer
// @Description  Creates a reviewing officer with a fine-grained role and hashed password
// @Tags         officers
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateOfficerRequest  true  "Create Officer Payload"
// @Success      201      {object}  response.Response{data=service.OfficerResponse}
// @Failure      400      {object}  response.Response
// @Router       /officers [post]
func (h *OfficerHandler) CreateOfficer(c *gin.Context) {
	var req service.CreateOfficerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	officer, err := h.officerService.CreateOfficer(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, officer))
}

// ListOfficers handles GET /officers, optionally filtered by role
// @Summary      List officers
// @Tags         officers
// @Produce      json
// @Security     BearerAuth
// @Param        role  query     string  false  "Filter by role"
// @Success      200   {object}  response.Response
// @Router       /officers [get]
func (h *OfficerHandler) ListOfficers(c *gin.Context) {
	params := pagination.Parse(c)

	officers, total, err := h.officerService.ListOfficers(c.Request.Context(), c.Query("role"), params.Page, params.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": http.StatusOK,
		"data":   officers,
		"total":  total,
		"page":   params.Page,
		"limit":  params.Limit,
	})
}

// GetOfficerByID handles GET /officers/:id
// @Summary      Get officer
// @Tags         officers
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Officer ID"
// @Success      200  {object}  response.Response{data=service.OfficerResponse}
// @Failure      404  {object}  response.Response
// @Router       /officers/{id} [get]
func (h *OfficerHandler) GetOfficerByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid officer ID"))
		return
	}

	officer, err := h.officerService.GetOfficer(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, officer))
}

// UpdateOfficer handles PUT /officers/:id
// @Summary      Update officer
// @Tags         officers
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                        true  "Officer ID"
// @Param        payload  body      service.UpdateOfficerRequest  true  "Update Officer Payload"
// @Success      200      {object}  response.Response{data=service.OfficerResponse}
// @Failure      404      {object}  response.Response
// @Router       /officers/{id} [put]
func (h *OfficerHandler) UpdateOfficer(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid officer ID"))
		return
	}

	var req service.UpdateOfficerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	officer, err := h.officerService.UpdateOfficer(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, officer))
}

// DeactivateOfficer handles DELETE /officers/:id (soft delete)
// @Summary      Deactivate officer
// @Tags         officers
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Officer ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /officers/{id} [delete]
func (h *OfficerHandler) DeactivateOfficer(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid officer ID"))
		return
	}

	if err := h.officerService.DeactivateOfficer(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Officer deactivated"}))
}
