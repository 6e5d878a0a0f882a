package oauth

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/harperreed/nu-study-groups/pkg/studygroups/models"
)

// AdminProviderResponse includes full provider details for admins
type AdminProviderResponse struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	Issuer    string `json:"issuer"`
	ClientID  string `json:"client_id"`
	Scopes    string `json:"scopes"`
	Enabled   bool   `json:"enabled"`
	CreatedAt string `json:"created_at"`
}

func adminProviderResponse(p *models.AuthProvider) AdminProviderResponse {
	return AdminProviderResponse{
		ID:        p.ID,
		Name:      p.Name,
		Slug:      p.Slug,
		Issuer:    p.Issuer,
		ClientID:  p.ClientID,
		Scopes:    p.Scopes,
		Enabled:   p.Enabled,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
	}
}

// CreateProviderRequest represents a request to register an identity provider
type CreateProviderRequest struct {
	Name         string `json:"name" binding:"required"`
	Slug         string `json:"slug" binding:"required"`
	Issuer       string `json:"issuer" binding:"required,url"`
	ClientID     string `json:"client_id" binding:"required"`
	ClientSecret string `json:"client_secret" binding:"required"`
	Scopes       string `json:"scopes"`
	Enabled      bool   `json:"enabled"`
}

// ListProvidersAdmin returns all identity providers, enabled or not
// @Summary List identity providers (admin)
// @Tags admin
// @Produce json
// @Success 200 {array} AdminProviderResponse
// @Security BearerAuth
// @Router /admin/oauth/providers [get]
func (h *Handler) ListProvidersAdmin(c *gin.Context) {
	var providers []models.AuthProvider
	h.db.Find(&providers)

	responses := make([]AdminProviderResponse, len(providers))
	for i := range providers {
		responses[i] = adminProviderResponse(&providers[i])
	}

	c.JSON(http.StatusOK, responses)
}

// CreateProvider registers a new identity provider
// @Summary Register an identity provider (admin)
// @Tags admin
// @Accept json
// @Produce json
// @Param request body CreateProviderRequest true "Provider details"
// @Success 201 {object} AdminProviderResponse
// @Security BearerAuth
// @Router /admin/oauth/providers [post]
func (h *Handler) CreateProvider(c *gin.Context) {
	var req CreateProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	provider := models.AuthProvider{
		Name:         req.Name,
		Slug:         req.Slug,
		Issuer:       req.Issuer,
		ClientID:     req.ClientID,
		ClientSecret: req.ClientSecret,
		Scopes:       req.Scopes,
		Enabled:      req.Enabled,
	}

	if err := h.db.Create(&provider).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create provider"})
		return
	}

	if provider.Enabled {
		h.mu.Lock()
		err := h.initProvider(provider)
		h.mu.Unlock()
		if err != nil {
			c.JSON(http.StatusCreated, gin.H{
				"provider": adminProviderResponse(&provider),
				"warning":  "Provider created but failed to initialize: " + err.Error(),
			})
			return
		}
	}

	c.JSON(http.StatusCreated, adminProviderResponse(&provider))
}

// UpdateProviderRequest represents a partial provider update
type UpdateProviderRequest struct {
	Name         *string `json:"name"`
	Issuer       *string `json:"issuer"`
	ClientID     *string `json:"client_id"`
	ClientSecret *string `json:"client_secret"`
	Scopes       *string `json:"scopes"`
	Enabled      *bool   `json:"enabled"`
}

// UpdateProvider updates an identity provider and refreshes its discovery
// @Summary Update an identity provider (admin)
// @Tags admin
// @Accept json
// @Produce json
// @Param id path int true "Provider ID"
// @Param request body UpdateProviderRequest true "Fields to update"
// @Success 200 {object} AdminProviderResponse
// @Security BearerAuth
// @Router /admin/oauth/providers/{id} [put]
func (h *Handler) UpdateProvider(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid provider ID"})
		return
	}

	var provider models.AuthProvider
	if err := h.db.First(&provider, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Provider not found"})
		return
	}

	var req UpdateProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Issuer != nil {
		updates["issuer"] = *req.Issuer
	}
	if req.ClientID != nil {
		updates["client_id"] = *req.ClientID
	}
	if req.ClientSecret != nil {
		updates["client_secret"] = *req.ClientSecret
	}
	if req.Scopes != nil {
		updates["scopes"] = *req.Scopes
	}
	if req.Enabled != nil {
		updates["enabled"] = *req.Enabled
	}

	if len(updates) > 0 {
		h.db.Model(&provider).Updates(updates)
	}

	h.db.First(&provider, id)

	h.mu.Lock()
	delete(h.providers, provider.ID)
	if provider.Enabled {
		if err := h.initProvider(provider); err != nil {
			log.Printf("oauth: failed to reinitialize provider %s: %v", provider.Slug, err)
		}
	}
	h.mu.Unlock()

	c.JSON(http.StatusOK, adminProviderResponse(&provider))
}

// DeleteProvider removes an identity provider
// @Summary Delete an identity provider (admin)
// @Tags admin
// @Produce json
// @Param id path int true "Provider ID"
// @Success 200 {object} map[string]string "Provider deleted"
// @Security BearerAuth
// @Router /admin/oauth/providers/{id} [delete]
func (h *Handler) DeleteProvider(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid provider ID"})
		return
	}

	var provider models.AuthProvider
	if err := h.db.First(&provider, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Provider not found"})
		return
	}

	h.mu.Lock()
	delete(h.providers, provider.ID)
	h.mu.Unlock()

	if err := h.db.Delete(&provider).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete provider"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Provider deleted"})
}

// RegisterAdminRoutes registers admin provider management routes
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.GET("/providers", h.ListProvidersAdmin)
	rg.POST("/providers", h.CreateProvider)
	rg.PUT("/providers/:id", h.UpdateProvider)
	rg.DELETE("/providers/:id", h.DeleteProvider)
}
