package oauth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/harperreed/nu-study-groups/pkg/studygroups/auth"
	"github.com/harperreed/nu-study-groups/pkg/studygroups/models"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

// Handler handles OIDC sign-in flows
type Handler struct {
	db        *gorm.DB
	baseURL   string
	providers map[uint]*providerConfig
	mu        sync.RWMutex
}

type providerConfig struct {
	provider *oidc.Provider
	config   oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// StateData stores OIDC state for callback validation
type StateData struct {
	ProviderID uint   `json:"provider_id"`
	ReturnURL  string `json:"return_url"`
	Nonce      string `json:"nonce"`
}

// NewHandler creates a new OAuth handler and initializes all enabled providers
func NewHandler(db *gorm.DB, baseURL string) *Handler {
	h := &Handler{
		db:        db,
		baseURL:   baseURL,
		providers: make(map[uint]*providerConfig),
	}
	h.loadProviders()
	return h
}

// loadProviders initializes all enabled providers from the database
func (h *Handler) loadProviders() {
	var providers []models.AuthProvider
	h.db.Where("enabled = ?", true).Find(&providers)

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, p := range providers {
		if err := h.initProvider(p); err != nil {
			log.Printf("oauth: skipping provider %s: %v", p.Slug, err)
			continue
		}
	}
}

// initProvider performs OIDC discovery for a provider. Caller holds h.mu.
func (h *Handler) initProvider(p models.AuthProvider) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	provider, err := oidc.NewProvider(ctx, p.Issuer)
	if err != nil {
		return err
	}

	scopes := strings.Fields(p.Scopes)
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}

	config := oauth2.Config{
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  h.baseURL + "/api/oauth/callback",
		Scopes:       scopes,
	}

	verifier := provider.Verifier(&oidc.Config{ClientID: p.ClientID})

	h.providers[p.ID] = &providerConfig{
		provider: provider,
		config:   config,
		verifier: verifier,
	}

	return nil
}

// ProviderResponse represents an identity provider in API responses
type ProviderResponse struct {
	ID      uint   `json:"id"`
	Name    string `json:"name"`
	Slug    string `json:"slug"`
	Enabled bool   `json:"enabled"`
}

// ListProviders returns all enabled identity providers
// @Summary List sign-in providers
// @Description Get identity providers available for sign-in
// @Tags oauth
// @Produce json
// @Success 200 {array} ProviderResponse
// @Router /oauth/providers [get]
func (h *Handler) ListProviders(c *gin.Context) {
	var providers []models.AuthProvider
	h.db.Where("enabled = ?", true).Find(&providers)

	responses := make([]ProviderResponse, len(providers))
	for i, p := range providers {
		responses[i] = ProviderResponse{
			ID:      p.ID,
			Name:    p.Name,
			Slug:    p.Slug,
			Enabled: p.Enabled,
		}
	}

	c.JSON(http.StatusOK, responses)
}

// AuthURLRequest represents a request for an authorization URL
type AuthURLRequest struct {
	ReturnURL string `json:"return_url"`
}

// GetAuthURL returns the authorization URL for a provider
// @Summary Start OAuth sign-in
// @Description Get the identity provider's authorization URL
// @Tags oauth
// @Accept json
// @Produce json
// @Param slug path string true "Provider slug"
// @Success 200 {object} map[string]string "auth_url"
// @Failure 404 {object} map[string]string "Provider not found"
// @Router /oauth/providers/{slug}/auth [post]
func (h *Handler) GetAuthURL(c *gin.Context) {
	slug := c.Param("slug")

	var provider models.AuthProvider
	if err := h.db.Where("slug = ? AND enabled = ?", slug, true).First(&provider).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Provider not found"})
		return
	}

	h.mu.RLock()
	pc, ok := h.providers[provider.ID]
	h.mu.RUnlock()

	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Provider not configured"})
		return
	}

	var req AuthURLRequest
	c.ShouldBindJSON(&req)

	nonce := uuid.NewString()
	stateData := StateData{
		ProviderID: provider.ID,
		ReturnURL:  req.ReturnURL,
		Nonce:      nonce,
	}
	stateJSON, _ := json.Marshal(stateData)
	state := base64.URLEncoding.EncodeToString(stateJSON)

	authURL := pc.config.AuthCodeURL(state, oidc.Nonce(nonce))

	c.JSON(http.StatusOK, gin.H{"auth_url": authURL})
}

// Callback completes the OAuth flow and issues a JWT
// @Summary OAuth callback
// @Description Exchange the authorization code, verify the identity, and sign the user in. First sign-in provisions a student account.
// @Tags oauth
// @Produce json
// @Success 200 {object} map[string]interface{} "token and user"
// @Failure 400 {object} map[string]string "Invalid state or code"
// @Router /oauth/callback [get]
func (h *Handler) Callback(c *gin.Context) {
	stateParam := c.Query("state")
	stateJSON, err := base64.URLEncoding.DecodeString(stateParam)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid state"})
		return
	}

	var stateData StateData
	if err := json.Unmarshal(stateJSON, &stateData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid state"})
		return
	}

	h.mu.RLock()
	pc, ok := h.providers[stateData.ProviderID]
	h.mu.RUnlock()

	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown provider"})
		return
	}

	code := c.Query("code")
	if code == "" {
		errorDesc := c.Query("error_description")
		if errorDesc == "" {
			errorDesc = c.Query("error")
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Authentication failed: " + errorDesc})
		return
	}

	ctx := context.Background()
	oauth2Token, err := pc.config.Exchange(ctx, code)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to exchange token"})
		return
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "No ID token in response"})
		return
	}

	idToken, err := pc.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify ID token"})
		return
	}

	if idToken.Nonce != stateData.Nonce {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid nonce"})
		return
	}

	var claims struct {
		Email      string `json:"email"`
		Name       string `json:"name"`
		GivenName  string `json:"given_name"`
		FamilyName string `json:"family_name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to parse claims"})
		return
	}

	if claims.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email not provided by identity provider"})
		return
	}

	var provider models.AuthProvider
	h.db.First(&provider, stateData.ProviderID)

	user, err := h.findOrCreateUser(idToken.Subject, claims.Email, displayName(claims.Name, claims.GivenName, claims.FamilyName, claims.Email), &provider)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process user: " + err.Error()})
		return
	}

	token, err := auth.GenerateToken(user.ID, user.Email, string(user.Role))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	if stateData.ReturnURL != "" {
		c.Redirect(http.StatusFound, stateData.ReturnURL+"?token="+token)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user": auth.UserResponse{
			ID:    user.ID,
			Email: user.Email,
			Name:  user.Name,
			Role:  string(user.Role),
		},
	})
}

// findOrCreateUser resolves an identity to a user, keyed by (provider slug,
// subject). A subject never seen before gets a fresh student account; emails
// promoted via ADMIN_EMAIL come back as admins.
func (h *Handler) findOrCreateUser(subject, email, name string, provider *models.AuthProvider) (*models.User, error) {
	var user models.User
	err := h.db.Where("provider = ? AND uid = ?", provider.Slug, subject).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	role := models.RoleStudent
	if admin := os.Getenv("ADMIN_EMAIL"); admin != "" && strings.EqualFold(admin, email) {
		role = models.RoleAdmin
	}

	user = models.User{
		Email:    email,
		Name:     name,
		Provider: provider.Slug,
		UID:      subject,
		Role:     role,
	}
	if err := h.db.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func displayName(name, givenName, familyName, email string) string {
	if name != "" {
		return name
	}
	if givenName != "" || familyName != "" {
		return strings.TrimSpace(givenName + " " + familyName)
	}
	return strings.Split(email, "@")[0]
}

// RegisterRoutes registers public OAuth routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/providers", h.ListProviders)
	rg.POST("/providers/:slug/auth", h.GetAuthURL)
	rg.GET("/callback", h.Callback)
}
