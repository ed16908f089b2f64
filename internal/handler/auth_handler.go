package handler

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/MiddyPham/middy-corner-back-end/internal/auth"
	"github.com/MiddyPham/middy-corner-back-end/internal/db"
	"github.com/MiddyPham/middy-corner-back-end/internal/service"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const oauthStateKey = "oauth_state_"

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type registerRequest struct {
	Email    string `json:"email" binding:"required"`
	Name     string `json:"name"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type loginResponse struct {
	User userView `json:"user"`
	auth.TokenPair
}

func newLoginResponse(result *service.LoginResult) loginResponse {
	return loginResponse{User: newUserView(*result.User), TokenPair: result.Tokens}
}

// Register creates a regular user and logs them in.
func (a *API) Register(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, &req) {
		return
	}
	if _, err := a.users.Create(c.Request.Context(), service.UserInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
		Role:     db.RoleUser,
	}); err != nil {
		respondError(c, err)
		return
	}

	result, err := a.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newLoginResponse(result))
}

// Login exchanges email and password for a token pair.
func (a *API) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := a.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newLoginResponse(result))
}

// Refresh rotates a refresh token into a new pair.
func (a *API) Refresh(c *gin.Context) {
	var req refreshRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := a.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newLoginResponse(result))
}

// Logout revokes a refresh token.
func (a *API) Logout(c *gin.Context) {
	var req refreshRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := a.auth.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) Me(c *gin.Context) {
	user, err := a.auth.Me(c.Request.Context(), currentPrincipal(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": newUserView(*user)})
}

// OAuthStart redirects to the provider's consent page. The state is kept in
// the cookie session and checked by OAuthCallback.
func (a *API) OAuthStart(c *gin.Context) {
	provider, err := a.providers.Get(c.Param("provider"))
	if err != nil {
		respondError(c, err)
		return
	}

	state := uuid.NewString()
	session := sessions.Default(c)
	session.Set(oauthStateKey+provider.Name, state)
	if err := session.Save(); err != nil {
		respondError(c, err)
		return
	}
	c.Redirect(http.StatusTemporaryRedirect, provider.AuthCodeURL(state))
}

// OAuthCallback exchanges the code and signs the matching account in.
func (a *API) OAuthCallback(c *gin.Context) {
	provider, err := a.providers.Get(c.Param("provider"))
	if err != nil {
		respondError(c, err)
		return
	}

	session := sessions.Default(c)
	key := oauthStateKey + provider.Name
	expected, _ := session.Get(key).(string)
	session.Delete(key)
	if err := session.Save(); err != nil {
		respondError(c, err)
		return
	}

	state := c.Query("state")
	if expected == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(state)) != 1 {
		respondError(c, auth.ErrInvalidToken)
		return
	}
	code := strings.TrimSpace(c.Query("code"))
	if code == "" {
		respondError(c, &service.ValidationError{Field: "code", Message: "authorization code is required"})
		return
	}

	profile, err := provider.Exchange(c.Request.Context(), code)
	if err != nil {
		log.Warn().Err(err).Str("provider", provider.Name).Msg("oauth exchange failed")
		respondError(c, auth.ErrInvalidToken)
		return
	}
	result, err := a.auth.OAuthLogin(c.Request.Context(), profile)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newLoginResponse(result))
}

type activeRequest struct {
	IsActive *bool `json:"isActive" binding:"required"`
}

// SetUserActive enables or disables an account.
func (a *API) SetUserActive(c *gin.Context) {
	var req activeRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := a.users.SetActive(c.Request.Context(), c.Param("id"), *req.IsActive, currentPrincipal(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": newUserView(*user)})
}

func (a *API) GetUser(c *gin.Context) {
	user, err := a.users.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": newUserView(*user)})
}
