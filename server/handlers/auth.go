package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"desktown-backend/server/middleware"
	"desktown-backend/shared/database/models"
	"desktown-backend/shared/database/storage"
	"desktown-backend/shared/session"
	utils "desktown-backend/shared/utils/auth"
)

// RegisterRequest creates a platform account
type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email" example:"user@desktown.app"`
	Username  string `json:"username" binding:"required" example:"jdoe"`
	Password  string `json:"password" binding:"required" example:"securepassword123"`
	FirstName string `json:"first_name" example:"John"`
	LastName  string `json:"last_name" example:"Doe"`
	Role      string `json:"role" example:"member"`
}

// LoginRequest accepts an email or a username
type LoginRequest struct {
	Login    string `json:"login" binding:"required" example:"admin@desktown.app"`
	Password string `json:"password" binding:"required" example:"admin12345"`
}

// EmployeeLoginResponse carries the portal bearer token
type EmployeeLoginResponse struct {
	Token     string       `json:"token"`
	TokenType string       `json:"token_type"`
	ExpiresIn int64        `json:"expires_in"`
	User      *models.User `json:"user"`
}

// roles a visitor may pick for themselves at sign-up
var selfServiceRoles = map[string]bool{
	models.RoleMember:       true,
	models.RoleOfficeRenter: true,
	models.RoleVisitor:      true,
}

// Register godoc
// @Summary Register
// @Description Create an account and start a cookie session
// @Tags auth
// @Accept json
// @Produce json
// @Param body body RegisterRequest true "Account details"
// @Success 201 {object} models.User
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Router /register [post]
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if !bind(c, &req) {
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if err := utils.ValidateUsername(req.Username); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := utils.ValidatePassword(req.Password); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.Role == "" {
		req.Role = models.RoleMember
	}
	if !selfServiceRoles[req.Role] {
		badRequest(c, "Role cannot be chosen at registration")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		abortWith(c, http.StatusInternalServerError, "Internal server error", "Could not hash password")
		return
	}

	user := &models.User{
		Email:     req.Email,
		Username:  req.Username,
		Password:  hash,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Role:      req.Role,
	}
	if err := h.store.CreateUser(c.Request.Context(), user); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			abortWith(c, http.StatusConflict, "User already exists", "Email or username is already taken")
			return
		}
		storageError(c, err, "User")
		return
	}

	if !h.startSession(c, user) {
		return
	}
	log.Printf("✅ User registered: %s", user.Email)
	respond(c, http.StatusCreated, user)
}

// Login godoc
// @Summary Login
// @Description Authenticate with email or username and receive a session cookie
// @Tags auth
// @Accept json
// @Produce json
// @Param body body LoginRequest true "Credentials"
// @Success 200 {object} models.User
// @Failure 401 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Router /login [post]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if !bind(c, &req) {
		return
	}

	user, ok := h.authenticate(c, req)
	if !ok {
		return
	}
	if !h.startSession(c, user) {
		return
	}
	respond(c, http.StatusOK, user)
}

// authenticate checks credentials and upgrades legacy bcrypt hashes on success
func (h *Handler) authenticate(c *gin.Context, req LoginRequest) (*models.User, bool) {
	ctx := c.Request.Context()
	user, err := h.store.GetUserByLogin(ctx, strings.TrimSpace(req.Login))
	if err != nil || !utils.CheckPasswordHash(req.Password, user.Password) {
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			log.Printf("❌ Login lookup failed: %v", err)
		}
		abortWith(c, http.StatusUnauthorized, "Invalid credentials", "Login or password is incorrect")
		return nil, false
	}
	if !user.IsActive {
		abortWith(c, http.StatusUnauthorized, "Account is inactive", "This account has been deactivated")
		return nil, false
	}

	if utils.NeedsRehash(user.Password) {
		if hash, err := utils.HashPassword(req.Password); err == nil {
			if err := h.store.UpdatePassword(ctx, user.ID, hash); err != nil {
				log.Printf("⚠️  Could not upgrade password hash for %s: %v", user.Email, err)
			}
		}
	}
	return user, true
}

func (h *Handler) startSession(c *gin.Context, user *models.User) bool {
	sid, err := h.sessions.CreateSession(c.Request.Context(), session.Data{
		UserID:    user.ID.String(),
		Role:      user.Role,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}, h.cfg.SessionTTL())
	if err != nil {
		log.Printf("❌ Could not create session: %v", err)
		abortWith(c, http.StatusInternalServerError, "Internal server error", "Could not create session")
		return false
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cfg.SessionCookieName, sid, int(h.cfg.SessionTTL().Seconds()), "/", "", h.cfg.SessionCookieSecure, true)
	return true
}

// Logout godoc
// @Summary Logout
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /logout [post]
func (h *Handler) Logout(c *gin.Context) {
	if sid, err := c.Cookie(h.cfg.SessionCookieName); err == nil && sid != "" {
		if err := h.sessions.DeleteSession(c.Request.Context(), sid); err != nil {
			log.Printf("⚠️  Could not delete session: %v", err)
		}
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cfg.SessionCookieName, "", -1, "/", "", h.cfg.SessionCookieSecure, true)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out"})
}

// CurrentUser godoc
// @Summary Current user
// @Tags auth
// @Produce json
// @Success 200 {object} models.User
// @Failure 401 {object} ErrorResponse
// @Router /user [get]
func (h *Handler) CurrentUser(c *gin.Context) {
	respond(c, http.StatusOK, currentUser(c))
}

// EmployeeLogin godoc
// @Summary Employee portal login
// @Description Issue a revocable bearer token for the employee portal
// @Tags employee
// @Accept json
// @Produce json
// @Param body body LoginRequest true "Credentials"
// @Success 200 {object} EmployeeLoginResponse
// @Failure 401 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Router /employee/login [post]
func (h *Handler) EmployeeLogin(c *gin.Context) {
	var req LoginRequest
	if !bind(c, &req) {
		return
	}

	user, ok := h.authenticate(c, req)
	if !ok {
		return
	}
	if user.HasRole(models.RoleVisitor) {
		forbidden(c, "Visitors cannot use the employee portal")
		return
	}

	ttl := h.cfg.EmployeeTokenTTL()
	token, jti, err := utils.GenerateEmployeeToken(user.ID, user.Email, user.Role, ttl)
	if err != nil {
		abortWith(c, http.StatusInternalServerError, "Internal server error", "Could not generate token")
		return
	}
	if err := h.sessions.SaveEmployeeToken(c.Request.Context(), jti, user.ID.String(), ttl); err != nil {
		log.Printf("❌ Could not register employee token: %v", err)
		abortWith(c, http.StatusInternalServerError, "Internal server error", "Could not register token")
		return
	}

	respond(c, http.StatusOK, EmployeeLoginResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: int64(ttl.Seconds()),
		User:      user,
	})
}

// EmployeeLogout godoc
// @Summary Employee portal logout
// @Tags employee
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /employee/logout [post]
func (h *Handler) EmployeeLogout(c *gin.Context) {
	jti := c.GetString(middleware.ContextEmployeeJTI)
	if err := h.sessions.RevokeEmployeeToken(c.Request.Context(), jti); err != nil {
		log.Printf("⚠️  Could not revoke employee token: %v", err)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out"})
}
