package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pantry-to-plate/internal/domain"
	"pantry-to-plate/internal/service"
)

const resetRequestedMessage = "if an account exists for that email, a password reset token has been sent"

// AuthOptions ajusta lo que el borde HTTP revela en forgot-password.
type AuthOptions struct {
	// DiscloseResetAccounts devuelve 404 cuando el email no existe.
	DiscloseResetAccounts bool
	// ExposeResetToken incluye el token crudo en la respuesta (solo desarrollo).
	ExposeResetToken bool
}

// AuthHandler mantiene dependencias para endpoints de autenticación.
type AuthHandler struct {
	logger *zap.Logger
	auth   *service.AuthService
	opts   AuthOptions
}

func NewAuthHandler(logger *zap.Logger, auth *service.AuthService, opts AuthOptions) *AuthHandler {
	return &AuthHandler{
		logger: logger,
		auth:   auth,
		opts:   opts,
	}
}

// Register maneja POST /api/auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Username  string `json:"username" binding:"required"`
		Email     string `json:"email" binding:"required,email"`
		Password  string `json:"password" binding:"required"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, h.logger, "register", err)
		return
	}

	user, err := h.auth.Register(c.Request.Context(), service.RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		respondError(c, h.logger, "register", err)
		return
	}

	session, err := h.auth.IssueSession(user.ID)
	if err != nil {
		respondError(c, h.logger, "issue session", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user, "tokens": session})
}

// Login maneja POST /api/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, h.logger, "login", err)
		return
	}

	user, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, h.logger, "login", err)
		return
	}

	session, err := h.auth.IssueSession(user.ID)
	if err != nil {
		respondError(c, h.logger, "issue session", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "tokens": session})
}

// VerifyEmail maneja GET /api/auth/verify-email/:token.
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	if _, err := h.auth.VerifyEmail(c.Request.Context(), c.Param("token")); err != nil {
		respondError(c, h.logger, "verify email", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "email verified successfully"})
}

// ResendVerification maneja POST /api/auth/resend-verification.
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, h.logger, "resend verification", err)
		return
	}

	if err := h.auth.ResendVerification(c.Request.Context(), req.Email); err != nil {
		respondError(c, h.logger, "resend verification", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "if the account exists and is not verified, a new verification email has been sent"})
}

// ForgotPassword maneja POST /api/auth/forgot-password.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, h.logger, "forgot password", err)
		return
	}

	token, err := h.auth.RequestPasswordReset(c.Request.Context(), req.Email)
	if err != nil {
		if domain.KindOf(err) == domain.KindNotFound && !h.opts.DiscloseResetAccounts {
			c.JSON(http.StatusOK, gin.H{"message": resetRequestedMessage})
			return
		}
		respondError(c, h.logger, "forgot password", err)
		return
	}

	resp := gin.H{"message": resetRequestedMessage}
	if h.opts.ExposeResetToken {
		resp["reset_token"] = token
	}
	c.JSON(http.StatusOK, resp)
}

// ResetPassword maneja POST /api/auth/reset-password/:token.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req struct {
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, h.logger, "reset password", err)
		return
	}

	if err := h.auth.ResetPassword(c.Request.Context(), c.Param("token"), req.Password); err != nil {
		respondError(c, h.logger, "reset password", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password reset successfully"})
}

// UpdatePassword maneja PATCH /api/auth/update-password.
func (h *AuthHandler) UpdatePassword(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		abortWith(c, http.StatusUnauthorized, string(domain.KindUnauthorized), "you are not logged in, please log in to get access")
		return
	}

	var req struct {
		CurrentPassword string `json:"current_password" binding:"required"`
		NewPassword     string `json:"new_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, h.logger, "update password", err)
		return
	}

	if err := h.auth.ChangePassword(c.Request.Context(), user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		respondError(c, h.logger, "update password", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password updated successfully"})
}

// RefreshToken maneja POST /api/auth/refresh-token.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, h.logger, "refresh", err)
		return
	}

	session, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, h.logger, "refresh", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokens": session})
}

// Logout maneja POST /api/auth/logout. Los tokens no se revocan; el cliente
// los descarta.
func (h *AuthHandler) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "logged out successfully"})
}
