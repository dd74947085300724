package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pantry-to-plate/internal/domain"
	"pantry-to-plate/internal/service"
)

// UserHandler mantiene dependencias para endpoints de usuarios.
type UserHandler struct {
	logger *zap.Logger
	users  *service.UserService
}

func NewUserHandler(logger *zap.Logger, users *service.UserService) *UserHandler {
	return &UserHandler{
		logger: logger,
		users:  users,
	}
}

// Me maneja GET /api/users/me.
func (h *UserHandler) Me(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		abortWith(c, http.StatusUnauthorized, string(domain.KindUnauthorized), "you are not logged in, please log in to get access")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// UpdateMe maneja PATCH /api/users/me.
func (h *UserHandler) UpdateMe(c *gin.Context) {
	current, ok := CurrentUser(c)
	if !ok {
		abortWith(c, http.StatusUnauthorized, string(domain.KindUnauthorized), "you are not logged in, please log in to get access")
		return
	}

	var req struct {
		Username  *string `json:"username"`
		Email     *string `json:"email" binding:"omitempty,email"`
		FirstName *string `json:"first_name"`
		LastName  *string `json:"last_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, h.logger, "update profile", err)
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), current.ID, domain.ProfileUpdate{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		respondError(c, h.logger, "update profile", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// GetUser maneja GET /api/admin/users/:id.
func (h *UserHandler) GetUser(c *gin.Context) {
	user, err := h.users.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "get user", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}
