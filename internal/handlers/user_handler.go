package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ibuddy-app/ibuddy-service/internal/services"
	"github.com/ibuddy-app/ibuddy-service/internal/utils"
)

type UserHandler struct {
	BaseHandler
	userService services.UserService
}

func NewUserHandler(userService services.UserService, logger utils.Logger) *UserHandler {
	return &UserHandler{
		BaseHandler: NewBaseHandler(logger),
		userService: userService,
	}
}

// ListUsers lists users, highest role first
// @Summary List users
// @Tags users
// @Produce json
// @Success 200 {array} models.User
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	h.LogRequest(c, "Listing users")
	actor, ok := h.currentUser(c)
	if !ok {
		return
	}

	users, err := h.userService.List(c.Request.Context(), actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// ListBuddies lists buddies whose agreement is still running
// @Summary List active buddies
// @Tags users
// @Produce json
// @Success 200 {array} models.User
// @Router /users/buddies [get]
func (h *UserHandler) ListBuddies(c *gin.Context) {
	h.LogRequest(c, "Listing active buddies")
	actor, ok := h.currentUser(c)
	if !ok {
		return
	}

	buddies, err := h.userService.ListActiveBuddies(c.Request.Context(), actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, buddies)
}

// RoleOptions lists the roles and whether the actor may grant each
// @Summary Role options
// @Tags users
// @Produce json
// @Success 200 {array} services.RoleOption
// @Router /users/roles [get]
func (h *UserHandler) RoleOptions(c *gin.Context) {
	actor, ok := h.currentUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.userService.RoleOptions(actor))
}

// GetUser returns a user with the actor's permissions on it
// @Summary Get user
// @Tags users
// @Produce json
// @Param email path string true "User e-mail"
// @Success 200 {object} services.UserDetail
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /users/{email} [get]
func (h *UserHandler) GetUser(c *gin.Context) {
	email := c.Param("email")
	h.LogRequest(c, "Getting user", "email", email)
	actor, ok := h.currentUser(c)
	if !ok {
		return
	}

	user, err := h.userService.Get(c.Request.Context(), actor, email)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// CreateUser creates a user with a role the actor may grant
// @Summary Create user
// @Tags users
// @Accept json
// @Produce json
// @Param body body services.CreateUserRequest true "User data"
// @Success 201 {object} models.User
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /users [post]
func (h *UserHandler) CreateUser(c *gin.Context) {
	actor, ok := h.currentUser(c)
	if !ok {
		return
	}
	var req services.CreateUserRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.LogRequest(c, "Creating user", "role", req.Role)

	user, err := h.userService.Create(c.Request.Context(), actor, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// UpdateUser updates a user
// @Summary Update user
// @Tags users
// @Accept json
// @Produce json
// @Param email path string true "User e-mail"
// @Param body body services.UpdateUserRequest true "User data"
// @Success 200 {object} models.User
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /users/{email} [put]
func (h *UserHandler) UpdateUser(c *gin.Context) {
	email := c.Param("email")
	actor, ok := h.currentUser(c)
	if !ok {
		return
	}
	var req services.UpdateUserRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.LogRequest(c, "Updating user", "email", email)

	user, err := h.userService.Update(c.Request.Context(), actor, email, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// CanDeleteUser reports whether the actor may delete a user, and why not
// @Summary Check user deletion
// @Tags users
// @Produce json
// @Param email path string true "User e-mail"
// @Success 200 {object} authz.Decision
// @Router /users/{email}/can-delete [get]
func (h *UserHandler) CanDeleteUser(c *gin.Context) {
	email := c.Param("email")
	actor, ok := h.currentUser(c)
	if !ok {
		return
	}

	decision, err := h.userService.CanDelete(c.Request.Context(), actor, email)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, decision)
}

// DeleteUser deletes a user without mentees
// @Summary Delete user
// @Tags users
// @Param email path string true "User e-mail"
// @Success 204
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /users/{email} [delete]
func (h *UserHandler) DeleteUser(c *gin.Context) {
	email := c.Param("email")
	h.LogRequest(c, "Deleting user", "email", email)
	actor, ok := h.currentUser(c)
	if !ok {
		return
	}

	if err := h.userService.Delete(c.Request.Context(), actor, email); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
