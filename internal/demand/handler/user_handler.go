package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/eduardopventura/demandflow/internal/demand/service"
)

// UserHandler user and role endpoints
type UserHandler struct {
	svc *service.UserService
}

func NewUserHandler(svc *service.UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

// List GET /api/v1/users
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.svc.ListUsers(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, ListResponse{Items: users})
}

// Get GET /api/v1/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.svc.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, user)
}

// Create POST /api/v1/users
func (h *UserHandler) Create(c *gin.Context) {
	var in service.CreateUserInput
	if err := c.ShouldBindJSON(&in); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	user, err := h.svc.CreateUser(c.Request.Context(), in)
	if err != nil {
		HandleError(c, err)
		return
	}
	Created(c, user)
}

// Update PATCH /api/v1/users/:id
func (h *UserHandler) Update(c *gin.Context) {
	var in service.UpdateUserInput
	if err := c.ShouldBindJSON(&in); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	user, err := h.svc.UpdateUser(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, user)
}

// ListRoles GET /api/v1/roles
func (h *UserHandler) ListRoles(c *gin.Context) {
	roles, err := h.svc.ListRoles(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, ListResponse{Items: roles})
}

// BatchEditRoles POST /api/v1/roles/batch
// The whole batch is applied in one transaction; one invalid edit rejects
// everything.
func (h *UserHandler) BatchEditRoles(c *gin.Context) {
	var body struct {
		Edits []service.RoleEdit `json:"edits" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.svc.ApplyRoleEdits(c.Request.Context(), body.Edits); err != nil {
		HandleError(c, err)
		return
	}
	Success(c, nil)
}
