package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/eduardopventura/demandflow/internal/demand/entity"
	"github.com/eduardopventura/demandflow/internal/demand/service"
)

// ActionHandler automation descriptor endpoints
type ActionHandler struct {
	svc *service.ActionService
}

func NewActionHandler(svc *service.Services) *ActionHandler {
	return &ActionHandler{svc: svc.Action}
}

// List GET /api/v1/actions
func (h *ActionHandler) List(c *gin.Context) {
	actions, err := h.svc.ListActions(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, ListResponse{Items: actions})
}

// Get GET /api/v1/actions/:id
func (h *ActionHandler) Get(c *gin.Context) {
	action, err := h.svc.GetAction(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, action)
}

// Create POST /api/v1/actions
func (h *ActionHandler) Create(c *gin.Context) {
	var action entity.Action
	if err := c.ShouldBindJSON(&action); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.svc.CreateAction(c.Request.Context(), &action, GetUserID(c)); err != nil {
		HandleError(c, err)
		return
	}
	Created(c, action)
}

// Update PUT /api/v1/actions/:id
func (h *ActionHandler) Update(c *gin.Context) {
	var action entity.Action
	if err := c.ShouldBindJSON(&action); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	action.ID = c.Param("id")
	if err := h.svc.UpdateAction(c.Request.Context(), &action); err != nil {
		HandleError(c, err)
		return
	}
	Success(c, action)
}

// Delete DELETE /api/v1/actions/:id
func (h *ActionHandler) Delete(c *gin.Context) {
	if err := h.svc.DeleteAction(c.Request.Context(), c.Param("id")); err != nil {
		HandleError(c, err)
		return
	}
	Success(c, nil)
}
