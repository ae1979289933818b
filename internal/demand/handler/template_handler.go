package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/eduardopventura/demandflow/internal/demand/entity"
	"github.com/eduardopventura/demandflow/internal/demand/service"
)

// TemplateHandler template definition endpoints
type TemplateHandler struct {
	svc *service.TemplateService
}

func NewTemplateHandler(svc *service.TemplateService) *TemplateHandler {
	return &TemplateHandler{svc: svc}
}

// List GET /api/v1/templates
func (h *TemplateHandler) List(c *gin.Context) {
	templates, err := h.svc.ListTemplates(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, ListResponse{Items: templates})
}

// Get GET /api/v1/templates/:id
func (h *TemplateHandler) Get(c *gin.Context) {
	tpl, err := h.svc.GetTemplate(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, tpl)
}

// Create POST /api/v1/templates
func (h *TemplateHandler) Create(c *gin.Context) {
	var tpl entity.Template
	if err := c.ShouldBindJSON(&tpl); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.svc.CreateTemplate(c.Request.Context(), &tpl, GetUserID(c)); err != nil {
		HandleError(c, err)
		return
	}
	Created(c, tpl)
}

// Update PUT /api/v1/templates/:id
func (h *TemplateHandler) Update(c *gin.Context) {
	var tpl entity.Template
	if err := c.ShouldBindJSON(&tpl); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	tpl.ID = c.Param("id")
	if err := h.svc.UpdateTemplate(c.Request.Context(), &tpl); err != nil {
		HandleError(c, err)
		return
	}
	Success(c, tpl)
}

// Delete DELETE /api/v1/templates/:id
func (h *TemplateHandler) Delete(c *gin.Context) {
	if err := h.svc.DeleteTemplate(c.Request.Context(), c.Param("id")); err != nil {
		HandleError(c, err)
		return
	}
	Success(c, nil)
}
