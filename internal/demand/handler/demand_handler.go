package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eduardopventura/demandflow/internal/demand/service"
)

// DemandHandler demand lifecycle endpoints
type DemandHandler struct {
	svc       *service.DemandService
	actionSvc *service.ActionService
}

func NewDemandHandler(svc *service.DemandService, actionSvc *service.ActionService) *DemandHandler {
	return &DemandHandler{svc: svc, actionSvc: actionSvc}
}

// Create POST /api/v1/demands
func (h *DemandHandler) Create(c *gin.Context) {
	var in service.CreateDemandInput
	if err := c.ShouldBindJSON(&in); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	d, err := h.svc.CreateDemand(c.Request.Context(), in, GetUserID(c))
	if err != nil {
		HandleError(c, err)
		return
	}
	Created(c, d)
}

// Get GET /api/v1/demands/:id
func (h *DemandHandler) Get(c *gin.Context) {
	d, err := h.svc.GetDemand(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, d)
}

// List GET /api/v1/demands
func (h *DemandHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	demands, total, err := h.svc.ListDemands(c.Request.Context(), listFilters(c), page, pageSize)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, ListResponse{
		Items: demands,
		Pagination: &Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages(total, pageSize),
		},
	})
}

// Update PATCH /api/v1/demands/:id
func (h *DemandHandler) Update(c *gin.Context) {
	var upd service.DemandUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	d, err := h.svc.ApplyDemandUpdate(c.Request.Context(), c.Param("id"), upd, GetUserID(c))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, d)
}

// StartProgress POST /api/v1/demands/:id/start
func (h *DemandHandler) StartProgress(c *gin.Context) {
	d, err := h.svc.StartProgress(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, d)
}

// Finish POST /api/v1/demands/:id/finish
func (h *DemandHandler) Finish(c *gin.Context) {
	d, err := h.svc.Finish(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, d)
}

// Reopen POST /api/v1/demands/:id/reopen
func (h *DemandHandler) Reopen(c *gin.Context) {
	d, err := h.svc.Reopen(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, d)
}

// ExecuteAction POST /api/v1/demands/:id/tasks/:taskId/execute
func (h *DemandHandler) ExecuteAction(c *gin.Context) {
	result, err := h.actionSvc.ExecuteAction(c.Request.Context(), c.Param("id"), c.Param("taskId"), GetUserID(c))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, result)
}

// Export GET /api/v1/demands/export
func (h *DemandHandler) Export(c *gin.Context) {
	f, name, err := h.svc.ExportDemands(c.Request.Context(), listFilters(c))
	if err != nil {
		HandleError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := f.Write(c.Writer); err != nil {
		c.Status(http.StatusInternalServerError)
	}
}

func listFilters(c *gin.Context) map[string]interface{} {
	return map[string]interface{}{
		"status":              c.Query("status"),
		"template_id":         c.Query("template_id"),
		"responsible_user_id": c.Query("responsible_user_id"),
		"responsible_role_id": c.Query("responsible_role_id"),
		"name":                c.Query("name"),
	}
}
