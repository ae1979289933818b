package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/eduardopventura/demandflow/internal/config"
	"github.com/eduardopventura/demandflow/internal/demand/repository"
	"github.com/eduardopventura/demandflow/internal/demand/service"
	"github.com/eduardopventura/demandflow/internal/shared/callback"
)

// Handlers handler collection
type Handlers struct {
	Auth     *AuthHandler
	User     *UserHandler
	Template *TemplateHandler
	Action   *ActionHandler
	Demand   *DemandHandler
	Upload   *UploadHandler
}

// NewHandlers creates the handler collection.
func NewHandlers(svc *service.Services, cfg *config.Config) *Handlers {
	return &Handlers{
		Auth:     NewAuthHandler(svc.Auth),
		User:     NewUserHandler(svc.User),
		Template: NewTemplateHandler(svc.Template),
		Action:   NewActionHandler(svc),
		Demand:   NewDemandHandler(svc.Demand, svc.Action),
		Upload:   NewUploadHandler(svc.Files),
	}
}

// Response standard response envelope
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ListResponse list payload with pagination
type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// Pagination page metadata
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
}

// Success 200 response
func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Created 201 response
func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Error error response; the HTTP status is the leading three digits of code.
func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

func Unauthorized(c *gin.Context, message string) {
	Error(c, 40100, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// BadGateway upstream callback failure response
func BadGateway(c *gin.Context, message string) {
	Error(c, 50200, message)
}

// HandleError maps service errors onto the envelope: validation failures are
// client errors, missing records are 404, and a failed action callback is
// reported as a bad gateway with the endpoint and upstream code so the
// automation can be diagnosed.
func HandleError(c *gin.Context, err error) {
	var callErr *callback.CallError
	switch {
	case service.IsValidation(err):
		BadRequest(c, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		NotFound(c, "resource not found")
	case errors.As(err, &callErr):
		BadGateway(c, callErr.Error())
	default:
		InternalError(c, err.Error())
	}
}

// GetUserID reads the authenticated user id from the request context.
func GetUserID(c *gin.Context) string {
	userID, _ := c.Get("user_id")
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}

// GetPagination reads page/page_size query params with sane bounds.
func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	return page, pageSize
}

func totalPages(total int64, pageSize int) int64 {
	if pageSize <= 0 {
		return 0
	}
	return (total + int64(pageSize) - 1) / int64(pageSize)
}
