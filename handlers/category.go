package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shopverse/category_service/apperrors"
	"github.com/shopverse/category_service/models"
)

// CategoryService is the category logic the handlers delegate to
type CategoryService interface {
	Tree(ctx context.Context) ([]*models.CategoryNode, error)
	Reorder(ctx context.Context, req models.ReorderRequest) error
	Create(ctx context.Context, req models.CategoryRequest) (*models.CategoryNode, error)
	Update(ctx context.Context, id string, req models.CategoryRequest) (*models.CategoryNode, error)
	Delete(ctx context.Context, id string) error
}

// CategoryHandler handles the admin category HTTP requests
type CategoryHandler struct {
	svc CategoryService
}

// NewCategoryHandler creates a new CategoryHandler instance
func NewCategoryHandler(svc CategoryService) *CategoryHandler {
	return &CategoryHandler{svc: svc}
}

// RegisterRoutes mounts the admin category routes under /api/admin/categories
func (h *CategoryHandler) RegisterRoutes(r gin.IRouter) {
	g := r.Group("/api/admin/categories")
	g.GET("/tree", h.GetTree)
	g.POST("/reorder", h.Reorder)
	g.POST("", h.Create)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
}

// NewRouter builds a gin engine with the middleware and admin routes
func NewRouter(svc CategoryService) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogging(), ErrorHandler())
	NewCategoryHandler(svc).RegisterRoutes(r)
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, ErrorBody(apperrors.ErrNotFound))
	})
	return r
}

// GetTree returns the category forest
func (h *CategoryHandler) GetTree(c *gin.Context) {
	nodes, err := h.svc.Tree(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, nodes)
}

// Reorder replaces the display order of one sibling list
func (h *CategoryHandler) Reorder(c *gin.Context) {
	var req models.ReorderRequest
	if !bind(c, &req) {
		return
	}
	if err := h.svc.Reorder(c.Request.Context(), req); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Create creates a category
func (h *CategoryHandler) Create(c *gin.Context) {
	var req models.CategoryRequest
	if !bind(c, &req) {
		return
	}
	node, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, node)
}

// Update updates the category named in the path
func (h *CategoryHandler) Update(c *gin.Context) {
	var req models.CategoryRequest
	if !bind(c, &req) {
		return
	}
	node, err := h.svc.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, node)
}

// Delete deletes the category named in the path
func (h *CategoryHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		_ = c.Error(apperrors.Wrap(apperrors.WithMessage(apperrors.ErrInvalidInput, "Request body must be valid JSON"), err))
		return false
	}
	return true
}
