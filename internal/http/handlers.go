package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/attax1994/qiankun/internal/dom"
	"github.com/attax1994/qiankun/internal/engine"
	"github.com/attax1994/qiankun/internal/logging"
	"github.com/attax1994/qiankun/internal/monitoring"
	"github.com/attax1994/qiankun/internal/registry"
	"github.com/attax1994/qiankun/internal/shared/types"
)

// Handlers contains all HTTP handlers.
type Handlers struct {
	registry *registry.Manager
	engine   *engine.Engine
	metrics  *monitoring.Metrics
	log      *logging.Logger
}

// NewHandlers creates a new handler set.
func NewHandlers(reg *registry.Manager, eng *engine.Engine, metrics *monitoring.Metrics, log *logging.Logger) *Handlers {
	return &Handlers{
		registry: reg,
		engine:   eng,
		metrics:  metrics,
		log:      log,
	}
}

// Root serves the rendered host page, mounted wrappers included.
func (h *Handlers) Root(c *gin.Context) {
	page, err := h.engine.Document().Render()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
}

// Health handles detailed health check.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "qiankun-host",
		"apps": gin.H{
			"registered": len(h.registry.List()),
			"mounted":    h.engine.Mounted(),
		},
		"bus": gin.H{
			"listeners": h.engine.Bus().ListenerCount(),
		},
	})
}

// ListApps lists all registrations with their lifecycle status.
func (h *Handlers) ListApps(c *gin.Context) {
	apps := h.registry.List()
	c.JSON(http.StatusOK, gin.H{
		"apps":  apps,
		"total": len(apps),
	})
}

// registerRequest is the registration payload.
type registerRequest struct {
	Name      string                 `json:"name" binding:"required"`
	Entry     string                 `json:"entry" binding:"required"`
	Container string                 `json:"container"`
	Props     map[string]interface{} `json:"props"`
}

// RegisterApp registers a micro-application for later mounting.
func (h *Handlers) RegisterApp(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	desc := &types.AppDescriptor{
		Name:  req.Name,
		Entry: req.Entry,
		Props: req.Props,
	}
	if req.Container != "" {
		desc.Container = dom.Selector(req.Container)
	}

	if err := h.registry.Register(desc); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"name":    req.Name,
	})
}

// GetApp returns one registration's state.
func (h *Handlers) GetApp(c *gin.Context) {
	name := c.Param("name")

	info, ok := h.registry.Get(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "application not found"})
		return
	}
	c.JSON(http.StatusOK, info)
}

// DeregisterApp removes a registration. Mounted applications must be
// unmounted first.
func (h *Handlers) DeregisterApp(c *gin.Context) {
	name := c.Param("name")

	if err := h.registry.Deregister(name); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"name":    name,
	})
}

// mountRequest optionally overrides the registered container.
type mountRequest struct {
	Container string `json:"container"`
}

// MountApp loads the application on first mount and brings it live in its
// container.
func (h *Handlers) MountApp(c *gin.Context) {
	name := c.Param("name")

	var req mountRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	var container dom.ContainerRef
	if req.Container != "" {
		container = dom.Selector(req.Container)
	}

	if err := h.registry.Mount(c.Request.Context(), name, container); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	info, _ := h.registry.Get(name)
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"name":     name,
		"instance": info.Instance,
	})
}

// UnmountApp takes a mounted application down.
func (h *Handlers) UnmountApp(c *gin.Context) {
	name := c.Param("name")

	if err := h.registry.Unmount(c.Request.Context(), name); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"name":    name,
	})
}

// updateRequest carries new props for a mounted application.
type updateRequest struct {
	Props map[string]interface{} `json:"props" binding:"required"`
}

// UpdateApp pushes new props to a mounted application.
func (h *Handlers) UpdateApp(c *gin.Context) {
	name := c.Param("name")

	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.registry.Update(c.Request.Context(), name, req.Props); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"name":    name,
	})
}

// GlobalState returns the shared state snapshot.
func (h *Handlers) GlobalState(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"state":     h.engine.Bus().Snapshot(),
		"listeners": h.engine.Bus().ListenerCount(),
	})
}

// Stats summarizes request and lifecycle activity.
func (h *Handlers) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.metrics.GetStats())
}

// statusFor maps orchestrator errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, registry.ErrNotRegistered):
		return http.StatusNotFound
	case types.IsConfigError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
