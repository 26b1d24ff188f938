package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kylevidrine/portal/internal/audit"
	"github.com/kylevidrine/portal/internal/customers"
	"github.com/kylevidrine/portal/pkg/logger"
	"github.com/kylevidrine/portal/pkg/metrics"
	"github.com/kylevidrine/portal/pkg/middleware"
)

// AdminHandler serves administrative mutations.
type AdminHandler struct {
	customers *customers.Service
	audit     audit.Sink
}

func NewAdminHandler(cs *customers.Service, sink audit.Sink) *AdminHandler {
	if sink == nil {
		sink = audit.LogSink{}
	}
	return &AdminHandler{customers: cs, audit: sink}
}

// Register routes under /admin
func (h *AdminHandler) Register(rg *gin.RouterGroup) {
	rg.DELETE("/customer/:id", h.DeleteCustomer)
}

// DeleteCustomer hard-deletes a customer. An unknown id is not an error.
func (h *AdminHandler) DeleteCustomer(c *gin.Context) {
	id := c.Param("id")
	res, err := h.customers.Delete(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "")
		return
	}
	deleted := 0
	if res.Deleted {
		deleted = 1
		metrics.CustomerDeletes.Inc()
	}
	actor, _ := c.Get(middleware.ContextKeyAPIKey)
	ev := audit.Event{
		Action:     audit.ActionCustomerDelete,
		CustomerID: id,
		Email:      res.Email,
		Deleted:    res.Deleted,
		At:         time.Now().UTC(),
	}
	if s, ok := actor.(string); ok {
		ev.Actor = s
	}
	if err := h.audit.Record(c.Request.Context(), ev); err != nil {
		logger.Warnf("audit record for delete of %s failed: %v", id, err)
	}
	c.JSON(http.StatusOK, gin.H{"success": res.Deleted, "deleted": deleted, "email": res.Email})
}
