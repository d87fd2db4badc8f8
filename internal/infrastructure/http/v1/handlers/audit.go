package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appctx "restock/internal/core/context"
	"restock/internal/infrastructure/http/v1/dto"
	"restock/internal/infrastructure/storage/postgres"
)

const maxHistoryLimit = 200

// AuditHandler exposes the audit trail of single entities for
// operational troubleshooting.
type AuditHandler struct {
	*BaseHandler
	sink *postgres.AuditSink
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(base *BaseHandler, sink *postgres.AuditSink) *AuditHandler {
	return &AuditHandler{BaseHandler: base, sink: sink}
}

// EntityHistory handles GET /audit/:entity/:entityId
func (h *AuditHandler) EntityHistory(c *gin.Context) {
	entityID, ok := h.ParseIDParam(c, "entityId")
	if !ok {
		return
	}

	limit := h.ParseIntQuery(c, "limit", 50)
	if limit <= 0 || limit > maxHistoryLimit {
		limit = 50
	}

	orgID := appctx.GetOrganizationID(c.Request.Context())
	entries, err := h.sink.EntityHistory(c.Request.Context(), orgID, c.Param("entity"), entityID, limit)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ListResponse[postgres.HistoryEntry]{Items: entries, Limit: limit})
}

// RegisterRoutes registers audit routes.
func (h *AuditHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/:entity/:entityId", h.EntityHistory)
}
