package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"restock/internal/core/apperror"
	"restock/internal/domain/ledger"
	"restock/internal/infrastructure/http/v1/dto"
	"restock/internal/infrastructure/http/v1/middleware"
)

// StockHandler handles the stock ledger endpoints.
type StockHandler struct {
	*BaseHandler
	service *ledger.Service
}

// NewStockHandler creates a new stock ledger handler.
func NewStockHandler(base *BaseHandler, service *ledger.Service) *StockHandler {
	return &StockHandler{BaseHandler: base, service: service}
}

// Adjust handles POST /stock/adjust
func (h *StockHandler) Adjust(c *gin.Context) {
	var req dto.AdjustStockRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.service.Adjust(c.Request.Context(), req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, result)
}

// Receive handles POST /stock/receive
func (h *StockHandler) Receive(c *gin.Context) {
	var req dto.ReceiveStockRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.service.Receive(c.Request.Context(), req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, result)
}

// Transfer handles POST /stock/transfer
func (h *StockHandler) Transfer(c *gin.Context) {
	var req dto.TransferStockRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.service.Transfer(c.Request.Context(), req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, result)
}

// Recompute handles POST /stock/recompute/:storeId
func (h *StockHandler) Recompute(c *gin.Context) {
	storeID, ok := h.ParseIDParam(c, "storeId")
	if !ok {
		return
	}

	result, err := h.service.Recompute(c.Request.Context(), storeID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, result)
}

// GetSnapshot handles GET /stock/snapshots/:storeId/:productId
func (h *StockHandler) GetSnapshot(c *gin.Context) {
	storeID, ok := h.ParseIDParam(c, "storeId")
	if !ok {
		return
	}
	productID, ok := h.ParseIDParam(c, "productId")
	if !ok {
		return
	}
	variantID, ok := h.ParseIDQuery(c, "variantId")
	if !ok {
		return
	}

	snap, err := h.service.GetSnapshot(c.Request.Context(), storeID, productID, variantID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, snap)
}

// ListSnapshots handles GET /stock/snapshots/:storeId
func (h *StockHandler) ListSnapshots(c *gin.Context) {
	storeID, ok := h.ParseIDParam(c, "storeId")
	if !ok {
		return
	}

	snaps, err := h.service.ListSnapshots(c.Request.Context(), storeID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ListResponse[ledger.Snapshot]{Items: snaps})
}

// GetMovements handles GET /stock/movements
func (h *StockHandler) GetMovements(c *gin.Context) {
	storeID, ok := h.ParseIDQuery(c, "storeId")
	if !ok {
		return
	}
	if storeID == nil {
		h.Error(c, apperror.NewValidation("storeId is required"))
		return
	}

	filter := ledger.MovementFilter{
		StoreID: *storeID,
		Limit:   h.ParseIntQuery(c, "limit", 100),
		Offset:  h.ParseIntQuery(c, "offset", 0),
	}

	productID, ok := h.ParseIDQuery(c, "productId")
	if !ok {
		return
	}
	filter.ProductID = productID

	if vk := c.Query("variantKey"); vk != "" {
		filter.VariantKey = &vk
	}

	for _, t := range c.QueryArray("type") {
		filter.Types = append(filter.Types, ledger.MovementType(t))
	}

	movements, err := h.service.Movements(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ListResponse[ledger.Movement]{
		Items:  movements,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// RegisterRoutes registers stock ledger routes.
func (h *StockHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/adjust", h.Adjust)
	rg.POST("/receive", h.Receive)
	rg.POST("/transfer", h.Transfer)
	rg.POST("/recompute/:storeId", middleware.RequireRole("manager"), h.Recompute)
	rg.GET("/snapshots/:storeId", h.ListSnapshots)
	rg.GET("/snapshots/:storeId/:productId", h.GetSnapshot)
	rg.GET("/movements", h.GetMovements)
}
