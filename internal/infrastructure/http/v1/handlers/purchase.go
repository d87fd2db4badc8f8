package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"restock/internal/core/apperror"
	"restock/internal/domain/purchase"
	"restock/internal/infrastructure/http/v1/dto"
	"restock/internal/infrastructure/http/v1/middleware"
	"restock/internal/core/id"
)

// PurchaseHandler handles purchase order endpoints.
type PurchaseHandler struct {
	*BaseHandler
	service *purchase.Service
}

// NewPurchaseHandler creates a new purchase order handler.
func NewPurchaseHandler(base *BaseHandler, service *purchase.Service) *PurchaseHandler {
	return &PurchaseHandler{BaseHandler: base, service: service}
}

// Create handles POST /purchase-orders
func (h *PurchaseHandler) Create(c *gin.Context) {
	var req dto.CreateOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}

	order, err := h.service.Create(c.Request.Context(), req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, order)
}

// Get handles GET /purchase-orders/:id
func (h *PurchaseHandler) Get(c *gin.Context) {
	orderID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	order, err := h.service.Get(c.Request.Context(), orderID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, order)
}

// List handles GET /purchase-orders
func (h *PurchaseHandler) List(c *gin.Context) {
	filter := purchase.ListFilter{
		Limit:  h.ParseIntQuery(c, "limit", 50),
		Offset: h.ParseIntQuery(c, "offset", 0),
	}

	storeID, ok := h.ParseIDQuery(c, "storeId")
	if !ok {
		return
	}
	filter.StoreID = storeID

	supplierID, ok := h.ParseIDQuery(c, "supplierId")
	if !ok {
		return
	}
	filter.SupplierID = supplierID

	if raw := c.Query("status"); raw != "" {
		status := purchase.Status(raw)
		if !status.Valid() {
			h.Error(c, apperror.NewValidation("unknown status: "+raw))
			return
		}
		filter.Status = &status
	}

	orders, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ListResponse[purchase.Order]{
		Items:  orders,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// Submit handles POST /purchase-orders/:id/submit
func (h *PurchaseHandler) Submit(c *gin.Context) {
	h.transition(c, h.service.Submit)
}

// Approve handles POST /purchase-orders/:id/approve
func (h *PurchaseHandler) Approve(c *gin.Context) {
	h.transition(c, h.service.Approve)
}

// Cancel handles POST /purchase-orders/:id/cancel
func (h *PurchaseHandler) Cancel(c *gin.Context) {
	h.transition(c, h.service.Cancel)
}

// Receive handles POST /purchase-orders/:id/receive
func (h *PurchaseHandler) Receive(c *gin.Context) {
	orderID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.ReceiveOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.service.Receive(c.Request.Context(), req.ToInput(orderID))
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, result)
}

// AddLine handles POST /purchase-orders/:id/lines
func (h *PurchaseHandler) AddLine(c *gin.Context) {
	orderID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.OrderLineRequest
	if !h.BindJSON(c, &req) {
		return
	}

	order, err := h.service.AddLine(c.Request.Context(), orderID, req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, order)
}

// UpdateLine handles PUT /purchase-orders/:id/lines/:lineId
func (h *PurchaseHandler) UpdateLine(c *gin.Context) {
	orderID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}
	lineID, ok := h.ParseIDParam(c, "lineId")
	if !ok {
		return
	}

	var req dto.UpdateOrderLineRequest
	if !h.BindJSON(c, &req) {
		return
	}

	order, err := h.service.UpdateLine(c.Request.Context(), orderID, lineID, req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, order)
}

// RemoveLine handles DELETE /purchase-orders/:id/lines/:lineId
func (h *PurchaseHandler) RemoveLine(c *gin.Context) {
	orderID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}
	lineID, ok := h.ParseIDParam(c, "lineId")
	if !ok {
		return
	}

	order, err := h.service.RemoveLine(c.Request.Context(), orderID, lineID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, order)
}

func (h *PurchaseHandler) transition(c *gin.Context, fn func(ctx context.Context, orderID id.ID) (*purchase.Order, error)) {
	orderID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	order, err := fn(c.Request.Context(), orderID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, order)
}

// RegisterRoutes registers purchase order routes.
func (h *PurchaseHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.POST("/:id/submit", h.Submit)
	rg.POST("/:id/approve", middleware.RequireRole("manager"), h.Approve)
	rg.POST("/:id/cancel", h.Cancel)
	rg.POST("/:id/receive", h.Receive)
	rg.POST("/:id/lines", h.AddLine)
	rg.PUT("/:id/lines/:lineId", h.UpdateLine)
	rg.DELETE("/:id/lines/:lineId", h.RemoveLine)
}
