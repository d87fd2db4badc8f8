package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"restock/internal/core/apperror"
	"restock/internal/domain/stockcount"
	"restock/internal/infrastructure/http/v1/dto"
)

// StockCountHandler handles stock count endpoints.
type StockCountHandler struct {
	*BaseHandler
	service *stockcount.Service
}

// NewStockCountHandler creates a new stock count handler.
func NewStockCountHandler(base *BaseHandler, service *stockcount.Service) *StockCountHandler {
	return &StockCountHandler{BaseHandler: base, service: service}
}

// Create handles POST /stock-counts
func (h *StockCountHandler) Create(c *gin.Context) {
	var req dto.CreateCountRequest
	if !h.BindJSON(c, &req) {
		return
	}

	count, err := h.service.Create(c.Request.Context(), req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, count)
}

// Get handles GET /stock-counts/:id
func (h *StockCountHandler) Get(c *gin.Context) {
	countID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	count, err := h.service.Get(c.Request.Context(), countID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, count)
}

// List handles GET /stock-counts
func (h *StockCountHandler) List(c *gin.Context) {
	filter := stockcount.ListFilter{
		Limit:  h.ParseIntQuery(c, "limit", 50),
		Offset: h.ParseIntQuery(c, "offset", 0),
	}

	storeID, ok := h.ParseIDQuery(c, "storeId")
	if !ok {
		return
	}
	filter.StoreID = storeID

	if raw := c.Query("status"); raw != "" {
		status := stockcount.Status(raw)
		switch status {
		case stockcount.StatusDraft, stockcount.StatusInProgress, stockcount.StatusApplied, stockcount.StatusCancelled:
			filter.Status = &status
		default:
			h.Error(c, apperror.NewValidation("unknown status: "+raw))
			return
		}
	}

	counts, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ListResponse[stockcount.Count]{
		Items:  counts,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// Scan handles POST /stock-counts/:id/scan
func (h *StockCountHandler) Scan(c *gin.Context) {
	countID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.ScanRequest
	if !h.BindJSON(c, &req) {
		return
	}

	count, err := h.service.Scan(c.Request.Context(), req.ToInput(countID))
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, count)
}

// SetLine handles PUT /stock-counts/:id/lines/:lineId
func (h *StockCountHandler) SetLine(c *gin.Context) {
	countID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}
	lineID, ok := h.ParseIDParam(c, "lineId")
	if !ok {
		return
	}

	var req dto.SetCountLineRequest
	if !h.BindJSON(c, &req) {
		return
	}

	count, err := h.service.SetLine(c.Request.Context(), countID, lineID, req.CountedQty)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, count)
}

// RemoveLine handles DELETE /stock-counts/:id/lines/:lineId
func (h *StockCountHandler) RemoveLine(c *gin.Context) {
	countID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}
	lineID, ok := h.ParseIDParam(c, "lineId")
	if !ok {
		return
	}

	count, err := h.service.RemoveLine(c.Request.Context(), countID, lineID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, count)
}

// Apply handles POST /stock-counts/:id/apply
func (h *StockCountHandler) Apply(c *gin.Context) {
	countID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.ApplyCountRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.service.Apply(c.Request.Context(), stockcount.ApplyInput{
		IdempotencyKey: req.IdempotencyKey,
		CountID:        countID,
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, result)
}

// Cancel handles POST /stock-counts/:id/cancel
func (h *StockCountHandler) Cancel(c *gin.Context) {
	countID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	count, err := h.service.Cancel(c.Request.Context(), countID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, count)
}

// RegisterRoutes registers stock count routes.
func (h *StockCountHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.POST("/:id/scan", h.Scan)
	rg.PUT("/:id/lines/:lineId", h.SetLine)
	rg.DELETE("/:id/lines/:lineId", h.RemoveLine)
	rg.POST("/:id/apply", h.Apply)
	rg.POST("/:id/cancel", h.Cancel)
}
