package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lekhanhduc/qrpay/internal/domain/entity"
	domainerr "github.com/lekhanhduc/qrpay/internal/domain/error"
	coreport "github.com/lekhanhduc/qrpay/internal/domain/port/core"
	"github.com/lekhanhduc/qrpay/internal/domain/port/persistence"
	"github.com/lekhanhduc/qrpay/internal/infrastructure/adapter/api/dto"
)

// ProductHandler handles product administration HTTP requests
type ProductHandler struct {
	inventory persistence.InventoryStore
	logger    coreport.Logger
}

// NewProductHandler creates a new product handler instance
func NewProductHandler(inventory persistence.InventoryStore, logger coreport.Logger) *ProductHandler {
	return &ProductHandler{
		inventory: inventory,
		logger:    logger,
	}
}

// List handles the GET /products endpoint
func (h *ProductHandler) List(c *gin.Context) {
	products, err := h.inventory.ListProducts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]dto.ProductResponse, 0, len(products))
	for _, p := range products {
		resp = append(resp, toProductResponse(p))
	}
	c.JSON(http.StatusOK, resp)
}

// Get handles the GET /products/:id endpoint
func (h *ProductHandler) Get(c *gin.Context) {
	product, err := h.inventory.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProductResponse(product))
}

// Create handles the POST /products endpoint
func (h *ProductHandler) Create(c *gin.Context) {
	var req dto.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid create product request format", map[string]any{
			"error": err.Error(),
		})
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Code:    domainerr.ErrorCode(domainerr.ErrInvalidRequest),
			Message: "Invalid request format: " + err.Error(),
		})
		return
	}

	if req.Price <= 0 {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Code:    domainerr.ErrorCode(domainerr.ErrInvalidAmount),
			Message: "Price must be positive",
		})
		return
	}

	product, err := h.inventory.CreateProduct(c.Request.Context(), req.Name, req.Price)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toProductResponse(product))
}

// Update handles the PUT /products/:id endpoint
func (h *ProductHandler) Update(c *gin.Context) {
	var req dto.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid update product request format", map[string]any{
			"error": err.Error(),
		})
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Code:    domainerr.ErrorCode(domainerr.ErrInvalidRequest),
			Message: "Invalid request format: " + err.Error(),
		})
		return
	}

	// Negative price means leave untouched at the store level
	price := int64(-1)
	if req.Price != nil {
		if *req.Price <= 0 {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{
				Code:    domainerr.ErrorCode(domainerr.ErrInvalidAmount),
				Message: "Price must be positive",
			})
			return
		}
		price = *req.Price
	}

	product, err := h.inventory.UpdateProduct(c.Request.Context(), c.Param("id"), req.Name, price)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProductResponse(product))
}

// Delete handles the DELETE /products/:id endpoint
func (h *ProductHandler) Delete(c *gin.Context) {
	if err := h.inventory.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AddItems handles the POST /products/:id/items endpoint
func (h *ProductHandler) AddItems(c *gin.Context) {
	var req dto.AddItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid add items request format", map[string]any{
			"error": err.Error(),
		})
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Code:    domainerr.ErrorCode(domainerr.ErrInvalidRequest),
			Message: "Invalid request format: " + err.Error(),
		})
		return
	}

	productID := c.Param("id")
	items := make([]entity.InventoryItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, entity.InventoryItem{
			Username: item.Username,
			Password: item.Password,
		})
	}

	added, err := h.inventory.AddItems(c.Request.Context(), productID, items)
	if err != nil {
		respondError(c, err)
		return
	}

	available, err := h.inventory.CountAvailable(c.Request.Context(), productID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.AddItemsResponse{
		ProductID: productID,
		Added:     added,
		Available: available,
	})
}

func toProductResponse(p *entity.Product) dto.ProductResponse {
	return dto.ProductResponse{
		ID:        p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Available: p.AvailableCount(),
		CreatedAt: p.CreatedAt,
	}
}
