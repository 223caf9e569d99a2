package dto

import "time"

// CreateProductRequest represents the API request for creating a product
type CreateProductRequest struct {
	Name  string `json:"name" binding:"required"`
	Price int64  `json:"price" binding:"required"`
}

// UpdateProductRequest represents the API request for updating a product.
// Omitted fields keep their current value.
type UpdateProductRequest struct {
	Name  string `json:"name"`
	Price *int64 `json:"price"`
}

// ItemRequest is one credential pair to add to a product's inventory
type ItemRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AddItemsRequest represents the API request for stocking a product
type AddItemsRequest struct {
	Items []ItemRequest `json:"items" binding:"required,min=1,dive"`
}

// AddItemsResponse reports how many items were stocked
type AddItemsResponse struct {
	ProductID string `json:"productId"`
	Added     int    `json:"added"`
	Available int    `json:"available"`
}

// ProductResponse represents a product as exposed by the API. Credential
// pairs never leave the server through this shape.
type ProductResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Price     int64     `json:"price"`
	Available int       `json:"available"`
	CreatedAt time.Time `json:"createdAt"`
}
