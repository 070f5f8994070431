package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/marketplace/internal/services"
	"github.com/example/marketplace/internal/utils"
)

// ProductHandler serves a supplier's own product management.
type ProductHandler struct {
	catalog *services.CatalogService
}

// NewProductHandler constructs ProductHandler.
func NewProductHandler(catalog *services.CatalogService) *ProductHandler {
	return &ProductHandler{catalog: catalog}
}

// ListProducts returns every product of the supplier, hidden ones included.
func (h *ProductHandler) ListProducts(c *fiber.Ctx) error {
	sc, err := currentSession(c)
	if err != nil {
		return err
	}

	page := utils.ParsePagination(c)
	products, total, err := h.catalog.ListSupplierProducts(c.UserContext(), sc.UserID(), page)
	if err != nil {
		return err
	}
	return paginated(c, products, page, total)
}

// GetProduct returns one of the supplier's products.
func (h *ProductHandler) GetProduct(c *fiber.Ctx) error {
	sc, err := currentSession(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}

	product, err := h.catalog.GetSupplierProduct(c.UserContext(), sc.UserID(), id)
	if err != nil {
		return err
	}
	return ok(c, product)
}

// CreateProduct adds a product to the supplier's catalog.
func (h *ProductHandler) CreateProduct(c *fiber.Ctx) error {
	sc, err := currentSession(c)
	if err != nil {
		return err
	}
	var req services.ProductInput
	if err := parseBody(c, &req); err != nil {
		return err
	}

	product, err := h.catalog.CreateProduct(c.UserContext(), sc.UserID(), req)
	if err != nil {
		return err
	}
	return created(c, product)
}

// UpdateProduct replaces a product's editable fields.
func (h *ProductHandler) UpdateProduct(c *fiber.Ctx) error {
	sc, err := currentSession(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var req services.ProductInput
	if err := parseBody(c, &req); err != nil {
		return err
	}

	product, err := h.catalog.UpdateProduct(c.UserContext(), sc.UserID(), id, req)
	if err != nil {
		return err
	}
	return ok(c, product)
}

// DeleteProduct removes a product.
func (h *ProductHandler) DeleteProduct(c *fiber.Ctx) error {
	sc, err := currentSession(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}

	if err := h.catalog.DeleteProduct(c.UserContext(), sc.UserID(), id); err != nil {
		return err
	}
	return message(c, "product deleted")
}

type availabilityRequest struct {
	IsAvailable *bool `json:"is_available"`
}

// SetAvailability shows or hides a product.
func (h *ProductHandler) SetAvailability(c *fiber.Ctx) error {
	sc, err := currentSession(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var req availabilityRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.IsAvailable == nil {
		return fiber.NewError(fiber.StatusBadRequest, "is_available is required")
	}

	product, err := h.catalog.SetProductAvailability(c.UserContext(), sc.UserID(), id, *req.IsAvailable)
	if err != nil {
		return err
	}
	return ok(c, product)
}

type stockRequest struct {
	Delta int `json:"delta"`
}

// AdjustStock adds delta units to the product's stock; negative deltas remove.
func (h *ProductHandler) AdjustStock(c *fiber.Ctx) error {
	sc, err := currentSession(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var req stockRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	product, err := h.catalog.AdjustStock(c.UserContext(), sc.UserID(), id, req.Delta)
	if err != nil {
		return err
	}
	return ok(c, product)
}
