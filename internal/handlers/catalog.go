package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/example/marketplace/internal/services"
	"github.com/example/marketplace/internal/utils"
)

// CatalogHandler manages categories and the public supplier/product catalog.
type CatalogHandler struct {
	catalog *services.CatalogService
}

// NewCatalogHandler constructs CatalogHandler.
func NewCatalogHandler(catalog *services.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// ListCategories returns every category.
func (h *CatalogHandler) ListCategories(c *fiber.Ctx) error {
	categories, err := h.catalog.ListCategories(c.UserContext())
	if err != nil {
		return err
	}
	return ok(c, categories)
}

// CreateCategory adds a category.
func (h *CatalogHandler) CreateCategory(c *fiber.Ctx) error {
	var req services.CategoryInput
	if err := parseBody(c, &req); err != nil {
		return err
	}

	category, err := h.catalog.CreateCategory(c.UserContext(), req)
	if err != nil {
		return err
	}
	return created(c, category)
}

// UpdateCategory renames a category.
func (h *CatalogHandler) UpdateCategory(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var req services.CategoryInput
	if err := parseBody(c, &req); err != nil {
		return err
	}

	category, err := h.catalog.UpdateCategory(c.UserContext(), id, req)
	if err != nil {
		return err
	}
	return ok(c, category)
}

// DeleteCategory removes a category; its products become uncategorised.
func (h *CatalogHandler) DeleteCategory(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.catalog.DeleteCategory(c.UserContext(), id); err != nil {
		return err
	}
	return message(c, "category deleted")
}

// ListSuppliers returns the supplier directory.
func (h *CatalogHandler) ListSuppliers(c *fiber.Ctx) error {
	page := utils.ParsePagination(c)
	filter := services.SupplierFilter{
		BusinessType: c.Query("type"),
		Search:       c.Query("search"),
		OpenOnly:     c.QueryBool("open", false),
	}

	suppliers, total, err := h.catalog.ListSuppliers(c.UserContext(), filter, page)
	if err != nil {
		return err
	}
	return paginated(c, suppliers, page, total)
}

// GetSupplier returns a supplier with its business profile.
func (h *CatalogHandler) GetSupplier(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}

	supplier, err := h.catalog.GetSupplier(c.UserContext(), id)
	if err != nil {
		return err
	}
	return ok(c, supplier)
}

func queryDecimal(c *fiber.Ctx, name string) (*decimal.Decimal, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid "+name)
	}
	return &value, nil
}

func parseProductFilter(c *fiber.Ctx) (services.ProductFilter, error) {
	filter := services.ProductFilter{Search: c.Query("search")}

	var err error
	if filter.SupplierID, err = queryUUID(c, "supplier_id"); err != nil {
		return filter, err
	}
	if filter.CategoryID, err = queryUUID(c, "category_id"); err != nil {
		return filter, err
	}
	if filter.MinPrice, err = queryDecimal(c, "min_price"); err != nil {
		return filter, err
	}
	if filter.MaxPrice, err = queryDecimal(c, "max_price"); err != nil {
		return filter, err
	}
	return filter, nil
}

// ListProducts returns available products.
func (h *CatalogHandler) ListProducts(c *fiber.Ctx) error {
	filter, err := parseProductFilter(c)
	if err != nil {
		return err
	}

	page := utils.ParsePagination(c)
	products, total, err := h.catalog.ListProducts(c.UserContext(), filter, page)
	if err != nil {
		return err
	}
	return paginated(c, products, page, total)
}

// ListSupplierProducts returns the available products of one supplier.
func (h *CatalogHandler) ListSupplierProducts(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	filter, err := parseProductFilter(c)
	if err != nil {
		return err
	}
	filter.SupplierID = &id

	page := utils.ParsePagination(c)
	products, total, err := h.catalog.ListProducts(c.UserContext(), filter, page)
	if err != nil {
		return err
	}
	return paginated(c, products, page, total)
}

// GetProduct returns a single available product.
func (h *CatalogHandler) GetProduct(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}

	product, err := h.catalog.GetProduct(c.UserContext(), id)
	if err != nil {
		return err
	}
	return ok(c, product)
}
