package services

import (
	"context"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/juju/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/marketplace/internal/models"
	"github.com/example/marketplace/internal/utils"
)

// CatalogService serves categories, supplier listings and product CRUD.
type CatalogService struct {
	db *gorm.DB
}

// NewCatalogService constructs CatalogService.
func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{db: db}
}

var slugCleaner = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(s string) string {
	return strings.Trim(slugCleaner.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

func likePattern(s string) string {
	return "%" + strings.ToLower(strings.TrimSpace(s)) + "%"
}

// ListCategories returns every category by name.
func (s *CatalogService) ListCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	err := s.db.WithContext(ctx).Order("name asc").Find(&categories).Error
	return categories, errors.Trace(err)
}

// CategoryInput describes a category.
type CategoryInput struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
}

func (in *CategoryInput) normalise() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return errors.BadRequestf("name is required")
	}
	in.Slug = slugify(in.Slug)
	if in.Slug == "" {
		in.Slug = slugify(in.Name)
	}
	if in.Slug == "" {
		return errors.BadRequestf("slug must contain letters or digits")
	}
	return nil
}

// CreateCategory adds a category. Slugs are unique.
func (s *CatalogService) CreateCategory(ctx context.Context, in CategoryInput) (*models.Category, error) {
	if err := in.normalise(); err != nil {
		return nil, err
	}
	category := models.Category{Name: in.Name, Slug: in.Slug, Description: in.Description}
	if err := s.db.WithContext(ctx).Create(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errors.AlreadyExistsf("category %q", in.Slug)
		}
		return nil, errors.Trace(err)
	}
	return &category, nil
}

// UpdateCategory replaces a category's fields.
func (s *CatalogService) UpdateCategory(ctx context.Context, id uuid.UUID, in CategoryInput) (*models.Category, error) {
	if err := in.normalise(); err != nil {
		return nil, err
	}

	var category models.Category
	if err := s.db.WithContext(ctx).First(&category, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "category %s", id)
	}
	category.Name = in.Name
	category.Slug = in.Slug
	category.Description = in.Description
	if err := s.db.WithContext(ctx).Save(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errors.AlreadyExistsf("category %q", in.Slug)
		}
		return nil, errors.Trace(err)
	}
	return &category, nil
}

// DeleteCategory removes a category and detaches its products.
func (s *CatalogService) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Product{}).Where("category_id = ?", id).
			UpdateColumn("category_id", nil).Error; err != nil {
			return errors.Trace(err)
		}
		res := tx.Delete(&models.Category{}, "id = ?", id)
		if res.Error != nil {
			return errors.Trace(res.Error)
		}
		if res.RowsAffected == 0 {
			return errors.NotFoundf("category %s", id)
		}
		return nil
	})
}

// SupplierFilter narrows the public supplier directory.
type SupplierFilter struct {
	BusinessType string
	Search       string
	OpenOnly     bool
}

func (s *CatalogService) suppliers(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Model(&models.User{}).
		Joins("JOIN supplier_profiles ON supplier_profiles.user_id = users.id").
		Where("users.role = ? AND users.status = ?", models.RoleSupplier, models.UserStatusActive)
}

// ListSuppliers returns active suppliers with their business profile.
func (s *CatalogService) ListSuppliers(ctx context.Context, filter SupplierFilter, page utils.Pagination) ([]models.User, int64, error) {
	query := s.suppliers(ctx)
	if filter.BusinessType != "" {
		query = query.Where("supplier_profiles.business_type = ?", filter.BusinessType)
	}
	if filter.Search != "" {
		q := likePattern(filter.Search)
		query = query.Where("LOWER(supplier_profiles.business_name) LIKE ? OR LOWER(supplier_profiles.description) LIKE ?", q, q)
	}
	if filter.OpenOnly {
		query = query.Where("supplier_profiles.is_open = ?", true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, errors.Trace(err)
	}

	var suppliers []models.User
	err := query.Preload("SupplierProfile").
		Order("supplier_profiles.business_name asc").
		Limit(page.Limit).Offset(page.Offset).
		Find(&suppliers).Error
	return suppliers, total, errors.Trace(err)
}

// GetSupplier returns one active supplier.
func (s *CatalogService) GetSupplier(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var supplier models.User
	if err := s.suppliers(ctx).Preload("SupplierProfile").First(&supplier, "users.id = ?", id).Error; err != nil {
		return nil, notFound(err, "supplier %s", id)
	}
	return &supplier, nil
}

// ProductFilter narrows the public product listing.
type ProductFilter struct {
	SupplierID *uuid.UUID
	CategoryID *uuid.UUID
	Search     string
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
}

// ListProducts returns available products.
func (s *CatalogService) ListProducts(ctx context.Context, filter ProductFilter, page utils.Pagination) ([]models.Product, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Product{}).Where("is_available = ?", true)
	if filter.SupplierID != nil {
		query = query.Where("supplier_id = ?", *filter.SupplierID)
	}
	if filter.CategoryID != nil {
		query = query.Where("category_id = ?", *filter.CategoryID)
	}
	if filter.Search != "" {
		q := likePattern(filter.Search)
		query = query.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", q, q)
	}
	if filter.MinPrice != nil {
		query = query.Where("price >= ?", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		query = query.Where("price <= ?", *filter.MaxPrice)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, errors.Trace(err)
	}

	var products []models.Product
	err := query.Preload("Category").
		Order("created_at desc").
		Limit(page.Limit).Offset(page.Offset).
		Find(&products).Error
	return products, total, errors.Trace(err)
}

// GetProduct returns an available product.
func (s *CatalogService) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := s.db.WithContext(ctx).Preload("Category").
		Where("id = ? AND is_available = ?", id, true).
		First(&product).Error
	if err != nil {
		return nil, notFound(err, "product %s", id)
	}
	return &product, nil
}

// ProductInput carries the editable product fields.
type ProductInput struct {
	CategoryID    *uuid.UUID       `json:"category_id"`
	Name          string           `json:"name"`
	Description   string           `json:"description"`
	Price         decimal.Decimal  `json:"price"`
	PromoPrice    *decimal.Decimal `json:"promo_price"`
	StockQuantity int              `json:"stock_quantity"`
	IsAvailable   *bool            `json:"is_available"`
	ImageURL      string           `json:"image_url"`
}

func (in *ProductInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	switch {
	case in.Name == "":
		return errors.BadRequestf("name is required")
	case !in.Price.IsPositive():
		return errors.BadRequestf("price must be greater than zero")
	case in.StockQuantity < 0:
		return errors.BadRequestf("stock_quantity must not be negative")
	}
	if in.PromoPrice != nil && (in.PromoPrice.IsNegative() || !in.PromoPrice.LessThan(in.Price)) {
		return errors.BadRequestf("promo_price must be between 0 and price")
	}
	return nil
}

func (in *ProductInput) apply(p *models.Product) {
	p.CategoryID = in.CategoryID
	p.Name = in.Name
	p.Description = in.Description
	p.Price = in.Price
	p.PromoPrice = in.PromoPrice
	p.StockQuantity = in.StockQuantity
	p.ImageURL = in.ImageURL
	if in.IsAvailable != nil {
		p.IsAvailable = *in.IsAvailable
	}
}

func (s *CatalogService) checkCategory(ctx context.Context, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Category{}).Where("id = ?", *id).Count(&count).Error; err != nil {
		return errors.Trace(err)
	}
	if count == 0 {
		return errors.NotFoundf("category %s", *id)
	}
	return nil
}

// ListSupplierProducts returns every product of the supplier, including
// unavailable ones.
func (s *CatalogService) ListSupplierProducts(ctx context.Context, supplierID uuid.UUID, page utils.Pagination) ([]models.Product, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Product{}).Where("supplier_id = ?", supplierID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, errors.Trace(err)
	}

	var products []models.Product
	err := query.Preload("Category").
		Order("created_at desc").
		Limit(page.Limit).Offset(page.Offset).
		Find(&products).Error
	return products, total, errors.Trace(err)
}

// CreateProduct adds a product to the supplier's catalog. New products are
// available unless stated otherwise.
func (s *CatalogService) CreateProduct(ctx context.Context, supplierID uuid.UUID, in ProductInput) (*models.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, in.CategoryID); err != nil {
		return nil, err
	}

	product := models.Product{SupplierID: supplierID, IsAvailable: true}
	in.apply(&product)
	if err := s.db.WithContext(ctx).Omit("Category").Create(&product).Error; err != nil {
		return nil, errors.Annotate(err, "create product")
	}
	return &product, nil
}

func (s *CatalogService) ownProduct(ctx context.Context, supplierID, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := s.db.WithContext(ctx).Where("id = ? AND supplier_id = ?", id, supplierID).First(&product).Error; err != nil {
		return nil, notFound(err, "product %s", id)
	}
	return &product, nil
}

// GetSupplierProduct returns one of the supplier's products.
func (s *CatalogService) GetSupplierProduct(ctx context.Context, supplierID, id uuid.UUID) (*models.Product, error) {
	return s.ownProduct(ctx, supplierID, id)
}

// UpdateProduct replaces the editable fields of one of the supplier's products.
func (s *CatalogService) UpdateProduct(ctx context.Context, supplierID, id uuid.UUID, in ProductInput) (*models.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, in.CategoryID); err != nil {
		return nil, err
	}

	product, err := s.ownProduct(ctx, supplierID, id)
	if err != nil {
		return nil, err
	}
	in.apply(product)
	if err := s.db.WithContext(ctx).Omit("Category").Save(product).Error; err != nil {
		return nil, errors.Annotate(err, "update product")
	}
	return product, nil
}

// DeleteProduct removes a product. Order lines keep their snapshot.
func (s *CatalogService) DeleteProduct(ctx context.Context, supplierID, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Where("id = ? AND supplier_id = ?", id, supplierID).Delete(&models.Product{})
	if res.Error != nil {
		return errors.Trace(res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.NotFoundf("product %s", id)
	}
	return nil
}

// SetProductAvailability toggles whether clients can order the product.
func (s *CatalogService) SetProductAvailability(ctx context.Context, supplierID, id uuid.UUID, available bool) (*models.Product, error) {
	res := s.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ? AND supplier_id = ?", id, supplierID).
		Update("is_available", available)
	if res.Error != nil {
		return nil, errors.Trace(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, errors.NotFoundf("product %s", id)
	}
	return s.ownProduct(ctx, supplierID, id)
}

// AdjustStock adds delta (possibly negative) to the stock. The stock never
// goes below zero.
func (s *CatalogService) AdjustStock(ctx context.Context, supplierID, id uuid.UUID, delta int) (*models.Product, error) {
	product, err := s.ownProduct(ctx, supplierID, id)
	if err != nil {
		return nil, err
	}

	res := s.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ? AND stock_quantity + ? >= 0", id, delta).
		UpdateColumn("stock_quantity", gorm.Expr("stock_quantity + ?", delta))
	if res.Error != nil {
		return nil, errors.Trace(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, errors.BadRequestf("stock of %q cannot go below zero", product.Name)
	}
	return s.ownProduct(ctx, supplierID, id)
}
