package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/juju/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/marketplace/internal/models"
)

// ProfileService manages the role-specific profiles and client addresses.
type ProfileService struct {
	db *gorm.DB
}

// NewProfileService constructs ProfileService.
func NewProfileService(db *gorm.DB) *ProfileService {
	return &ProfileService{db: db}
}

// GetUser loads a user with its satellite profile.
func (s *ProfileService) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Preload("ClientProfile").
		Preload("SupplierProfile").
		Preload("CourierProfile").
		Preload("AdminProfile").
		First(&user, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, "user %s", id)
	}
	return &user, nil
}

func (s *ProfileService) updateIdentity(tx *gorm.DB, userID uuid.UUID, fullName, phone *string) error {
	updates := map[string]interface{}{}
	if fullName != nil {
		name := strings.TrimSpace(*fullName)
		if name == "" {
			return errors.BadRequestf("full_name must not be empty")
		}
		updates["full_name"] = name
	}
	if phone != nil {
		updates["phone"] = strings.TrimSpace(*phone)
	}
	if len(updates) == 0 {
		return nil
	}
	return errors.Trace(tx.Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error)
}

// ClientProfileInput holds the editable client fields. Nil fields are kept.
type ClientProfileInput struct {
	FullName    *string    `json:"full_name"`
	Phone       *string    `json:"phone"`
	DateOfBirth *time.Time `json:"date_of_birth"`
}

// UpdateClientProfile edits the client's identity and profile.
func (s *ProfileService) UpdateClientProfile(ctx context.Context, userID uuid.UUID, in ClientProfileInput) (*models.User, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.updateIdentity(tx, userID, in.FullName, in.Phone); err != nil {
			return err
		}
		if in.DateOfBirth == nil {
			return nil
		}
		return errors.Trace(tx.Model(&models.ClientProfile{}).Where("user_id = ?", userID).
			Update("date_of_birth", in.DateOfBirth).Error)
	})
	if err != nil {
		return nil, err
	}
	return s.GetUser(ctx, userID)
}

// ListAddresses returns the client's addresses, primary first.
func (s *ProfileService) ListAddresses(ctx context.Context, clientID uuid.UUID) ([]models.Address, error) {
	var addresses []models.Address
	err := s.db.WithContext(ctx).Where("client_id = ?", clientID).
		Order("is_primary desc").Order("created_at asc").
		Find(&addresses).Error
	return addresses, errors.Trace(err)
}

// AddressInput describes a delivery address.
type AddressInput struct {
	Label        string  `json:"label"`
	Street       string  `json:"street"`
	City         string  `json:"city"`
	PostalCode   string  `json:"postal_code"`
	Instructions string  `json:"instructions"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	IsPrimary    bool    `json:"is_primary"`
}

func (in *AddressInput) validate() error {
	in.Street = strings.TrimSpace(in.Street)
	in.City = strings.TrimSpace(in.City)
	if in.Street == "" || in.City == "" {
		return errors.BadRequestf("street and city are required")
	}
	return nil
}

func (in *AddressInput) apply(a *models.Address) {
	a.Label = strings.TrimSpace(in.Label)
	a.Street = in.Street
	a.City = in.City
	a.PostalCode = strings.TrimSpace(in.PostalCode)
	a.Instructions = in.Instructions
	a.Latitude = in.Latitude
	a.Longitude = in.Longitude
}

func clearPrimary(tx *gorm.DB, clientID uuid.UUID) error {
	return errors.Trace(tx.Model(&models.Address{}).
		Where("client_id = ? AND is_primary = ?", clientID, true).
		Update("is_primary", false).Error)
}

// CreateAddress adds an address. The first address is always primary.
func (s *ProfileService) CreateAddress(ctx context.Context, clientID uuid.UUID, in AddressInput) (*models.Address, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	address := models.Address{ClientID: clientID}
	in.apply(&address)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Address{}).Where("client_id = ?", clientID).Count(&count).Error; err != nil {
			return errors.Trace(err)
		}
		address.IsPrimary = in.IsPrimary || count == 0
		if address.IsPrimary {
			if err := clearPrimary(tx, clientID); err != nil {
				return err
			}
		}
		return errors.Annotate(tx.Create(&address).Error, "create address")
	})
	if err != nil {
		return nil, err
	}
	return &address, nil
}

// UpdateAddress edits one of the client's addresses.
func (s *ProfileService) UpdateAddress(ctx context.Context, clientID, id uuid.UUID, in AddressInput) (*models.Address, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var address models.Address
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND client_id = ?", id, clientID).First(&address).Error; err != nil {
			return notFound(err, "address %s", id)
		}
		in.apply(&address)
		if in.IsPrimary && !address.IsPrimary {
			if err := clearPrimary(tx, clientID); err != nil {
				return err
			}
			address.IsPrimary = true
		}
		return errors.Trace(tx.Save(&address).Error)
	})
	if err != nil {
		return nil, err
	}
	return &address, nil
}

// SetPrimaryAddress makes id the only primary address of the client.
func (s *ProfileService) SetPrimaryAddress(ctx context.Context, clientID, id uuid.UUID) (*models.Address, error) {
	var address models.Address
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND client_id = ?", id, clientID).First(&address).Error; err != nil {
			return notFound(err, "address %s", id)
		}
		if err := clearPrimary(tx, clientID); err != nil {
			return err
		}
		address.IsPrimary = true
		return errors.Trace(tx.Model(&address).Update("is_primary", true).Error)
	})
	if err != nil {
		return nil, err
	}
	return &address, nil
}

// DeleteAddress removes an address. When the primary goes, the oldest
// remaining address is promoted.
func (s *ProfileService) DeleteAddress(ctx context.Context, clientID, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var address models.Address
		if err := tx.Where("id = ? AND client_id = ?", id, clientID).First(&address).Error; err != nil {
			return notFound(err, "address %s", id)
		}
		if err := tx.Delete(&address).Error; err != nil {
			return errors.Trace(err)
		}
		if !address.IsPrimary {
			return nil
		}

		var next models.Address
		err := tx.Where("client_id = ?", clientID).Order("created_at asc").First(&next).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return errors.Trace(err)
		}
		return errors.Trace(tx.Model(&next).Update("is_primary", true).Error)
	})
}

// SupplierProfileInput holds the editable business fields. Nil fields are kept.
type SupplierProfileInput struct {
	FullName     *string          `json:"full_name"`
	Phone        *string          `json:"phone"`
	BusinessName *string          `json:"business_name"`
	BusinessType *string          `json:"business_type"`
	Description  *string          `json:"description"`
	Address      *string          `json:"address"`
	Latitude     *float64         `json:"latitude"`
	Longitude    *float64         `json:"longitude"`
	OpeningHours *string          `json:"opening_hours"`
	DeliveryFee  *decimal.Decimal `json:"delivery_fee"`
}

// UpdateSupplierProfile edits the supplier's business profile.
func (s *ProfileService) UpdateSupplierProfile(ctx context.Context, userID uuid.UUID, in SupplierProfileInput) (*models.User, error) {
	updates := map[string]interface{}{}
	if in.BusinessName != nil {
		name := strings.TrimSpace(*in.BusinessName)
		if name == "" {
			return nil, errors.BadRequestf("business_name must not be empty")
		}
		updates["business_name"] = name
	}
	if in.DeliveryFee != nil {
		if in.DeliveryFee.IsNegative() {
			return nil, errors.BadRequestf("delivery_fee must not be negative")
		}
		updates["delivery_fee"] = *in.DeliveryFee
	}
	setIf(updates, "business_type", in.BusinessType)
	setIf(updates, "description", in.Description)
	setIf(updates, "address", in.Address)
	setIf(updates, "opening_hours", in.OpeningHours)
	if in.Latitude != nil {
		updates["latitude"] = *in.Latitude
	}
	if in.Longitude != nil {
		updates["longitude"] = *in.Longitude
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.updateIdentity(tx, userID, in.FullName, in.Phone); err != nil {
			return err
		}
		if len(updates) == 0 {
			return nil
		}
		return errors.Trace(tx.Model(&models.SupplierProfile{}).Where("user_id = ?", userID).Updates(updates).Error)
	})
	if err != nil {
		return nil, err
	}
	return s.GetUser(ctx, userID)
}

func setIf(updates map[string]interface{}, column string, value *string) {
	if value != nil {
		updates[column] = strings.TrimSpace(*value)
	}
}

// SetSupplierOpen opens or closes the supplier for new orders.
func (s *ProfileService) SetSupplierOpen(ctx context.Context, userID uuid.UUID, open bool) (*models.User, error) {
	res := s.db.WithContext(ctx).Model(&models.SupplierProfile{}).Where("user_id = ?", userID).Update("is_open", open)
	if res.Error != nil {
		return nil, errors.Trace(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, errors.NotFoundf("supplier profile for %s", userID)
	}
	return s.GetUser(ctx, userID)
}

// SupplierStats is the supplier dashboard.
type SupplierStats struct {
	OrdersByStatus map[models.OrderStatus]int64 `json:"orders_by_status"`
	TotalOrders    int64                        `json:"total_orders"`
	Revenue        decimal.Decimal              `json:"revenue"`
	ProductCount   int64                        `json:"product_count"`
}

type statusCount struct {
	Status models.OrderStatus
	Count  int64
}

func countByStatus(query *gorm.DB) (map[models.OrderStatus]int64, int64, error) {
	var rows []statusCount
	if err := query.Select("status, COUNT(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		return nil, 0, errors.Trace(err)
	}
	counts := make(map[models.OrderStatus]int64, len(rows))
	var total int64
	for _, r := range rows {
		counts[r.Status] = r.Count
		total += r.Count
	}
	return counts, total, nil
}

func sumDecimal(query *gorm.DB, column string) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	if err := query.Select("SUM(" + column + ")").Row().Scan(&sum); err != nil {
		return decimal.Zero, errors.Trace(err)
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}

// SupplierStats aggregates the supplier's orders and catalog.
func (s *ProfileService) SupplierStats(ctx context.Context, supplierID uuid.UUID) (*SupplierStats, error) {
	db := s.db.WithContext(ctx)
	stats := &SupplierStats{}

	var err error
	stats.OrdersByStatus, stats.TotalOrders, err = countByStatus(
		db.Model(&models.Order{}).Where("supplier_id = ?", supplierID))
	if err != nil {
		return nil, err
	}

	stats.Revenue, err = sumDecimal(db.Model(&models.Order{}).
		Where("supplier_id = ? AND status = ?", supplierID, models.OrderStatusDelivered), "subtotal")
	if err != nil {
		return nil, err
	}

	if err := db.Model(&models.Product{}).Where("supplier_id = ?", supplierID).Count(&stats.ProductCount).Error; err != nil {
		return nil, errors.Trace(err)
	}
	return stats, nil
}

// CourierProfileInput holds the editable courier fields. Nil fields are kept.
type CourierProfileInput struct {
	FullName     *string `json:"full_name"`
	Phone        *string `json:"phone"`
	VehicleType  *string `json:"vehicle_type"`
	LicensePlate *string `json:"license_plate"`
}

// UpdateCourierProfile edits the courier's identity and vehicle.
func (s *ProfileService) UpdateCourierProfile(ctx context.Context, userID uuid.UUID, in CourierProfileInput) (*models.User, error) {
	updates := map[string]interface{}{}
	setIf(updates, "vehicle_type", in.VehicleType)
	setIf(updates, "license_plate", in.LicensePlate)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.updateIdentity(tx, userID, in.FullName, in.Phone); err != nil {
			return err
		}
		if len(updates) == 0 {
			return nil
		}
		return errors.Trace(tx.Model(&models.CourierProfile{}).Where("user_id = ?", userID).Updates(updates).Error)
	})
	if err != nil {
		return nil, err
	}
	return s.GetUser(ctx, userID)
}

// SetCourierAvailability toggles whether the courier takes new deliveries.
func (s *ProfileService) SetCourierAvailability(ctx context.Context, userID uuid.UUID, available bool) (*models.User, error) {
	return s.updateCourier(ctx, userID, map[string]interface{}{"is_available": available})
}

// UpdateCourierLocation stores the courier's last known position.
func (s *ProfileService) UpdateCourierLocation(ctx context.Context, userID uuid.UUID, lat, lng float64) (*models.User, error) {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return nil, errors.BadRequestf("coordinates out of range")
	}
	return s.updateCourier(ctx, userID, map[string]interface{}{
		"current_latitude":  lat,
		"current_longitude": lng,
	})
}

func (s *ProfileService) updateCourier(ctx context.Context, userID uuid.UUID, updates map[string]interface{}) (*models.User, error) {
	res := s.db.WithContext(ctx).Model(&models.CourierProfile{}).Where("user_id = ?", userID).Updates(updates)
	if res.Error != nil {
		return nil, errors.Trace(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, errors.NotFoundf("courier profile for %s", userID)
	}
	return s.GetUser(ctx, userID)
}

// CourierStats is the courier dashboard.
type CourierStats struct {
	TotalDeliveries int64           `json:"total_deliveries"`
	ActiveOrders    int64           `json:"active_orders"`
	CashCollected   decimal.Decimal `json:"cash_collected"`
	DeliveryFees    decimal.Decimal `json:"delivery_fees"`
}

// CourierStats aggregates the courier's deliveries.
func (s *ProfileService) CourierStats(ctx context.Context, courierID uuid.UUID) (*CourierStats, error) {
	db := s.db.WithContext(ctx)
	stats := &CourierStats{}

	delivered := func() *gorm.DB {
		return db.Model(&models.Order{}).Where("courier_id = ? AND status = ?", courierID, models.OrderStatusDelivered)
	}
	if err := delivered().Count(&stats.TotalDeliveries).Error; err != nil {
		return nil, errors.Trace(err)
	}
	if err := db.Model(&models.Order{}).
		Where("courier_id = ? AND status IN ?", courierID, []models.OrderStatus{
			models.OrderStatusPreparing, models.OrderStatusReadyForPickup, models.OrderStatusOutForDelivery,
		}).
		Count(&stats.ActiveOrders).Error; err != nil {
		return nil, errors.Trace(err)
	}

	var err error
	if stats.DeliveryFees, err = sumDecimal(delivered(), "delivery_fee"); err != nil {
		return nil, err
	}
	stats.CashCollected, err = sumDecimal(db.Model(&models.Payment{}).
		Where("confirmed_by = ? AND method = ? AND status = ?", courierID, models.PaymentMethodCash, models.PaymentStatusConfirmed),
		"amount")
	if err != nil {
		return nil, err
	}
	return stats, nil
}
