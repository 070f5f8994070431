package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/marketplace/internal/logging"
	"github.com/example/marketplace/internal/models"
	"github.com/example/marketplace/internal/utils"
)

// AdminService backs the back-office endpoints.
type AdminService struct {
	db       *gorm.DB
	clock    clock.Clock
	notifier *NotificationService
	logger   zerolog.Logger
}

// NewAdminService constructs AdminService.
func NewAdminService(db *gorm.DB, clk clock.Clock, notifier *NotificationService) *AdminService {
	return &AdminService{
		db:       db,
		clock:    clk,
		notifier: notifier,
		logger:   logging.Component("admin"),
	}
}

// DashboardStats is the admin overview.
type DashboardStats struct {
	UsersByRole    map[models.Role]int64        `json:"users_by_role"`
	TotalUsers     int64                        `json:"total_users"`
	OrdersByStatus map[models.OrderStatus]int64 `json:"orders_by_status"`
	TotalOrders    int64                        `json:"total_orders"`
	Revenue        decimal.Decimal              `json:"revenue"`
	ActiveSessions int64                        `json:"active_sessions"`
}

type roleCount struct {
	Role  models.Role
	Count int64
}

// Stats aggregates users, orders, revenue and live sessions.
func (s *AdminService) Stats(ctx context.Context) (*DashboardStats, error) {
	db := s.db.WithContext(ctx)
	stats := &DashboardStats{UsersByRole: map[models.Role]int64{}}

	var roles []roleCount
	if err := db.Model(&models.User{}).Select("role, COUNT(*) AS count").Group("role").Scan(&roles).Error; err != nil {
		return nil, errors.Trace(err)
	}
	for _, r := range roles {
		stats.UsersByRole[r.Role] = r.Count
		stats.TotalUsers += r.Count
	}

	var err error
	if stats.OrdersByStatus, stats.TotalOrders, err = countByStatus(db.Model(&models.Order{})); err != nil {
		return nil, err
	}
	if stats.Revenue, err = sumDecimal(db.Model(&models.Order{}).Where("status = ?", models.OrderStatusDelivered), "total"); err != nil {
		return nil, err
	}

	if err := db.Model(&models.Session{}).
		Where("is_active = ? AND expires_at > ?", true, s.clock.Now().UTC()).
		Count(&stats.ActiveSessions).Error; err != nil {
		return nil, errors.Trace(err)
	}
	return stats, nil
}

// UserFilter narrows the user listing.
type UserFilter struct {
	Role   models.Role
	Status models.UserStatus
	Search string
}

// ListUsers returns users newest first.
func (s *AdminService) ListUsers(ctx context.Context, filter UserFilter, page utils.Pagination) ([]models.User, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.User{})
	if filter.Role != "" {
		query = query.Where("role = ?", filter.Role)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Search != "" {
		q := likePattern(filter.Search)
		query = query.Where("LOWER(email) LIKE ? OR LOWER(full_name) LIKE ? OR phone LIKE ?", q, q, q)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, errors.Trace(err)
	}

	var users []models.User
	err := query.Order("created_at desc").Limit(page.Limit).Offset(page.Offset).Find(&users).Error
	return users, total, errors.Trace(err)
}

// UpdateUserStatus changes an account's status. Leaving the active state
// ends every session of the user.
func (s *AdminService) UpdateUserStatus(ctx context.Context, actor Actor, userID uuid.UUID, status models.UserStatus, ip string) (*models.User, error) {
	if !status.Valid() {
		return nil, errors.NewNotValid(nil, fmt.Sprintf("unknown status %q", status))
	}
	if userID == actor.ID {
		return nil, errors.BadRequestf("admins cannot change their own status")
	}

	var user models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, "id = ?", userID).Error; err != nil {
			return notFound(err, "user %s", userID)
		}
		if user.Status == status {
			return nil
		}

		previous := user.Status
		if err := tx.Model(&models.User{}).Where("id = ?", userID).Update("status", status).Error; err != nil {
			return errors.Trace(err)
		}
		user.Status = status

		if status != models.UserStatusActive {
			if err := tx.Model(&models.Session{}).
				Where("user_id = ? AND is_active = ?", userID, true).
				UpdateColumn("is_active", false).Error; err != nil {
				return errors.Trace(err)
			}
		}

		if err := writeAudit(tx, &actor.ID, auditUserStatus, "user", userID.String(),
			fmt.Sprintf("%s -> %s", previous, status), ip); err != nil {
			return err
		}
		return s.notifier.Notify(ctx, tx, EventAccountStatusChanged, Params{"status": string(status)}, nil, userID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", userID.String()).Str("status", string(status)).Msg("user status changed")
	return &user, nil
}

// DeleteUser hard-deletes an account with everything it owns. Users that
// took part in orders cannot be deleted; suspend them instead.
func (s *AdminService) DeleteUser(ctx context.Context, actor Actor, userID uuid.UUID, ip string) error {
	if userID == actor.ID {
		return errors.BadRequestf("admins cannot delete themselves")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, "id = ?", userID).Error; err != nil {
			return notFound(err, "user %s", userID)
		}

		var orders int64
		if err := tx.Model(&models.Order{}).
			Where("client_id = ? OR supplier_id = ? OR courier_id = ?", userID, userID, userID).
			Count(&orders).Error; err != nil {
			return errors.Trace(err)
		}
		if orders > 0 {
			return errors.NewAlreadyExists(nil, fmt.Sprintf("user has %d orders and cannot be deleted", orders))
		}

		owned := []struct {
			model  interface{}
			column string
		}{
			{&models.Session{}, "user_id"},
			{&models.Notification{}, "user_id"},
			{&models.Address{}, "client_id"},
			{&models.Product{}, "supplier_id"},
			{&models.ClientProfile{}, "user_id"},
			{&models.SupplierProfile{}, "user_id"},
			{&models.CourierProfile{}, "user_id"},
			{&models.AdminProfile{}, "user_id"},
		}
		for _, o := range owned {
			if err := tx.Where(o.column+" = ?", userID).Delete(o.model).Error; err != nil {
				return errors.Annotatef(err, "delete %T", o.model)
			}
		}
		if err := tx.Delete(&models.User{}, "id = ?", userID).Error; err != nil {
			return errors.Trace(err)
		}

		return writeAudit(tx, &actor.ID, auditUserDeleted, "user", userID.String(),
			fmt.Sprintf("role=%s email=%s", user.Role, strings.ToLower(user.Email)), ip)
	})
}

// AuditLogs pages through the audit trail.
func (s *AdminService) AuditLogs(ctx context.Context, action string, actorID *uuid.UUID, page utils.Pagination) ([]models.AuditLog, int64, error) {
	return ListAuditLogs(ctx, s.db, action, actorID, page.Limit, page.Offset)
}
