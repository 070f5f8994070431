package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/juju/errors"
	"gorm.io/gorm"

	"github.com/example/marketplace/internal/models"
)

const (
	auditLogin           = "auth.login"
	auditLogout          = "auth.logout"
	auditPasswordChanged = "auth.password_changed"
	auditUserCreated     = "admin.user_created"
	auditUserStatus      = "admin.user_status_changed"
	auditUserDeleted     = "admin.user_deleted"
	auditSessionCleanup  = "admin.session_cleanup"
)

func writeAudit(tx *gorm.DB, actorID *uuid.UUID, action, entity, entityID, details, ip string) error {
	entry := models.AuditLog{
		ActorID:   actorID,
		Action:    action,
		Entity:    entity,
		EntityID:  entityID,
		Details:   details,
		IPAddress: ip,
	}
	return errors.Annotatef(tx.Create(&entry).Error, "write audit %s", action)
}

// ListAuditLogs returns audit entries newest first, optionally filtered by
// action and actor.
func ListAuditLogs(ctx context.Context, db *gorm.DB, action string, actorID *uuid.UUID, limit, offset int) ([]models.AuditLog, int64, error) {
	query := db.WithContext(ctx).Model(&models.AuditLog{})
	if action != "" {
		query = query.Where("action = ?", action)
	}
	if actorID != nil {
		query = query.Where("actor_id = ?", *actorID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, errors.Trace(err)
	}

	var logs []models.AuditLog
	if err := query.Order("created_at desc").Limit(limit).Offset(offset).Find(&logs).Error; err != nil {
		return nil, 0, errors.Trace(err)
	}
	return logs, total, nil
}
