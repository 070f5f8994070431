package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"gorm.io/gorm"

	"github.com/example/marketplace/internal/models"
)

const (
	defaultPollLimit = 20
	maxPollLimit     = 100

	// pollSettleWindow is how long a row must exist before the cursor may
	// move past it. Postgres hands out serial ids before commit, so a lower
	// id can become visible after a higher one.
	pollSettleWindow = 5 * time.Second
)

// NotificationService writes templated inbox rows and serves the polling API.
type NotificationService struct {
	db      *gorm.DB
	clock   clock.Clock
	metrics *Metrics
}

// NewNotificationService constructs NotificationService.
func NewNotificationService(db *gorm.DB, clk clock.Clock, metrics *Metrics) *NotificationService {
	return &NotificationService{db: db, clock: clk, metrics: metrics}
}

// Notify renders event with params and inserts one row per distinct
// recipient. tx may be nil, in which case the service's own handle is used.
func (s *NotificationService) Notify(ctx context.Context, tx *gorm.DB, event Event, params Params, orderID *uuid.UUID, recipients ...uuid.UUID) error {
	tmpl, ok := templates[event]
	if !ok {
		return errors.NotValidf("notification event %q", event)
	}
	if tx == nil {
		tx = s.db.WithContext(ctx)
	}

	if orderID != nil {
		merged := Params{"order_id": orderID.String()}
		for k, v := range params {
			merged[k] = v
		}
		params = merged
	}

	seen := make(map[uuid.UUID]bool, len(recipients))
	rows := make([]models.Notification, 0, len(recipients))
	now := s.clock.Now().UTC()
	for _, userID := range recipients {
		if userID == uuid.Nil || seen[userID] {
			continue
		}
		seen[userID] = true
		rows = append(rows, models.Notification{
			UserID:    userID,
			Title:     render(tmpl.title, params),
			Message:   render(tmpl.message, params),
			Type:      string(event),
			Priority:  tmpl.priority,
			Link:      render(tmpl.link, params),
			OrderID:   orderID,
			CreatedAt: now,
		})
	}
	if len(rows) == 0 {
		return nil
	}

	if err := tx.Create(&rows).Error; err != nil {
		return errors.Annotatef(err, "insert %s notifications", event)
	}
	if s.metrics != nil {
		s.metrics.NotificationsSent.WithLabelValues(string(event)).Add(float64(len(rows)))
	}
	return nil
}

// PollResult is one page of the notification feed.
type PollResult struct {
	Items       []models.Notification `json:"items"`
	NextCursor  uint64                `json:"next_cursor"`
	UnreadCount int64                 `json:"unread_count"`
}

// Poll returns the user's notifications with id greater than after, oldest
// first. NextCursor stops short of rows younger than pollSettleWindow, so
// those rows are returned again on the next poll and clients dedupe by id.
func (s *NotificationService) Poll(ctx context.Context, userID uuid.UUID, after uint64, limit int, unreadOnly bool) (*PollResult, error) {
	if limit <= 0 {
		limit = defaultPollLimit
	}
	if limit > maxPollLimit {
		limit = maxPollLimit
	}

	query := s.db.WithContext(ctx).Where("user_id = ? AND id > ?", userID, after)
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}

	var items []models.Notification
	if err := query.Order("id asc").Limit(limit).Find(&items).Error; err != nil {
		return nil, errors.Trace(err)
	}

	unread, err := s.UnreadCount(ctx, userID)
	if err != nil {
		return nil, errors.Trace(err)
	}

	settled := s.clock.Now().UTC().Add(-pollSettleWindow)
	next := after
	for _, n := range items {
		if n.CreatedAt.After(settled) {
			break
		}
		next = n.ID
	}
	return &PollResult{Items: items, NextCursor: next, UnreadCount: unread}, nil
}

// UnreadCount returns how many unread notifications the user has.
func (s *NotificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, errors.Trace(err)
}

// MarkRead flags one notification as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID uuid.UUID, id uint64) error {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true)
	if res.Error != nil {
		return errors.Trace(res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.NotFoundf("notification %d", id)
	}
	return nil
}

// MarkAllRead flags every notification of the user as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	return res.RowsAffected, errors.Trace(res.Error)
}

// Delete removes one notification.
func (s *NotificationService) Delete(ctx context.Context, userID uuid.UUID, id uint64) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.Notification{})
	if res.Error != nil {
		return errors.Trace(res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.NotFoundf("notification %d", id)
	}
	return nil
}
