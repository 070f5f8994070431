package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/example/marketplace/internal/services"
)

// NotificationHandler serves the polling inbox.
type NotificationHandler struct {
	notifier *services.NotificationService
}

// NewNotificationHandler constructs NotificationHandler.
func NewNotificationHandler(notifier *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifier: notifier}
}

func notificationID(c *fiber.Ctx) (uint64, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// Poll returns notifications newer than the "after" cursor. Clients pass the
// returned next_cursor on their next poll.
func (h *NotificationHandler) Poll(c *fiber.Ctx) error {
	sc, err := currentSession(c)
	if err != nil {
		return err
	}

	var after uint64
	if raw := c.Query("after"); raw != "" {
		if after, err = strconv.ParseUint(raw, 10, 64); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid after cursor")
		}
	}

	result, err := h.notifier.Poll(c.UserContext(), sc.UserID(), after, c.QueryInt("limit", 0), c.QueryBool("unread", false))
	if err != nil {
		return err
	}
	return ok(c, result)
}

// UnreadCount returns the number of unread notifications.
func (h *NotificationHandler) UnreadCount(c *fiber.Ctx) error {
	sc, err := currentSession(c)
	if err != nil {
		return err
	}

	count, err := h.notifier.UnreadCount(c.UserContext(), sc.UserID())
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"unread_count": count})
}

// MarkRead flags one notification as read.
func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	sc, err := currentSession(c)
	if err != nil {
		return err
	}
	id, err := notificationID(c)
	if err != nil {
		return err
	}

	if err := h.notifier.MarkRead(c.UserContext(), sc.UserID(), id); err != nil {
		return err
	}
	return message(c, "notification marked as read")
}

// MarkAllRead flags every notification of the user as read.
func (h *NotificationHandler) MarkAllRead(c *fiber.Ctx) error {
	sc, err := currentSession(c)
	if err != nil {
		return err
	}

	marked, err := h.notifier.MarkAllRead(c.UserContext(), sc.UserID())
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"marked": marked})
}

// Delete removes one notification.
func (h *NotificationHandler) Delete(c *fiber.Ctx) error {
	sc, err := currentSession(c)
	if err != nil {
		return err
	}
	id, err := notificationID(c)
	if err != nil {
		return err
	}

	if err := h.notifier.Delete(c.UserContext(), sc.UserID(), id); err != nil {
		return err
	}
	return message(c, "notification deleted")
}
