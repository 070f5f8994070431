package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/marketplace/internal/models"
	"github.com/example/marketplace/internal/services"
	"github.com/example/marketplace/internal/utils"
)

// AdminHandler manages admin-only endpoints.
type AdminHandler struct {
	admin    *services.AdminService
	auth     *services.AuthService
	profiles *services.ProfileService
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(admin *services.AdminService, auth *services.AuthService, profiles *services.ProfileService) *AdminHandler {
	return &AdminHandler{admin: admin, auth: auth, profiles: profiles}
}

// DashboardStats returns aggregate statistics for the admin dashboard.
func (h *AdminHandler) DashboardStats(c *fiber.Ctx) error {
	stats, err := h.admin.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return ok(c, stats)
}

// ListUsers returns users filtered by role, status and search text.
func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	page := utils.ParsePagination(c)
	filter := services.UserFilter{
		Role:   models.Role(c.Query("role")),
		Status: models.UserStatus(c.Query("status")),
		Search: c.Query("search"),
	}

	users, total, err := h.admin.ListUsers(c.UserContext(), filter, page)
	if err != nil {
		return err
	}
	return paginated(c, users, page, total)
}

// GetUser returns one user with its role profile.
func (h *AdminHandler) GetUser(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}

	user, err := h.profiles.GetUser(c.UserContext(), id)
	if err != nil {
		return err
	}
	return ok(c, user)
}

// CreateUser creates an account of any role, admins included.
func (h *AdminHandler) CreateUser(c *fiber.Ctx) error {
	sc, err := currentSession(c)
	if err != nil {
		return err
	}
	var req registerRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Role == "" {
		return fiber.NewError(fiber.StatusBadRequest, "role is required")
	}

	user, err := h.auth.CreateUser(c.UserContext(), sc.Actor(), req.input(), c.IP())
	if err != nil {
		return err
	}
	return created(c, user)
}

type userStatusRequest struct {
	Status models.UserStatus `json:"status"`
}

// UpdateUserStatus activates, deactivates or suspends an account.
func (h *AdminHandler) UpdateUserStatus(c *fiber.Ctx) error {
	sc, err := currentSession(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var req userStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, err := h.admin.UpdateUserStatus(c.UserContext(), sc.Actor(), id, req.Status, c.IP())
	if err != nil {
		return err
	}
	return ok(c, user)
}

// DeleteUser hard-deletes an account without orders.
func (h *AdminHandler) DeleteUser(c *fiber.Ctx) error {
	sc, err := currentSession(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}

	if err := h.admin.DeleteUser(c.UserContext(), sc.Actor(), id, c.IP()); err != nil {
		return err
	}
	return message(c, "user deleted")
}

// CleanupSessions expires stale sessions on demand.
func (h *AdminHandler) CleanupSessions(c *fiber.Ctx) error {
	sc, err := currentSession(c)
	if err != nil {
		return err
	}

	actorID := sc.UserID()
	result, err := h.auth.CleanupExpiredSessions(c.UserContext(), &actorID)
	if err != nil {
		return err
	}
	return ok(c, result)
}

// AuditLogs lists audit entries, newest first.
func (h *AdminHandler) AuditLogs(c *fiber.Ctx) error {
	actorID, err := queryUUID(c, "actor_id")
	if err != nil {
		return err
	}

	page := utils.ParsePagination(c)
	logs, total, err := h.admin.AuditLogs(c.UserContext(), c.Query("action"), actorID, page)
	if err != nil {
		return err
	}
	return paginated(c, logs, page, total)
}
