package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/marketplace/internal/models"
	"github.com/example/marketplace/internal/services"
)

// AuthHandler bundles dependencies for authentication endpoints.
type AuthHandler struct {
	auth     *services.AuthService
	profiles *services.ProfileService
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(auth *services.AuthService, profiles *services.ProfileService) *AuthHandler {
	return &AuthHandler{auth: auth, profiles: profiles}
}

type registerRequest struct {
	Email    string            `json:"email"`
	Password string            `json:"password"`
	FullName string            `json:"full_name"`
	Phone    string            `json:"phone"`
	Role     models.Role       `json:"role"`
	RoleData services.RoleData `json:"role_data"`
}

func (r registerRequest) input() services.RegisterInput {
	return services.RegisterInput{
		Email:    r.Email,
		Password: r.Password,
		FullName: r.FullName,
		Phone:    r.Phone,
		Role:     r.Role,
		RoleData: r.RoleData,
	}
}

// Register creates a new self-service account.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, err := h.auth.Register(c.UserContext(), req.input())
	if err != nil {
		return err
	}

	return created(c, user)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates an existing user and opens a session.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Email == "" || req.Password == "" {
		return fiber.NewError(fiber.StatusBadRequest, "email and password are required")
	}

	result, err := h.auth.Login(c.UserContext(), services.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		IPAddress: c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	})
	if err != nil {
		return err
	}

	return ok(c, result)
}

// Me returns the authenticated user with its role profile.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	sc, err := currentSession(c)
	if err != nil {
		return err
	}

	user, err := h.profiles.GetUser(c.UserContext(), sc.UserID())
	if err != nil {
		return err
	}

	return ok(c, fiber.Map{
		"user":               user,
		"session_id":         sc.SessionID,
		"session_expires_at": sc.ExpiresAt,
	})
}

// Logout ends the current session.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	sc, err := currentSession(c)
	if err != nil {
		return err
	}
	if err := h.auth.Logout(c.UserContext(), sc, c.IP()); err != nil {
		return err
	}
	return message(c, "logged out")
}

// Extend pushes the current session's expiry forward and returns a fresh token.
func (h *AuthHandler) Extend(c *fiber.Ctx) error {
	sc, err := currentSession(c)
	if err != nil {
		return err
	}

	result, err := h.auth.ExtendSession(c.UserContext(), sc)
	if err != nil {
		return err
	}
	return ok(c, result)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword replaces the password and ends the user's other sessions.
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	sc, err := currentSession(c)
	if err != nil {
		return err
	}

	var req changePasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	if err := h.auth.ChangePassword(c.UserContext(), sc, req.CurrentPassword, req.NewPassword, c.IP()); err != nil {
		return err
	}
	return message(c, "password updated")
}

// ListSessions returns the user's active sessions.
func (h *AuthHandler) ListSessions(c *fiber.Ctx) error {
	sc, err := currentSession(c)
	if err != nil {
		return err
	}

	sessions, err := h.auth.ListSessions(c.UserContext(), sc.UserID())
	if err != nil {
		return err
	}

	items := make([]fiber.Map, 0, len(sessions))
	for _, s := range sessions {
		items = append(items, fiber.Map{
			"id":               s.ID,
			"ip_address":       s.IPAddress,
			"user_agent":       s.UserAgent,
			"created_at":       s.CreatedAt,
			"expires_at":       s.ExpiresAt,
			"last_activity_at": s.LastActivityAt,
			"current":          s.ID == sc.SessionID,
		})
	}
	return ok(c, items)
}

// RevokeSession ends one of the user's sessions.
func (h *AuthHandler) RevokeSession(c *fiber.Ctx) error {
	sc, err := currentSession(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}

	if err := h.auth.RevokeSession(c.UserContext(), sc.UserID(), id); err != nil {
		return err
	}
	return message(c, "session revoked")
}
