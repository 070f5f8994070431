package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/marketplace/internal/services"
)

// ProfileHandler manages role profiles and client addresses.
type ProfileHandler struct {
	profiles *services.ProfileService
}

// NewProfileHandler constructs ProfileHandler.
func NewProfileHandler(profiles *services.ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// GetProfile returns the authenticated user with its role profile.
func (h *ProfileHandler) GetProfile(c *fiber.Ctx) error {
	sc, err := currentSession(c)
	if err != nil {
		return err
	}

	user, err := h.profiles.GetUser(c.UserContext(), sc.UserID())
	if err != nil {
		return err
	}
	return ok(c, user)
}

// UpdateClientProfile updates the client's identity fields.
func (h *ProfileHandler) UpdateClientProfile(c *fiber.Ctx) error {
	sc, err := currentSession(c)
	if err != nil {
		return err
	}
	var req services.ClientProfileInput
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, err := h.profiles.UpdateClientProfile(c.UserContext(), sc.UserID(), req)
	if err != nil {
		return err
	}
	return ok(c, user)
}

// ListAddresses returns the client's addresses, primary first.
func (h *ProfileHandler) ListAddresses(c *fiber.Ctx) error {
	sc, err := currentSession(c)
	if err != nil {
		return err
	}

	addresses, err := h.profiles.ListAddresses(c.UserContext(), sc.UserID())
	if err != nil {
		return err
	}
	return ok(c, addresses)
}

// CreateAddress adds a delivery address.
func (h *ProfileHandler) CreateAddress(c *fiber.Ctx) error {
	sc, err := currentSession(c)
	if err != nil {
		return err
	}
	var req services.AddressInput
	if err := parseBody(c, &req); err != nil {
		return err
	}

	address, err := h.profiles.CreateAddress(c.UserContext(), sc.UserID(), req)
	if err != nil {
		return err
	}
	return created(c, address)
}

// UpdateAddress edits one of the client's addresses.
func (h *ProfileHandler) UpdateAddress(c *fiber.Ctx) error {
	sc, err := currentSession(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var req services.AddressInput
	if err := parseBody(c, &req); err != nil {
		return err
	}

	address, err := h.profiles.UpdateAddress(c.UserContext(), sc.UserID(), id, req)
	if err != nil {
		return err
	}
	return ok(c, address)
}

// SetPrimaryAddress makes an address the client's default.
func (h *ProfileHandler) SetPrimaryAddress(c *fiber.Ctx) error {
	sc, err := currentSession(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}

	address, err := h.profiles.SetPrimaryAddress(c.UserContext(), sc.UserID(), id)
	if err != nil {
		return err
	}
	return ok(c, address)
}

// DeleteAddress removes an address.
func (h *ProfileHandler) DeleteAddress(c *fiber.Ctx) error {
	sc, err := currentSession(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}

	if err := h.profiles.DeleteAddress(c.UserContext(), sc.UserID(), id); err != nil {
		return err
	}
	return message(c, "address deleted")
}

// UpdateSupplierProfile updates the business profile.
func (h *ProfileHandler) UpdateSupplierProfile(c *fiber.Ctx) error {
	sc, err := currentSession(c)
	if err != nil {
		return err
	}
	var req services.SupplierProfileInput
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, err := h.profiles.UpdateSupplierProfile(c.UserContext(), sc.UserID(), req)
	if err != nil {
		return err
	}
	return ok(c, user)
}

type openRequest struct {
	IsOpen *bool `json:"is_open"`
}

// SetSupplierOpen opens or closes the shop for new orders.
func (h *ProfileHandler) SetSupplierOpen(c *fiber.Ctx) error {
	sc, err := currentSession(c)
	if err != nil {
		return err
	}
	var req openRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.IsOpen == nil {
		return fiber.NewError(fiber.StatusBadRequest, "is_open is required")
	}

	user, err := h.profiles.SetSupplierOpen(c.UserContext(), sc.UserID(), *req.IsOpen)
	if err != nil {
		return err
	}
	return ok(c, user)
}

// SupplierStats returns the supplier dashboard figures.
func (h *ProfileHandler) SupplierStats(c *fiber.Ctx) error {
	sc, err := currentSession(c)
	if err != nil {
		return err
	}

	stats, err := h.profiles.SupplierStats(c.UserContext(), sc.UserID())
	if err != nil {
		return err
	}
	return ok(c, stats)
}

// UpdateCourierProfile updates vehicle details.
func (h *ProfileHandler) UpdateCourierProfile(c *fiber.Ctx) error {
	sc, err := currentSession(c)
	if err != nil {
		return err
	}
	var req services.CourierProfileInput
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, err := h.profiles.UpdateCourierProfile(c.UserContext(), sc.UserID(), req)
	if err != nil {
		return err
	}
	return ok(c, user)
}

// SetCourierAvailability toggles whether the courier takes deliveries.
func (h *ProfileHandler) SetCourierAvailability(c *fiber.Ctx) error {
	sc, err := currentSession(c)
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

	user, err := h.profiles.SetCourierAvailability(c.UserContext(), sc.UserID(), *req.IsAvailable)
	if err != nil {
		return err
	}
	return ok(c, user)
}

type locationRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// UpdateCourierLocation stores the courier's current position.
func (h *ProfileHandler) UpdateCourierLocation(c *fiber.Ctx) error {
	sc, err := currentSession(c)
	if err != nil {
		return err
	}
	var req locationRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, err := h.profiles.UpdateCourierLocation(c.UserContext(), sc.UserID(), req.Latitude, req.Longitude)
	if err != nil {
		return err
	}
	return ok(c, user)
}

// CourierStats returns delivery and cash figures for the courier.
func (h *ProfileHandler) CourierStats(c *fiber.Ctx) error {
	sc, err := currentSession(c)
	if err != nil {
		return err
	}

	stats, err := h.profiles.CourierStats(c.UserContext(), sc.UserID())
	if err != nil {
		return err
	}
	return ok(c, stats)
}
