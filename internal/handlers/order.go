package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/marketplace/internal/models"
	"github.com/example/marketplace/internal/services"
	"github.com/example/marketplace/internal/utils"
)

// OrderHandler serves the order endpoints shared by every role. What an
// actor sees and may change is decided by the order service.
type OrderHandler struct {
	orders *services.OrderService
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(orders *services.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

type createOrderRequest struct {
	SupplierID    uuid.UUID                 `json:"supplier_id"`
	AddressID     uuid.UUID                 `json:"address_id"`
	Items         []services.OrderLineInput `json:"items"`
	PaymentMethod models.PaymentMethod      `json:"payment_method"`
	Notes         string                    `json:"notes"`
}

// CreateOrder places an order for the authenticated client.
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	sc, err := currentSession(c)
	if err != nil {
		return err
	}
	if sc.Role() != models.RoleClient {
		return fiber.NewError(fiber.StatusForbidden, "only clients can place orders")
	}

	var req createOrderRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.SupplierID == uuid.Nil || req.AddressID == uuid.Nil {
		return fiber.NewError(fiber.StatusBadRequest, "supplier_id and address_id are required")
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = models.PaymentMethodCash
	}

	order, err := h.orders.CreateOrder(c.UserContext(), services.CreateOrderInput{
		ClientID:      sc.UserID(),
		SupplierID:    req.SupplierID,
		AddressID:     req.AddressID,
		Lines:         req.Items,
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
	})
	if err != nil {
		return err
	}

	return created(c, order)
}

func parseOrderFilter(c *fiber.Ctx) (services.OrderFilter, error) {
	filter := services.OrderFilter{Search: c.Query("search")}
	if raw := c.Query("status"); raw != "" {
		status, err := services.ParseOrderStatus(raw)
		if err != nil {
			return filter, err
		}
		filter.Status = status
	}

	var err error
	if filter.ClientID, err = queryUUID(c, "client_id"); err != nil {
		return filter, err
	}
	if filter.SupplierID, err = queryUUID(c, "supplier_id"); err != nil {
		return filter, err
	}
	if filter.CourierID, err = queryUUID(c, "courier_id"); err != nil {
		return filter, err
	}
	return filter, nil
}

// ListOrders lists the caller's orders: placed for clients, received for
// suppliers, assigned for couriers, everything for admins.
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	sc, err := currentSession(c)
	if err != nil {
		return err
	}

	filter, err := parseOrderFilter(c)
	if err != nil {
		return err
	}

	page := utils.ParsePagination(c)
	orders, total, err := h.orders.ListOrders(c.UserContext(), sc.Actor(), filter, page)
	if err != nil {
		return err
	}

	return paginated(c, orders, page, total)
}

// GetOrder returns one order visible to the caller.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	sc, err := currentSession(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}

	order, err := h.orders.GetOrder(c.UserContext(), sc.Actor(), id)
	if err != nil {
		return err
	}
	return ok(c, order)
}

type updateStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// UpdateStatus moves an order along its lifecycle.
func (h *OrderHandler) UpdateStatus(c *fiber.Ctx) error {
	sc, err := currentSession(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}

	var req updateStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	status, err := services.ParseOrderStatus(req.Status)
	if err != nil {
		return err
	}

	order, err := h.orders.UpdateStatus(c.UserContext(), sc.Actor(), id, status, req.Reason)
	if err != nil {
		return err
	}
	return ok(c, order)
}

type assignCourierRequest struct {
	CourierID uuid.UUID `json:"courier_id"`
}

// AssignCourier attaches a courier to an order. Admins name the courier;
// couriers assign themselves.
func (h *OrderHandler) AssignCourier(c *fiber.Ctx) error {
	sc, err := currentSession(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}

	var req assignCourierRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return err
		}
	}

	order, err := h.orders.AssignCourier(c.UserContext(), sc.Actor(), id, req.CourierID)
	if err != nil {
		return err
	}
	return ok(c, order)
}

// AcceptDelivery lets the authenticated courier take an order.
func (h *OrderHandler) AcceptDelivery(c *fiber.Ctx) error {
	sc, err := currentSession(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}

	order, err := h.orders.AssignCourier(c.UserContext(), sc.Actor(), id, uuid.Nil)
	if err != nil {
		return err
	}
	return ok(c, order)
}

// AvailableDeliveries lists orders waiting for a courier.
func (h *OrderHandler) AvailableDeliveries(c *fiber.Ctx) error {
	page := utils.ParsePagination(c)
	orders, total, err := h.orders.ListAvailableForCourier(c.UserContext(), page)
	if err != nil {
		return err
	}
	return paginated(c, orders, page, total)
}

// ConfirmPayment records cash collected on delivery.
func (h *OrderHandler) ConfirmPayment(c *fiber.Ctx) error {
	sc, err := currentSession(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}

	payment, err := h.orders.ConfirmCashPayment(c.UserContext(), sc.Actor(), id)
	if err != nil {
		return err
	}
	return ok(c, payment)
}
