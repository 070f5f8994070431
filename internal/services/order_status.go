package services

import (
	"fmt"

	"github.com/juju/errors"

	"github.com/example/marketplace/internal/models"
)

// transitions is the order lifecycle. delivered and cancelled are terminal.
var transitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderStatusPending:        {models.OrderStatusPreparing, models.OrderStatusCancelled},
	models.OrderStatusPreparing:      {models.OrderStatusReadyForPickup, models.OrderStatusCancelled},
	models.OrderStatusReadyForPickup: {models.OrderStatusOutForDelivery, models.OrderStatusCancelled},
	models.OrderStatusOutForDelivery: {models.OrderStatusDelivered, models.OrderStatusCancelled},
}

// ParseOrderStatus validates a status name.
func ParseOrderStatus(s string) (models.OrderStatus, error) {
	switch status := models.OrderStatus(s); status {
	case models.OrderStatusPending, models.OrderStatusPreparing, models.OrderStatusReadyForPickup,
		models.OrderStatusOutForDelivery, models.OrderStatusDelivered, models.OrderStatusCancelled:
		return status, nil
	}
	return "", errors.NotValidf("order status %q", s)
}

// CanTransition reports whether the lifecycle allows from -> to.
func CanTransition(from, to models.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves status.
func IsTerminal(status models.OrderStatus) bool {
	return len(transitions[status]) == 0
}

// canView reports whether the actor is a party to the order.
func canView(actor Actor, order *models.Order) bool {
	switch actor.Role {
	case models.RoleAdmin:
		return true
	case models.RoleClient:
		return order.ClientID == actor.ID
	case models.RoleSupplier:
		return order.SupplierID == actor.ID
	case models.RoleCourier:
		return order.CourierID != nil && *order.CourierID == actor.ID
	}
	return false
}

// checkTransition applies the lifecycle and the per-role rules for moving
// order to status to. The actor must already be a party to the order.
func checkTransition(actor Actor, order *models.Order, to models.OrderStatus) error {
	if !CanTransition(order.Status, to) {
		return errors.NewNotValid(nil, fmt.Sprintf("invalid status transition from %s to %s", order.Status, to))
	}

	switch actor.Role {
	case models.RoleAdmin, models.RoleSupplier:
		return nil
	case models.RoleClient:
		if to == models.OrderStatusCancelled && order.Status == models.OrderStatusPending {
			return nil
		}
		return errors.Forbiddenf("clients can only cancel pending orders")
	case models.RoleCourier:
		if to == models.OrderStatusOutForDelivery || to == models.OrderStatusDelivered {
			return nil
		}
		return errors.Forbiddenf("couriers cannot set status %s", to)
	}
	return errors.Forbiddenf("role %s cannot change order status", actor.Role)
}
