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
	"github.com/example/marketplace/internal/money"
	"github.com/example/marketplace/internal/utils"
)

// OrderConfig holds the checkout fees.
type OrderConfig struct {
	ServiceFeeRate decimal.Decimal
	DeliveryFee    decimal.Decimal
}

// OrderService runs checkout and the order lifecycle.
type OrderService struct {
	db       *gorm.DB
	cfg      OrderConfig
	clock    clock.Clock
	notifier *NotificationService
	relay    AdminRelay
	metrics  *Metrics
	logger   zerolog.Logger
}

// NewOrderService constructs OrderService. relay may be nil.
func NewOrderService(db *gorm.DB, cfg OrderConfig, clk clock.Clock, notifier *NotificationService, relay AdminRelay, metrics *Metrics) *OrderService {
	return &OrderService{
		db:       db,
		cfg:      cfg,
		clock:    clk,
		notifier: notifier,
		relay:    relay,
		metrics:  metrics,
		logger:   logging.Component("orders"),
	}
}

// OrderLineInput is one requested product line.
type OrderLineInput struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

// CreateOrderInput describes a checkout.
type CreateOrderInput struct {
	ClientID      uuid.UUID
	SupplierID    uuid.UUID
	AddressID     uuid.UUID
	Lines         []OrderLineInput
	PaymentMethod models.PaymentMethod
	Notes         string
}

// mergeLines validates quantities and folds repeated products into one line,
// keeping first-seen order.
func mergeLines(lines []OrderLineInput) ([]OrderLineInput, error) {
	if len(lines) == 0 {
		return nil, errors.NewNotValid(nil, "order must contain at least one item")
	}

	index := make(map[uuid.UUID]int, len(lines))
	merged := make([]OrderLineInput, 0, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, errors.NewNotValid(nil, "quantity must be positive")
		}
		if i, ok := index[line.ProductID]; ok {
			merged[i].Quantity += line.Quantity
			continue
		}
		index[line.ProductID] = len(merged)
		merged = append(merged, line)
	}
	return merged, nil
}

// CreateOrder validates the cart against the supplier's live catalog,
// reserves stock and records the order with its pending payment.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	lines, err := mergeLines(in.Lines)
	if err != nil {
		return nil, err
	}
	if !in.PaymentMethod.Valid() {
		return nil, errors.BadRequestf("payment method %q is not supported", in.PaymentMethod)
	}

	var (
		order models.Order
		relay OrderNotification
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var supplier models.User
		err := tx.Preload("SupplierProfile").
			Where("id = ? AND role = ?", in.SupplierID, models.RoleSupplier).
			First(&supplier).Error
		if err != nil {
			return notFound(err, "supplier %s", in.SupplierID)
		}
		if !supplier.IsActive() || supplier.SupplierProfile == nil {
			return errors.NotFoundf("supplier %s", in.SupplierID)
		}
		if !supplier.SupplierProfile.IsOpen {
			return errors.BadRequestf("supplier %q is currently closed", supplier.SupplierProfile.BusinessName)
		}

		var client models.User
		if err := tx.First(&client, "id = ?", in.ClientID).Error; err != nil {
			return notFound(err, "client %s", in.ClientID)
		}

		var address models.Address
		if err := tx.Where("id = ? AND client_id = ?", in.AddressID, in.ClientID).First(&address).Error; err != nil {
			return notFound(err, "address %s", in.AddressID)
		}

		ids := make([]uuid.UUID, len(lines))
		for i, line := range lines {
			ids[i] = line.ProductID
		}
		var products []models.Product
		if err := tx.Where("id IN ? AND supplier_id = ?", ids, in.SupplierID).Find(&products).Error; err != nil {
			return errors.Trace(err)
		}
		byID := make(map[uuid.UUID]models.Product, len(products))
		for _, p := range products {
			byID[p.ID] = p
		}

		items := make([]models.OrderItem, 0, len(lines))
		priced := make([]money.Line, 0, len(lines))
		relayItems := make([]OrderItemNotification, 0, len(lines))
		for _, line := range lines {
			product, ok := byID[line.ProductID]
			if !ok {
				return errors.NotFoundf("product %s", line.ProductID)
			}
			if !product.IsAvailable {
				return errors.BadRequestf("product %q is not available", product.Name)
			}

			res := tx.Model(&models.Product{}).
				Where("id = ? AND stock_quantity >= ?", product.ID, line.Quantity).
				UpdateColumn("stock_quantity", gorm.Expr("stock_quantity - ?", line.Quantity))
			if res.Error != nil {
				return errors.Annotatef(res.Error, "reserve stock for %s", product.ID)
			}
			if res.RowsAffected == 0 {
				return errors.BadRequestf("insufficient stock for %q", product.Name)
			}

			pl := money.Line{Quantity: line.Quantity, UnitPrice: product.EffectivePrice()}
			priced = append(priced, pl)
			items = append(items, models.OrderItem{
				ProductID:   product.ID,
				ProductName: product.Name,
				Quantity:    pl.Quantity,
				UnitPrice:   pl.UnitPrice,
				LineTotal:   pl.LineTotal(),
			})
			relayItems = append(relayItems, OrderItemNotification{Name: product.Name, Quantity: pl.Quantity, Price: pl.UnitPrice})
		}

		deliveryFee := s.cfg.DeliveryFee
		if supplier.SupplierProfile.DeliveryFee.IsPositive() {
			deliveryFee = supplier.SupplierProfile.DeliveryFee
		}
		breakdown := money.Compute(priced, s.cfg.ServiceFeeRate, deliveryFee)

		now := s.clock.Now().UTC()
		order = models.Order{
			OrderNumber:     newOrderNumber(now.Format("060102")),
			ClientID:        client.ID,
			SupplierID:      supplier.ID,
			AddressID:       address.ID,
			DeliveryAddress: address.Line(),
			DeliveryLat:     address.Latitude,
			DeliveryLng:     address.Longitude,
			Subtotal:        breakdown.Subtotal,
			ServiceFee:      breakdown.ServiceFee,
			DeliveryFee:     breakdown.DeliveryFee,
			Total:           breakdown.Total,
			AmountPaid:      decimal.Zero,
			PaymentMethod:   in.PaymentMethod,
			Status:          models.OrderStatusPending,
			Notes:           strings.TrimSpace(in.Notes),
			Items:           items,
			Payment: &models.Payment{
				Amount: breakdown.Total,
				Method: in.PaymentMethod,
				Status: models.PaymentStatusPending,
			},
		}
		if err := tx.Create(&order).Error; err != nil {
			return errors.Annotate(err, "create order")
		}

		params := Params{
			"order_number": order.OrderNumber,
			"client":       client.FullName,
			"total":        FormatPrice(order.Total),
		}
		if err := s.notifier.Notify(ctx, tx, EventNewOrder, params, &order.ID, supplier.ID); err != nil {
			return err
		}

		relay = OrderNotification{
			OrderID:       order.ID.String(),
			OrderNumber:   order.OrderNumber,
			Items:         relayItems,
			Total:         order.Total,
			ClientName:    client.FullName,
			ClientPhone:   client.Phone,
			SupplierName:  supplier.SupplierProfile.BusinessName,
			PaymentMethod: string(order.PaymentMethod),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.OrdersCreated.Inc()
	}
	if s.relay != nil {
		s.relayAsync(s.relay.NotifyNewOrder, relay)
	}
	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("order_number", order.OrderNumber).
		Str("total", order.Total.StringFixed(2)).
		Msg("order created")
	return &order, nil
}

func newOrderNumber(day string) string {
	return fmt.Sprintf("CMD-%s-%s", day, strings.ToUpper(uuid.NewString()[:6]))
}

func (s *OrderService) relayAsync(send func(OrderNotification) error, n OrderNotification) {
	go func() {
		if err := send(n); err != nil {
			s.logger.Error().Err(err).Str("order_number", n.OrderNumber).Msg("admin relay failed")
		}
	}()
}

// UpdateStatus moves an order along its lifecycle on behalf of actor.
func (s *OrderService) UpdateStatus(ctx context.Context, actor Actor, orderID uuid.UUID, to models.OrderStatus, reason string) (*models.Order, error) {
	reason = strings.TrimSpace(reason)

	var (
		order models.Order
		relay OrderNotification
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := loadVisibleOrder(tx, actor, orderID, &order); err != nil {
			return err
		}
		if err := checkTransition(actor, &order, to); err != nil {
			return err
		}

		from := order.Status
		now := s.clock.Now().UTC()
		updates := map[string]interface{}{"status": to}
		switch to {
		case models.OrderStatusDelivered:
			updates["delivered_at"] = now
			order.DeliveredAt = &now
		case models.OrderStatusCancelled:
			updates["cancelled_at"] = now
			updates["cancel_reason"] = reason
			order.CancelledAt = &now
			order.CancelReason = reason
		}

		// Compare-and-set on the previous status keeps concurrent updates
		// from both applying.
		res := tx.Model(&models.Order{}).Where("id = ? AND status = ?", order.ID, from).Updates(updates)
		if res.Error != nil {
			return errors.Annotate(res.Error, "update order status")
		}
		if res.RowsAffected == 0 {
			return errors.BadRequestf("order %s was modified concurrently", order.OrderNumber)
		}
		order.Status = to

		switch to {
		case models.OrderStatusCancelled:
			if err := s.releaseOrder(tx, &order); err != nil {
				return err
			}
		case models.OrderStatusDelivered:
			if order.CourierID != nil {
				if err := tx.Model(&models.CourierProfile{}).Where("user_id = ?", *order.CourierID).
					UpdateColumn("total_deliveries", gorm.Expr("total_deliveries + 1")).Error; err != nil {
					return errors.Trace(err)
				}
			}
		}

		params, err := orderParams(tx, &order)
		if err != nil {
			return err
		}
		params["reason"] = reason

		event, recipients := statusRecipients(&order, to)
		recipients = without(recipients, actor.ID, to == models.OrderStatusCancelled)
		if err := s.notifier.Notify(ctx, tx, event, params, &order.ID, recipients...); err != nil {
			return err
		}

		relay = OrderNotification{
			OrderID:      order.ID.String(),
			OrderNumber:  order.OrderNumber,
			Total:        order.Total,
			ClientName:   params["client"],
			SupplierName: params["supplier"],
			Reason:       reason,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.OrderTransitions.WithLabelValues(string(to)).Inc()
	}
	if to == models.OrderStatusCancelled && s.relay != nil {
		s.relayAsync(s.relay.NotifyOrderCancelled, relay)
	}
	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("status", string(to)).
		Str("actor_role", string(actor.Role)).
		Msg("order status changed")
	return s.loadOrder(ctx, order.ID)
}

// releaseOrder returns reserved stock and fails a payment that was never
// collected. Confirmed payments are left as they are.
func (s *OrderService) releaseOrder(tx *gorm.DB, order *models.Order) error {
	var items []models.OrderItem
	if err := tx.Where("order_id = ?", order.ID).Find(&items).Error; err != nil {
		return errors.Trace(err)
	}
	for _, item := range items {
		if err := tx.Model(&models.Product{}).Where("id = ?", item.ProductID).
			UpdateColumn("stock_quantity", gorm.Expr("stock_quantity + ?", item.Quantity)).Error; err != nil {
			return errors.Annotatef(err, "restock %s", item.ProductID)
		}
	}

	return errors.Trace(tx.Model(&models.Payment{}).
		Where("order_id = ? AND status = ?", order.ID, models.PaymentStatusPending).
		Update("status", models.PaymentStatusFailed).Error)
}

func statusRecipients(order *models.Order, to models.OrderStatus) (Event, []uuid.UUID) {
	courier := uuid.Nil
	if order.CourierID != nil {
		courier = *order.CourierID
	}

	switch to {
	case models.OrderStatusPreparing:
		return EventOrderPreparing, []uuid.UUID{order.ClientID}
	case models.OrderStatusReadyForPickup:
		return EventOrderReady, []uuid.UUID{order.ClientID, courier}
	case models.OrderStatusOutForDelivery:
		return EventOrderOutForDelivery, []uuid.UUID{order.ClientID}
	case models.OrderStatusDelivered:
		return EventOrderDelivered, []uuid.UUID{order.ClientID}
	default:
		return EventOrderCancelled, []uuid.UUID{order.ClientID, order.SupplierID, courier}
	}
}

func without(ids []uuid.UUID, skip uuid.UUID, apply bool) []uuid.UUID {
	if !apply {
		return ids
	}
	out := ids[:0]
	for _, id := range ids {
		if id != skip {
			out = append(out, id)
		}
	}
	return out
}

// AssignCourier attaches a courier to an order. Admins pick any available
// courier; a courier may only accept an unassigned order for themselves.
func (s *OrderService) AssignCourier(ctx context.Context, actor Actor, orderID, courierID uuid.UUID) (*models.Order, error) {
	switch actor.Role {
	case models.RoleAdmin:
		if courierID == uuid.Nil {
			return nil, errors.BadRequestf("courier_id is required")
		}
	case models.RoleCourier:
		if courierID == uuid.Nil {
			courierID = actor.ID
		}
		if courierID != actor.ID {
			return nil, errors.Forbiddenf("couriers can only accept orders for themselves")
		}
	default:
		return nil, errors.Forbiddenf("role %s cannot assign couriers", actor.Role)
	}

	var order models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&order, "id = ?", orderID).Error; err != nil {
			return notFound(err, "order %s", orderID)
		}
		if IsTerminal(order.Status) {
			return errors.BadRequestf("order %s is already %s", order.OrderNumber, order.Status)
		}
		if actor.Role == models.RoleCourier &&
			order.Status != models.OrderStatusPreparing && order.Status != models.OrderStatusReadyForPickup {
			return errors.BadRequestf("order %s is not open for pickup", order.OrderNumber)
		}
		if order.CourierID != nil {
			if *order.CourierID == courierID {
				return nil
			}
			return errors.AlreadyExistsf("courier assignment for order %s", order.OrderNumber)
		}

		var courier models.User
		err := tx.Preload("CourierProfile").
			Where("id = ? AND role = ?", courierID, models.RoleCourier).
			First(&courier).Error
		if err != nil {
			return notFound(err, "courier %s", courierID)
		}
		if !courier.IsActive() || courier.CourierProfile == nil || !courier.CourierProfile.IsAvailable {
			return errors.BadRequestf("courier %s is not available", courier.FullName)
		}

		res := tx.Model(&models.Order{}).
			Where("id = ? AND courier_id IS NULL", order.ID).
			Update("courier_id", courierID)
		if res.Error != nil {
			return errors.Annotate(res.Error, "assign courier")
		}
		if res.RowsAffected == 0 {
			return errors.AlreadyExistsf("courier assignment for order %s", order.OrderNumber)
		}
		order.CourierID = &courierID

		params, err := orderParams(tx, &order)
		if err != nil {
			return err
		}
		if err := s.notifier.Notify(ctx, tx, EventCourierAssigned, params, &order.ID, order.ClientID); err != nil {
			return err
		}
		return s.notifier.Notify(ctx, tx, EventDeliveryAssigned, params, &order.ID, courierID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("order_id", order.ID.String()).Str("courier_id", courierID.String()).Msg("courier assigned")
	return s.loadOrder(ctx, order.ID)
}

// ConfirmCashPayment records that the assigned courier collected a cash
// payment. Confirming twice returns the already confirmed payment.
func (s *OrderService) ConfirmCashPayment(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Payment, error) {
	if actor.Role != models.RoleCourier {
		return nil, errors.Forbiddenf("only the assigned courier can confirm cash payments")
	}

	var payment models.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := loadVisibleOrder(tx, actor, orderID, &order); err != nil {
			return err
		}
		if order.PaymentMethod != models.PaymentMethodCash {
			return errors.BadRequestf("order %s is not paid in cash", order.OrderNumber)
		}
		if order.Status != models.OrderStatusOutForDelivery && order.Status != models.OrderStatusDelivered {
			return errors.BadRequestf("order %s has not been picked up", order.OrderNumber)
		}

		if err := tx.Where("order_id = ?", order.ID).First(&payment).Error; err != nil {
			return notFound(err, "payment for order %s", order.OrderNumber)
		}
		switch payment.Status {
		case models.PaymentStatusConfirmed:
			return nil
		case models.PaymentStatusFailed:
			return errors.BadRequestf("payment for order %s has failed", order.OrderNumber)
		}

		now := s.clock.Now().UTC()
		if err := tx.Model(&models.Payment{}).Where("id = ?", payment.ID).Updates(map[string]interface{}{
			"status":       models.PaymentStatusConfirmed,
			"confirmed_at": now,
			"confirmed_by": actor.ID,
		}).Error; err != nil {
			return errors.Annotate(err, "confirm payment")
		}
		payment.Status = models.PaymentStatusConfirmed
		payment.ConfirmedAt = &now
		payment.ConfirmedBy = &actor.ID

		if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).
			UpdateColumn("amount_paid", payment.Amount).Error; err != nil {
			return errors.Trace(err)
		}

		params := Params{"order_number": order.OrderNumber, "amount": FormatPrice(payment.Amount)}
		return s.notifier.Notify(ctx, tx, EventPaymentConfirmed, params, &order.ID, order.ClientID)
	})
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetOrder returns an order the actor is a party to.
func (s *OrderService) GetOrder(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := loadVisibleOrder(s.db.WithContext(ctx).Preload("Items").Preload("Payment"), actor, orderID, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// OrderFilter narrows order listings. The party filters are honoured for
// admins only; other roles always see their own orders.
type OrderFilter struct {
	Status     models.OrderStatus
	ClientID   *uuid.UUID
	SupplierID *uuid.UUID
	CourierID  *uuid.UUID
	Search     string
}

// ListOrders returns the actor's orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, actor Actor, filter OrderFilter, page utils.Pagination) ([]models.Order, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Order{})
	switch actor.Role {
	case models.RoleClient:
		query = query.Where("client_id = ?", actor.ID)
	case models.RoleSupplier:
		query = query.Where("supplier_id = ?", actor.ID)
	case models.RoleCourier:
		query = query.Where("courier_id = ?", actor.ID)
	case models.RoleAdmin:
		if filter.ClientID != nil {
			query = query.Where("client_id = ?", *filter.ClientID)
		}
		if filter.SupplierID != nil {
			query = query.Where("supplier_id = ?", *filter.SupplierID)
		}
		if filter.CourierID != nil {
			query = query.Where("courier_id = ?", *filter.CourierID)
		}
		if search := strings.TrimSpace(filter.Search); search != "" {
			query = query.Where("LOWER(order_number) LIKE ?", "%"+strings.ToLower(search)+"%")
		}
	default:
		return nil, 0, errors.Forbiddenf("role %s cannot list orders", actor.Role)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, errors.Trace(err)
	}

	var orders []models.Order
	err := query.Preload("Items").Preload("Payment").
		Order("created_at desc").
		Limit(page.Limit).Offset(page.Offset).
		Find(&orders).Error
	return orders, total, errors.Trace(err)
}

// ListAvailableForCourier returns unassigned orders a courier may accept,
// oldest first.
func (s *OrderService) ListAvailableForCourier(ctx context.Context, page utils.Pagination) ([]models.Order, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("courier_id IS NULL AND status IN ?", []models.OrderStatus{models.OrderStatusPreparing, models.OrderStatusReadyForPickup})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, errors.Trace(err)
	}

	var orders []models.Order
	err := query.Preload("Items").Preload("Supplier.SupplierProfile").
		Order("created_at asc").
		Limit(page.Limit).Offset(page.Offset).
		Find(&orders).Error
	return orders, total, errors.Trace(err)
}

func (s *OrderService) loadOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).Preload("Items").Preload("Payment").First(&order, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "order %s", id)
	}
	return &order, nil
}

// loadVisibleOrder loads the order into dst, hiding orders the actor is not
// a party to behind NotFound.
func loadVisibleOrder(tx *gorm.DB, actor Actor, id uuid.UUID, dst *models.Order) error {
	if err := tx.First(dst, "id = ?", id).Error; err != nil {
		return notFound(err, "order %s", id)
	}
	if !canView(actor, dst) {
		return errors.NotFoundf("order %s", id)
	}
	return nil
}

// orderParams resolves the display names used by order templates.
func orderParams(tx *gorm.DB, order *models.Order) (Params, error) {
	params := Params{
		"order_number": order.OrderNumber,
		"total":        FormatPrice(order.Total),
		"client":       "",
		"supplier":     "",
		"courier":      "",
	}

	ids := []uuid.UUID{order.ClientID, order.SupplierID}
	if order.CourierID != nil {
		ids = append(ids, *order.CourierID)
	}
	var users []models.User
	if err := tx.Preload("SupplierProfile").Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, errors.Trace(err)
	}

	for _, u := range users {
		switch {
		case u.ID == order.ClientID:
			params["client"] = u.FullName
		case u.ID == order.SupplierID:
			params["supplier"] = u.FullName
			if u.SupplierProfile != nil && u.SupplierProfile.BusinessName != "" {
				params["supplier"] = u.SupplierProfile.BusinessName
			}
		case order.CourierID != nil && u.ID == *order.CourierID:
			params["courier"] = u.FullName
		}
	}
	return params, nil
}

// notFound maps gorm's missing-row error to a NotFound with the given label.
func notFound(err error, format string, args ...interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.NotFoundf(format, args...)
	}
	return errors.Trace(err)
}
