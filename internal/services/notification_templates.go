package services

import (
	"strings"

	"github.com/example/marketplace/internal/models"
)

// Event names a templated notification.
type Event string

const (
	EventNewOrder             Event = "new_order"
	EventOrderPreparing       Event = "order_preparing"
	EventOrderReady           Event = "order_ready"
	EventOrderOutForDelivery  Event = "order_out_for_delivery"
	EventOrderDelivered       Event = "order_delivered"
	EventOrderCancelled       Event = "order_cancelled"
	EventCourierAssigned      Event = "courier_assigned"
	EventDeliveryAssigned     Event = "delivery_assigned"
	EventPaymentConfirmed     Event = "payment_confirmed"
	EventAccountStatusChanged Event = "account_status_changed"
)

// Params fill the {placeholders} of a template.
type Params map[string]string

type template struct {
	title    string
	message  string
	priority models.NotificationPriority
	link     string
}

var templates = map[Event]template{
	EventNewOrder: {
		title:    "Nouvelle commande",
		message:  "Nouvelle commande {order_number} de {client} ({total}).",
		priority: models.PriorityHigh,
		link:     "/fournisseur/commandes/{order_id}",
	},
	EventOrderPreparing: {
		title:    "Commande confirmée",
		message:  "{supplier} prépare votre commande {order_number}.",
		priority: models.PriorityNormal,
		link:     "/client/commandes/{order_id}",
	},
	EventOrderReady: {
		title:    "Commande prête",
		message:  "La commande {order_number} est prête chez {supplier}.",
		priority: models.PriorityNormal,
		link:     "/commandes/{order_id}",
	},
	EventOrderOutForDelivery: {
		title:    "Commande en route",
		message:  "Votre commande {order_number} est en cours de livraison.",
		priority: models.PriorityHigh,
		link:     "/client/commandes/{order_id}",
	},
	EventOrderDelivered: {
		title:    "Commande livrée",
		message:  "Votre commande {order_number} a été livrée. Bon appétit !",
		priority: models.PriorityNormal,
		link:     "/client/commandes/{order_id}",
	},
	EventOrderCancelled: {
		title:    "Commande annulée",
		message:  "La commande {order_number} a été annulée. {reason}",
		priority: models.PriorityHigh,
		link:     "/commandes/{order_id}",
	},
	EventCourierAssigned: {
		title:    "Livreur assigné",
		message:  "{courier} livrera votre commande {order_number}.",
		priority: models.PriorityNormal,
		link:     "/client/commandes/{order_id}",
	},
	EventDeliveryAssigned: {
		title:    "Nouvelle livraison",
		message:  "La commande {order_number} chez {supplier} vous est assignée.",
		priority: models.PriorityHigh,
		link:     "/livreur/commandes/{order_id}",
	},
	EventPaymentConfirmed: {
		title:    "Paiement confirmé",
		message:  "Paiement de {amount} reçu pour la commande {order_number}.",
		priority: models.PriorityLow,
		link:     "/client/commandes/{order_id}",
	},
	EventAccountStatusChanged: {
		title:    "Statut du compte",
		message:  "Le statut de votre compte est maintenant : {status}.",
		priority: models.PriorityHigh,
	},
}

func render(text string, params Params) string {
	if len(params) == 0 {
		return text
	}
	pairs := make([]string, 0, len(params)*2)
	for k, v := range params {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.TrimSpace(strings.NewReplacer(pairs...).Replace(text))
}
