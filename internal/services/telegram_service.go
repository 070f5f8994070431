package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/example/marketplace/internal/logging"
)

const defaultTelegramAPI = "https://api.telegram.org"

// AdminRelay forwards noteworthy order events to the operations team.
type AdminRelay interface {
	NotifyNewOrder(order OrderNotification) error
	NotifyOrderCancelled(order OrderNotification) error
}

// TelegramService handles sending notifications to Telegram.
type TelegramService struct {
	botToken    string
	adminChatID string
	apiBase     string
	client      *http.Client
	logger      zerolog.Logger
}

// NewTelegramService creates a new TelegramService.
func NewTelegramService(botToken, adminChatID string) *TelegramService {
	return &TelegramService{
		botToken:    botToken,
		adminChatID: adminChatID,
		apiBase:     defaultTelegramAPI,
		client:      &http.Client{Timeout: 10 * time.Second},
		logger:      logging.Component("telegram"),
	}
}

// WithAPIBase points the service at another Bot API host.
func (s *TelegramService) WithAPIBase(base string) *TelegramService {
	s.apiBase = strings.TrimRight(base, "/")
	return s
}

// Enabled reports whether both the bot token and admin chat are configured.
func (s *TelegramService) Enabled() bool {
	return s != nil && s.botToken != "" && s.adminChatID != ""
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendMessage sends a message to specified chat.
func (s *TelegramService) SendMessage(chatID, text string) error {
	if s.botToken == "" {
		s.logger.Debug().Msg("bot token not configured")
		return nil
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.apiBase, s.botToken)

	body, err := json.Marshal(telegramMessage{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "HTML",
	})
	if err != nil {
		return errors.Trace(err)
	}

	resp, err := s.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return errors.Annotate(err, "send telegram message")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("telegram returned status %d", resp.StatusCode)
	}

	return nil
}

// SendToAdmin sends a message to the admin chat.
func (s *TelegramService) SendToAdmin(text string) error {
	if s.adminChatID == "" {
		s.logger.Debug().Msg("admin chat id not configured")
		return nil
	}
	return s.SendMessage(s.adminChatID, text)
}

// OrderNotification contains order data for the admin relay.
type OrderNotification struct {
	OrderID       string
	OrderNumber   string
	Items         []OrderItemNotification
	Total         decimal.Decimal
	ClientName    string
	ClientPhone   string
	SupplierName  string
	PaymentMethod string
	Reason        string
}

// OrderItemNotification contains order item data.
type OrderItemNotification struct {
	Name     string
	Quantity int
	Price    decimal.Decimal
}

// FormatPrice formats an amount with thousand separators and two decimals.
func FormatPrice(amount decimal.Decimal) string {
	fixed := amount.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var result strings.Builder
	if amount.IsNegative() {
		result.WriteByte('-')
	}
	for i, digit := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			result.WriteString(" ")
		}
		result.WriteRune(digit)
	}
	return result.String() + "," + frac + " €"
}

// NotifyNewOrder sends notification about new order to admin chat.
func (s *TelegramService) NotifyNewOrder(order OrderNotification) error {
	if s.adminChatID == "" {
		return nil
	}

	var itemsList strings.Builder
	for i, item := range order.Items {
		lineTotal := item.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		fmt.Fprintf(&itemsList, "%d. <b>%s</b>\n   %d x %s = %s\n",
			i+1,
			html.EscapeString(item.Name),
			item.Quantity,
			FormatPrice(item.Price),
			FormatPrice(lineTotal),
		)
	}

	message := fmt.Sprintf(`<b>🛒 NOUVELLE COMMANDE</b>
<b>Commande:</b> %s
<b>Fournisseur:</b> %s
<b>Client:</b> %s (%s)
<b>Articles:</b>
%s
<b>Total:</b> %s
<b>Paiement:</b> %s`,
		html.EscapeString(order.OrderNumber),
		html.EscapeString(order.SupplierName),
		html.EscapeString(order.ClientName),
		html.EscapeString(order.ClientPhone),
		itemsList.String(),
		FormatPrice(order.Total),
		html.EscapeString(order.PaymentMethod),
	)

	return s.SendToAdmin(strings.TrimSpace(message))
}

// NotifyOrderCancelled reports a cancellation to the admin chat.
func (s *TelegramService) NotifyOrderCancelled(order OrderNotification) error {
	if s.adminChatID == "" {
		return nil
	}

	reason := order.Reason
	if reason == "" {
		reason = "-"
	}

	message := fmt.Sprintf(`<b>❌ COMMANDE ANNULÉE</b>
<b>Commande:</b> %s
<b>Fournisseur:</b> %s
<b>Total:</b> %s
<b>Motif:</b> %s`,
		html.EscapeString(order.OrderNumber),
		html.EscapeString(order.SupplierName),
		FormatPrice(order.Total),
		html.EscapeString(reason),
	)

	return s.SendToAdmin(strings.TrimSpace(message))
}
