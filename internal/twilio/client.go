package twilio

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/pathakanu/billcal/internal/model"
	"github.com/pathakanu/billcal/internal/notify"
	twilio "github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

var (
	// ErrSenderMissing is returned when no WhatsApp sender number is configured.
	ErrSenderMissing = errors.New("twilio sender WhatsApp number is not configured")
	// ErrRecipientMissing is returned for a subscription without a WhatsApp address.
	ErrRecipientMissing = errors.New("recipient number missing or invalid")
)

// MessageCreator is the part of the Twilio REST API used to send messages.
type MessageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// Client delivers bill notifications over WhatsApp.
type Client struct {
	api          MessageCreator
	fromWhatsApp string
	logger       *log.Logger
}

// New creates a Twilio client bound to the configured WhatsApp sender number.
func New(accountSID, authToken, fromWhatsApp string, logger *log.Logger) *Client {
	rest := twilio.NewRestClientWithParams(twilio.ClientParams{Username: accountSID, Password: authToken})
	return NewWithAPI(rest.Api, fromWhatsApp, logger)
}

// NewWithAPI creates a client over an existing message API.
func NewWithAPI(api MessageCreator, fromWhatsApp string, logger *log.Logger) *Client {
	return &Client{api: api, fromWhatsApp: fromWhatsApp, logger: logger}
}

// Notify sends n to the subscription's WhatsApp address.
func (c *Client) Notify(_ context.Context, sub model.Subscription, n notify.Notification) error {
	return c.SendWhatsAppMessage(sub.WhatsApp, FormatNotification(n))
}

// FormatNotification renders a notification as a WhatsApp message body.
func FormatNotification(n notify.Notification) string {
	return "*" + n.Title + "*\n" + n.Body
}

// SendWhatsAppMessage sends a WhatsApp message via Twilio's API.
func (c *Client) SendWhatsAppMessage(to, body string) error {
	sender := NormalizeWhatsAppAddress(c.fromWhatsApp)
	if sender == "" {
		return ErrSenderMissing
	}
	recipient := NormalizeWhatsAppAddress(to)
	if recipient == "" {
		return ErrRecipientMissing
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(recipient)
	params.SetFrom(sender)
	params.SetBody(body)

	resp, err := c.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("twilio send message error: %w", err)
	}
	if resp != nil && resp.Sid != nil {
		c.logger.Printf("twilio: message sent to %s, SID: %s", recipient, *resp.Sid)
	}
	return nil
}

// NormalizeWhatsAppAddress returns number in Twilio's whatsapp:+<digits> form,
// or "" for a blank number.
func NormalizeWhatsAppAddress(number string) string {
	trimmed := strings.TrimSpace(number)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "whatsapp:") {
		return trimmed
	}
	if strings.HasPrefix(trimmed, "+") {
		return "whatsapp:" + trimmed
	}
	return "whatsapp:+" + trimmed
}
