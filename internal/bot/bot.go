// Package bot answers WhatsApp messages forwarded by the Twilio webhook.
package bot

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/pathakanu/billcal/internal/checkin"
	"github.com/pathakanu/billcal/internal/model"
	"github.com/pathakanu/billcal/internal/notify"
	"github.com/pathakanu/billcal/internal/session"
	"github.com/pathakanu/billcal/internal/store"
	"github.com/pathakanu/billcal/internal/twilio"
)

// Replies that do not come from the assistant.
const (
	UnknownSenderMessage = "This number isn't linked to an account yet. Add it in the notification settings of the app first."
	EmptyMessage         = "I need a message to work with. Please try again."
	BadRequestMessage    = "Sorry, I couldn't understand that request."
)

// Subscriptions resolves and updates the account linked to a WhatsApp number.
type Subscriptions interface {
	ByWhatsApp(ctx context.Context, address string) (model.Subscription, error)
	Save(ctx context.Context, sub *model.Subscription) error
}

// Chatter runs one assistant turn.
type Chatter interface {
	Chat(ctx context.Context, sess session.Session, message string) (checkin.Reply, error)
}

// BillStore lists bills that still need paying.
type BillStore interface {
	Unpaid(ctx context.Context, userID, from, to string) ([]model.Bill, error)
}

// GoalStore lists active goals.
type GoalStore interface {
	Active(ctx context.Context, userID string, limit int) ([]model.Goal, error)
}

// SignatureVerifier authenticates webhook requests as coming from Twilio.
type SignatureVerifier interface {
	Verify(r *http.Request) bool
}

// PermissionCache is told when a user changes their notification grant.
type PermissionCache interface {
	Forget(userID string)
}

// Deps bundles the collaborators of Bot.
type Deps struct {
	Subscriptions Subscriptions
	Assistant     Chatter
	Bills         BillStore
	Goals         GoalStore
	Permissions   PermissionCache
	Signatures    SignatureVerifier
}

// Bot routes WhatsApp commands and forwards everything else to the assistant.
type Bot struct {
	deps     Deps
	location *time.Location
	logger   *log.Logger
}

// New creates a Bot evaluating days in loc.
func New(deps Deps, loc *time.Location, logger *log.Logger) *Bot {
	return &Bot{deps: deps, location: loc, logger: logger}
}

// Handler returns the HTTP handler for incoming Twilio messages.
func (b *Bot) Handler() http.HandlerFunc {
	return b.handleIncomingMessage
}

// handleIncomingMessage processes Twilio webhook POST requests. Requests
// without a valid Twilio signature are refused before the sender is trusted.
func (b *Bot) handleIncomingMessage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		b.logger.Printf("webhook: parse error: %v", err)
		b.writeTwilioResponse(w, BadRequestMessage)
		return
	}
	if b.deps.Signatures == nil || !b.deps.Signatures.Verify(r) {
		b.logger.Printf("webhook: rejected unsigned request from %s", r.RemoteAddr)
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}

	from := r.FormValue("From")
	body := strings.TrimSpace(r.FormValue("Body"))
	if from == "" || body == "" {
		b.writeTwilioResponse(w, EmptyMessage)
		return
	}

	ctx := r.Context()
	sub, err := b.deps.Subscriptions.ByWhatsApp(ctx, twilio.NormalizeWhatsAppAddress(from))
	if errors.Is(err, store.ErrNotFound) {
		b.writeTwilioResponse(w, UnknownSenderMessage)
		return
	}
	if err != nil {
		b.logger.Printf("webhook: resolve %s: %v", from, err)
		b.writeTwilioResponse(w, checkin.ApologyMessage)
		return
	}

	sess := session.New(sub.UserID, b.location)
	b.writeTwilioResponse(w, b.respond(ctx, sess, sub, body))
}

func (b *Bot) respond(ctx context.Context, sess session.Session, sub model.Subscription, body string) string {
	switch strings.ToLower(body) {
	case "help":
		return helpResponse()
	case "bills":
		return b.listBills(ctx, sess)
	case "goals":
		return b.listGoals(ctx, sess)
	case "stop":
		return b.setGranted(ctx, sub, false)
	case "start":
		return b.setGranted(ctx, sub, true)
	}

	reply, err := b.deps.Assistant.Chat(ctx, sess, body)
	if err != nil && !reply.Failed {
		b.logger.Printf("webhook: chat for %s: %v", sess.UserID, err)
		return checkin.ApologyMessage
	}
	return reply.Text
}

// listBills returns the unpaid bills of the coming week.
func (b *Bot) listBills(ctx context.Context, sess session.Session) string {
	today := sess.Today()
	bills, err := b.deps.Bills.Unpaid(ctx, sess.UserID,
		today.Format(session.DayLayout),
		today.AddDate(0, 0, notify.Window).Format(session.DayLayout))
	if err != nil {
		b.logger.Printf("webhook: list bills: %v", err)
		return checkin.ApologyMessage
	}
	if len(bills) == 0 {
		return "No unpaid bills in the next 7 days."
	}

	var sb strings.Builder
	sb.WriteString("Unpaid bills this week:\n")
	for i, bill := range bills {
		amount := "Amount TBD"
		if bill.Amount.Valid {
			amount = "$" + bill.Amount.Decimal.StringFixed(2)
		}
		fmt.Fprintf(&sb, "%d. %s %s - %s", i+1, bill.Date, bill.Description, amount)
		if bill.Status == model.StatusPaymentArrangement {
			sb.WriteString(" (PA)")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// listGoals returns the active goals by priority.
func (b *Bot) listGoals(ctx context.Context, sess session.Session) string {
	goals, err := b.deps.Goals.Active(ctx, sess.UserID, checkin.ActiveGoalsLimit)
	if err != nil {
		b.logger.Printf("webhook: list goals: %v", err)
		return checkin.ApologyMessage
	}
	if len(goals) == 0 {
		return "You have no active goals yet. Tell me what you're saving for!"
	}

	var sb strings.Builder
	sb.WriteString("Your active goals:\n")
	for i, g := range goals {
		fmt.Fprintf(&sb, "%d. [%d] %s\n", i+1, g.Priority, g.Goal)
	}
	return sb.String()
}

func (b *Bot) setGranted(ctx context.Context, sub model.Subscription, granted bool) string {
	sub.Granted = granted
	if err := b.deps.Subscriptions.Save(ctx, &sub); err != nil {
		b.logger.Printf("webhook: save subscription: %v", err)
		return checkin.ApologyMessage
	}
	if b.deps.Permissions != nil {
		b.deps.Permissions.Forget(sub.UserID)
	}
	if granted {
		return "Bill reminders are on. I'll message you when a bill is due."
	}
	return "Bill reminders are off. Send START to turn them back on."
}

func (b *Bot) writeTwilioResponse(w http.ResponseWriter, message string) {
	twiml := struct {
		XMLName xml.Name `xml:"Response"`
		Message string   `xml:"Message"`
	}{
		Message: message,
	}

	w.Header().Set("Content-Type", "application/xml")
	if err := xml.NewEncoder(w).Encode(twiml); err != nil {
		b.logger.Printf("twilio response encode: %v", err)
	}
}

func helpResponse() string {
	return "You can say things like:\n- \"bills\" to see what's due this week\n- \"goals\" to list your active goals\n- \"stop\" or \"start\" to turn bill reminders off or on\n- anything else to chat with your assistant"
}
