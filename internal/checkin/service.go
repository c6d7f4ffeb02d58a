package checkin

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/pathakanu/billcal/internal/metrics"
	"github.com/pathakanu/billcal/internal/model"
	"github.com/pathakanu/billcal/internal/openai"
	"github.com/pathakanu/billcal/internal/session"
)

// Messages stored as the assistant turn outside a normal reply.
const (
	Greeting             = "Hello! I'm your personal financial assistant. I'm here to help you manage your bills, track your goals, and make smart financial decisions. Let's start with a quick check-in. How are you doing today?"
	ApologyMessage       = "Sorry, I encountered an error. Please try again."
	NotConfiguredMessage = "AI not configured yet. Please add your assistant API key to the server configuration."

	// ChatHistoryLimit bounds the conversation returned for display.
	ChatHistoryLimit = 50
)

// ErrMessageRequired is returned for an empty chat message.
var ErrMessageRequired = errors.New("message is required")

// Gateway produces the assistant reply for a conversation.
type Gateway interface {
	Reply(ctx context.Context, messages []openai.Message) (string, error)
}

// ChatStore persists the conversation.
type ChatStore interface {
	Append(ctx context.Context, msg *model.ChatMessage) error
	Recent(ctx context.Context, userID string, limit int) ([]model.ChatMessage, error)
}

// BillStore reads upcoming bills.
type BillStore interface {
	Upcoming(ctx context.Context, userID, from string, limit int) ([]model.Bill, error)
}

// GoalStore reads active goals.
type GoalStore interface {
	Active(ctx context.Context, userID string, limit int) ([]model.Goal, error)
}

// CheckInStore reads and upserts daily check-ins.
type CheckInStore interface {
	Get(ctx context.Context, userID, date string) (*model.DailyCheckIn, error)
	Upsert(ctx context.Context, checkIn *model.DailyCheckIn) error
}

// Stores bundles the record store dependencies of Service.
type Stores struct {
	Chat     ChatStore
	Bills    BillStore
	Goals    GoalStore
	CheckIns CheckInStore
}

// Reply is the outcome of one chat turn. Failed marks a stored fallback
// message in place of a model reply.
type Reply struct {
	Text           string `json:"reply"`
	Failed         bool   `json:"failed"`
	GoalsDiscussed bool   `json:"goals_discussed"`
}

// Service runs chat turns against the assistant gateway.
type Service struct {
	stores  Stores
	gateway Gateway
	logger  *log.Logger
}

// NewService returns a Service.
func NewService(stores Stores, gateway Gateway, logger *log.Logger) *Service {
	return &Service{stores: stores, gateway: gateway, logger: logger}
}

// History returns the latest messages for display. An empty conversation is
// opened with the stored greeting.
func (s *Service) History(ctx context.Context, sess session.Session) ([]model.ChatMessage, error) {
	msgs, err := s.stores.Chat.Recent(ctx, sess.UserID, ChatHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if len(msgs) > 0 {
		return msgs, nil
	}

	greeting := &model.ChatMessage{UserID: sess.UserID, Message: Greeting, Role: model.RoleAssistant}
	if err := s.stores.Chat.Append(ctx, greeting); err != nil {
		return nil, fmt.Errorf("store greeting: %w", err)
	}
	return []model.ChatMessage{*greeting}, nil
}

// Chat stores message, asks the assistant for a reply and stores it. When
// the assistant fails a fallback message is stored as the assistant turn and
// returned together with the error.
func (s *Service) Chat(ctx context.Context, sess session.Session, message string) (Reply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return Reply{}, ErrMessageRequired
	}

	userMsg := &model.ChatMessage{UserID: sess.UserID, Message: message, Role: model.RoleUser}
	if err := s.stores.Chat.Append(ctx, userMsg); err != nil {
		return Reply{}, fmt.Errorf("store message: %w", err)
	}

	reply, discussed, err := s.respond(ctx, sess, userMsg)
	if err != nil {
		fallback := ApologyMessage
		outcome := "error"
		if errors.Is(err, openai.ErrClientNotInitialised) {
			fallback = NotConfiguredMessage
			outcome = "not_configured"
		}
		metrics.AssistantCalls.WithLabelValues(outcome).Inc()
		s.logger.Printf("assistant: user %s: %v", sess.UserID, err)

		if storeErr := s.appendAssistant(ctx, sess, fallback); storeErr != nil {
			return Reply{}, errors.Join(err, storeErr)
		}
		return Reply{Text: fallback, Failed: true}, err
	}
	metrics.AssistantCalls.WithLabelValues("ok").Inc()

	if err := s.appendAssistant(ctx, sess, reply); err != nil {
		return Reply{}, err
	}
	return Reply{Text: reply, GoalsDiscussed: discussed}, nil
}

func (s *Service) respond(ctx context.Context, sess session.Session, userMsg *model.ChatMessage) (string, bool, error) {
	today := sess.TodayString()
	snap, err := s.snapshot(ctx, sess, today, userMsg.ID)
	if err != nil {
		return "", false, err
	}

	start := time.Now()
	reply, err := s.gateway.Reply(ctx, ComposeMessages(snap, userMsg.Message))
	metrics.AssistantDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return "", false, err
	}

	if !MentionsGoals(userMsg.Message, reply) || len(snap.ActiveGoals) == 0 {
		return reply, false, nil
	}
	next := NextCheckIn(snap.Today, sess.UserID, today, userMsg.Message)
	if err := s.stores.CheckIns.Upsert(ctx, next); err != nil {
		s.logger.Printf("assistant: check-in upsert for %s: %v", sess.UserID, err)
		return reply, false, nil
	}
	metrics.CheckInUpserts.Inc()
	return reply, true, nil
}

// snapshot reads the context of one turn. The message being answered is
// left out of the history since it is appended last.
func (s *Service) snapshot(ctx context.Context, sess session.Session, today, excludeID string) (Snapshot, error) {
	history, err := s.stores.Chat.Recent(ctx, sess.UserID, HistoryFetch+1)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load history: %w", err)
	}
	prior := make([]model.ChatMessage, 0, len(history))
	for _, h := range history {
		if h.ID != excludeID {
			prior = append(prior, h)
		}
	}
	if len(prior) > HistoryFetch {
		prior = prior[len(prior)-HistoryFetch:]
	}

	bills, err := s.stores.Bills.Upcoming(ctx, sess.UserID, today, UpcomingBillsLimit)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load upcoming bills: %w", err)
	}
	goals, err := s.stores.Goals.Active(ctx, sess.UserID, ActiveGoalsLimit)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load active goals: %w", err)
	}
	checkIn, err := s.stores.CheckIns.Get(ctx, sess.UserID, today)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load check-in: %w", err)
	}

	return Snapshot{
		History:       prior,
		UpcomingBills: bills,
		ActiveGoals:   goals,
		Today:         checkIn,
	}, nil
}

func (s *Service) appendAssistant(ctx context.Context, sess session.Session, text string) error {
	msg := &model.ChatMessage{UserID: sess.UserID, Message: text, Role: model.RoleAssistant}
	if err := s.stores.Chat.Append(ctx, msg); err != nil {
		return fmt.Errorf("store reply: %w", err)
	}
	return nil
}
