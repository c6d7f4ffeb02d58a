// Package checkin assembles the assistant conversation for a chat turn and
// tracks whether the user's goals were discussed today.
package checkin

import (
	"fmt"
	"strings"

	"github.com/pathakanu/billcal/internal/model"
	"github.com/pathakanu/billcal/internal/openai"
)

// Windows applied when gathering context for one chat turn. History is
// fetched HistoryFetch deep and then trimmed to the last HistoryWindow turns.
const (
	HistoryFetch       = 20
	HistoryWindow      = 10
	UpcomingBillsLimit = 10
	ActiveGoalsLimit   = 5

	// NotesSeparator joins the progress notes accumulated over a day.
	NotesSeparator = " | "
)

// GoalKeywords trigger a check-in when found in the user message or the reply.
var GoalKeywords = []string{"goal", "progress", "working on", "achieved", "trying to"}

// SystemPrompt is the assistant persona sent ahead of every conversation.
const SystemPrompt = `You are a personal financial assistant helping users manage their bills, track expenses, and achieve their financial goals.

Your role is to:
1. Conduct daily check-ins with the user about their financial situation
2. ALWAYS ask about their goals and track daily progress towards them
3. Ask about their to-do lists and how they're managing their time
4. Discuss their income and expenses
5. Help them set and achieve financial goals
6. Provide personalized guidance on prioritizing time and money
7. Be supportive, encouraging, and non-judgmental
8. Offer practical, actionable advice

IMPORTANT - Daily Goal Check-Ins:
- At the start of each conversation, ask about their goals for the day
- Check progress on their active financial goals
- Ask specific questions like: "How are you doing with [goal name]?" or "Did you make progress on [goal] today?"
- Celebrate small wins and progress
- If they haven't made progress, help them identify what blocked them and how to overcome it
- Always end conversations by setting expectations for tomorrow

Remember:
- Be conversational and friendly
- Ask follow-up questions to understand their situation better
- Help them see connections between their daily choices and long-term goals
- Celebrate their wins, no matter how small
- Be patient and understanding about setbacks
- Keep responses concise and focused (2-4 sentences usually)
- Use empathy and encouragement`

// Snapshot is the state read from the record store for one chat turn.
type Snapshot struct {
	History       []model.ChatMessage
	UpcomingBills []model.Bill
	ActiveGoals   []model.Goal
	Today         *model.DailyCheckIn
}

// GoalsDiscussed reports whether today's check-in already covered goals.
func (s Snapshot) GoalsDiscussed() bool {
	return s.Today != nil && s.Today.GoalsDiscussed
}

// PreviousNotes returns today's accumulated progress notes.
func (s Snapshot) PreviousNotes() string {
	if s.Today == nil {
		return ""
	}
	return s.Today.ProgressNotes
}

func goalTexts(goals []model.Goal) string {
	texts := make([]string, 0, len(goals))
	for _, g := range goals {
		texts = append(texts, g.Goal)
	}
	return strings.Join(texts, ", ")
}

// BuildContext renders the user context appended to the system prompt.
func BuildContext(s Snapshot) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "\n\nUser Context:\n- Upcoming Bills: %d bills\n- Active Goals: %d goals\n", len(s.UpcomingBills), len(s.ActiveGoals))
	if len(s.ActiveGoals) > 0 {
		sb.WriteString("- Goals: " + goalTexts(s.ActiveGoals))
	}

	switch {
	case !s.GoalsDiscussed() && len(s.ActiveGoals) > 0:
		sb.WriteString("\n\nIMPORTANT: You have NOT discussed goals with the user today yet. Please ask about their progress on: ")
		sb.WriteString(goalTexts(s.ActiveGoals))
	case s.GoalsDiscussed() && s.PreviousNotes() != "":
		sb.WriteString("\n\nGoals discussed today. Previous notes: ")
		sb.WriteString(s.PreviousNotes())
	}
	return sb.String()
}

// ComposeMessages returns the outbound conversation: persona plus context,
// the last HistoryWindow history turns, then the new user message.
func ComposeMessages(s Snapshot, userMessage string) []openai.Message {
	history := s.History
	if len(history) > HistoryWindow {
		history = history[len(history)-HistoryWindow:]
	}

	msgs := make([]openai.Message, 0, len(history)+2)
	msgs = append(msgs, openai.Message{Role: openai.RoleSystem, Content: SystemPrompt + BuildContext(s)})
	for _, h := range history {
		role := openai.RoleUser
		if h.Role == model.RoleAssistant {
			role = openai.RoleAssistant
		}
		msgs = append(msgs, openai.Message{Role: role, Content: h.Message})
	}
	return append(msgs, openai.Message{Role: openai.RoleUser, Content: userMessage})
}

// MentionsGoals reports whether any goal keyword appears, case-insensitively,
// in the user message or the reply. Plain substring match: "I haven't made
// progress" counts.
func MentionsGoals(message, reply string) bool {
	message = strings.ToLower(message)
	reply = strings.ToLower(reply)
	for _, kw := range GoalKeywords {
		if strings.Contains(message, kw) || strings.Contains(reply, kw) {
			return true
		}
	}
	return false
}

// NextCheckIn returns today's check-in after message was discussed, with
// message appended to any previous notes.
func NextCheckIn(prev *model.DailyCheckIn, userID, date, message string) *model.DailyCheckIn {
	notes := message
	if prev != nil && prev.ProgressNotes != "" {
		notes = prev.ProgressNotes + NotesSeparator + message
	}
	return &model.DailyCheckIn{
		UserID:         userID,
		CheckInDate:    date,
		GoalsDiscussed: true,
		ProgressNotes:  notes,
	}
}
