package checkin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"github.com/pathakanu/billcal/internal/model"
	"github.com/pathakanu/billcal/internal/openai"
	"github.com/pathakanu/billcal/internal/session"
	"github.com/pathakanu/billcal/internal/store"
	"github.com/pathakanu/billcal/internal/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeGateway struct {
	reply string
	err   error
	calls [][]openai.Message
}

func (f *fakeGateway) Reply(_ context.Context, msgs []openai.Message) (string, error) {
	f.calls = append(f.calls, msgs)
	return f.reply, f.err
}

var today = time.Date(2025, 10, 16, 15, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, gw Gateway) (*Service, *store.Store, *gorm.DB, session.Session) {
	t.Helper()
	db := storetest.OpenDB(t)
	s := store.New(db)
	svc := NewService(Stores{Chat: s.Chat, Bills: s.Bills, Goals: s.Goals, CheckIns: s.CheckIns}, gw, log.New(io.Discard, "", 0))
	sess := session.New("user", time.UTC).WithClock(func() time.Time { return today })
	return svc, s, db, sess
}

func seedGoal(t *testing.T, s *store.Store, text string) {
	t.Helper()
	require.NoError(t, s.Goals.Create(context.Background(), &model.Goal{UserID: "user", Goal: text, Priority: 1, Status: model.GoalActive}))
}

func messages(t *testing.T, s *store.Store) []model.ChatMessage {
	t.Helper()
	msgs, err := s.Chat.Recent(context.Background(), "user", 100)
	require.NoError(t, err)
	return msgs
}

func TestChatKeywordMarksGoalsDiscussed(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{reply: "That's great to hear!"}
	svc, s, _, sess := newTestService(t, gw)
	seedGoal(t, s, "Save $500")

	reply, err := svc.Chat(context.Background(), sess, "I made progress on my savings goal today")
	require.NoError(t, err)
	assert.Equal(t, "That's great to hear!", reply.Text)
	assert.True(t, reply.GoalsDiscussed)

	checkIn, err := s.CheckIns.Get(context.Background(), "user", "2025-10-16")
	require.NoError(t, err)
	require.NotNil(t, checkIn)
	assert.True(t, checkIn.GoalsDiscussed)
	assert.Equal(t, "I made progress on my savings goal today", checkIn.ProgressNotes)

	require.Len(t, gw.calls, 1)
	system := gw.calls[0][0].Content
	assert.Contains(t, system, "- Goals: Save $500")
	assert.Contains(t, system, "You have NOT discussed goals with the user today yet")
}

func TestChatSameDayAppendsToOneCheckIn(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{reply: "Keep it up."}
	svc, s, db, sess := newTestService(t, gw)
	seedGoal(t, s, "Save $500")
	ctx := context.Background()

	_, err := svc.Chat(ctx, sess, "working on my goal")
	require.NoError(t, err)
	_, err = svc.Chat(ctx, sess, "achieved $100 today")
	require.NoError(t, err)

	var rows []model.DailyCheckIn
	require.NoError(t, db.Where("user_id = ?", "user").Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, "working on my goal | achieved $100 today", rows[0].ProgressNotes)

	second := gw.calls[1][0].Content
	assert.Contains(t, second, "Goals discussed today. Previous notes: working on my goal")
	assert.NotContains(t, second, "IMPORTANT")
}

func TestChatWithoutActiveGoalsSkipsCheckIn(t *testing.T) {
	t.Parallel()
	svc, s, _, sess := newTestService(t, &fakeGateway{reply: "What goal would you like to set?"})

	reply, err := svc.Chat(context.Background(), sess, "hello")
	require.NoError(t, err)
	assert.False(t, reply.GoalsDiscussed)

	checkIn, err := s.CheckIns.Get(context.Background(), "user", "2025-10-16")
	require.NoError(t, err)
	assert.Nil(t, checkIn)
}

func TestChatReplyKeywordCounts(t *testing.T) {
	t.Parallel()
	svc, s, _, sess := newTestService(t, &fakeGateway{reply: "How is your progress on Save $500?"})
	seedGoal(t, s, "Save $500")

	reply, err := svc.Chat(context.Background(), sess, "paid the rent")
	require.NoError(t, err)
	assert.True(t, reply.GoalsDiscussed)

	checkIn, err := s.CheckIns.Get(context.Background(), "user", "2025-10-16")
	require.NoError(t, err)
	require.NotNil(t, checkIn)
	assert.Equal(t, "paid the rent", checkIn.ProgressNotes)
}

func TestChatPersistsBothTurnsAndExcludesCurrentFromHistory(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{reply: "Noted."}
	svc, s, _, sess := newTestService(t, gw)
	ctx := context.Background()

	_, err := svc.Chat(ctx, sess, "first")
	require.NoError(t, err)
	_, err = svc.Chat(ctx, sess, "second")
	require.NoError(t, err)

	msgs := messages(t, s)
	require.Len(t, msgs, 4)
	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.Equal(t, "first", msgs[0].Message)
	assert.Equal(t, model.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "Noted.", msgs[1].Message)

	second := gw.calls[1]
	require.Len(t, second, 4)
	assert.Equal(t, "first", second[1].Content)
	assert.Equal(t, "Noted.", second[2].Content)
	assert.Equal(t, "second", second[3].Content)
}

func TestChatHistoryWindow(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{reply: "ok"}
	svc, s, _, sess := newTestService(t, gw)
	ctx := context.Background()

	base := today.Add(-time.Hour)
	for i := 0; i < 30; i++ {
		msg := model.ChatMessage{UserID: "user", Message: fmt.Sprintf("old %d", i), Role: model.RoleUser, CreatedAt: base.Add(time.Duration(i) * time.Second)}
		require.NoError(t, s.Chat.Append(ctx, &msg))
	}

	_, err := svc.Chat(ctx, sess, "now")
	require.NoError(t, err)

	sent := gw.calls[0]
	require.Len(t, sent, 1+HistoryWindow+1)
	assert.Equal(t, "old 20", sent[1].Content)
	assert.Equal(t, "old 29", sent[HistoryWindow].Content)
	assert.Equal(t, "now", sent[len(sent)-1].Content)
}

func TestChatGatewayFailureStoresApology(t *testing.T) {
	t.Parallel()
	svc, s, _, sess := newTestService(t, &fakeGateway{err: errors.New("connection reset")})
	seedGoal(t, s, "Save $500")

	reply, err := svc.Chat(context.Background(), sess, "my goal progress")
	require.Error(t, err)
	assert.True(t, reply.Failed)
	assert.Equal(t, ApologyMessage, reply.Text)

	msgs := messages(t, s)
	require.Len(t, msgs, 2)
	assert.Equal(t, "my goal progress", msgs[0].Message)
	assert.Equal(t, ApologyMessage, msgs[1].Message)
	assert.Equal(t, model.RoleAssistant, msgs[1].Role)

	checkIn, err := s.CheckIns.Get(context.Background(), "user", "2025-10-16")
	require.NoError(t, err)
	assert.Nil(t, checkIn)
}

func TestChatMissingKeyStoresConfigurationHint(t *testing.T) {
	t.Parallel()
	svc, s, _, sess := newTestService(t, openai.New("", "", ""))

	reply, err := svc.Chat(context.Background(), sess, "hi")
	assert.ErrorIs(t, err, openai.ErrClientNotInitialised)
	assert.Equal(t, NotConfiguredMessage, reply.Text)

	msgs := messages(t, s)
	require.Len(t, msgs, 2)
	assert.Equal(t, NotConfiguredMessage, msgs[1].Message)
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{reply: "unused"}
	svc, s, _, sess := newTestService(t, gw)

	_, err := svc.Chat(context.Background(), sess, "   ")
	assert.ErrorIs(t, err, ErrMessageRequired)
	assert.Empty(t, gw.calls)
	assert.Empty(t, messages(t, s))
}

func TestChatCountsOnlyUnfinishedUpcomingBills(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{reply: "ok"}
	svc, s, _, sess := newTestService(t, gw)
	ctx := context.Background()

	for _, b := range []model.Bill{
		{UserID: "user", Date: "2025-10-15", Description: "past", Type: model.BillTypeBill, Status: model.StatusUnpaid},
		{UserID: "user", Date: "2025-10-16", Description: "today", Type: model.BillTypeBill, Status: model.StatusUnpaid},
		{UserID: "user", Date: "2025-10-20", Description: "done", Type: model.BillTypeBill, Status: model.StatusPaid},
		{UserID: "user", Date: "2025-10-22", Description: "pa", Type: model.BillTypeBill, Status: model.StatusPaymentArrangement},
	} {
		b := b
		require.NoError(t, s.Bills.Create(ctx, &b))
	}

	_, err := svc.Chat(ctx, sess, "hello")
	require.NoError(t, err)
	assert.Contains(t, gw.calls[0][0].Content, "- Upcoming Bills: 2 bills")
}

func TestHistoryGreetsEmptyConversation(t *testing.T) {
	t.Parallel()
	svc, s, _, sess := newTestService(t, &fakeGateway{})
	ctx := context.Background()

	msgs, err := svc.History(ctx, sess)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, Greeting, msgs[0].Message)
	assert.Equal(t, model.RoleAssistant, msgs[0].Role)

	msgs, err = svc.History(ctx, sess)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
	assert.Len(t, messages(t, s), 1)
}
