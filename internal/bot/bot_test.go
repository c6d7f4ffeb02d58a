package bot

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/xml"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/pathakanu/billcal/internal/checkin"
	"github.com/pathakanu/billcal/internal/model"
	"github.com/pathakanu/billcal/internal/openai"
	"github.com/pathakanu/billcal/internal/store"
	"github.com/pathakanu/billcal/internal/store/storetest"
	"github.com/pathakanu/billcal/internal/twilio"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const authToken = "twilio-auth-token"

type echoGateway struct{}

func (echoGateway) Reply(_ context.Context, msgs []openai.Message) (string, error) {
	return "echo: " + msgs[len(msgs)-1].Content, nil
}

type forgetSpy struct{ users []string }

func (f *forgetSpy) Forget(userID string) { f.users = append(f.users, userID) }

func newTestBot(t *testing.T, gw checkin.Gateway) (*Bot, *store.Store, *forgetSpy) {
	t.Helper()
	s := storetest.Open(t)
	logger := log.New(io.Discard, "", 0)
	assistant := checkin.NewService(checkin.Stores{Chat: s.Chat, Bills: s.Bills, Goals: s.Goals, CheckIns: s.CheckIns}, gw, logger)
	spy := &forgetSpy{}
	b := New(Deps{
		Subscriptions: s.Subscriptions,
		Assistant:     assistant,
		Bills:         s.Bills,
		Goals:         s.Goals,
		Permissions:   spy,
		Signatures:    twilio.NewValidator(authToken, ""),
	}, time.UTC, logger)

	require.NoError(t, s.Subscriptions.Save(context.Background(), &model.Subscription{UserID: "user", WhatsApp: "whatsapp:+15550001", Granted: true}))
	return b, s, spy
}

// signature computes the X-Twilio-Signature of a form posted to rawURL.
func signature(token, rawURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	payload := rawURL
	for _, k := range keys {
		payload += k + form.Get(k)
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func post(b *Bot, form url.Values, sig string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/twilio/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if sig != "" {
		req.Header.Set(twilio.SignatureHeader, sig)
	}
	rec := httptest.NewRecorder()
	b.Handler().ServeHTTP(rec, req)
	return rec
}

func send(t *testing.T, b *Bot, from, body string) string {
	t.Helper()
	form := url.Values{"From": {from}, "Body": {body}}
	rec := post(b, form, signature(authToken, "http://example.com/twilio/webhook", form))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "application/xml", rec.Header().Get("Content-Type"))
	var resp struct {
		Message string `xml:"Message"`
	}
	require.NoError(t, xml.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Message
}

func TestWebhookRejectsUnsignedRequests(t *testing.T) {
	t.Parallel()
	b, s, spy := newTestBot(t, echoGateway{})
	ctx := context.Background()
	today := time.Now().UTC().Format("2006-01-02")
	require.NoError(t, s.Bills.Create(ctx, &model.Bill{UserID: "user", Date: today, Description: "Secret Rent", Type: model.BillTypeBill, Status: model.StatusUnpaid}))

	form := url.Values{"From": {"whatsapp:+15550001"}, "Body": {"bills"}}
	for name, sig := range map[string]string{
		"missing":     "",
		"wrong token": signature("guessed", "http://example.com/twilio/webhook", form),
		"other url":   signature(authToken, "http://example.com/elsewhere", form),
	} {
		rec := post(b, form, sig)
		assert.Equal(t, http.StatusForbidden, rec.Code, name)
		assert.NotContains(t, rec.Body.String(), "Secret Rent", name)
	}

	rec := post(b, url.Values{"From": {"whatsapp:+15550001"}, "Body": {"stop"}}, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	sub, err := s.Subscriptions.Get(ctx, "user")
	require.NoError(t, err)
	assert.True(t, sub.Granted)
	assert.Empty(t, spy.users)

	msgs, err := s.Chat.Recent(ctx, "user", 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestWebhookWithoutVerifierRefusesEverything(t *testing.T) {
	t.Parallel()
	b, _, _ := newTestBot(t, echoGateway{})
	b.deps.Signatures = nil

	form := url.Values{"From": {"whatsapp:+15550001"}, "Body": {"help"}}
	assert.Equal(t, http.StatusForbidden, post(b, form, signature(authToken, "http://example.com/twilio/webhook", form)).Code)
}

func TestWebhookChatsWithAssistant(t *testing.T) {
	t.Parallel()
	b, s, _ := newTestBot(t, echoGateway{})

	got := send(t, b, "whatsapp:+15550001", "  hello there ")
	assert.Equal(t, "echo: hello there", got)

	msgs, err := s.Chat.Recent(context.Background(), "user", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello there", msgs[0].Message)
}

func TestWebhookAssistantFailureReturnsFallback(t *testing.T) {
	t.Parallel()
	b, _, _ := newTestBot(t, openai.New("", "", ""))

	assert.Equal(t, checkin.NotConfiguredMessage, send(t, b, "whatsapp:+15550001", "hi"))
}

func TestWebhookUnknownSender(t *testing.T) {
	t.Parallel()
	b, _, _ := newTestBot(t, echoGateway{})

	assert.Equal(t, UnknownSenderMessage, send(t, b, "whatsapp:+19999999", "hi"))
}

func TestWebhookEmptyBody(t *testing.T) {
	t.Parallel()
	b, _, _ := newTestBot(t, echoGateway{})

	assert.Equal(t, EmptyMessage, send(t, b, "whatsapp:+15550001", "   "))
	assert.Equal(t, EmptyMessage, send(t, b, "", "hi"))
}

func TestWebhookListsBills(t *testing.T) {
	t.Parallel()
	b, s, _ := newTestBot(t, echoGateway{})
	ctx := context.Background()
	today := time.Now().UTC().Format("2006-01-02")

	for _, bill := range []model.Bill{
		{UserID: "user", Date: today, Description: "Rent", Amount: decimal.NewNullDecimal(decimal.NewFromInt(1200)), Type: model.BillTypeBill, Status: model.StatusUnpaid},
		{UserID: "user", Date: today, Description: "Phone", Type: model.BillTypeBill, Status: model.StatusPaymentArrangement},
		{UserID: "user", Date: today, Description: "Water", Type: model.BillTypeBill, Status: model.StatusPaid},
	} {
		bill := bill
		require.NoError(t, s.Bills.Create(ctx, &bill))
	}

	got := send(t, b, "whatsapp:+15550001", "Bills")
	assert.Contains(t, got, "Unpaid bills this week:")
	assert.Contains(t, got, "Rent - $1200.00")
	assert.Contains(t, got, "Phone - Amount TBD (PA)")
	assert.NotContains(t, got, "Water")
}

func TestWebhookListsGoals(t *testing.T) {
	t.Parallel()
	b, s, _ := newTestBot(t, echoGateway{})

	assert.Contains(t, send(t, b, "whatsapp:+15550001", "goals"), "no active goals")

	require.NoError(t, s.Goals.Create(context.Background(), &model.Goal{UserID: "user", Goal: "Save $500", Priority: 3, Status: model.GoalActive}))
	assert.Contains(t, send(t, b, "whatsapp:+15550001", "goals"), "1. [3] Save $500")
}

func TestWebhookStopAndStart(t *testing.T) {
	t.Parallel()
	b, s, spy := newTestBot(t, echoGateway{})
	ctx := context.Background()

	assert.Contains(t, send(t, b, "whatsapp:+15550001", "STOP"), "off")
	sub, err := s.Subscriptions.Get(ctx, "user")
	require.NoError(t, err)
	assert.False(t, sub.Granted)

	assert.Contains(t, send(t, b, "whatsapp:+15550001", "start"), "on")
	sub, err = s.Subscriptions.Get(ctx, "user")
	require.NoError(t, err)
	assert.True(t, sub.Granted)
	assert.Equal(t, []string{"user", "user"}, spy.users)
}

func TestHelpResponse(t *testing.T) {
	t.Parallel()
	b, _, _ := newTestBot(t, echoGateway{})
	assert.Equal(t, helpResponse(), send(t, b, "whatsapp:+15550001", "help"))
}
