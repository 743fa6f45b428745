package telegram

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mediaguard/backend/internal/eventhub"
	"mediaguard/backend/internal/identity"
	"mediaguard/backend/internal/ledger"
	"mediaguard/backend/internal/models"
)

var (
	owner  = identity.MustParse("0x0000000000000000000000000000000000000001")
	target = identity.MustParse("0x1111111111111111111111111111111111111111")
	quiet  = slog.New(slog.NewTextHandler(io.Discard, nil))
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return tgbotapi.Message{}, args.Error(0)
}

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) Owner() identity.Identity { return owner }

func (m *MockLedger) GetUser(ctx context.Context, addr identity.Identity) (*models.Participant, error) {
	args := m.Called(ctx, addr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Participant), args.Error(1)
}

func (m *MockLedger) ListBlocked(ctx context.Context) ([]models.Participant, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Participant), args.Error(1)
}

func (m *MockLedger) ListPendingUnblock(ctx context.Context) ([]models.Participant, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Participant), args.Error(1)
}

func (m *MockLedger) Stats(ctx context.Context) (models.LedgerStats, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.LedgerStats), args.Error(1)
}

func (m *MockLedger) AnalyzeAndUnblockUser(ctx context.Context, caller, target identity.Identity) error {
	return m.Called(ctx, caller, target).Error(0)
}

func (m *MockLedger) RejectUnblockRequest(ctx context.Context, caller, target identity.Identity) error {
	return m.Called(ctx, caller, target).Error(0)
}

func TestFormatEvent(t *testing.T) {
	ev := models.NewEvent(models.EventUnblockRequested, target)
	ev.Count = 3
	text, ok := formatEvent(ev)
	require.True(t, ok)
	assert.Contains(t, text, "Unblock requested")
	assert.Contains(t, text, "/approve "+target.String())

	ev = models.NewEvent(models.EventUserBlocked, target)
	ev.Count = 3
	text, ok = formatEvent(ev)
	require.True(t, ok)
	assert.Contains(t, text, "reached 3 violations")

	_, ok = formatEvent(models.NewEvent(models.EventPostCreated, target))
	assert.False(t, ok)
}

func TestNotifier_SendsToOwnerChat(t *testing.T) {
	sender := new(MockSender)
	n := NewNotifier(sender, 42, quiet)

	sender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		return ok && msg.ChatID == 42 && msg.ParseMode == tgbotapi.ModeMarkdown
	})).Return(nil).Once()

	assert.True(t, n.Accepts(models.NewEvent(models.EventUserBlocked, target)))
	assert.False(t, n.Accepts(models.NewEvent(models.EventUserRegistered, target)))
	assert.Equal(t, "telegram:42", n.GetID())

	n.Run()
	n.GetSendChannel() <- models.NewEvent(models.EventUserBlocked, target)
	n.Close()
	n.Close()

	select {
	case <-n.Done():
	case <-time.After(time.Second):
		t.Fatal("notifier did not drain")
	}
	sender.AssertExpectations(t)
}

func TestOwnerBot_Commands(t *testing.T) {
	ctx := context.Background()
	l := new(MockLedger)
	bot := NewOwnerBot(new(MockSender), l, 42, quiet)

	l.On("ListPendingUnblock", ctx).Return([]models.Participant{{Address: target, ViolationCount: 3}}, nil)
	l.On("Stats", ctx).Return(models.LedgerStats{TotalParticipants: 2, TotalPosts: 7}, nil)
	l.On("AnalyzeAndUnblockUser", ctx, owner, target).Return(nil)
	l.On("RejectUnblockRequest", ctx, owner, target).Return(ledger.ErrNoPendingRequest)

	assert.Equal(t, "", bot.handle(ctx, "hello"))
	assert.Equal(t, helpText, bot.handle(ctx, "/help"))
	assert.Contains(t, bot.handle(ctx, "/pending@mediaguard_bot"), target.String())
	assert.Contains(t, bot.handle(ctx, "/stats"), "posts: 7")
	assert.Contains(t, bot.handle(ctx, "/approve "+target.String()), "unblocked")
	assert.Equal(t, "/reject failed: no_pending_request", bot.handle(ctx, "/reject "+target.String()))
	assert.Equal(t, "usage: /approve <address>", bot.handle(ctx, "/approve"))
	assert.Equal(t, "invalid address: bob", bot.handle(ctx, "/user bob"))
	assert.Equal(t, "unknown command, try /help", bot.handle(ctx, "/dance"))

	l.AssertExpectations(t)
}

func TestOwnerBot_IgnoresForeignChats(t *testing.T) {
	sender := new(MockSender)
	l := new(MockLedger)
	bot := NewOwnerBot(sender, l, 42, quiet)

	sender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		return ok && msg.ChatID == 42 && msg.Text == helpText
	})).Return(nil).Once()

	updates := make(chan tgbotapi.Update, 2)
	updates <- tgbotapi.Update{Message: &tgbotapi.Message{Text: "/help", Chat: &tgbotapi.Chat{ID: 7}}}
	updates <- tgbotapi.Update{Message: &tgbotapi.Message{Text: "/help", Chat: &tgbotapi.Chat{ID: 42}}}
	close(updates)

	bot.Run(context.Background(), updates)

	sender.AssertExpectations(t)
	l.AssertNotCalled(t, "ListPendingUnblock", mock.Anything)
}

// stallSender blocks every Send until release is closed.
type stallSender struct {
	release chan struct{}

	mu   sync.Mutex
	sent []string
}

func (s *stallSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	<-s.release
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, c.(tgbotapi.MessageConfig).Text)
	return tgbotapi.Message{}, nil
}

func (s *stallSender) delivered(addr identity.Identity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, text := range s.sent {
		if strings.Contains(text, addr.String()) {
			return true
		}
	}
	return false
}

func TestNotifier_SurvivesTelegramStall(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := eventhub.NewHub(quiet)
	go hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-hub.Done()
	})

	bot := &stallSender{release: make(chan struct{})}
	hub.Register(NewNotifier(bot, 42, quiet))

	for i := 0; i < 3*backlog; i++ {
		require.NoError(t, hub.Publish(ctx, models.NewEvent(models.EventUserBlocked, target)))
	}
	last := identity.MustParse("0x2222222222222222222222222222222222222222")
	require.NoError(t, hub.Publish(ctx, models.NewEvent(models.EventUserBlocked, last)))

	close(bot.release)
	assert.Eventually(t, func() bool { return bot.delivered(last) }, 2*time.Second, 10*time.Millisecond,
		"newest event survives the backlog")
	assert.Equal(t, 1, hub.Len())

	after := identity.MustParse("0x3333333333333333333333333333333333333333")
	require.NoError(t, hub.Publish(ctx, models.NewEvent(models.EventUnblockRequested, after)))
	assert.Eventually(t, func() bool { return bot.delivered(after) }, 2*time.Second, 10*time.Millisecond,
		"notifier keeps delivering once telegram recovers")
}
