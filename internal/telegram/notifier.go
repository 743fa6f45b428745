// Package telegram connects the ledger owner to a Telegram chat: the
// notifier pushes review-worthy events, the bot answers owner commands.
package telegram

import (
	"fmt"
	"log/slog"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"mediaguard/backend/internal/models"
)

// Sender is the part of *tgbotapi.BotAPI the package needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// backlog is how many events wait while Telegram is slow or unreachable.
const backlog = 32

// Notifier is an eventhub client that forwards suspensions and unblock
// requests to the owner's chat. It is never dropped by the hub: when the
// backlog is full the oldest event is discarded instead.
type Notifier struct {
	ChatID int64
	Bot    Sender
	Send   chan models.Event

	log       *slog.Logger
	done      chan struct{}
	closeOnce sync.Once
}

func NewNotifier(bot Sender, chatID int64, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		ChatID: chatID,
		Bot:    bot,
		Send:   make(chan models.Event, backlog),
		log:    logger.With("component", "telegram"),
		done:   make(chan struct{}),
	}
}

func (n *Notifier) GetID() string                       { return fmt.Sprintf("telegram:%d", n.ChatID) }
func (n *Notifier) GetSendChannel() chan<- models.Event { return n.Send }

func (n *Notifier) Accepts(ev models.Event) bool {
	return ev.Type == models.EventUnblockRequested || ev.Type == models.EventUserBlocked
}

func (n *Notifier) Run() { go n.writePump() }

// Overflow makes room for ev by discarding the oldest queued event.
func (n *Notifier) Overflow(ev models.Event) {
	select {
	case old := <-n.Send:
		n.log.Warn("telegram backlog full, dropping oldest event", "event", old.Type, "subject", old.Subject)
	default:
	}
	select {
	case n.Send <- ev:
	default:
		n.log.Warn("telegram backlog full, dropping event", "event", ev.Type, "subject", ev.Subject)
	}
}

func (n *Notifier) Close() { n.closeOnce.Do(func() { close(n.Send) }) }

// Done is closed once every queued event has been handled.
func (n *Notifier) Done() <-chan struct{} { return n.done }

func (n *Notifier) writePump() {
	defer close(n.done)

	for ev := range n.Send {
		text, ok := formatEvent(ev)
		if !ok {
			continue
		}
		msg := tgbotapi.NewMessage(n.ChatID, text)
		msg.ParseMode = tgbotapi.ModeMarkdown
		if _, err := n.Bot.Send(msg); err != nil {
			n.log.Error("failed to notify owner", "event", ev.Type, "subject", ev.Subject, "err", err)
		}
	}
}

func formatEvent(ev models.Event) (string, bool) {
	switch ev.Type {
	case models.EventUserBlocked:
		return fmt.Sprintf("🚫 *User blocked*\n`%s` reached %d violations.", ev.Subject, ev.Count), true
	case models.EventUnblockRequested:
		return fmt.Sprintf("📨 *Unblock requested*\n`%s` (%d violations) asks for review.\n/approve %s\n/reject %s",
			ev.Subject, ev.Count, ev.Subject, ev.Subject), true
	default:
		return "", false
	}
}
