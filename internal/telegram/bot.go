package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"mediaguard/backend/internal/identity"
	"mediaguard/backend/internal/ledger"
	"mediaguard/backend/internal/models"
)

// Ledger is the part of ledger.Service the owner bot drives.
type Ledger interface {
	Owner() identity.Identity
	GetUser(ctx context.Context, addr identity.Identity) (*models.Participant, error)
	ListBlocked(ctx context.Context) ([]models.Participant, error)
	ListPendingUnblock(ctx context.Context) ([]models.Participant, error)
	Stats(ctx context.Context) (models.LedgerStats, error)
	AnalyzeAndUnblockUser(ctx context.Context, caller, target identity.Identity) error
	RejectUnblockRequest(ctx context.Context, caller, target identity.Identity) error
}

const helpText = `Commands:
/pending - unblock requests awaiting review
/blocked - suspended participants
/stats - ledger counters
/user <address> - participant record
/approve <address> - approve an unblock request
/reject <address> - reject an unblock request`

// OwnerBot answers review commands sent from the owner's chat. Messages from
// any other chat are ignored; the chat id is the bot's only credential.
type OwnerBot struct {
	Bot         Sender
	Ledger      Ledger
	OwnerChatID int64

	log *slog.Logger
}

func NewOwnerBot(bot Sender, l Ledger, ownerChatID int64, logger *slog.Logger) *OwnerBot {
	if logger == nil {
		logger = slog.Default()
	}
	return &OwnerBot{
		Bot:         bot,
		Ledger:      l,
		OwnerChatID: ownerChatID,
		log:         logger.With("component", "telegram"),
	}
}

// Run consumes updates until ctx ends or the channel closes.
func (b *OwnerBot) Run(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || update.Message.Chat == nil {
				continue
			}
			if update.Message.Chat.ID != b.OwnerChatID {
				b.log.Warn("ignoring message from foreign chat", "chat", update.Message.Chat.ID)
				continue
			}
			reply := b.handle(ctx, update.Message.Text)
			if reply == "" {
				continue
			}
			msg := tgbotapi.NewMessage(b.OwnerChatID, reply)
			msg.ParseMode = tgbotapi.ModeMarkdown
			if _, err := b.Bot.Send(msg); err != nil {
				b.log.Error("failed to reply to owner", "err", err)
			}
		}
	}
}

// handle executes one owner command and returns the reply text.
func (b *OwnerBot) handle(ctx context.Context, text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return ""
	}
	command := strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(command, '@'); i >= 0 {
		command = command[:i]
	}
	args := fields[1:]

	switch command {
	case "start", "help":
		return helpText
	case "pending":
		list, err := b.Ledger.ListPendingUnblock(ctx)
		if err != nil {
			return b.failure(command, err)
		}
		return formatParticipants("Pending unblock requests", list)
	case "blocked":
		list, err := b.Ledger.ListBlocked(ctx)
		if err != nil {
			return b.failure(command, err)
		}
		return formatParticipants("Blocked participants", list)
	case "stats":
		st, err := b.Ledger.Stats(ctx)
		if err != nil {
			return b.failure(command, err)
		}
		return fmt.Sprintf("*Ledger stats*\nparticipants: %d\nposts: %d (blocked %d)\nblocked users: %d\npending unblocks: %d\nviolations: %d",
			st.TotalParticipants, st.TotalPosts, st.BlockedPosts, st.BlockedUsers, st.PendingUnblocks, st.TotalViolations)
	case "user", "approve", "reject":
		if len(args) != 1 {
			return fmt.Sprintf("usage: /%s <address>", command)
		}
		target, err := identity.Parse(args[0])
		if err != nil {
			return "invalid address: " + args[0]
		}
		return b.review(ctx, command, target)
	default:
		return "unknown command, try /help"
	}
}

func (b *OwnerBot) review(ctx context.Context, command string, target identity.Identity) string {
	owner := b.Ledger.Owner()
	var err error
	switch command {
	case "user":
		p, err := b.Ledger.GetUser(ctx, target)
		if err != nil {
			return b.failure(command, err)
		}
		return formatParticipant(p)
	case "approve":
		err = b.Ledger.AnalyzeAndUnblockUser(ctx, owner, target)
	case "reject":
		err = b.Ledger.RejectUnblockRequest(ctx, owner, target)
	}
	if err != nil {
		return b.failure(command, err)
	}
	if command == "approve" {
		return fmt.Sprintf("✅ `%s` unblocked, violations reset.", target)
	}
	return fmt.Sprintf("❌ request from `%s` rejected.", target)
}

func (b *OwnerBot) failure(command string, err error) string {
	code := ledger.Code(err)
	if code == "internal" {
		b.log.Error("owner command failed", "command", command, "err", err)
		return "internal error, see service logs"
	}
	return fmt.Sprintf("/%s failed: %s", command, code)
}

func formatParticipants(title string, list []models.Participant) string {
	if len(list) == 0 {
		return fmt.Sprintf("*%s*\nnone", title)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "*%s* (%d)", title, len(list))
	for _, p := range list {
		fmt.Fprintf(&sb, "\n`%s` violations=%d", p.Address, p.ViolationCount)
	}
	return sb.String()
}

func formatParticipant(p *models.Participant) string {
	return fmt.Sprintf("`%s`\nstate: %s\nviolations: %d\nregistered: %s",
		p.Address, p.State(), p.ViolationCount, p.RegisteredAt.Format("2006-01-02 15:04"))
}
