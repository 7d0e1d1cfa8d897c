// Package bot owns the Telegram update loop: it resolves the sender,
// handles the few slash commands, and hands everything else to the
// dispatcher.
package bot

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ilhamafian/pa-agent-be/internal/dispatch"
	"github.com/ilhamafian/pa-agent-be/internal/models"
	"github.com/ilhamafian/pa-agent-be/internal/repository"
)

const welcomeMessage = `👋 Hi! I'm your personal assistant.

Just talk to me like you would a person:
• "Lunch with Sarah tomorrow at 1pm"
• "Remind me to call mom in 2 hours"
• "Add buy groceries to my tasks"
• "Remember that the wifi password is hunter2"
• "What's on my calendar this week?"

Commands:
/timezone <name> - set your timezone, e.g. /timezone Asia/Kuala_Lumpur
/help - show this message`

type Bot struct {
	api             *tgbotapi.BotAPI
	users           *repository.UserRepository
	dispatcher      *dispatch.Dispatcher
	defaultTimezone string
}

func New(api *tgbotapi.BotAPI, users *repository.UserRepository, dispatcher *dispatch.Dispatcher, defaultTimezone string) *Bot {
	return &Bot{
		api:             api,
		users:           users,
		dispatcher:      dispatcher,
		defaultTimezone: defaultTimezone,
	}
}

func (b *Bot) Start(ctx context.Context) error {
	log.Printf("Authorized on account %s", b.api.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update := <-updates:
			go b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	msg := update.Message

	user, err := b.users.GetOrCreate(ctx, msg.From.ID, msg.From.UserName, b.defaultTimezone)
	if err != nil {
		log.Printf("Failed to resolve user %d: %v", msg.From.ID, err)
		b.reply(msg.Chat.ID, "Something went wrong on my end, please try again.")
		return
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, msg, user)
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		b.reply(msg.Chat.ID, "I can only read text messages for now.")
		return
	}

	b.reply(msg.Chat.ID, b.dispatcher.Handle(ctx, user, text))
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, user *models.User) {
	switch msg.Command() {
	case "start", "help":
		b.reply(msg.Chat.ID, welcomeMessage)

	case "timezone":
		arg := strings.TrimSpace(msg.CommandArguments())
		if arg == "" {
			b.reply(msg.Chat.ID, fmt.Sprintf("Your timezone is %s. Change it with /timezone <name>, e.g. /timezone Asia/Kuala_Lumpur", user.Timezone))
			return
		}
		if _, err := time.LoadLocation(arg); err != nil {
			b.reply(msg.Chat.ID, fmt.Sprintf("I don't know the timezone %q. Use an IANA name like Europe/London.", arg))
			return
		}
		if err := b.users.SetTimezone(ctx, user.UserID, arg); err != nil {
			log.Printf("Failed to set timezone for user %d: %v", user.UserID, err)
			b.reply(msg.Chat.ID, "I couldn't save that, please try again.")
			return
		}
		b.reply(msg.Chat.ID, fmt.Sprintf("🌍 Timezone set to %s.", arg))

	default:
		b.reply(msg.Chat.ID, "I don't know that command. Try /help.")
	}
}

func (b *Bot) reply(chatID int64, text string) {
	if text == "" {
		return
	}
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.Printf("Failed to send message to chat %d: %v", chatID, err)
	}
}
