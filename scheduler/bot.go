package scheduler

import (
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

const (
	welcomeText = "Welcome! Send me a Steam ID 64 and I will make a ranking card for its mods."
	helpText    = "Commands:\n/start - Start the bot\n/help - Show this help\n\nJust send me a Steam ID 64 (e.g. 76561198000000000) to get a ranking card!"
	deniedText  = "Sorry, you are not authorized to use this bot."
)

// Bot turns Telegram updates into queued card requests
type Bot struct {
	api     Sender
	sched   *Scheduler
	allowed map[int64]bool
}

// NewBot creates a new Bot. An empty allow-list lets everyone in.
func NewBot(api Sender, sched *Scheduler, allowedUsers []int64) *Bot {
	allowed := make(map[int64]bool, len(allowedUsers))
	for _, id := range allowedUsers {
		allowed[id] = true
	}
	return &Bot{api: api, sched: sched, allowed: allowed}
}

func (b *Bot) authorized(userID int64) bool {
	return len(b.allowed) == 0 || b.allowed[userID]
}

// HandleUpdate processes one update from the Telegram long poll
func (b *Bot) HandleUpdate(update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID
	userID := msg.From.ID

	if !b.authorized(userID) {
		log.Warn().Int64("user", userID).Msg("Unauthorized user attempted to use bot")
		b.reply(chatID, deniedText)
		return
	}

	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			b.reply(chatID, welcomeText)
		case "help":
			b.reply(chatID, helpText)
		default:
			b.reply(chatID, "Unknown command. Use /help for available commands.")
		}
		return
	}

	id := strings.TrimSpace(msg.Text)
	if id == "" || strings.ContainsAny(id, " \t\n") {
		b.reply(chatID, "Please send a single Steam ID 64.")
		return
	}

	sent, err := b.api.Send(tgbotapi.NewMessage(chatID, "📝 Request received! Your card is queued and will be ready shortly."))
	if err != nil {
		log.Error().Err(err).Msg("Error sending processing message")
		return
	}

	err = b.sched.Enqueue(Request{
		ChatID:     chatID,
		UserID:     userID,
		MessageID:  sent.MessageID,
		Identifier: id,
	})
	if err != nil {
		text := "❌ Error: the bot is shutting down."
		if errors.Is(err, ErrQueueFull) {
			text = "❌ Too many pending requests. Please try again in a minute."
		}
		if _, err := b.api.Send(tgbotapi.NewEditMessageText(chatID, sent.MessageID, text)); err != nil {
			log.Warn().Err(err).Msg("Error sending queue failure")
		}
	}
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.Warn().Err(err).Msg("Error sending reply")
	}
}
