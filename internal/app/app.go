package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/contest-reminder-bot/internal/authapi"
	"github.com/example/contest-reminder-bot/internal/config"
	"github.com/example/contest-reminder-bot/internal/repository"
	"github.com/example/contest-reminder-bot/internal/service"
	"github.com/example/contest-reminder-bot/pkg/codeforces"
)

// App coordinates the Telegram bot, the contest poller, the reminder
// scheduler and the auth-server client.
type App struct {
	cfg      *config.Config
	store    repository.Store
	bot      *tgbotapi.BotAPI
	cf       *codeforces.Client
	auth     *authapi.Client
	reminder *service.ReminderService
}

func New(cfg *config.Config, store repository.Store) (*App, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	a := &App{
		cfg:   cfg,
		store: store,
		bot:   bot,
		cf:    codeforces.NewClient(),
		auth:  authapi.NewClient(cfg.AuthServerURL, cfg.InternalAPIKey),
	}
	a.reminder = service.NewReminderService(store, a.cf, a)
	return a, nil
}

func (a *App) Run(ctx context.Context) error {
	log.Println("bot authorized as", a.bot.Self.UserName)
	a.setCommands()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.handleUpdates(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.remindLoop(ctx)
	}()

	<-ctx.Done()
	a.bot.StopReceivingUpdates()
	wg.Wait()
	return nil
}

func (a *App) handleUpdates(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := a.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			// each update gets its own goroutine so a slow calendar or auth
			// call never stalls the other handlers
			go a.handleUpdate(ctx, update)
		}
	}
}

func (a *App) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		a.handleCallback(ctx, update.CallbackQuery)
		return
	}
	if update.Message == nil {
		return
	}
	if !update.Message.IsCommand() {
		a.reply(update.Message.Chat.ID, "I only understand commands, try /start to see what I can do.")
		return
	}

	switch update.Message.Command() {
	case "start":
		a.handleStart(ctx, update.Message)
	case "setprefs":
		a.handleSetPrefs(ctx, update.Message)
	case "nextcontest":
		a.handleNextContest(ctx, update.Message)
	case "connectauth":
		a.handleConnectAuth(ctx, update.Message)
	case "addevent":
		a.handleAddEvent(ctx, update.Message)
	default:
		a.reply(update.Message.Chat.ID, "Unknown command, try /start to see what I can do.")
	}
}

func (a *App) remindLoop(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.ReminderInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.reminder.Tick(ctx); err != nil {
				log.Println("reminder tick:", err)
			}
		}
	}
}

// SendContestReminder delivers the 30-minute warning for one contest to one
// subscriber.
func (a *App) SendContestReminder(ctx context.Context, userID int64, contest codeforces.Contest) error {
	text := fmt.Sprintf("⏰ Reminder: *%s* starts in 30 minutes!\nJoin here: %s", contest.Name, contest.URL())
	msg := tgbotapi.NewMessage(userID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true
	_, err := a.bot.Send(msg)
	return err
}

func (a *App) setCommands() {
	cmds := tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: "start", Description: "Subscribe to contest reminders"},
		tgbotapi.BotCommand{Command: "nextcontest", Description: "Show upcoming contests"},
		tgbotapi.BotCommand{Command: "setprefs", Description: "Set your preferred divisions"},
		tgbotapi.BotCommand{Command: "connectauth", Description: "Connect your Google Calendar"},
		tgbotapi.BotCommand{Command: "addevent", Description: "Manually add a calendar event"},
	)
	if _, err := a.bot.Request(cmds); err != nil {
		log.Println("set commands:", err)
	}
}

func (a *App) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := a.bot.Send(msg); err != nil {
		log.Println("send message:", err)
	}
}

func (a *App) replyMarkdown(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true
	if _, err := a.bot.Send(msg); err != nil {
		log.Println("send message:", err)
	}
}
