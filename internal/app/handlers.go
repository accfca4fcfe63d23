package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/contest-reminder-bot/internal/authapi"
	"github.com/example/contest-reminder-bot/internal/gcal"
	"github.com/example/contest-reminder-bot/internal/model"
	"github.com/example/contest-reminder-bot/internal/service"
	"github.com/example/contest-reminder-bot/pkg/codeforces"
)

const retryLaterText = "Sorry, I couldn't fetch the contest data. Please try again later."

const welcomeText = "👋 Hi there! I'm your *Codeforces Reminder Bot*.\n\n" +
	"📅 /nextcontest – see upcoming Codeforces contests\n" +
	"🎯 /setprefs Div.2 Div.4 – choose which divisions you want reminders for\n" +
	"🔗 /connectauth – connect your Google Calendar to add contests\n" +
	"⏰ /addevent – manually add a custom event\n\n" +
	"Let's make sure you never miss a contest again! 🚀"

const addEventUsage = "Usage:\n/addevent <event_title> <start_time>\n\n" +
	"Example:\n/addevent \"Codeforces Round\" 2025-11-10T10:00:00"

func (a *App) handleStart(ctx context.Context, m *tgbotapi.Message) {
	if err := a.store.AddSubscriber(ctx, m.From.ID); err != nil {
		// degraded mode: the subscription is lost but the bot stays usable
		log.Println("add subscriber:", err)
	}
	a.replyMarkdown(m.Chat.ID, welcomeText)
}

func (a *App) handleSetPrefs(ctx context.Context, m *tgbotapi.Message) {
	divisions := strings.Fields(m.CommandArguments())
	if len(divisions) == 0 {
		a.reply(m.Chat.ID, "Please provide at least one preference (e.g. Div.2, Div.3).")
		return
	}
	if err := a.store.SetPreferences(ctx, m.From.ID, divisions); err != nil {
		log.Println("set preferences:", err)
		a.reply(m.Chat.ID, "Sorry, I couldn't save your preferences. Please try again later.")
		return
	}
	a.reply(m.Chat.ID, "Preferences saved! You will now receive reminders for: "+strings.Join(divisions, ", "))
}

func (a *App) handleNextContest(ctx context.Context, m *tgbotapi.Message) {
	contests, err := a.cf.UpcomingContests(ctx)
	if err != nil {
		log.Println("next contest:", err)
		a.reply(m.Chat.ID, retryLaterText)
		return
	}

	divisions, err := a.store.Preferences(ctx, m.From.ID)
	if err != nil {
		log.Println("load preferences:", err)
		divisions = nil
	}
	contests = service.FilterContests(contests, divisions)
	if len(contests) == 0 {
		a.reply(m.Chat.ID, "No upcoming contests found according to your preferences.")
		return
	}

	a.reply(m.Chat.ID, "🏁 Upcoming Contests:")
	for _, c := range contests {
		text := fmt.Sprintf("• *%s*\n  🕒 Start: %s\n  Duration: %d hrs\n  🔗 %s",
			c.Name,
			c.StartTime().Format("Mon, 02 Jan 2006 at 15:04"),
			c.DurationSeconds/3600,
			c.URL(),
		)
		msg := tgbotapi.NewMessage(m.Chat.ID, text)
		msg.ParseMode = tgbotapi.ModeMarkdown
		msg.DisableWebPagePreview = true
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("Add to Google Calendar", fmt.Sprintf("add_%d", c.ID)),
			),
		)
		if _, err := a.bot.Send(msg); err != nil {
			log.Println("send contest:", err)
		}
	}
}

func (a *App) handleConnectAuth(ctx context.Context, m *tgbotapi.Message) {
	token, err := randToken()
	if err != nil {
		log.Println("generate token:", err)
		a.reply(m.Chat.ID, "Sorry, something went wrong. Please try again later.")
		return
	}
	if err := a.store.PutPendingAuth(ctx, token, m.From.ID); err != nil {
		log.Println("store pending auth:", err)
		a.reply(m.Chat.ID, "Sorry, something went wrong. Please try again later.")
		return
	}

	q := url.Values{}
	q.Set("token", token)
	q.Set("user_id", strconv.FormatInt(m.From.ID, 10))
	authURL := a.cfg.AuthServerURL + "/connect?" + q.Encode()

	log.Println("user", m.From.ID, "started calendar connection")
	a.replyMarkdown(m.Chat.ID, "🗓️ *Connect your Google Calendar!*\n\n"+
		"Click the link below to securely connect your calendar account. "+
		"The link is valid for 15 minutes.\n\n"+
		"[🔗 Connect Google Calendar]("+authURL+")")
}

func (a *App) handleAddEvent(ctx context.Context, m *tgbotapi.Message) {
	cred, ok := a.credentialFor(ctx, m.From.ID, m.Chat.ID)
	if !ok {
		return
	}

	raw := strings.TrimSpace(m.CommandArguments())
	if raw == "" {
		a.reply(m.Chat.ID, addEventUsage)
		return
	}
	args, err := parseQuotedArgs(raw)
	if err != nil {
		a.reply(m.Chat.ID, "Error: mismatched quotes in your command.")
		return
	}
	if len(args) < 2 {
		a.reply(m.Chat.ID, addEventUsage)
		return
	}

	title := args[0]
	start, err := time.Parse("2006-01-02T15:04:05", args[1])
	if err != nil {
		a.reply(m.Chat.ID, "Error: invalid time format. Please use ISO format:\nYYYY-MM-DDTHH:MM:SS")
		return
	}

	tz := gcal.Timezone(ctx, cred)
	if err := gcal.InsertEvent(ctx, cred, title, start, start.Add(time.Hour), tz); err != nil {
		log.Printf("add event for %d: %v", m.From.ID, err)
		a.reply(m.Chat.ID, "❌ Sorry, I couldn't add the event. Please try /connectauth again.")
		return
	}
	a.reply(m.Chat.ID, fmt.Sprintf("✅ Event '%s' added to your calendar!", title))
}

func (a *App) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if _, err := a.bot.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.Println("answer callback:", err)
	}
	if cb.Message == nil || !strings.HasPrefix(cb.Data, "add_") {
		return
	}
	contestID, err := strconv.ParseInt(strings.TrimPrefix(cb.Data, "add_"), 10, 64)
	if err != nil {
		return
	}
	chatID := cb.Message.Chat.ID

	cred, ok := a.credentialFor(ctx, cb.From.ID, chatID)
	if !ok {
		return
	}

	contests, err := a.cf.UpcomingContests(ctx)
	if err != nil {
		log.Println("callback fetch contests:", err)
		a.reply(chatID, retryLaterText)
		return
	}
	var contest *codeforces.Contest
	for i := range contests {
		if contests[i].ID == contestID {
			contest = &contests[i]
			break
		}
	}
	if contest == nil {
		a.reply(chatID, "Contest not found.")
		return
	}

	tz := gcal.Timezone(ctx, cred)
	start := contest.StartTime()
	if err := gcal.InsertEvent(ctx, cred, contest.Name, start, start.Add(contest.Duration()), tz); err != nil {
		log.Printf("insert contest %d for %d: %v", contestID, cb.From.ID, err)
		a.reply(chatID, "⚠️ Something went wrong adding the event.")
		return
	}

	edit := tgbotapi.NewEditMessageText(chatID, cb.Message.MessageID,
		fmt.Sprintf("✅ Event '%s' added to your calendar!", contest.Name))
	if _, err := a.bot.Send(edit); err != nil {
		log.Println("edit message:", err)
	}
}

// credentialFor fetches the user's stored credential, replying with the
// appropriate prompt when there is none. The second return value reports
// whether the caller may proceed.
func (a *App) credentialFor(ctx context.Context, userID, chatID int64) (*model.Credential, bool) {
	cred, err := a.auth.UserToken(ctx, userID)
	switch {
	case err == nil:
		return cred, true
	case errors.Is(err, authapi.ErrNotFound):
		a.reply(chatID, "Please connect your Google Calendar with /connectauth first.")
	default:
		log.Printf("fetch credential for %d: %v", userID, err)
		a.reply(chatID, "Sorry, something went wrong. Please try again later.")
	}
	return nil, false
}
