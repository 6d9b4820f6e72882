package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/expense-bot/internal/classifier"
	"github.com/xaenox/expense-bot/internal/export"
	"github.com/xaenox/expense-bot/internal/metrics"
	"github.com/xaenox/expense-bot/internal/models"
	"github.com/xaenox/expense-bot/internal/session"
	"github.com/xaenox/expense-bot/internal/storage"
	"github.com/xaenox/expense-bot/internal/summary"
	"go.uber.org/zap"
)

// Sender is the part of *tgbotapi.BotAPI the bot talks through.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Options struct {
	Categories []string
	Location   *time.Location
	// TempDir holds CSV exports until they are delivered; empty means os.TempDir.
	TempDir string
	Chart   export.PieChart
}

type Deps struct {
	API        Sender
	Storage    storage.Storage
	Sessions   *session.Store
	Classifier classifier.Classifier
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
}

type commandHandler func(ctx context.Context, message *tgbotapi.Message) (*response, error)

type callbackHandler func(ctx context.Context, query *tgbotapi.CallbackQuery, token string) (*response, error)

type command struct {
	name        string
	description string
	handle      commandHandler
}

type callbackRoute struct {
	prefix string
	handle callbackHandler
}

type Bot struct {
	api        Sender
	storage    storage.Storage
	summaries  *summary.Engine
	sessions   *session.Store
	classifier classifier.Classifier
	metrics    *metrics.Metrics
	logger     *zap.Logger
	opts       Options
	now        func() time.Time

	commands  map[string]command
	order     []string
	callbacks []callbackRoute

	inflight sync.WaitGroup
}

func New(deps Deps, opts Options) *Bot {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}

	b := &Bot{
		api:        deps.API,
		storage:    deps.Storage,
		summaries:  summary.NewEngine(deps.Storage),
		sessions:   deps.Sessions,
		classifier: deps.Classifier,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		opts:       opts,
		now:        time.Now,
		commands:   make(map[string]command),
	}

	b.handle("start", "Start the bot and get a welcome message", b.handleStart)
	b.handle("help", "Show the available commands", b.handleHelp)
	b.handle("add", "Add an expense: /add <amount> [description]", b.handleAdd)
	b.handle("summary", "Total and category breakdown of all expenses", b.summaryHandler(func(time.Time) summary.Window { return summary.AllTime() }))
	b.handle("daily", "Today's expenses", b.summaryHandler(summary.Daily))
	b.handle("weekly", "This week's expenses", b.summaryHandler(summary.Weekly))
	b.handle("monthly", "This month's expenses", b.summaryHandler(summary.Monthly))
	b.handle("export", "Download all expenses as CSV", b.handleExport)
	b.handle("chart", "Pie chart by category: /chart [daily|weekly|monthly]", b.handleChart)
	b.handle("categories", "Show the available categories", b.handleCategories)

	b.callbacks = append(b.callbacks, callbackRoute{prefix: addCallbackPrefix, handle: b.handleCategorySelected})

	return b
}

func (b *Bot) handle(name, description string, h commandHandler) {
	b.commands[name] = command{name: name, description: description, handle: h}
	b.order = append(b.order, name)
}

// RegisterCommands publishes the command list shown by Telegram clients.
func (b *Bot) RegisterCommands() error {
	cmds := make([]tgbotapi.BotCommand, 0, len(b.order))
	for _, name := range b.order {
		cmds = append(cmds, tgbotapi.BotCommand{Command: name, Description: b.commands[name].description})
	}
	if _, err := b.api.Request(tgbotapi.NewSetMyCommands(cmds...)); err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}
	return nil
}

// Run dispatches updates until ctx is done or the channel closes, then
// waits for in-flight handlers to finish.
func (b *Bot) Run(ctx context.Context, updates tgbotapi.UpdatesChannel) error {
	defer b.inflight.Wait()

	// handlers are never cancelled, shutdown only stops taking new updates
	handlerCtx := context.WithoutCancel(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.inflight.Add(1)
			go func() {
				defer b.inflight.Done()
				b.HandleUpdate(handlerCtx, update)
			}()
		}
	}
}

// HandleUpdate processes a single update synchronously.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(ctx, update.Message)
	}
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	name := message.Command()
	cmd, ok := b.commands[name]
	if !ok {
		b.logger.Debug("Ignoring unknown command", zap.String("command", name))
		return
	}

	started := time.Now()
	logger := b.logger.With(
		zap.String("command", name),
		zap.Int64("user_id", message.From.ID),
		zap.Int64("chat_id", message.Chat.ID))

	resp, err := safely(func() (*response, error) { return cmd.handle(ctx, message) })
	if err != nil {
		text, outcome := userMessage(err)
		logOutcome(logger, outcome, err)
		b.sendMessage(message.Chat.ID, text)
		b.metrics.Observe(name, outcome, started)
		return
	}

	if resp != nil {
		msg := tgbotapi.NewMessage(message.Chat.ID, resp.text)
		if resp.keyboard != nil {
			msg.ReplyMarkup = *resp.keyboard
		}
		b.send(msg)
	}
	b.metrics.Observe(name, metrics.OutcomeOK, started)
}

func (b *Bot) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	// Telegram keeps a spinner on the button until the query is answered.
	if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		b.logger.Warn("Failed to answer callback", zap.Error(err), zap.String("callback_id", query.ID))
	}

	for _, route := range b.callbacks {
		if !strings.HasPrefix(query.Data, route.prefix) {
			continue
		}

		name := "callback:" + strings.TrimSuffix(route.prefix, "_")
		started := time.Now()
		logger := b.logger.With(
			zap.String("command", name),
			zap.Int64("user_id", query.From.ID),
			zap.String("data", query.Data))

		token := strings.TrimPrefix(query.Data, route.prefix)
		resp, err := safely(func() (*response, error) { return route.handle(ctx, query, token) })
		outcome := metrics.OutcomeOK
		if err != nil {
			var text string
			text, outcome = userMessage(err)
			logOutcome(logger, outcome, err)
			resp = &response{text: text}
		}
		if resp != nil {
			b.replaceCallbackMessage(query, resp.text)
		}
		b.metrics.Observe(name, outcome, started)
		return
	}

	b.logger.Debug("Ignoring callback without route", zap.String("data", query.Data))
}

// safely turns a panicking handler into an ordinary error.
func safely(call func() (*response, error)) (resp *response, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp, err = nil, fmt.Errorf("handler panic: %v", r)
		}
	}()
	return call()
}

func logOutcome(logger *zap.Logger, outcome string, err error) {
	switch outcome {
	case metrics.OutcomeFailure:
		logger.Error("Command failed", zap.Error(err))
	default:
		logger.Debug("Command rejected", zap.String("outcome", outcome), zap.Error(err))
	}
}

// today is the current calendar day in the configured timezone.
func (b *Bot) today() time.Time {
	return models.Day(b.now().In(b.opts.Location))
}

func (b *Bot) replaceCallbackMessage(query *tgbotapi.CallbackQuery, text string) {
	if query.Message == nil {
		b.sendMessage(query.From.ID, text)
		return
	}
	b.editMessage(query.Message.Chat.ID, query.Message.MessageID, text)
}

// editMessage replaces the text of a message and drops its keyboard.
func (b *Bot) editMessage(chatID int64, messageID int, text string) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	if _, err := b.api.Send(edit); err != nil {
		b.logger.Error("Failed to edit message",
			zap.Error(err),
			zap.Int64("chat_id", chatID),
			zap.Int("message_id", messageID))
	}
}

func (b *Bot) send(msg tgbotapi.MessageConfig) (tgbotapi.Message, bool) {
	sent, err := b.api.Send(msg)
	if err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", msg.ChatID))
		return sent, false
	}
	return sent, true
}

func (b *Bot) sendMessage(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

func displayName(u *tgbotapi.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.UserName
	}
	return name
}
