package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/expense-bot/internal/export"
	"github.com/xaenox/expense-bot/internal/models"
	"github.com/xaenox/expense-bot/internal/session"
	"github.com/xaenox/expense-bot/internal/storage"
	"github.com/xaenox/expense-bot/internal/summary"
	"go.uber.org/zap"
)

const addUsage = "Usage: /add <amount> [description]. Example: /add 12.50 lunch"

func (b *Bot) handleStart(ctx context.Context, message *tgbotapi.Message) (*response, error) {
	welcome := `👋 Welcome to Expense Tracker Bot!
Your personal finance buddy, right inside Telegram.

➕ /add 50 groceries adds a $50 expense, then you pick its category.
📊 /summary, /daily, /weekly and /monthly show what you spent.
📈 /chart draws where the money went.
📤 /export sends all your expenses as CSV.

Use /help to see all available commands.`

	return &response{text: welcome}, nil
}

func (b *Bot) handleHelp(ctx context.Context, message *tgbotapi.Message) (*response, error) {
	var help strings.Builder
	help.WriteString("Here are the available commands:\n\n")
	for _, name := range b.order {
		fmt.Fprintf(&help, "/%s - %s\n", name, b.commands[name].description)
	}
	return &response{text: strings.TrimRight(help.String(), "\n")}, nil
}

func (b *Bot) handleCategories(ctx context.Context, message *tgbotapi.Message) (*response, error) {
	if len(b.opts.Categories) == 0 {
		return nil, nothingToShow("⚠️ No categories available.")
	}
	lines := make([]string, 0, len(b.opts.Categories))
	for _, c := range b.opts.Categories {
		lines = append(lines, "- "+c)
	}
	return &response{text: "📂 Existing Categories:\n" + strings.Join(lines, "\n")}, nil
}

// handleAdd opens the add flow: the amount waits in the session store until a category is picked.
func (b *Bot) handleAdd(ctx context.Context, message *tgbotapi.Message) (*response, error) {
	args := strings.Fields(message.CommandArguments())
	if len(args) == 0 {
		return nil, usage(addUsage)
	}

	amount, err := models.ParseAmount(args[0])
	if err != nil {
		return nil, usage(addUsage)
	}
	description := strings.Join(args[1:], " ")

	var suggested string
	if description != "" && b.classifier != nil {
		suggested = b.classifier.Suggest(ctx, description, b.opts.Categories)
		if !b.isCategory(suggested) {
			suggested = ""
		}
	}

	userID := message.From.ID
	pending, replaced := b.sessions.Put(userID, session.PendingAdd{
		Amount:      amount,
		Description: description,
		Suggested:   suggested,
		ChatID:      message.Chat.ID,
	})
	b.metrics.PendingSessions.Set(float64(b.sessions.Len()))

	// Only one amount can wait per user; the older prompt no longer means anything.
	if replaced != nil && replaced.PromptMessageID != 0 {
		b.logger.Debug("Pending expense replaced",
			zap.Int64("user_id", userID),
			zap.String("session_id", replaced.ID),
			zap.String("replaced_by", pending.ID))
		b.editMessage(replaced.ChatID, replaced.PromptMessageID,
			fmt.Sprintf("↩️ %s was replaced by a newer /add.", models.FormatMoney(replaced.Amount)))
	}

	text := fmt.Sprintf("Select a category for %s:", models.FormatMoney(amount))
	if description != "" {
		text = fmt.Sprintf("Select a category for %s (%s):", models.FormatMoney(amount), description)
	}

	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	msg.ReplyMarkup = categoryKeyboard(b.opts.Categories, suggested)
	sent, err := b.api.Send(msg)
	if err != nil {
		return nil, fmt.Errorf("send category prompt: %w", err)
	}
	b.sessions.AttachPrompt(userID, pending.ID, sent.MessageID)

	return nil, nil
}

// handleCategorySelected closes the add flow started by handleAdd.
func (b *Bot) handleCategorySelected(ctx context.Context, query *tgbotapi.CallbackQuery, category string) (*response, error) {
	if !b.isCategory(category) {
		return nil, usage(fmt.Sprintf("Unknown category %q. Use /categories to see the options.", category))
	}

	pending, ok := b.sessions.Take(query.From.ID)
	b.metrics.PendingSessions.Set(float64(b.sessions.Len()))
	if !ok {
		return nil, nothingToShow("⌛ Nothing to add: this prompt has expired. Use /add <amount> to start again.")
	}

	userID, err := b.storage.EnsureUser(ctx, query.From.ID, displayName(query.From))
	if err != nil {
		return nil, err
	}

	expense := &models.Expense{
		UserID:      userID,
		Amount:      pending.Amount,
		Category:    category,
		Description: pending.Description,
		Date:        b.today(),
	}
	if err := b.storage.RecordExpense(ctx, expense); err != nil {
		return nil, err
	}
	b.metrics.ExpensesRecorded.Inc()

	b.logger.Info("Expense recorded",
		zap.Int64("user_id", query.From.ID),
		zap.Int64("expense_id", expense.ID),
		zap.String("session_id", pending.ID),
		zap.String("category", category))

	text := fmt.Sprintf("✅ Added: %s for %s on %s",
		models.FormatMoney(expense.Amount), category, expense.Date.Format(models.DateLayout))

	// The session's own prompt differs from the clicked one when a stale keyboard was used.
	if query.Message != nil && pending.PromptMessageID != 0 && pending.PromptMessageID != query.Message.MessageID {
		b.editMessage(pending.ChatID, pending.PromptMessageID, text)
	}

	return &response{text: text}, nil
}

func (b *Bot) summaryHandler(window func(today time.Time) summary.Window) commandHandler {
	return func(ctx context.Context, message *tgbotapi.Message) (*response, error) {
		report, err := b.summaries.Summarize(ctx, message.From.ID, window(b.today()))
		if err != nil {
			return nil, err
		}
		return &response{text: report.Format()}, nil
	}
}

func (b *Bot) handleExport(ctx context.Context, message *tgbotapi.Message) (*response, error) {
	userID, err := b.storage.FindUser(ctx, message.From.ID)
	if errors.Is(err, storage.ErrUserNotFound) {
		return nil, nothingToShow("📭 You have no expenses to export yet.")
	}
	if err != nil {
		return nil, err
	}

	expenses, err := b.storage.ListExpenses(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(expenses) == 0 {
		return nil, nothingToShow("📭 You have no expenses to export yet.")
	}

	path, err := export.WriteTempCSV(b.opts.TempDir, expenses)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := os.Remove(path); err != nil {
			b.logger.Error("Failed to remove export file", zap.Error(err), zap.String("path", path))
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open export file: %w", err)
	}
	defer f.Close()

	doc := tgbotapi.NewDocument(message.Chat.ID, tgbotapi.FileReader{Name: "expenses.csv", Reader: f})
	doc.Caption = "Here is your expenses file."
	if _, err := b.api.Send(doc); err != nil {
		return nil, fmt.Errorf("send export: %w", err)
	}

	return nil, nil
}

func (b *Bot) handleChart(ctx context.Context, message *tgbotapi.Message) (*response, error) {
	window, err := summary.Parse(message.CommandArguments(), b.today())
	if err != nil {
		return nil, usage("Usage: /chart [daily|weekly|monthly]")
	}

	report, err := b.summaries.Summarize(ctx, message.From.ID, window)
	if err != nil {
		return nil, err
	}

	shares := report.Shares()
	if report.Empty || len(shares) == 0 {
		return nil, nothingToShow("📭 Nothing to chart for this period.")
	}

	slices := make([]export.Slice, 0, len(shares))
	for _, s := range shares {
		slices = append(slices, export.Slice{Label: s.Category, Amount: s.Amount, Percent: s.Percent})
	}

	var buf bytes.Buffer
	if err := b.opts.Chart.Render(&buf, slices); err != nil {
		return nil, err
	}

	photo := tgbotapi.NewPhoto(message.Chat.ID, tgbotapi.FileBytes{Name: "expenses.png", Bytes: buf.Bytes()})
	photo.Caption = fmt.Sprintf("%s: %s", window.Title(), models.FormatMoney(report.Total))
	if _, err := b.api.Send(photo); err != nil {
		return nil, fmt.Errorf("send chart: %w", err)
	}

	return nil, nil
}

func (b *Bot) isCategory(name string) bool {
	if name == "" {
		return false
	}
	for _, c := range b.opts.Categories {
		if c == name {
			return true
		}
	}
	return false
}
