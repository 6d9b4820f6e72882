package bot

import (
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/expense-bot/internal/metrics"
)

const genericFailure = "⚠️ Sorry, something went wrong. Please try again later."

// UsageError is a user correctable mistake in a command. It never changes state.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string {
	return e.Message
}

func usage(message string) error {
	return &UsageError{Message: message}
}

// EmptyResultError means there was nothing to show. It is reported, not treated as a failure.
type EmptyResultError struct {
	Message string
}

func (e *EmptyResultError) Error() string {
	return e.Message
}

func nothingToShow(message string) error {
	return &EmptyResultError{Message: message}
}

// response is what a handler wants delivered. A nil response means the
// handler already delivered everything itself.
type response struct {
	text     string
	keyboard *tgbotapi.InlineKeyboardMarkup
}

// userMessage turns any handler error into the single line shown to the user.
func userMessage(err error) (text, outcome string) {
	var usageErr *UsageError
	var emptyErr *EmptyResultError

	switch {
	case errors.As(err, &usageErr):
		return "⚠️ " + usageErr.Message, metrics.OutcomeUsage
	case errors.As(err, &emptyErr):
		return emptyErr.Message, metrics.OutcomeEmpty
	default:
		return genericFailure, metrics.OutcomeFailure
	}
}
