package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	addCallbackPrefix = "add_"
	buttonsPerRow     = 2
)

// categoryKeyboard offers every category as an "add_<category>" button, the suggested one first.
func categoryKeyboard(categories []string, suggested string) tgbotapi.InlineKeyboardMarkup {
	ordered := make([]string, 0, len(categories))
	if suggested != "" {
		ordered = append(ordered, suggested)
	}
	for _, c := range categories {
		if c != suggested {
			ordered = append(ordered, c)
		}
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, c := range ordered {
		label := c
		if c == suggested {
			label = "⭐ " + c
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, addCallbackPrefix+c))
		if len(row) == buttonsPerRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
