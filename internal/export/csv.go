// Package export turns expenses into files handed to the user: a CSV dump and a pie chart.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/xaenox/expense-bot/internal/models"
)

var csvHeader = []string{"Amount", "Category", "Description", "Date"}

// WriteCSV writes a header row followed by one row per expense, in the given order.
func WriteCSV(w io.Writer, expenses []models.Expense) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, e := range expenses {
		record := []string{
			e.Amount.StringFixed(2),
			e.Category,
			e.Description,
			e.Date.Format(models.DateLayout),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row %d: %w", e.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteTempCSV writes expenses into a new temporary file and returns its path.
// The caller owns the file and must remove it.
func WriteTempCSV(dir string, expenses []models.Expense) (path string, err error) {
	f, err := os.CreateTemp(dir, "expenses-*.csv")
	if err != nil {
		return "", fmt.Errorf("create temp csv: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close temp csv: %w", cerr)
		}
		if err != nil {
			os.Remove(f.Name())
			path = ""
		}
	}()

	if err := WriteCSV(f, expenses); err != nil {
		return "", err
	}
	return f.Name(), nil
}
