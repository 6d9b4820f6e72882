package export

import (
	"errors"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"
)

var ErrNoSlices = errors.New("pie chart needs at least one positive slice")

// Slice is one category of the pie.
type Slice struct {
	Label   string
	Amount  decimal.Decimal
	Percent decimal.Decimal
}

type PieChart struct {
	Width  int
	Height int
}

// Render draws a PNG pie with one slice per category, labelled with its share.
func (p PieChart) Render(w io.Writer, slices []Slice) error {
	values := make([]chart.Value, 0, len(slices))
	for _, s := range slices {
		if !s.Amount.IsPositive() {
			continue
		}
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%s (%s%%)", s.Label, s.Percent.StringFixed(1)),
			Value: s.Amount.InexactFloat64(),
		})
	}
	if len(values) == 0 {
		return ErrNoSlices
	}

	pie := chart.PieChart{
		Width:  p.Width,
		Height: p.Height,
		Values: values,
	}
	if err := pie.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render pie chart: %w", err)
	}
	return nil
}
