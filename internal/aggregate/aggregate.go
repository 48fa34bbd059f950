// Package aggregate derives dashboard figures from a set of transactions.
// Everything here is a pure function of its inputs.
package aggregate

import (
	"fmt"
	"time"

	"finance-tracker/internal/models"

	"github.com/shopspring/decimal"
)

// Window selects which transactions count toward monthly figures.
type Window string

const (
	// WindowCalendar covers the calendar month containing the reference time.
	WindowCalendar Window = "calendar"
	// WindowRolling30 covers the 30 days ending at the reference time.
	WindowRolling30 Window = "rolling30"
)

// ParseWindow validates a window name. The empty string means WindowCalendar.
func ParseWindow(s string) (Window, error) {
	switch Window(s) {
	case "", WindowCalendar:
		return WindowCalendar, nil
	case WindowRolling30:
		return WindowRolling30, nil
	default:
		return "", fmt.Errorf("unknown monthly window %q (want calendar or rolling30)", s)
	}
}

// Bounds returns the half-open interval [start, end) the window covers for ref.
func (w Window) Bounds(ref time.Time) (start, end time.Time) {
	if w == WindowRolling30 {
		// (ref-30d, ref] expressed as a half-open range.
		end = ref.Add(time.Nanosecond)
		return end.AddDate(0, 0, -30), end
	}
	start = time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, ref.Location())
	return start, start.AddDate(0, 1, 0)
}

// Balance is the signed sum of all transactions: income adds, expenses subtract.
func Balance(txs []models.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		switch tx.Kind {
		case models.KindIncome:
			total = total.Add(tx.Amount)
		case models.KindExpense:
			total = total.Sub(tx.Amount)
		}
	}
	return total
}

// MonthlyFigures sums income and expenses created inside the window around ref.
func MonthlyFigures(txs []models.Transaction, ref time.Time, w Window) models.MonthlyFigures {
	start, end := w.Bounds(ref)

	income, expenses := decimal.Zero, decimal.Zero
	for _, tx := range txs {
		at := tx.CreatedAt
		if at.Before(start) || !at.Before(end) {
			continue
		}
		switch tx.Kind {
		case models.KindIncome:
			income = income.Add(tx.Amount)
		case models.KindExpense:
			expenses = expenses.Add(tx.Amount)
		}
	}
	return models.MonthlyFigures{
		Income:   income,
		Expenses: expenses,
		Change:   income.Sub(expenses),
	}
}
