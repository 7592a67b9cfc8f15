package google

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// codec maps one entity onto a sheet row. Column A is always the id.
type codec[T any] struct {
	header []string
	encode func(T) []any
	decode func(cols []string) (T, error)
	key    func(T) (id, userID string, updatedAt time.Time)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

func formatMoney(m core.Money) string { return m.Decimal().StringFixed(2) }

func parseMoney(s string) (core.Money, error) {
	if s == "" {
		return core.Money{}, nil
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
	if err != nil {
		return core.Money{}, err
	}
	return core.MoneyFromDecimal(d), nil
}

func parseBool(s string) bool {
	b, _ := strconv.ParseBool(s)
	return b
}

// rowReader reads columns by index, recording the first parse failure.
type rowReader struct {
	cols []string
	err  error
}

func (r *rowReader) str(i int) string {
	if i < len(r.cols) {
		return strings.TrimSpace(r.cols[i])
	}
	return ""
}

func (r *rowReader) money(i int) core.Money {
	m, err := parseMoney(r.str(i))
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("column %d: %w", i, err)
	}
	return m
}

func (r *rowReader) time(i int) time.Time {
	t, err := parseTime(r.str(i))
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("column %d: %w", i, err)
	}
	return t
}

func (r *rowReader) float(i int) float64 {
	s := r.str(i)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("column %d: %w", i, err)
	}
	return f
}

var budgetCodec = codec[core.Budget]{
	header: []string{"id", "user_id", "category_id", "category_key", "category_name", "category_icon",
		"category_color", "amount", "remaining_amount", "budget_alert", "budget_alert_percentage",
		"budget_period", "recurrent", "created_at", "updated_at"},
	encode: func(b core.Budget) []any {
		return []any{b.ID, b.UserID, b.Category.ID, b.Category.Key, b.Category.Name, b.Category.Icon,
			b.Category.Color, formatMoney(b.Amount), formatMoney(b.RemainingAmount),
			strconv.FormatBool(b.BudgetAlert), strconv.FormatFloat(b.BudgetAlertPercentage, 'f', -1, 64),
			formatTime(b.BudgetPeriod), strconv.FormatBool(b.Recurrent), formatTime(b.CreatedAt),
			formatTime(b.UpdatedAt)}
	},
	decode: func(cols []string) (core.Budget, error) {
		r := &rowReader{cols: cols}
		b := core.Budget{
			ID:     r.str(0),
			UserID: r.str(1),
			Category: core.Category{
				ID: r.str(2), Key: r.str(3), Name: r.str(4), Icon: r.str(5), Color: r.str(6),
			},
			Amount:                r.money(7),
			RemainingAmount:       r.money(8),
			BudgetAlert:           parseBool(r.str(9)),
			BudgetAlertPercentage: r.float(10),
			BudgetPeriod:          r.time(11),
			Recurrent:             parseBool(r.str(12)),
			CreatedAt:             r.time(13),
			UpdatedAt:             r.time(14),
		}
		return b, r.err
	},
	key: func(b core.Budget) (string, string, time.Time) { return b.ID, b.UserID, b.UpdatedAt },
}

// transactionCodec leaves out LocalImagePath, which only exists on the
// device that attached it.
func transactionCodec(kind core.TransactionKind) codec[core.Transaction] {
	return codec[core.Transaction]{
		header: []string{"id", "user_id", "name", "description", "amount", "category_id", "category_key",
			"category_name", "category_icon", "category_color", "transaction_date", "receipt_url", "updated_at"},
		encode: func(t core.Transaction) []any {
			return []any{t.ID, t.UserID, t.Name, t.Description, formatMoney(t.Amount), t.Category.ID,
				t.Category.Key, t.Category.Name, t.Category.Icon, t.Category.Color,
				formatTime(t.TransactionDate), t.ReceiptURL, formatTime(t.UpdatedAt)}
		},
		decode: func(cols []string) (core.Transaction, error) {
			r := &rowReader{cols: cols}
			t := core.Transaction{
				ID:          r.str(0),
				UserID:      r.str(1),
				Kind:        kind,
				Name:        r.str(2),
				Description: r.str(3),
				Amount:      r.money(4),
				Category: core.Category{
					ID: r.str(5), Key: r.str(6), Name: r.str(7), Icon: r.str(8), Color: r.str(9),
				},
				TransactionDate: r.time(10),
				ReceiptURL:      r.str(11),
				UpdatedAt:       r.time(12),
			}
			return t, r.err
		},
		key: func(t core.Transaction) (string, string, time.Time) { return t.ID, t.UserID, t.UpdatedAt },
	}
}

var userCodec = codec[core.User]{
	header: []string{"id", "email", "display_name", "email_verified", "updated_at"},
	encode: func(u core.User) []any {
		return []any{u.ID, u.Email, u.DisplayName, strconv.FormatBool(u.EmailVerified), formatTime(u.UpdatedAt)}
	},
	decode: func(cols []string) (core.User, error) {
		r := &rowReader{cols: cols}
		u := core.User{
			ID:            r.str(0),
			Email:         r.str(1),
			DisplayName:   r.str(2),
			EmailVerified: parseBool(r.str(3)),
			UpdatedAt:     r.time(4),
		}
		return u, r.err
	},
	key: func(u core.User) (string, string, time.Time) { return u.ID, u.ID, u.UpdatedAt },
}
