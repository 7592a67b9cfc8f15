package core

import (
	"errors"
	"strings"
	"time"
)

const (
	KindExpense TransactionKind = "expense"
	KindIncome  TransactionKind = "income"
)

const (
	EntityUser    Entity = "user"
	EntityExpense Entity = "expense"
	EntityIncome  Entity = "income"
	EntityBudget  Entity = "budget"
	EntityBills   Entity = "bills"
)

type (
	TransactionKind string

	// Entity names a synchronizable record type.
	Entity string

	Money struct {
		Cents int64
	}

	Category struct {
		ID    string
		Key   string
		Name  string
		Icon  string
		Color string
	}

	Budget struct {
		ID                    string
		UserID                string
		Category              Category
		Amount                Money
		RemainingAmount       Money
		BudgetAlert           bool
		BudgetAlertPercentage float64
		BudgetPeriod          time.Time
		Recurrent             bool
		CreatedAt             time.Time
		UpdatedAt             time.Time
		Synced                bool
	}

	// Transaction is either an expense or an income, told apart by Kind.
	Transaction struct {
		ID              string
		UserID          string
		Kind            TransactionKind
		Name            string
		Description     string
		Amount          Money
		Category        Category
		TransactionDate time.Time
		ReceiptURL      string
		LocalImagePath  string
		UpdatedAt       time.Time
		Synced          bool
	}

	// Tombstone records a local delete that still has to reach the remote store.
	Tombstone struct {
		Entity    Entity
		UserID    string
		EntityID  string
		DeletedAt time.Time
	}

	ChangeLastSyncTimes struct {
		User    time.Time
		Expense time.Time
		Income  time.Time
		Budget  time.Time
		Bills   time.Time
	}

	User struct {
		ID            string
		Email         string
		DisplayName   string
		EmailVerified bool
		UpdatedAt     time.Time
		Synced        bool
	}

	// UserData holds device-local preferences. It has no remote counterpart.
	UserData struct {
		UserID              string
		Theme               string
		Locale              string
		Currency            string
		OnboardingCompleted bool
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrNegativeAmount   = errors.New("negative amount")
	ErrEmptyName        = errors.New("empty name")
	ErrEmptyCategory    = errors.New("empty category")
	ErrZeroDate         = errors.New("date cannot be zero")
	ErrInvalidKind      = errors.New("invalid transaction kind")
	ErrInvalidAlertPerc = errors.New("alert percentage must be between 0 and 100")
)

// Equal compares categories by identity only.
func (c Category) Equal(other Category) bool {
	return c.ID == other.ID
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return ErrEmptyCategory
	}
	return nil
}

func (t Transaction) IsExpense() bool { return t.Kind == KindExpense }
func (t Transaction) IsIncome() bool  { return t.Kind == KindIncome }

func (t Transaction) Validate() error {
	switch t.Kind {
	case KindExpense, KindIncome:
	default:
		return ErrInvalidKind
	}
	if strings.TrimSpace(t.Name) == "" {
		return ErrEmptyName
	}
	if len(t.Name) > 200 {
		return errors.New("name too long (max 200 characters)")
	}
	if t.Amount.IsNegative() {
		return ErrNegativeAmount
	}
	if err := t.Category.Validate(); err != nil {
		return err
	}
	if t.TransactionDate.IsZero() {
		return ErrZeroDate
	}
	return nil
}

func (b Budget) Validate() error {
	if err := b.Category.Validate(); err != nil {
		return err
	}
	if b.Amount.IsNegative() {
		return ErrNegativeAmount
	}
	if b.BudgetAlertPercentage < 0 || b.BudgetAlertPercentage > 100 {
		return ErrInvalidAlertPerc
	}
	if b.BudgetPeriod.IsZero() {
		return ErrZeroDate
	}
	return nil
}

// ShouldAlert reports whether spending has reached the alert threshold.
// A budget with no allocation alerts as soon as it goes negative.
func (b Budget) ShouldAlert() bool {
	if !b.BudgetAlert {
		return false
	}
	if b.Amount.Cents <= 0 {
		return b.RemainingAmount.IsNegative()
	}
	spent := b.Amount.Cents - b.RemainingAmount.Cents
	return float64(spent)*100 >= b.BudgetAlertPercentage*float64(b.Amount.Cents)
}

// Exceeded reports whether the budget is over its allocation.
func (b Budget) Exceeded() bool {
	return b.RemainingAmount.IsNegative()
}

// Get returns the last sync time recorded for an entity.
func (c ChangeLastSyncTimes) Get(e Entity) time.Time {
	switch e {
	case EntityUser:
		return c.User
	case EntityExpense:
		return c.Expense
	case EntityIncome:
		return c.Income
	case EntityBudget:
		return c.Budget
	case EntityBills:
		return c.Bills
	}
	return time.Time{}
}

// Advance returns a copy with the entity timestamp moved to at. Timestamps
// never move backwards.
func (c ChangeLastSyncTimes) Advance(e Entity, at time.Time) ChangeLastSyncTimes {
	if !at.After(c.Get(e)) {
		return c
	}
	switch e {
	case EntityUser:
		c.User = at
	case EntityExpense:
		c.Expense = at
	case EntityIncome:
		c.Income = at
	case EntityBudget:
		c.Budget = at
	case EntityBills:
		c.Bills = at
	}
	return c
}

// EntityForKind maps a transaction kind onto its sync entity.
func EntityForKind(k TransactionKind) Entity {
	if k == KindIncome {
		return EntityIncome
	}
	return EntityExpense
}
