package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"fintrack/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

var food = core.Category{ID: "food", Key: "food", Name: "Food", Icon: "fork", Color: "#ff0000"}

func testBudget(id string, period time.Time) core.Budget {
	return core.Budget{
		ID:                    id,
		UserID:                "u1",
		Category:              food,
		Amount:                core.FromUnits(100),
		RemainingAmount:       core.FromUnits(50),
		BudgetAlert:           true,
		BudgetAlertPercentage: 80,
		BudgetPeriod:          period,
		Recurrent:             true,
		CreatedAt:             period,
		UpdatedAt:             period,
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")
	v1, err := RunMigrations(path)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	v2, err := RunMigrations(path)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if v1 != v2 || v1 == 0 {
		t.Errorf("versions = %d, %d", v1, v2)
	}
}

func TestBudgetRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	period := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	b := testBudget("b1", period)

	if err := repo.UpsertBudget(ctx, b); err != nil {
		t.Fatal(err)
	}
	got, err := repo.GetBudget(ctx, "b1")
	if err != nil || got == nil {
		t.Fatalf("GetBudget = %v, %v", got, err)
	}
	if got.Amount != b.Amount || got.RemainingAmount != b.RemainingAmount || got.Category != food {
		t.Errorf("got %+v", got)
	}
	if !got.BudgetPeriod.Equal(period) || !got.Recurrent || !got.BudgetAlert || got.Synced {
		t.Errorf("got %+v", got)
	}

	missing, err := repo.GetBudget(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("GetBudget(missing) = %v, %v", missing, err)
	}

	month := core.MonthPeriod(period)
	found, err := repo.FindBudgetByCategory(ctx, "u1", "food", month)
	if err != nil || found == nil || found.ID != "b1" {
		t.Errorf("FindBudgetByCategory = %v, %v", found, err)
	}
	other, err := repo.FindBudgetByCategory(ctx, "u1", "food", core.MonthPeriod(period.AddDate(0, 1, 0)))
	if err != nil || other != nil {
		t.Errorf("FindBudgetByCategory(next month) = %v, %v", other, err)
	}

	list, err := repo.ListBudgets(ctx, "u1", month)
	if err != nil || len(list) != 1 {
		t.Errorf("ListBudgets = %v, %v", list, err)
	}
	list, err = repo.ListBudgets(ctx, "u2", month)
	if err != nil || len(list) != 0 {
		t.Errorf("ListBudgets(other user) = %v, %v", list, err)
	}
}

func TestDeleteBudgetRecordsTombstone(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	now := time.Now()
	if err := repo.UpsertBudget(ctx, testBudget("b1", now)); err != nil {
		t.Fatal(err)
	}
	if err := repo.DeleteBudget(ctx, "b1", now); err != nil {
		t.Fatal(err)
	}
	if err := repo.DeleteBudget(ctx, "missing", now); err != nil {
		t.Fatalf("deleting a missing budget: %v", err)
	}

	ts, err := repo.ListTombstones(ctx, core.EntityBudget, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(ts) != 1 || ts[0].EntityID != "b1" {
		t.Fatalf("tombstones = %+v", ts)
	}

	// Pulled copies of deleted rows must not resurrect them.
	applied, err := repo.ApplyRemoteBudget(ctx, testBudget("b1", now.Add(time.Hour)))
	if err != nil || applied {
		t.Errorf("ApplyRemoteBudget = %v, %v", applied, err)
	}

	if err := repo.RemoveTombstone(ctx, core.EntityBudget, "b1"); err != nil {
		t.Fatal(err)
	}
	ts, _ = repo.ListTombstones(ctx, core.EntityBudget, "u1")
	if len(ts) != 0 {
		t.Errorf("tombstones after remove = %+v", ts)
	}
}

func TestMarkSyncedSkipsNewerEdits(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	t0 := time.Now()
	b := testBudget("b1", t0)
	if err := repo.UpsertBudget(ctx, b); err != nil {
		t.Fatal(err)
	}

	unsynced, err := repo.ListUnsyncedBudgets(ctx, "u1")
	if err != nil || len(unsynced) != 1 {
		t.Fatalf("ListUnsyncedBudgets = %v, %v", unsynced, err)
	}

	b.UpdatedAt = t0.Add(time.Second)
	if err := repo.UpsertBudget(ctx, b); err != nil {
		t.Fatal(err)
	}
	marked, err := repo.MarkBudgetSynced(ctx, "b1", t0)
	if err != nil || marked {
		t.Errorf("MarkBudgetSynced(stale) = %v, %v", marked, err)
	}
	marked, err = repo.MarkBudgetSynced(ctx, "b1", b.UpdatedAt)
	if err != nil || !marked {
		t.Errorf("MarkBudgetSynced = %v, %v", marked, err)
	}
	unsynced, _ = repo.ListUnsyncedBudgets(ctx, "u1")
	if len(unsynced) != 0 {
		t.Errorf("still unsynced: %+v", unsynced)
	}
}

func TestApplyRemoteRules(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	t0 := time.Now()

	tests := []struct {
		name        string
		local       *core.Budget
		remoteAt    time.Time
		wantApplied bool
	}{
		{"absent locally", nil, t0, true},
		{"local synced and older", &core.Budget{UpdatedAt: t0, Synced: true}, t0.Add(time.Minute), true},
		{"local synced and newer", &core.Budget{UpdatedAt: t0.Add(time.Hour), Synced: true}, t0, false},
		{"local unsynced", &core.Budget{UpdatedAt: t0, Synced: false}, t0.Add(time.Hour), false},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := string(rune('a' + i))
			if tt.local != nil {
				local := testBudget(id, t0)
				local.UpdatedAt = tt.local.UpdatedAt
				local.Synced = tt.local.Synced
				if err := repo.UpsertBudget(ctx, local); err != nil {
					t.Fatal(err)
				}
			}
			remote := testBudget(id, t0)
			remote.Amount = core.FromUnits(999)
			remote.UpdatedAt = tt.remoteAt
			applied, err := repo.ApplyRemoteBudget(ctx, remote)
			if err != nil {
				t.Fatal(err)
			}
			if applied != tt.wantApplied {
				t.Fatalf("applied = %v, want %v", applied, tt.wantApplied)
			}
			got, _ := repo.GetBudget(ctx, id)
			if tt.wantApplied && (got.Amount != remote.Amount || !got.Synced) {
				t.Errorf("got %+v", got)
			}
			if !tt.wantApplied && got.Amount == remote.Amount {
				t.Errorf("remote overwrote local: %+v", got)
			}
		})
	}
}

func TestTransactionsFilterAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	day := time.Date(2025, 2, 14, 10, 0, 0, 0, time.UTC)
	travel := core.Category{ID: "travel", Name: "Travel"}

	txs := []core.Transaction{
		{ID: "e1", UserID: "u1", Kind: core.KindExpense, Name: "Lunch", Amount: core.FromUnits(12), Category: food, TransactionDate: day, UpdatedAt: day},
		{ID: "e2", UserID: "u1", Kind: core.KindExpense, Name: "Train", Amount: core.FromUnits(40), Category: travel, TransactionDate: day.AddDate(0, 0, 1), UpdatedAt: day},
		{ID: "i1", UserID: "u1", Kind: core.KindIncome, Name: "Refund", Amount: core.FromUnits(5), Category: food, TransactionDate: day, UpdatedAt: day},
	}
	for _, tx := range txs {
		if err := repo.UpsertTransaction(ctx, tx); err != nil {
			t.Fatal(err)
		}
	}

	month := core.MonthPeriod(day)
	all, err := repo.ListTransactions(ctx, TransactionFilter{UserID: "u1", Kind: core.KindExpense, Period: month})
	if err != nil || len(all) != 2 {
		t.Fatalf("expenses = %v, %v", all, err)
	}
	if all[0].ID != "e2" {
		t.Errorf("expected newest first, got %s", all[0].ID)
	}
	foodOnly, err := repo.ListTransactions(ctx, TransactionFilter{UserID: "u1", Kind: core.KindExpense, Period: month, CategoryIDs: []string{"food"}})
	if err != nil || len(foodOnly) != 1 || foodOnly[0].ID != "e1" {
		t.Errorf("food expenses = %v, %v", foodOnly, err)
	}

	// Kind scopes lookups.
	if got, _ := repo.GetTransaction(ctx, core.KindIncome, "e1"); got != nil {
		t.Errorf("expense returned as income: %+v", got)
	}

	if err := repo.DeleteTransaction(ctx, core.KindIncome, "i1", day); err != nil {
		t.Fatal(err)
	}
	ts, _ := repo.ListTombstones(ctx, core.EntityIncome, "u1")
	if len(ts) != 1 || ts[0].EntityID != "i1" {
		t.Errorf("income tombstones = %+v", ts)
	}
	ts, _ = repo.ListTombstones(ctx, core.EntityExpense, "u1")
	if len(ts) != 0 {
		t.Errorf("expense tombstones = %+v", ts)
	}
}

func TestChangeLastSyncTimes(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	zero, err := repo.GetChangeLastSyncTimes(ctx, "u1")
	if err != nil || !zero.Budget.IsZero() {
		t.Fatalf("initial = %+v, %v", zero, err)
	}

	at := time.Now()
	saved, err := repo.UpdateChangeLastSyncTimes(ctx, "u1", func(c core.ChangeLastSyncTimes) core.ChangeLastSyncTimes {
		return c.Advance(core.EntityBudget, at)
	})
	if err != nil || !saved.Budget.Equal(at) {
		t.Fatalf("saved = %+v, %v", saved, err)
	}
	got, _ := repo.GetChangeLastSyncTimes(ctx, "u1")
	if !got.Budget.Equal(at) || !got.Expense.IsZero() {
		t.Errorf("got %+v", got)
	}
}

func TestSessionAndUserData(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	if id, err := repo.SessionUserID(ctx); err != nil || id != "" {
		t.Fatalf("SessionUserID = %q, %v", id, err)
	}
	if err := repo.SetSessionUserID(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	if id, _ := repo.SessionUserID(ctx); id != "u1" {
		t.Errorf("SessionUserID = %q", id)
	}
	if err := repo.SetSessionUserID(ctx, ""); err != nil {
		t.Fatal(err)
	}
	if id, _ := repo.SessionUserID(ctx); id != "" {
		t.Errorf("SessionUserID after sign out = %q", id)
	}

	d, err := repo.GetUserData(ctx, "u1")
	if err != nil || d.UserID != "u1" || d.OnboardingCompleted {
		t.Fatalf("GetUserData = %+v, %v", d, err)
	}
	d.Currency = "EUR"
	d.OnboardingCompleted = true
	if err := repo.SaveUserData(ctx, d); err != nil {
		t.Fatal(err)
	}
	got, _ := repo.GetUserData(ctx, "u1")
	if got != d {
		t.Errorf("GetUserData = %+v, want %+v", got, d)
	}
}

func TestApplyLedgerIsAtomic(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	period := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	b := testBudget("b1", period)
	if err := repo.UpsertBudget(ctx, b); err != nil {
		t.Fatal(err)
	}

	spent := b
	spent.RemainingAmount = core.FromUnits(20)
	bad := core.Transaction{ID: "e1", UserID: "u1", Kind: "transfer", Amount: core.FromUnits(30), Category: food, TransactionDate: period}
	if err := repo.ApplyLedger(ctx, LedgerWrite{Budget: &spent, Upsert: &bad}); err == nil {
		t.Fatal("expected the kind check to reject the transaction")
	}
	got, err := repo.GetBudget(ctx, "b1")
	if err != nil {
		t.Fatal(err)
	}
	if got.RemainingAmount != b.RemainingAmount {
		t.Errorf("remaining = %v after rolled back write, want %v", got.RemainingAmount, b.RemainingAmount)
	}

	good := bad
	good.Kind = core.KindExpense
	if err := repo.ApplyLedger(ctx, LedgerWrite{Budget: &spent, Upsert: &good}); err != nil {
		t.Fatal(err)
	}
	got, _ = repo.GetBudget(ctx, "b1")
	if got.RemainingAmount != core.FromUnits(20) {
		t.Errorf("remaining = %v", got.RemainingAmount)
	}

	if err := repo.ApplyLedger(ctx, LedgerWrite{Budget: &b, Delete: &good, DeletedAt: period}); err != nil {
		t.Fatal(err)
	}
	if tx, _ := repo.GetTransaction(ctx, core.KindExpense, "e1"); tx != nil {
		t.Errorf("transaction survived delete: %+v", tx)
	}
	ts, _ := repo.ListTombstones(ctx, core.EntityExpense, "u1")
	if len(ts) != 1 || ts[0].EntityID != "e1" {
		t.Errorf("tombstones = %+v", ts)
	}
}
